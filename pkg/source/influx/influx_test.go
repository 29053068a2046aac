package influx

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
)

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Config{URL: "http://localhost:8086", Token: "t", Org: "home"})
	assert.ErrorIs(t, err, ErrMissingConfig)
}

func TestLatestQuery(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, time.February, 12, 0, 0, 0, 0, time.UTC)
	q, err := LatestQuery("sensors", "environment_measurements", []string{"garage", "heating"}, start)
	require.NoError(t, err)
	assert.Equal(t,
		`from(bucket: "sensors") |> range(start: 2025-02-12T00:00:00Z) |> filter(fn: (r) => r._measurement == "environment_measurements" and r._field == "value") |> filter(fn: (r) => contains(value: r.location, set: ["garage", "heating"])) |> group(columns: ["location", "type"]) |> last() |> group() |> sort(columns: ["_time"], desc: true)`,
		cleanForLogging(q),
	)
}

func TestHistoryQuery(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, time.March, 13, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	q, err := HistoryQuery("sensors", "m", `gar"age`, measurement.Humidity, since)
	require.NoError(t, err)
	assert.Contains(t, q, `range(start: 2025-03-13T11:00:00Z)`)
	assert.Contains(t, q, `r.location == "gar\"age" and r.type == "humidity"`)
	assert.Contains(t, q, `sort(columns: ["_time"])`)
}

const csvResponse = "#datatype,string,long,dateTime:RFC3339,double,string,string,string,string\r\n" +
	"#group,false,false,false,false,true,true,true,true\r\n" +
	"#default,_result,,,,,,,\r\n" +
	",result,table,_time,_value,_field,_measurement,location,type\r\n" +
	",,0,2025-03-14T11:59:00Z,22.5,value,environment_measurements,garage,temperature\r\n" +
	",,0,2025-03-14T11:58:00Z,47,value,environment_measurements,garage,humidity\r\n" +
	",,0,2025-03-14T11:57:00Z,1013,value,environment_measurements,garage,pressure\r\n" +
	"\r\n"

func TestLatest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/api/v2/query") {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "home", r.URL.Query().Get("org"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		fmt.Fprint(w, csvResponse)
	}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL, Token: "tok", Org: "home", Bucket: "sensors"})
	require.NoError(t, err)
	defer s.Close()
	ms, err := s.Latest(context.Background(), []string{"garage"})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "garage", ms[0].Location)
	assert.Equal(t, measurement.Temperature, ms[0].Type)
	assert.Equal(t, 22.5, ms[0].Value)
	assert.True(t, ms[0].CreatedAt.Equal(time.Date(2025, time.March, 14, 11, 59, 0, 0, time.UTC)))
	assert.Equal(t, measurement.Humidity, ms[1].Type)
}
