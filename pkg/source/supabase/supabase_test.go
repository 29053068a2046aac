package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
)

const testKey = "anon_key_5f1c2"

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(Config{URL: "https://example.supabase.co"})
	assert.ErrorIs(t, err, ErrMissingCredentials)
	_, err = New(Config{AnonKey: testKey})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLatest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/environment_measurements", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "*", q.Get("select"))
		assert.Equal(t, `in.("garage","heating")`, q.Get("location"))
		assert.Equal(t, "created_at.desc", q.Get("order"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id": 7, "location": "garage", "type": "temperature", "value": 21.25, "created_at": "2025-03-14T11:58:00.123456+00:00"},
			{"id": 6, "location": "heating", "type": "humidity", "value": 40, "created_at": "2025-03-14T11:57:00+00:00"}
		]`)
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL + "/", AnonKey: testKey})
	require.NoError(t, err)
	ms, err := c.Latest(context.Background(), []string{"garage", "heating"})
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, int64(7), ms[0].ID)
	assert.Equal(t, measurement.Temperature, ms[0].Type)
	assert.Equal(t, 21.25, ms[0].Value)
	assert.True(t, ms[0].CreatedAt.Equal(time.Date(2025, time.March, 14, 11, 58, 0, 123456000, time.UTC)))
	assert.Equal(t, measurement.Humidity, ms[1].Type)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	since := time.Date(2025, time.March, 13, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.garage", q.Get("location"))
		assert.Equal(t, "eq.temperature", q.Get("type"))
		assert.Equal(t, "gte.2025-03-13T12:00:00Z", q.Get("created_at"))
		assert.Equal(t, "created_at.asc", q.Get("order"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, AnonKey: testKey})
	require.NoError(t, err)
	ms, err := c.History(context.Background(), "garage", measurement.Temperature, since)
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code": "PGRST301", "message": "JWT expired"}`)
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, AnonKey: testKey})
	require.NoError(t, err)
	_, err = c.Latest(context.Background(), []string{"garage"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT expired")
	assert.Error(t, c.Ping(context.Background()))
}

func TestInsert(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, err := New(Config{URL: srv.URL, AnonKey: testKey, Table: "readings"})
	require.NoError(t, err)
	err = c.Insert(context.Background(), measurement.Measurement{
		Location: "heating",
		Type:     measurement.Temperature,
		Value:    61.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "heating", got["location"])
	assert.Equal(t, "temperature", got["type"])
	assert.Equal(t, 61.5, got["value"])
	assert.NotContains(t, got, "created_at")
}
