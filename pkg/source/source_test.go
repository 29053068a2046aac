package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/influx"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/psql"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/supabase"
)

var (
	_ Backend = (*supabase.Client)(nil)
	_ Backend = (*psql.Store)(nil)
	_ Backend = (*influx.Store)(nil)
)

func TestOpen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	t.Run("missing supabase credentials", func(t *testing.T) {
		t.Parallel()

		_, err := Open(ctx, Config{})
		assert.ErrorIs(t, err, ErrMissingConfig)
		_, err = Open(ctx, Config{Kind: Supabase, Supabase: supabase.Config{URL: "https://x.supabase.co"}})
		assert.ErrorIs(t, err, ErrMissingConfig)
	})
	t.Run("missing postgres settings", func(t *testing.T) {
		t.Parallel()

		_, err := Open(ctx, Config{Kind: Postgres})
		assert.ErrorIs(t, err, ErrMissingConfig)
	})
	t.Run("missing influx settings", func(t *testing.T) {
		t.Parallel()

		_, err := Open(ctx, Config{Kind: Influx, Influx: influx.Config{URL: "http://localhost:8086"}})
		assert.ErrorIs(t, err, ErrMissingConfig)
	})
	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		_, err := Open(ctx, Config{Kind: "sqlite"})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})
	t.Run("supabase", func(t *testing.T) {
		t.Parallel()

		b, err := Open(ctx, Config{Supabase: supabase.Config{URL: "https://x.supabase.co", AnonKey: "key"}})
		require.NoError(t, err)
		assert.IsType(t, &supabase.Client{}, b)
		assert.NoError(t, b.Close())
	})
}
