package pwa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type versionServer struct {
	mu      sync.Mutex
	version string
	etag    bool
}

func (s *versionServer) set(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

func (s *versionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.etag {
		w.Header().Set("ETag", `"`+s.version+`"`)
	}
	_, _ = w.Write([]byte(s.version + "\n"))
}

func TestVersionCheck(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	t.Run("body version", func(t *testing.T) {
		t.Parallel()

		vs := &versionServer{version: "1.0.0"}
		srv := httptest.NewServer(vs)
		defer srv.Close()

		var signalled int
		vc := NewVersionCheck(srv.URL, func() { signalled++ })
		require.NoError(t, vc.Update(ctx))
		assert.Equal(t, "1.0.0", vc.Active())
		assert.Zero(t, signalled)
		assert.ErrorIs(t, vc.Activate(ctx, false), ErrNoPendingVersion)

		vs.set("1.1.0")
		require.NoError(t, vc.Update(ctx))
		require.NoError(t, vc.Update(ctx))
		assert.Equal(t, 1, signalled)
		assert.Equal(t, "1.0.0", vc.Active())

		require.NoError(t, vc.Activate(ctx, true))
		assert.Equal(t, "1.1.0", vc.Active())
		require.NoError(t, vc.Update(ctx))
		assert.Equal(t, 1, signalled)
	})
	t.Run("etag version", func(t *testing.T) {
		t.Parallel()

		vs := &versionServer{version: "abc", etag: true}
		srv := httptest.NewServer(vs)
		defer srv.Close()

		vc := NewVersionCheck(srv.URL, nil)
		require.NoError(t, vc.Update(ctx))
		assert.Equal(t, `"abc"`, vc.Active())
	})
	t.Run("server error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		defer srv.Close()

		assert.Error(t, NewVersionCheck(srv.URL, nil).Update(ctx))
	})
}

func TestVersionCheckDrivesApp(t *testing.T) {
	t.Parallel()

	vs := &versionServer{version: "1"}
	srv := httptest.NewServer(vs)
	defer srv.Close()

	var a *App
	vc := NewVersionCheck(srv.URL, func() { a.SignalNeedRefresh() })
	a = New(Config{UpdateInterval: 2 * time.Millisecond, Updater: vc.Activate})
	a.Registered(context.Background(), vc)
	defer a.Close()

	require.Eventually(t, func() bool { return vc.Active() == "1" }, time.Second, time.Millisecond)
	vs.set("2")
	require.Eventually(t, a.NeedRefresh.Get, time.Second, time.Millisecond)
	require.NoError(t, a.ApplyUpdate(context.Background(), true))
	assert.False(t, a.NeedRefresh.Get())
	assert.Equal(t, "2", vc.Active())
}
