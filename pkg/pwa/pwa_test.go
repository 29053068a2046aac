package pwa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
)

type fakePrompt struct {
	choice    Choice
	promptErr error
	choiceErr error
	prompted  int
	onPrompt  func()
}

func (p *fakePrompt) Prompt(ctx context.Context) error {
	p.prompted++
	if p.onPrompt != nil {
		p.onPrompt()
	}
	return p.promptErr
}

func (p *fakePrompt) UserChoice(ctx context.Context) (Choice, error) {
	return p.choice, p.choiceErr
}

type standalone bool

func (s standalone) Standalone() bool {
	return bool(s)
}

type fakeSharer struct {
	got ShareData
	err error
}

func (s *fakeSharer) Share(ctx context.Context, data ShareData) error {
	s.got = data
	return s.err
}

type countingRegistration struct {
	mu sync.Mutex
	n  int
}

func (r *countingRegistration) Update(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return nil
}

func (r *countingRegistration) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	a := New(Config{})
	assert.Equal(t, Status{Online: true}, a.Status())

	a.Init(false, standalone(true))
	assert.False(t, a.Online.Get())
	assert.True(t, a.Installed.Get())

	b := New(Config{})
	b.Init(true, nil)
	assert.False(t, b.Installed.Get())
}

func TestInstall(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	t.Run("without prompt", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		assert.NotPanics(t, func() {
			assert.False(t, a.Install(ctx))
		})
	})
	t.Run("accepted", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		p := &fakePrompt{choice: Choice{Outcome: Accepted, Platform: "web"}}
		a.CapturePrompt(p)
		assert.True(t, a.Installable.Get())
		assert.True(t, a.Install(ctx))
		assert.Equal(t, 1, p.prompted)
		assert.False(t, a.Installable.Get())
		// the prompt is consumed
		assert.False(t, a.Install(ctx))
		assert.Equal(t, 1, p.prompted)
	})
	t.Run("dismissed", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		a.CapturePrompt(&fakePrompt{choice: Choice{Outcome: Dismissed}})
		assert.False(t, a.Install(ctx))
		assert.False(t, a.Installable.Get())
	})
	t.Run("prompt error", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		a.CapturePrompt(&fakePrompt{promptErr: errors.New("not allowed")})
		assert.False(t, a.Install(ctx))
		assert.False(t, a.Install(ctx))
	})
	t.Run("choice error", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		a.CapturePrompt(&fakePrompt{choiceErr: errors.New("aborted")})
		assert.False(t, a.Install(ctx))
		assert.False(t, a.Installable.Get())
	})
	t.Run("new prompt while installing", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		next := &fakePrompt{choice: Choice{Outcome: Accepted}}
		first := &fakePrompt{
			choice:   Choice{Outcome: Dismissed},
			onPrompt: func() { a.CapturePrompt(next) },
		}
		a.CapturePrompt(first)
		assert.False(t, a.Install(ctx))
		assert.True(t, a.Installable.Get())
		assert.True(t, a.Install(ctx))
		assert.Equal(t, 1, next.prompted)
		assert.False(t, a.Installable.Get())
	})
	t.Run("installed elsewhere", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		a.CapturePrompt(&fakePrompt{choice: Choice{Outcome: Accepted}})
		a.MarkInstalled()
		assert.True(t, a.Installed.Get())
		assert.False(t, a.Installable.Get())
		assert.False(t, a.Install(ctx))
	})
}

func TestOnline(t *testing.T) {
	t.Parallel()

	a := New(Config{})
	var events []bool
	a.Online.Subscribe(func(online bool) { events = append(events, online) })
	a.SetOnline(false)
	a.SetOnline(true)
	assert.Equal(t, []bool{false, true}, events)
}

func TestShare(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	t.Run("unavailable", func(t *testing.T) {
		t.Parallel()

		a := New(Config{})
		assert.False(t, a.CanShare())
		assert.False(t, a.Share(ctx, nil))
	})
	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		s := &fakeSharer{}
		a := New(Config{Sharer: s, AppURL: "https://sensors.example.com/", Messages: i18n.German})
		assert.True(t, a.CanShare())
		assert.True(t, a.Share(ctx, &ShareData{Text: "Garage ist warm"}))
		assert.Equal(t, ShareData{
			Title: "Temperature Sensor Dashboard",
			Text:  "Garage ist warm",
			URL:   "https://sensors.example.com/",
		}, s.got)
	})
	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()

		a := New(Config{Sharer: &fakeSharer{err: context.Canceled}})
		assert.NotPanics(t, func() {
			assert.False(t, a.Share(ctx, nil))
		})
	})
}

func TestUpdates(t *testing.T) {
	t.Parallel()

	var reloaded bool
	a := New(Config{
		UpdateInterval: 2 * time.Millisecond,
		Updater: func(ctx context.Context, reload bool) error {
			reloaded = reload
			return nil
		},
	})
	reg := &countingRegistration{}
	a.Registered(context.Background(), reg)
	require.Eventually(t, func() bool { return reg.count() >= 2 }, time.Second, time.Millisecond)
	require.NoError(t, a.Close())
	n := reg.count()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, n, reg.count())

	a.SignalOfflineReady()
	a.SignalNeedRefresh()
	assert.True(t, a.Status().NeedRefresh)
	assert.True(t, a.Status().OfflineReady)
	require.NoError(t, a.ApplyUpdate(context.Background(), true))
	assert.True(t, reloaded)
	assert.False(t, a.NeedRefresh.Get())

	assert.ErrorIs(t, New(Config{}).ApplyUpdate(context.Background(), false), ErrNoUpdater)
	a.RegisterError(errors.New("insecure origin"))
	require.NoError(t, a.Close())
}
