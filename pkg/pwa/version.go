package pwa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrNoPendingVersion = errors.New("no pending version")

// VersionCheck is a Registration that polls the version document of the
// deployed app. A version other than the active one is held as pending and
// reported through onNew until Activate makes it the active version.
type VersionCheck struct {
	url    string
	client *resty.Client
	onNew  func()

	mu      sync.Mutex
	active  string
	pending string
}

func NewVersionCheck(url string, onNew func()) *VersionCheck {
	return &VersionCheck{
		url:    url,
		client: resty.New().SetTimeout(10 * time.Second),
		onNew:  onNew,
	}
}

// Update fetches the version document. The ETag header identifies the
// version; without one the trimmed body does.
func (v *VersionCheck) Update(ctx context.Context) error {
	resp, err := v.client.R().SetContext(ctx).Get(v.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("version check: %s", resp.Status())
	}
	version := resp.Header().Get("ETag")
	if version == "" {
		version = strings.TrimSpace(resp.String())
	}
	v.mu.Lock()
	changed := false
	switch {
	case v.active == "":
		v.active = version
	case version != v.active && version != v.pending:
		v.pending = version
		changed = true
	}
	v.mu.Unlock()
	if changed && v.onNew != nil {
		v.onNew()
	}
	return nil
}

// Activate promotes the pending version. It has the signature of
// Config.Updater; clients reload on their own when reload is set.
func (v *VersionCheck) Activate(ctx context.Context, reload bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending == "" {
		return ErrNoPendingVersion
	}
	v.active = v.pending
	v.pending = ""
	return nil
}

func (v *VersionCheck) Active() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.active
}
