package kioskcfg

import (
	"context"
	"sync"
)

// Handle binds a Store to one app id and caches the effective config.
// It is what the engine, queue and submission client consult.
type Handle struct {
	store    *Store
	appID    string
	defaults Config

	mu      sync.RWMutex
	current Config
}

// Open loads appID's config once and returns a handle over it.
func Open(ctx context.Context, store *Store, appID string, defaults Config) *Handle {
	return &Handle{
		store:    store,
		appID:    appID,
		defaults: defaults,
		current:  store.Load(ctx, appID, defaults),
	}
}

func (h *Handle) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

func (h *Handle) APIURL(context.Context) string {
	return h.Get().APIURL
}

func (h *Handle) Identity(context.Context) (string, string) {
	c := h.Get()
	return c.Site, c.DeviceID
}

// Admin applies a PIN-gated save and refreshes the cache on success.
func (h *Handle) Admin(ctx context.Context, form AdminForm) (Config, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next, err := h.store.Admin(ctx, h.appID, h.defaults, form)
	if err != nil {
		return h.current, err
	}
	h.current = next
	return next, nil
}

func (h *Handle) TestConnection(ctx context.Context, url string) error {
	return h.store.TestConnection(ctx, url)
}
