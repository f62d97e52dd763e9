package kioskcfg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkalashnik/kiosk-survey/pkg/storage"
)

type silent struct{}

func (silent) Printf(string, ...any) {}

type fakeChecker struct {
	err  error
	urls []string
}

func (f *fakeChecker) Health(_ context.Context, url string) error {
	f.urls = append(f.urls, url)
	return f.err
}

type brokenStore struct{ storage.Store }

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("io error") }

var defaults = Config{APIURL: "http://localhost:8000", Site: "Saltillo", DeviceID: "tablet-01"}

func TestKey(t *testing.T) {
	assert.Equal(t, "kiosk_cfg_comedor", Key("comedor"))
	assert.Equal(t, "kiosk_cfg_default", Key(""))
}

func TestLoadDefaultsAndOverlay(t *testing.T) {
	kv := storage.NewMemory()
	s := NewStore(kv, nil, silent{})
	ctx := context.Background()

	cfg := s.Load(ctx, "comedor", defaults)
	assert.Equal(t, DefaultPIN, cfg.PIN)
	assert.Equal(t, "Saltillo", cfg.Site)

	require.NoError(t, kv.Put(ctx, Key("comedor"), []byte(`{"sede":"Ramos"}`)))
	cfg = s.Load(ctx, "comedor", defaults)
	assert.Equal(t, "Ramos", cfg.Site)
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
}

func TestLoadFallsBackOnErrors(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Put(ctx, Key("comedor"), []byte(`{broken`)))
	assert.Equal(t, "Saltillo", NewStore(kv, nil, silent{}).Load(ctx, "comedor", defaults).Site)

	cfg := NewStore(brokenStore{kv}, nil, silent{}).Load(ctx, "comedor", defaults)
	assert.Equal(t, defaults.APIURL, cfg.APIURL)
}

func TestSaveMerges(t *testing.T) {
	s := NewStore(storage.NewMemory(), nil, silent{})
	ctx := context.Background()
	site, device := "Ramos", "tablet-09"
	require.NoError(t, s.Save(ctx, "comedor", Partial{Site: &site}))
	require.NoError(t, s.Save(ctx, "comedor", Partial{DeviceID: &device}))

	cfg := s.Load(ctx, "comedor", defaults)
	assert.Equal(t, "Ramos", cfg.Site)
	assert.Equal(t, "tablet-09", cfg.DeviceID)
}

func TestAdmin(t *testing.T) {
	s := NewStore(storage.NewMemory(), nil, silent{})
	ctx := context.Background()

	_, err := s.Admin(ctx, "comedor", defaults, AdminForm{PIN: "0000", APIURL: "http://x"})
	assert.ErrorIs(t, err, ErrWrongPIN)

	_, err = s.Admin(ctx, "comedor", defaults, AdminForm{PIN: "1234", APIURL: "  "})
	assert.ErrorIs(t, err, ErrMissingURL)

	cfg, err := s.Admin(ctx, "comedor", defaults, AdminForm{PIN: "1234", APIURL: "http://collector:9000/", Site: "Ramos", DeviceID: "t2"})
	require.NoError(t, err)
	assert.Equal(t, Config{APIURL: "http://collector:9000", Site: "Ramos", DeviceID: "t2", PIN: "1234"}, cfg)
	assert.Equal(t, cfg, s.Load(ctx, "comedor", defaults))

	cfg, err = s.Admin(ctx, "comedor", defaults, AdminForm{PIN: "1234", APIURL: "http://collector:9000", NewPIN: "9876"})
	require.NoError(t, err)
	assert.Equal(t, "9876", cfg.PIN)

	_, err = s.Admin(ctx, "comedor", defaults, AdminForm{PIN: "1234", APIURL: "http://x"})
	assert.ErrorIs(t, err, ErrWrongPIN)
}

func TestAdminTrimsEnteredPIN(t *testing.T) {
	s := NewStore(storage.NewMemory(), nil, silent{})
	ctx := context.Background()

	cfg, err := s.Admin(ctx, "comedor", defaults, AdminForm{PIN: " 1234\n", APIURL: "http://collector"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPIN, cfg.PIN)

	_, err = s.Admin(ctx, "comedor", defaults, AdminForm{PIN: " 12 34 ", APIURL: "http://collector"})
	assert.ErrorIs(t, err, ErrWrongPIN)
}

func TestAdminIsPerApp(t *testing.T) {
	s := NewStore(storage.NewMemory(), nil, silent{})
	ctx := context.Background()
	_, err := s.Admin(ctx, "comedor", defaults, AdminForm{PIN: "1234", APIURL: "http://a", NewPIN: "5555"})
	require.NoError(t, err)
	assert.Equal(t, DefaultPIN, s.Load(ctx, "transporte", defaults).PIN)
}

func TestTestConnectionDoesNotPersist(t *testing.T) {
	kv := storage.NewMemory()
	checker := &fakeChecker{err: errors.New("down")}
	s := NewStore(kv, checker, silent{})
	ctx := context.Background()

	assert.Error(t, s.TestConnection(ctx, "http://collector/"))
	assert.Equal(t, []string{"http://collector"}, checker.urls)
	_, err := kv.Get(ctx, Key("comedor"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestHandle(t *testing.T) {
	s := NewStore(storage.NewMemory(), &fakeChecker{}, silent{})
	ctx := context.Background()
	h := Open(ctx, s, "comedor", defaults)

	site, device := h.Identity(ctx)
	assert.Equal(t, "Saltillo", site)
	assert.Equal(t, "tablet-01", device)

	_, err := h.Admin(ctx, AdminForm{PIN: "bad", APIURL: "http://x"})
	require.ErrorIs(t, err, ErrWrongPIN)
	assert.Equal(t, defaults.APIURL, h.APIURL(ctx))

	_, err = h.Admin(ctx, AdminForm{PIN: "1234", APIURL: "http://new/", Site: "Ramos", DeviceID: "t3"})
	require.NoError(t, err)
	assert.Equal(t, "http://new", h.APIURL(ctx))
	site, _ = h.Identity(ctx)
	assert.Equal(t, "Ramos", site)
	assert.NoError(t, h.TestConnection(ctx, "http://new"))
}
