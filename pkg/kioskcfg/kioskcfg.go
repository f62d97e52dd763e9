// Package kioskcfg persists the per-kiosk settings an operator can change
// from the admin form: collector URL, site, device id and PIN.
package kioskcfg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dkalashnik/kiosk-survey/pkg/collector"
	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/storage"
)

// DefaultPIN guards the admin form until an operator changes it.
const DefaultPIN = "1234"

var (
	ErrWrongPIN   = errors.New("kioskcfg: wrong PIN")
	ErrMissingURL = errors.New("kioskcfg: API URL is required")
)

// Config is the effective kiosk configuration.
type Config struct {
	APIURL   string `json:"apiUrl"`
	Site     string `json:"sede"`
	DeviceID string `json:"deviceId"`
	PIN      string `json:"pin"`
}

// Partial is the persisted form; nil fields fall back to defaults.
type Partial struct {
	APIURL   *string `json:"apiUrl,omitempty"`
	Site     *string `json:"sede,omitempty"`
	DeviceID *string `json:"deviceId,omitempty"`
	PIN      *string `json:"pin,omitempty"`
}

// AdminForm is what the operator submits from the admin screen.
type AdminForm struct {
	PIN      string `json:"pin"`
	APIURL   string `json:"apiUrl"`
	Site     string `json:"sede"`
	DeviceID string `json:"deviceId"`
	NewPIN   string `json:"newPin"`
}

// HealthChecker probes a collector.
type HealthChecker interface {
	Health(ctx context.Context, baseURL string) error
}

// Key returns the storage key of appID's config. An empty appID maps to
// "default".
func Key(appID string) string {
	if appID == "" {
		appID = "default"
	}
	return "kiosk_cfg_" + appID
}

func (p Partial) overlay(base Config) Config {
	if p.APIURL != nil {
		base.APIURL = *p.APIURL
	}
	if p.Site != nil {
		base.Site = *p.Site
	}
	if p.DeviceID != nil {
		base.DeviceID = *p.DeviceID
	}
	if p.PIN != nil {
		base.PIN = *p.PIN
	}
	return base
}

func (p Partial) merge(next Partial) Partial {
	if next.APIURL != nil {
		p.APIURL = next.APIURL
	}
	if next.Site != nil {
		p.Site = next.Site
	}
	if next.DeviceID != nil {
		p.DeviceID = next.DeviceID
	}
	if next.PIN != nil {
		p.PIN = next.PIN
	}
	return p
}

// Store reads and writes kiosk configs in the key/value storage.
type Store struct {
	kv      storage.Store
	checker HealthChecker
	logger  log.Printer
}

func NewStore(kv storage.Store, checker HealthChecker, logger log.Printer) *Store {
	return &Store{kv: kv, checker: checker, logger: log.OrDefault(logger)}
}

// Load returns defaults overlaid with the persisted overrides. Storage or
// decode failures are logged and the defaults win.
func (s *Store) Load(ctx context.Context, appID string, defaults Config) Config {
	if defaults.PIN == "" {
		defaults.PIN = DefaultPIN
	}
	p, err := s.loadPartial(ctx, appID)
	if err != nil {
		log.Warnf(s.logger, "[kioskcfg] load %s failed, using defaults: %v", Key(appID), err)
		return defaults
	}
	return p.overlay(defaults)
}

// Save merges partial into the persisted overrides.
func (s *Store) Save(ctx context.Context, appID string, partial Partial) error {
	current, err := s.loadPartial(ctx, appID)
	if err != nil {
		log.Warnf(s.logger, "[kioskcfg] existing %s unreadable, overwriting: %v", Key(appID), err)
		current = Partial{}
	}
	raw, err := json.Marshal(current.merge(partial))
	if err != nil {
		return fmt.Errorf("kioskcfg: encode: %w", err)
	}
	if err := s.kv.Put(ctx, Key(appID), raw); err != nil {
		return fmt.Errorf("kioskcfg: persist %s: %w", Key(appID), err)
	}
	return nil
}

// Admin validates form against the stored PIN and persists the new values.
// An empty NewPIN keeps the current PIN.
func (s *Store) Admin(ctx context.Context, appID string, defaults Config, form AdminForm) (Config, error) {
	current := s.Load(ctx, appID, defaults)
	if strings.TrimSpace(form.PIN) != current.PIN {
		return current, ErrWrongPIN
	}
	apiURL := collector.NormalizeBaseURL(form.APIURL)
	if apiURL == "" {
		return current, ErrMissingURL
	}

	site := strings.TrimSpace(form.Site)
	device := strings.TrimSpace(form.DeviceID)
	pin := current.PIN
	if np := strings.TrimSpace(form.NewPIN); np != "" {
		pin = np
	}
	partial := Partial{APIURL: &apiURL, Site: &site, DeviceID: &device, PIN: &pin}
	if err := s.Save(ctx, appID, partial); err != nil {
		return current, err
	}
	s.logger.Printf("[kioskcfg] admin saved %s: api=%s sede=%s device=%s", Key(appID), apiURL, site, device)
	return partial.overlay(current), nil
}

// TestConnection checks the collector at url. It persists nothing.
func (s *Store) TestConnection(ctx context.Context, url string) error {
	if s.checker == nil {
		return errors.New("kioskcfg: no health checker")
	}
	return s.checker.Health(ctx, collector.NormalizeBaseURL(url))
}

func (s *Store) loadPartial(ctx context.Context, appID string) (Partial, error) {
	raw, err := s.kv.Get(ctx, Key(appID))
	if errors.Is(err, storage.ErrNotFound) {
		return Partial{}, nil
	}
	if err != nil {
		return Partial{}, err
	}
	var p Partial
	if err := json.Unmarshal(raw, &p); err != nil {
		return Partial{}, fmt.Errorf("decode: %w", err)
	}
	return p, nil
}
