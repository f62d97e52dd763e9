// Package storage is the kiosk's durable key/value layer, the equivalent of
// browser local storage. Keys are namespaced by the callers
// (kiosk_cfg_{appId}, queue_{appId}); values are opaque JSON blobs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// Store persists whole values under string keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	// DSN is a directory for badger, a file path for sqlite and a
	// connection string for postgres. Ignored for memory.
	DSN    string
	Logger log.Printer
}

// Open returns the backend named by opts.Driver.
func Open(opts Options) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	switch driver {
	case "", DriverBadger:
		return OpenBadger(opts.DSN, opts.Logger)
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite, DriverPostgres:
		return OpenSQL(driver, opts.DSN, opts.Logger)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}
