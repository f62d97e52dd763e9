package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
)

const (
	badgerGCInterval    = 5 * time.Minute
	badgerDiscardRatio  = 0.5
	defaultDirPermsMode = 0o755
)

// Badger is the default on-device backend. An empty path opens an
// in-memory database.
type Badger struct {
	db     *badger.DB
	logger log.Printer
	stop   chan struct{}
	wg     sync.WaitGroup
}

// OpenBadger opens (or creates) a BadgerDB directory and starts value-log
// garbage collection.
func OpenBadger(path string, logger log.Printer) (*Badger, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, defaultDirPermsMode); err != nil {
			return nil, fmt.Errorf("failed to create badger directory '%s': %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(log.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at '%s': %w", path, err)
	}

	b := &Badger{db: db, logger: log.OrDefault(logger), stop: make(chan struct{})}
	if path != "" {
		b.wg.Add(1)
		go b.runGC()
	}
	return b, nil
}

func (b *Badger) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get '%s': %w", key, err)
	}
	return value, nil
}

func (b *Badger) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger put '%s': %w", key, err)
	}
	return nil
}

func (b *Badger) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("badger delete '%s': %w", key, err)
	}
	return nil
}

func (b *Badger) Close() error {
	close(b.stop)
	b.wg.Wait()
	return b.db.Close()
}

func (b *Badger) runGC() {
	defer b.wg.Done()
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			for {
				err := b.db.RunValueLogGC(badgerDiscardRatio)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						log.Warnf(b.logger, "[storage] badger value log gc: %v", err)
					}
					break
				}
			}
		}
	}
}
