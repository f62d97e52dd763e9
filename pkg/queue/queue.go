// Package queue is the kiosk's persisted outbox: records that could not be
// delivered wait here, oldest first, until a drain succeeds.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/metrics"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
	"github.com/dkalashnik/kiosk-survey/pkg/storage"
)

// DefaultCap bounds the queue; the oldest entries are evicted beyond it.
const DefaultCap = 1000

// Key returns the storage key holding the queue of appID.
func Key(appID string) string {
	return "queue_" + appID
}

// CorruptKey is where an undecodable queue blob is kept for inspection.
func CorruptKey(key string) string {
	return key + "_corrupt"
}

// Sender delivers one record to the collector at baseURL.
type Sender interface {
	Deliver(ctx context.Context, baseURL string, rec record.Record) error
}

// EndpointSource resolves the collector base URL at drain time.
type EndpointSource interface {
	APIURL(ctx context.Context) string
}

// Options configures a Queue.
type Options struct {
	Cap      int
	Sender   Sender
	Endpoint EndpointSource
	Logger   log.Printer
}

// DrainResult summarizes one drain pass.
type DrainResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Remaining int `json:"remaining"`
}

// Queue is a bounded FIFO persisted as one JSON array. Read-modify-write
// cycles are serialized by mu; drains are coalesced so only one pass runs
// at a time.
type Queue struct {
	store    storage.Store
	key      string
	cap      int
	sender   Sender
	endpoint EndpointSource
	logger   log.Printer

	mu     sync.Mutex
	length int
	known  bool
	drains singleflight.Group
}

func New(store storage.Store, appID string, opts Options) *Queue {
	capacity := opts.Cap
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Queue{
		store:    store,
		key:      Key(appID),
		cap:      capacity,
		sender:   opts.Sender,
		endpoint: opts.Endpoint,
		logger:   log.OrDefault(opts.Logger),
	}
}

// Enqueue appends rec and evicts from the front while over capacity. If
// the stored queue cannot be read nothing is written.
func (q *Queue) Enqueue(ctx context.Context, rec record.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.loadLocked(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, rec)
	if over := len(entries) - q.cap; over > 0 {
		log.Warnf(q.logger, "[queue] cap %d reached, evicting %d oldest record(s)", q.cap, over)
		metrics.QueueEvicted.Add(float64(over))
		entries = entries[over:]
	}
	return q.saveLocked(ctx, entries)
}

// Len returns the number of queued records. After the first read it is
// served from memory and kept current by every write.
func (q *Queue) Len(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.known {
		entries, err := q.loadLocked(ctx)
		if err != nil {
			log.Warnf(q.logger, "[queue] %v", err)
			return 0
		}
		q.setLengthLocked(len(entries))
	}
	return q.length
}

// Entries returns a copy of the queued records, oldest first. A read
// failure is logged and yields no entries.
func (q *Queue) Entries(ctx context.Context) []record.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	entries, err := q.loadLocked(ctx)
	if err != nil {
		log.Warnf(q.logger, "[queue] %v", err)
		return nil
	}
	q.setLengthLocked(len(entries))
	return entries
}

// Drain attempts every record present when the pass starts, in order.
// Delivered records are removed; failed ones keep their relative order.
// Records enqueued while the pass runs are kept. Concurrent callers share
// the result of the pass already in flight.
func (q *Queue) Drain(ctx context.Context) (DrainResult, error) {
	v, err, _ := q.drains.Do("drain", func() (any, error) {
		return q.drain(ctx)
	})
	if err != nil {
		return DrainResult{}, err
	}
	return v.(DrainResult), nil
}

func (q *Queue) drain(ctx context.Context) (DrainResult, error) {
	q.mu.Lock()
	snapshot, err := q.loadLocked(ctx)
	q.mu.Unlock()
	if err != nil {
		return DrainResult{}, err
	}
	if len(snapshot) == 0 {
		return DrainResult{}, nil
	}
	if q.sender == nil || q.endpoint == nil {
		return DrainResult{Remaining: len(snapshot)}, errors.New("queue: drain without sender or endpoint")
	}
	baseURL := q.endpoint.APIURL(ctx)
	if baseURL == "" {
		q.logger.Printf("[queue] drain skipped: no collector URL configured")
		return DrainResult{Remaining: len(snapshot)}, nil
	}

	metrics.DrainsTotal.Inc()
	delivered := make(map[string]int)
	result := DrainResult{}
	for _, rec := range snapshot {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++
		if err := q.sender.Deliver(ctx, baseURL, rec); err != nil {
			metrics.DrainEntries.WithLabelValues("failed").Inc()
			continue
		}
		metrics.DrainEntries.WithLabelValues("delivered").Inc()
		delivered[entryKey(rec)]++
		result.Delivered++
	}

	// Acknowledged records are removed even when the pass was cut short.
	bookkeeping := context.WithoutCancel(ctx)
	q.mu.Lock()
	defer q.mu.Unlock()
	current, err := q.loadLocked(bookkeeping)
	if err != nil {
		return result, fmt.Errorf("queue: %d delivered record(s) left in place: %w", result.Delivered, err)
	}
	if result.Delivered > 0 {
		kept := current[:0]
		for _, rec := range current {
			k := entryKey(rec)
			if delivered[k] > 0 {
				delivered[k]--
				continue
			}
			kept = append(kept, rec)
		}
		current = kept
		if err := q.saveLocked(bookkeeping, current); err != nil {
			return result, err
		}
	}
	result.Remaining = len(current)
	q.logger.Printf("[queue] drain: attempted=%d delivered=%d remaining=%d", result.Attempted, result.Delivered, result.Remaining)
	return result, nil
}

// loadLocked reads the stored queue. A missing key is an empty queue. A
// blob that does not decode is moved aside to CorruptKey and treated as
// empty. Any other read failure is returned so callers do not overwrite
// records they could not see.
func (q *Queue) loadLocked(ctx context.Context) ([]record.Record, error) {
	raw, err := q.store.Get(ctx, q.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: read %s: %w", q.key, err)
	}
	var entries []record.Record
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Errorf(q.logger, "[queue] %s is corrupt, moving it to %s and starting empty: %v", q.key, CorruptKey(q.key), err)
		if perr := q.store.Put(ctx, CorruptKey(q.key), raw); perr != nil {
			log.Errorf(q.logger, "[queue] keep corrupt copy of %s: %v", q.key, perr)
		}
		return nil, nil
	}
	return entries, nil
}

func (q *Queue) saveLocked(ctx context.Context, entries []record.Record) error {
	if entries == nil {
		entries = []record.Record{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("queue: encode %s: %w", q.key, err)
	}
	if err := q.store.Put(ctx, q.key, raw); err != nil {
		log.Errorf(q.logger, "[queue] persist %s: %v", q.key, err)
		return fmt.Errorf("queue: persist %s: %w", q.key, err)
	}
	q.setLengthLocked(len(entries))
	return nil
}

func (q *Queue) setLengthLocked(n int) {
	q.length, q.known = n, true
	metrics.QueueDepth.Set(float64(n))
}

// entryKey identifies a record for removal after delivery. Records from
// older builds may lack meta.id, so the full payload stands in.
func entryKey(rec record.Record) string {
	if rec.Meta.ID != "" {
		return rec.Meta.ID
	}
	raw, _ := json.Marshal(rec)
	return string(raw)
}
