package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkalashnik/kiosk-survey/pkg/clock"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
	"github.com/dkalashnik/kiosk-survey/pkg/storage"
)

type silent struct{}

func (silent) Printf(string, ...any) {}

type staticEndpoint string

func (s staticEndpoint) APIURL(context.Context) string { return string(s) }

type fakeSender struct {
	mu        sync.Mutex
	fail      map[string]bool
	delivered []string
	onDeliver func(rec record.Record)
}

func (f *fakeSender) Deliver(_ context.Context, _ string, rec record.Record) error {
	if f.onDeliver != nil {
		f.onDeliver(rec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[rec.Meta.ID] {
		return errors.New("offline")
	}
	f.delivered = append(f.delivered, rec.Meta.ID)
	return nil
}

func rec(id string) record.Record {
	return record.Record{Kind: "comedor", Rating: "Bueno", Reason: "Sabor", Meta: record.Meta{ID: id}}
}

func ids(entries []record.Record) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Meta.ID)
	}
	return out
}

func newQueue(sender Sender, capacity int) (*Queue, storage.Store) {
	store := storage.NewMemory()
	return New(store, "comedor", Options{Cap: capacity, Sender: sender, Endpoint: staticEndpoint("http://collector"), Logger: silent{}}), store
}

func TestKey(t *testing.T) {
	assert.Equal(t, "queue_transporte", Key("transporte"))
}

func TestEnqueueEvictsOldest(t *testing.T) {
	q, _ := newQueue(&fakeSender{}, 3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.Enqueue(ctx, rec(fmt.Sprint(i))))
	}
	assert.Equal(t, []string{"3", "4", "5"}, ids(q.Entries(ctx)))
	assert.Equal(t, 3, q.Len(ctx))
}

func TestDefaultCapIsThousand(t *testing.T) {
	q, _ := newQueue(&fakeSender{}, 0)
	ctx := context.Background()
	for i := 0; i < DefaultCap+1; i++ {
		require.NoError(t, q.Enqueue(ctx, rec(fmt.Sprint(i))))
	}
	entries := q.Entries(ctx)
	require.Len(t, entries, DefaultCap)
	assert.Equal(t, "1", entries[0].Meta.ID)
	assert.Equal(t, fmt.Sprint(DefaultCap), entries[len(entries)-1].Meta.ID)
}

func TestQueuePersistsUnderKey(t *testing.T) {
	q, store := newQueue(&fakeSender{}, 10)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, rec("a")))

	raw, err := store.Get(ctx, "queue_comedor")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"id":"a"`)

	reopened := New(store, "comedor", Options{Logger: silent{}})
	assert.Equal(t, []string{"a"}, ids(reopened.Entries(ctx)))
}

func TestCorruptQueueTreatedAsEmpty(t *testing.T) {
	q, store := newQueue(&fakeSender{}, 10)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Key("comedor"), []byte("{not json")))
	assert.Equal(t, 0, q.Len(ctx))
	require.NoError(t, q.Enqueue(ctx, rec("a")))
	assert.Equal(t, 1, q.Len(ctx))

	kept, err := store.Get(ctx, CorruptKey(Key("comedor")))
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))
}

// flakyStore fails the next failGets reads and counts all of them.
type flakyStore struct {
	storage.Store
	mu       sync.Mutex
	failGets int
	gets     int
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	f.gets++
	fail := f.failGets > 0
	if fail {
		f.failGets--
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("database is locked")
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGets = n
}

func (f *flakyStore) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func newFlakyQueue(sender Sender) (*Queue, *flakyStore) {
	store := &flakyStore{Store: storage.NewMemory()}
	return New(store, "comedor", Options{Cap: 10, Sender: sender, Endpoint: staticEndpoint("http://collector"), Logger: silent{}}), store
}

func TestEnqueueKeepsBacklogWhenReadFails(t *testing.T) {
	q, store := newFlakyQueue(&fakeSender{})
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, rec(id)))
	}

	store.failNext(1)
	require.Error(t, q.Enqueue(ctx, rec("d")))

	assert.Equal(t, []string{"a", "b", "c"}, ids(q.Entries(ctx)))
	require.NoError(t, q.Enqueue(ctx, rec("d")))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(q.Entries(ctx)))
}

func TestDrainKeepsBacklogWhenSnapshotReadFails(t *testing.T) {
	sender := &fakeSender{}
	q, store := newFlakyQueue(sender)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, rec(id)))
	}

	store.failNext(1)
	_, err := q.Drain(ctx)
	require.Error(t, err)
	assert.Empty(t, sender.delivered)
	assert.Equal(t, []string{"a", "b", "c"}, ids(q.Entries(ctx)))
}

func TestDrainDoesNotSaveWhenReloadFails(t *testing.T) {
	q, store := newFlakyQueue(nil)
	sender := &fakeSender{fail: map[string]bool{"b": true}}
	sender.onDeliver = func(r record.Record) {
		if r.Meta.ID == "c" {
			store.failNext(1)
		}
	}
	q.sender = sender
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, rec(id)))
	}

	result, err := q.Drain(ctx)
	require.Error(t, err)
	assert.Equal(t, 2, result.Delivered)
	assert.Equal(t, []string{"a", "b", "c"}, ids(q.Entries(ctx)), "delivered records stay until they can be removed safely")
}

func TestLenIsServedFromMemory(t *testing.T) {
	q, store := newFlakyQueue(&fakeSender{})
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, rec("a")))
	require.NoError(t, q.Enqueue(ctx, rec("b")))

	before := store.reads()
	for i := 0; i < 50; i++ {
		assert.Equal(t, 2, q.Len(ctx))
	}
	assert.Equal(t, before, store.reads())

	_, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Len(ctx))
}

func TestLenLoadsOnceFromExistingStore(t *testing.T) {
	store := &flakyStore{Store: storage.NewMemory()}
	ctx := context.Background()
	seed := New(store, "comedor", Options{Logger: silent{}})
	require.NoError(t, seed.Enqueue(ctx, rec("a")))

	reopened := New(store, "comedor", Options{Logger: silent{}})
	before := store.reads()
	assert.Equal(t, 1, reopened.Len(ctx))
	assert.Equal(t, 1, reopened.Len(ctx))
	assert.Equal(t, before+1, store.reads())
}

func TestDrainRemovesAcknowledgedRecordsWhenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &fakeSender{}
	q, _ := newQueue(sender, 10)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, rec(id)))
	}
	sender.onDeliver = func(r record.Record) {
		if r.Meta.ID == "a" {
			cancel()
		}
	}

	result, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Attempted: 1, Delivered: 1, Remaining: 2}, result)
	assert.Equal(t, []string{"b", "c"}, ids(q.Entries(context.Background())))
}

func TestDrainKeepsFailuresInOrder(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"b": true, "d": true}}
	q, _ := newQueue(sender, 10)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, q.Enqueue(ctx, rec(id)))
	}

	result, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Attempted: 4, Delivered: 2, Remaining: 2}, result)
	assert.Equal(t, []string{"a", "c"}, sender.delivered)
	assert.Equal(t, []string{"b", "d"}, ids(q.Entries(ctx)))
}

func TestDrainEmptiesQueueWhenOnline(t *testing.T) {
	sender := &fakeSender{}
	q, _ := newQueue(sender, 10)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, rec("a")))
	require.NoError(t, q.Enqueue(ctx, rec("b")))

	result, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Remaining)
	assert.Equal(t, []string{"a", "b"}, sender.delivered)
	assert.Equal(t, 0, q.Len(ctx))
}

func TestDrainPreservesRecordsEnqueuedDuringPass(t *testing.T) {
	sender := &fakeSender{}
	q, _ := newQueue(sender, 10)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, rec("a")))

	var once sync.Once
	sender.onDeliver = func(record.Record) {
		once.Do(func() { require.NoError(t, q.Enqueue(ctx, rec("late"))) })
	}

	result, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, []string{"late"}, ids(q.Entries(ctx)))
}

func TestDrainWithoutURLLeavesQueue(t *testing.T) {
	store := storage.NewMemory()
	q := New(store, "comedor", Options{Sender: &fakeSender{}, Endpoint: staticEndpoint(""), Logger: silent{}})
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, rec("a")))

	result, err := q.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Remaining)
	assert.Equal(t, 0, result.Attempted)
}

func TestConcurrentDrainsDeliverEachRecordOnce(t *testing.T) {
	release := make(chan struct{})
	var started int32
	sender := &fakeSender{onDeliver: func(record.Record) {
		if atomic.AddInt32(&started, 1) == 1 {
			<-release
		}
	}}
	q, _ := newQueue(sender, 10)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, rec("a")))
	require.NoError(t, q.Enqueue(ctx, rec("b")))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Drain(ctx)
			assert.NoError(t, err)
		}()
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&started) >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 0, q.Len(ctx))
	assert.ElementsMatch(t, []string{"a", "b"}, sender.delivered)
}

type countingDrainer struct {
	calls chan struct{}
	res   DrainResult
}

func (c *countingDrainer) Drain(context.Context) (DrainResult, error) {
	c.calls <- struct{}{}
	return c.res, nil
}

func TestRunnerDrainsOnStartupTimerAndKick(t *testing.T) {
	clk := clock.Fake(time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC))
	drainer := &countingDrainer{calls: make(chan struct{}, 8), res: DrainResult{Remaining: 7}}
	observed := make(chan DrainResult, 8)
	r := NewRunner(drainer, clk, 30*time.Second, func(_ context.Context, res DrainResult) { observed <- res }, silent{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitCall := func(what string) {
		select {
		case <-drainer.calls:
		case <-time.After(time.Second):
			t.Fatalf("no drain on %s", what)
		}
		assert.Equal(t, 7, (<-observed).Remaining)
	}

	waitCall("startup")

	clk.Advance(29 * time.Second)
	select {
	case <-drainer.calls:
		t.Fatalf("drained before the interval elapsed")
	case <-time.After(20 * time.Millisecond):
	}
	clk.Advance(time.Second)
	waitCall("timer")

	r.Kick()
	waitCall("kick")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
