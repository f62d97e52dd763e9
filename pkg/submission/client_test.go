package submission

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkalashnik/kiosk-survey/pkg/collector"
	"github.com/dkalashnik/kiosk-survey/pkg/queue"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
	"github.com/dkalashnik/kiosk-survey/pkg/storage"
)

type silent struct{}

func (silent) Printf(string, ...any) {}

type endpoint struct {
	mu  sync.Mutex
	url string
}

func (e *endpoint) APIURL(context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, record.Record) error { return errors.New("disk full") }

func setup(t *testing.T, status int) (*Client, *queue.Queue, *int) {
	t.Helper()
	hits := 0
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	sender := collector.New(time.Second, silent{})
	ep := &endpoint{url: srv.URL}
	q := queue.New(storage.NewMemory(), "comedor", queue.Options{Sender: sender, Endpoint: ep, Logger: silent{}})
	return New(sender, ep, q, silent{}), q, &hits
}

func TestSubmitDelivered(t *testing.T) {
	c, q, hits := setup(t, http.StatusOK)
	outcome := c.Submit(context.Background(), record.Record{Meta: record.Meta{ID: "a"}})
	assert.Equal(t, Delivered, outcome)
	assert.Equal(t, 1, *hits)
	assert.Equal(t, 0, q.Len(context.Background()))
}

func TestSubmitQueuesOnNon2xx(t *testing.T) {
	c, q, hits := setup(t, http.StatusBadGateway)
	outcome := c.Submit(context.Background(), record.Record{Meta: record.Meta{ID: "a"}})
	assert.Equal(t, Queued, outcome)
	assert.Equal(t, 1, *hits, "exactly one attempt")
	assert.Equal(t, 1, q.Len(context.Background()))
}

func TestSubmitQueuesWhenOffline(t *testing.T) {
	sender := collector.New(time.Second, silent{})
	ep := &endpoint{url: "http://127.0.0.1:1"}
	q := queue.New(storage.NewMemory(), "comedor", queue.Options{Sender: sender, Endpoint: ep, Logger: silent{}})
	c := New(sender, ep, q, silent{})

	assert.Equal(t, Queued, c.Submit(context.Background(), record.Record{Meta: record.Meta{ID: "a"}}))
	assert.Equal(t, 1, q.Len(context.Background()))
}

func TestSubmitQueuesEvenWhenContextCanceled(t *testing.T) {
	c, q, _ := setup(t, http.StatusOK)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, Queued, c.Submit(ctx, record.Record{Meta: record.Meta{ID: "a"}}))
	assert.Equal(t, 1, q.Len(context.Background()))
}

func TestSubmitLostWhenEnqueueFails(t *testing.T) {
	sender := collector.New(time.Second, silent{})
	c := New(sender, &endpoint{}, failingQueue{}, silent{})
	assert.Equal(t, Lost, c.Submit(context.Background(), record.Record{}))
}

func TestFireAndForgetDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := collector.New(5*time.Second, silent{})
	ep := &endpoint{url: srv.URL}
	q := queue.New(storage.NewMemory(), "comedor", queue.Options{Sender: sender, Endpoint: ep, Logger: silent{}})
	f := NewFireAndForget(New(sender, ep, q, silent{}), 0)

	start := time.Now()
	f.Submit(record.Record{Meta: record.Meta{ID: "a"}})
	require.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	f.Wait()
	assert.Equal(t, 0, q.Len(context.Background()))
}
