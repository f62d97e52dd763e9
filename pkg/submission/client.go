// Package submission sends a finished survey to the collector once and
// falls back to the delivery queue. Operators never see its errors.
package submission

import (
	"context"
	"sync"
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/metrics"
	"github.com/dkalashnik/kiosk-survey/pkg/queue"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
)

// Outcome reports what happened to a submission. It feeds logs and
// metrics only.
type Outcome string

const (
	Delivered Outcome = "delivered"
	Queued    Outcome = "queued"
	// Lost means both the attempt and the enqueue failed.
	Lost Outcome = "lost"
)

// Enqueuer stores a record for a later drain.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec record.Record) error
}

// Client makes exactly one delivery attempt per record.
type Client struct {
	sender   queue.Sender
	endpoint queue.EndpointSource
	queue    Enqueuer
	logger   log.Printer
}

func New(sender queue.Sender, endpoint queue.EndpointSource, q Enqueuer, logger log.Printer) *Client {
	return &Client{sender: sender, endpoint: endpoint, queue: q, logger: log.OrDefault(logger)}
}

// Submit tries the collector once; on any failure the record is queued.
func (c *Client) Submit(ctx context.Context, rec record.Record) Outcome {
	outcome := c.submit(ctx, rec)
	metrics.SubmissionsTotal.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (c *Client) submit(ctx context.Context, rec record.Record) Outcome {
	baseURL := ""
	if c.endpoint != nil {
		baseURL = c.endpoint.APIURL(ctx)
	}
	err := c.sender.Deliver(ctx, baseURL, rec)
	if err == nil {
		c.logger.Printf("[submission] delivered id=%s", rec.Meta.ID)
		return Delivered
	}

	// The enqueue must survive the attempt's context being canceled.
	enqueueCtx := context.WithoutCancel(ctx)
	if qerr := c.queue.Enqueue(enqueueCtx, rec); qerr != nil {
		log.Errorf(c.logger, "[submission] id=%s lost: deliver: %v; enqueue: %v", rec.Meta.ID, err, qerr)
		return Lost
	}
	log.Warnf(c.logger, "[submission] id=%s queued after failed attempt: %v", rec.Meta.ID, err)
	return Queued
}

// FireAndForget runs each submission on a tracked goroutine so the caller
// never waits on the network.
type FireAndForget struct {
	client  *Client
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewFireAndForget wraps client. timeout bounds each attempt; zero leaves
// it to the transport.
func NewFireAndForget(client *Client, timeout time.Duration) *FireAndForget {
	return &FireAndForget{client: client, timeout: timeout}
}

// Submit returns immediately.
func (f *FireAndForget) Submit(rec record.Record) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx := context.Background()
		if f.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}
		f.client.Submit(ctx, rec)
	}()
}

// Wait blocks until all in-flight submissions have settled.
func (f *FireAndForget) Wait() {
	f.wg.Wait()
}
