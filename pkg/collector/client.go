// Package collector talks to the remote survey collector over HTTP.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkalashnik/kiosk-survey/pkg/log"
	"github.com/dkalashnik/kiosk-survey/pkg/record"
)

const (
	SubmitPath = "/api/respuestas"
	HealthPath = "/api/health"

	DefaultTimeout = 15 * time.Second
)

// Client posts survey records and probes collector health.
type Client struct {
	http   *http.Client
	logger log.Printer
}

// New builds a client whose requests are bounded by timeout (DefaultTimeout
// when zero).
func New(timeout time.Duration, logger log.Printer) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:   &http.Client{Timeout: timeout},
		logger: log.OrDefault(logger),
	}
}

// NewWithHTTPClient lets tests inject an httptest client.
func NewWithHTTPClient(hc *http.Client, logger log.Printer) *Client {
	return &Client{http: hc, logger: log.OrDefault(logger)}
}

// Deliver POSTs rec as JSON to {baseURL}/api/respuestas. Any 2xx is success.
func (c *Client) Deliver(ctx context.Context, baseURL string, rec record.Record) error {
	const op = "deliver"
	endpoint, err := join(op, baseURL, SubmitPath)
	if err != nil {
		return err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return &DeliveryError{Op: op, Code: CodeEncode, Wrapped: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Op: op, Code: CodeBadURL, Wrapped: err}
	}
	req.Header.Set("Content-Type", "application/json")

	if err := c.do(op, req); err != nil {
		log.Warnf(c.logger, "[collector] deliver id=%s failed: %v", rec.Meta.ID, err)
		return err
	}
	return nil
}

// Health performs GET {baseURL}/api/health. Any 2xx is success.
func (c *Client) Health(ctx context.Context, baseURL string) error {
	const op = "health"
	endpoint, err := join(op, baseURL, HealthPath)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &DeliveryError{Op: op, Code: CodeBadURL, Wrapped: err}
	}
	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return wrapTransportError(op, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{Op: op, Code: CodeHTTPStatus, Status: resp.StatusCode}
	}
	return nil
}

// NormalizeBaseURL trims whitespace and trailing slashes.
func NormalizeBaseURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func join(op, baseURL, path string) (string, error) {
	base := NormalizeBaseURL(baseURL)
	if base == "" {
		return "", &DeliveryError{Op: op, Code: CodeNoEndpoint}
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("missing scheme or host in %q", base)
		}
		return "", &DeliveryError{Op: op, Code: CodeBadURL, Wrapped: err}
	}
	return base + path, nil
}
