// Package toggle performs the one external effect of comuta: a POST to the
// device's /toggle endpoint, classified by status and logged.
package toggle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Path is the fixed endpoint on the device that flips the LED.
const Path = "/toggle"

// ErrNoDevice is returned by New when no device URL was configured.
var ErrNoDevice = errors.New("toggle: no device URL configured")

// HTTPClient is the part of *http.Client the action needs. Tests swap it out.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder observes activations. metrics.ActivationMetrics implements it.
type Recorder interface {
	Record(res Result)
	InFlight(delta int)
}

type nopRecorder struct{}

func (nopRecorder) Record(Result) {}
func (nopRecorder) InFlight(int)  {}

// Policy decides what happens when the control is activated while a request
// is still outstanding.
type Policy string

const (
	// PolicyConcurrent issues a request for every activation, overlapping or not.
	PolicyConcurrent Policy = "concurrent"
	// PolicyDrop skips activations made while another request is in flight.
	PolicyDrop Policy = "drop"
)

// ParsePolicy maps a config value to a Policy. Empty means PolicyConcurrent.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyConcurrent:
		return PolicyConcurrent, nil
	case PolicyDrop:
		return PolicyDrop, nil
	}
	return "", fmt.Errorf("unknown policy %q (want %q or %q)", s, PolicyConcurrent, PolicyDrop)
}

// Client sends toggle requests to a single device.
type Client struct {
	endpoint string
	http     HTTPClient
	logger   *slog.Logger
	rec      Recorder
	policy   Policy

	busy atomic.Bool
	wg   sync.WaitGroup
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.rec = r
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(c *Client) {
		if p != "" {
			c.policy = p
		}
	}
}

// New builds a Client for the device at deviceURL, e.g. "http://192.168.4.1".
// The request goes to deviceURL joined with Path.
func New(deviceURL string, opts ...Option) (*Client, error) {
	deviceURL = strings.TrimSpace(deviceURL)
	if deviceURL == "" {
		return nil, ErrNoDevice
	}
	u, err := url.Parse(deviceURL)
	if err != nil {
		return nil, fmt.Errorf("parse device url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("device url %q: missing scheme or host", deviceURL)
	}

	c := &Client{
		endpoint: u.JoinPath(Path).String(),
		http:     http.DefaultClient,
		logger:   slog.Default(),
		rec:      nopRecorder{},
		policy:   PolicyConcurrent,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "toggle")
	return c, nil
}

// Endpoint returns the full URL requests are sent to.
func (c *Client) Endpoint() string { return c.endpoint }

// Policy returns the activation policy in effect.
func (c *Client) Policy() Policy { return c.policy }

// Toggle performs one activation and blocks until it completes. It never
// retries and adds no deadline of its own; ctx is the only bound.
func (c *Client) Toggle(ctx context.Context) Result {
	c.wg.Add(1)
	defer c.wg.Done()
	return c.toggle(ctx)
}

// Activate starts one activation in the background and returns immediately.
// done, if non-nil, is called with the result from the activation's goroutine.
func (c *Client) Activate(ctx context.Context, done func(Result)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := c.toggle(ctx)
		if done != nil {
			done(res)
		}
	}()
}

// Wait blocks until every activation started through Toggle or Activate has
// finished.
func (c *Client) Wait() { c.wg.Wait() }

func (c *Client) toggle(ctx context.Context) Result {
	res := Result{ID: uuid.New()}

	if c.policy == PolicyDrop {
		if !c.busy.CompareAndSwap(false, true) {
			res.Outcome = Skipped
			c.report(ctx, res)
			return res
		}
		defer c.busy.Store(false)
	}

	c.rec.InFlight(1)
	defer c.rec.InFlight(-1)

	start := time.Now()
	res = c.send(ctx, res)
	res.Duration = time.Since(start)
	c.report(ctx, res)
	return res
}

func (c *Client) send(ctx context.Context, res Result) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, http.NoBody)
	if err != nil {
		res.Outcome = NetworkError
		res.Err = fmt.Errorf("build request: %w", err)
		return res
	}

	resp, err := c.http.Do(req)
	if err != nil {
		res.Outcome = NetworkError
		res.Err = fmt.Errorf("post %s: %w", c.endpoint, err)
		return res
	}
	defer resp.Body.Close()
	// body is ignored, drained so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	res.StatusCode = resp.StatusCode
	res.Outcome = classify(resp.StatusCode)
	return res
}

func classify(status int) Outcome {
	if status >= 200 && status <= 299 {
		return OK
	}
	return NotOK
}

func (c *Client) report(ctx context.Context, res Result) {
	c.rec.Record(res)

	attrs := []any{
		"activation", res.ID.String(),
		"status", res.StatusCode,
		"duration", res.Duration,
	}
	switch res.Outcome {
	case OK:
		c.logger.InfoContext(ctx, res.Outcome.String(), attrs...)
	case NotOK:
		c.logger.WarnContext(ctx, res.Outcome.String(), attrs...)
	case NetworkError:
		c.logger.ErrorContext(ctx, res.Outcome.String(), append(attrs, "error", res.Err)...)
	case Skipped:
		c.logger.DebugContext(ctx, res.Outcome.String(), "activation", res.ID.String(), "policy", c.policy)
	}
}
