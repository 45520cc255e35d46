// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package remote delivers rendered log records to an HTTP collector.
//
// The handler implements [slog.Handler] and POSTs each record as a JSON
// envelope {"message": "<rendered text>"} with bounded retry and per-attempt
// timeout. Delivery failures never reach the logging call site: they are
// reported through an error callback and a diagnostic line on a secondary
// stream, so a collector outage degrades to log loss for this sink only.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cast"
)

// Environment variables consulted for Config fields left unset.
const (
	EnvEndpoint      = "LOG_CLOUD_ENDPOINT"
	EnvToken         = "LOG_CLOUD_TOKEN"
	EnvTimeout       = "LOG_CLOUD_TIMEOUT"
	EnvMaxRetries    = "LOG_CLOUD_MAX_RETRIES"
	EnvBackoffFactor = "LOG_CLOUD_BACKOFF_FACTOR"
)

// Defaults applied when neither configuration nor environment provides a value.
const (
	DefaultTimeout       = 5 * time.Second
	DefaultMaxRetries    = 3
	DefaultBackoffFactor = 0.3
)

// Config describes a remote collector destination.
//
// Explicit fields take precedence; zero fields fall back to the LOG_CLOUD_*
// environment variables and then to the package defaults.
type Config struct {
	// Endpoint is the collector URL. Required; must be absolute with a
	// scheme and host.
	Endpoint string

	// Token is an optional bearer credential attached as an
	// Authorization header on every delivery.
	Token string

	// Timeout bounds each delivery attempt.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	// Zero applies DefaultMaxRetries; a negative count disables retries.
	MaxRetries int

	// BackoffFactor scales the delay between attempts: the n-th retry
	// waits BackoffFactor * 2^(n-1) seconds.
	BackoffFactor float64
}

// withFallbacks resolves unset fields from the environment, then defaults.
// Environment values that fail coercion are configuration errors.
func (c Config) withFallbacks() (Config, error) {
	if c.Endpoint == "" {
		c.Endpoint = os.Getenv(EnvEndpoint)
	}
	if c.Token == "" {
		c.Token = os.Getenv(EnvToken)
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
		if raw := os.Getenv(EnvTimeout); raw != "" {
			seconds, err := cast.ToInt64E(raw)
			if err != nil {
				return c, fmt.Errorf("invalid %s value %q: %w", EnvTimeout, raw, err)
			}
			c.Timeout = time.Duration(seconds) * time.Second
		}
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
		if raw := os.Getenv(EnvMaxRetries); raw != "" {
			retries, err := cast.ToIntE(raw)
			if err != nil {
				return c, fmt.Errorf("invalid %s value %q: %w", EnvMaxRetries, raw, err)
			}
			c.MaxRetries = retries
		}
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}

	if c.BackoffFactor == 0 {
		c.BackoffFactor = DefaultBackoffFactor
		if raw := os.Getenv(EnvBackoffFactor); raw != "" {
			factor, err := cast.ToFloat64E(raw)
			if err != nil {
				return c, fmt.Errorf("invalid %s value %q: %w", EnvBackoffFactor, raw, err)
			}
			c.BackoffFactor = factor
		}
	}

	return c, nil
}

// RenderFunc produces the final textual representation of a record, the
// string that ends up in the delivery envelope.
type RenderFunc func(ctx context.Context, r slog.Record) (string, error)

// Option configures a Handler.
type Option func(*Handler)

// WithLevel sets the minimum level the handler delivers. Defaults to
// [slog.LevelInfo].
func WithLevel(level slog.Leveler) Option {
	return func(h *Handler) { h.level = level }
}

// WithRender sets the record renderer. The pipeline assembler uses this to
// match the remote sink's rendering to the configured log format.
func WithRender(render RenderFunc) Option {
	return func(h *Handler) { h.render = render }
}

// WithErrorFunc sets a callback invoked with every contained delivery
// failure. This is the side channel operators can hook to observe lost logs.
func WithErrorFunc(fn func(error)) Option {
	return func(h *Handler) { h.errFn = fn }
}

// WithDiagnostics sets the secondary stream for delivery failure
// diagnostics. Defaults to [os.Stderr], deliberately distinct from the
// stream application logs go to, so a failing collector cannot feed a
// recursive logging loop.
func WithDiagnostics(w io.Writer) Option {
	return func(h *Handler) { h.diag = w }
}

// Handler ships rendered log records to an HTTP collector.
//
// The underlying connection context is reused across sequential deliveries;
// an internal mutex serializes concurrent Handle calls.
type Handler struct {
	cfg    Config
	client *http.Client
	auth   string

	level  slog.Leveler
	render RenderFunc
	errFn  func(error)
	diag   io.Writer

	attrs  []slog.Attr
	groups []string

	// Shared across WithAttrs/WithGroup clones.
	mu     *sync.Mutex
	closed *atomic.Bool
}

// New creates a remote delivery handler.
//
// It fails with a configuration error when the endpoint is missing or does
// not parse as an absolute URL with a scheme and host. On success the
// returned handler holds a reusable HTTP client with the credential
// pre-attached.
func New(cfg Config, opts ...Option) (*Handler, error) {
	cfg, err := cfg.withFallbacks()
	if err != nil {
		return nil, err
	}

	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, cfg.Endpoint)
	}

	h := &Handler{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		level:  slog.LevelInfo,
		render: renderText,
		diag:   os.Stderr,
		mu:     &sync.Mutex{},
		closed: &atomic.Bool{},
	}
	if cfg.Token != "" {
		h.auth = "Bearer " + cfg.Token
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Endpoint returns the validated collector URL.
func (h *Handler) Endpoint() string {
	return h.cfg.Endpoint
}

// Enabled reports whether the handler delivers records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle renders the record and delivers it to the collector.
//
// It always returns nil: timeouts, connection errors, exhausted retries and
// unexpected failures are contained here and surfaced through the error
// callback and the diagnostics stream, never to the emitting caller.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.closed.Load() {
		return nil
	}

	rec := r.Clone()
	if len(h.attrs) > 0 {
		rec.AddAttrs(h.attrs...)
	}

	text, err := h.render(ctx, rec)
	if err != nil {
		h.report(fmt.Errorf("render record: %w", err))
		return nil
	}

	payload, err := json.Marshal(envelope{Message: text})
	if err != nil {
		h.report(fmt.Errorf("encode envelope: %w", err))
		return nil
	}

	h.mu.Lock()
	err = h.deliver(ctx, payload)
	h.mu.Unlock()

	if err != nil {
		h.report(err)
	}

	return nil
}

// WithAttrs returns a handler that attaches the given attributes to every
// delivered record. Implements [slog.Handler.WithAttrs].
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(clone.attrs, h.attrs)
	copy(clone.attrs[len(h.attrs):], attrs)

	return &clone
}

// WithGroup returns a handler with a group name. Implements
// [slog.Handler.WithGroup].
func (h *Handler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.groups = make([]string, len(h.groups)+1)
	copy(clone.groups, h.groups)
	clone.groups[len(h.groups)] = name

	return &clone
}

// Close releases the handler's idle connections. Records handed to a closed
// handler are dropped. Repeated calls are safe no-ops.
func (h *Handler) Close() error {
	if h.closed.CompareAndSwap(false, true) {
		h.client.CloseIdleConnections()
	}

	return nil
}

// report surfaces a contained delivery failure on the side channels.
func (h *Handler) report(err error) {
	if h.diag != nil {
		fmt.Fprintf(h.diag, "[remote log] error sending log to %s: %v\n", h.cfg.Endpoint, err)
	}
	if h.errFn != nil {
		h.errFn(err)
	}
}

// envelope is the wire format delivered to the collector.
type envelope struct {
	Message string `json:"message"`
}

// renderText is the fallback renderer used when the assembler does not
// supply one: "<RFC3339 time> <LEVEL> <message> k=v ...".
func renderText(_ context.Context, r slog.Record) (string, error) {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(r.Time.Format(time.RFC3339))
		b.WriteString(" ")
	}
	b.WriteString(r.Level.String())
	b.WriteString(" ")
	b.WriteString(r.Message)

	r.Attrs(func(a slog.Attr) bool {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	})

	return b.String(), nil
}
