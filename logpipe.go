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

package logpipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rivaas.dev/logpipe/remote"
	"rivaas.dev/logpipe/rotate"
)

// Format selects the textual representation of emitted records.
type Format string

const (
	// FormatJSON outputs structured JSON logs (default).
	FormatJSON Format = "json"
	// FormatText outputs key=value text logs.
	FormatText Format = "text"
	// FormatConsole outputs human-readable colored logs.
	FormatConsole Format = "console"
)

// Level represents log level.
type Level = slog.Level

const (
	// LevelDebug is the debug log level.
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel converts a level name (case-insensitive; WARNING is accepted
// for WARN) into a [Level]. Unknown names return [ErrInvalidLevel].
func ParseLevel(name string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, name)
	}
}

// Package-level cached context reused across log calls.
//
// context.Background() is immutable and safe for concurrent access;
// slog.Logger.Log requires a context but none of the sinks use it for
// cancellation.
var bgCtx = context.Background()

// SamplingConfig configures log sampling to reduce volume in high-traffic
// scenarios.
//
// Sampling algorithm:
//  1. Log the first 'Initial' entries unconditionally
//  2. After that, log 1 in every 'Thereafter' entries
//  3. Reset the counter every 'Tick' interval
//
// Errors (level >= ERROR) always bypass sampling.
type SamplingConfig struct {
	Initial    int           // Log first N occurrences unconditionally
	Thereafter int           // After Initial, log 1 of every M entries (0 = log all)
	Tick       time.Duration // Reset sampling counter every interval (0 = never reset)
}

// Logger is an assembled logging pipeline: a set of sinks (console,
// rotating file, remote collector) fed by a shared redaction gate.
//
// Thread-safety: all public methods are safe for concurrent use.
//   - logger field uses atomic.Pointer for lock-free read access
//   - mu protects assembly and reconfiguration only
//   - isShuttingDown uses atomic.Bool for shutdown checks
type Logger struct {
	// Pipeline shape
	format         Format
	output         io.Writer
	level          Level
	consoleEnabled bool
	fileCfg        *rotate.Config
	remoteCfg      *remote.Config

	// Per-sink minimum severity overrides (nil = pipeline level).
	consoleLevel *Level
	fileLevel    *Level
	remoteLevel  *Level

	// Remote failure side channels.
	remoteErrFn func(error)
	remoteDiag  io.Writer

	// Redaction
	redactFields []string

	// Service information
	serviceName    string
	serviceVersion string
	environment    string

	// Features
	addSource   bool
	replaceAttr func(groups []string, a slog.Attr) slog.Attr

	// Sampling
	samplingConfig *SamplingConfig
	sampleCounter  atomic.Int64
	sampleTicker   *time.Ticker
	sampleStop     chan struct{}

	// Custom logger
	customLogger *slog.Logger
	useCustom    bool

	// Internal state
	logger         atomic.Pointer[slog.Logger]
	closers        []io.Closer
	mu             sync.Mutex
	isShuttingDown atomic.Bool

	// Global registration control
	registerGlobal bool
}

// Option is a functional option for configuring the pipeline.
type Option func(*Logger)

// defaultLogger returns the default pipeline shape: JSON to stdout at INFO,
// console sink only.
func defaultLogger() *Logger {
	return &Logger{
		format:         FormatJSON,
		output:         os.Stdout,
		level:          LevelInfo,
		consoleEnabled: true,
		environment:    "production",
	}
}

// New assembles a logging pipeline.
//
// Configuration errors — an invalid format, a remote endpoint that fails URL
// validation, a file path that cannot be opened — fail construction; they
// never surface later at the emitting call site.
//
// By default New does NOT install the result as the global slog default.
// Use [WithGlobalLogger] to opt in; installing fully replaces any prior
// configuration, it never layers on top of it.
func New(opts ...Option) (*Logger, error) {
	l := defaultLogger()

	for _, opt := range opts {
		opt(l)
	}

	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := l.assemble(); err != nil {
		return nil, err
	}

	return l, nil
}

// MustNew assembles a logging pipeline or panics on error.
func MustNew(opts ...Option) *Logger {
	l, err := New(opts...)
	if err != nil {
		panic("logpipe initialization failed: " + err.Error())
	}

	return l
}

// Validate checks if the pipeline configuration is valid.
func (l *Logger) Validate() error {
	if l.output == nil {
		return errors.New("output writer cannot be nil")
	}

	switch l.format {
	case FormatJSON, FormatText, FormatConsole:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidFormat, l.format)
	}

	if l.useCustom && l.customLogger == nil {
		return ErrNilLogger
	}

	if !l.consoleEnabled && l.fileCfg == nil && l.remoteCfg == nil && !l.useCustom {
		return errors.New("pipeline has no sinks")
	}

	if l.samplingConfig != nil {
		if l.samplingConfig.Initial < 0 || l.samplingConfig.Thereafter < 0 {
			return errors.New("sampling config values must be non-negative")
		}
	}

	return nil
}

// assemble builds the sink set and activates it (initial construction).
func (l *Logger) assemble() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.buildPipeline(); err != nil {
		return err
	}

	// Start sampling ticker if configured
	if l.samplingConfig != nil && l.samplingConfig.Tick > 0 {
		l.sampleStop = make(chan struct{})
		l.sampleTicker = time.NewTicker(l.samplingConfig.Tick)
		go l.samplingResetter(l.sampleTicker, l.sampleStop)
	}

	return nil
}

// buildPipeline constructs sinks, the fanout and the redaction gate, then
// stores the resulting logger (must be called with lock held). Rebuilding
// replaces the previous sink set and releases its resources.
func (l *Logger) buildPipeline() error {
	if l.useCustom {
		if l.customLogger == nil {
			return ErrNilLogger
		}
		l.logger.Store(l.customLogger)
		if l.registerGlobal {
			slog.SetDefault(l.customLogger)
		}
		return nil
	}

	var (
		sinks   []slog.Handler
		closers []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	if l.consoleEnabled {
		sinks = append(sinks, l.formatHandler(l.output, l.sinkLevel(l.consoleLevel)))
	}

	if l.fileCfg != nil {
		w, err := rotate.NewWriter(*l.fileCfg)
		if err != nil {
			return err
		}
		closers = append(closers, w)
		sinks = append(sinks, l.formatHandler(w, l.sinkLevel(l.fileLevel)))
	}

	if l.remoteCfg != nil {
		h, err := remote.New(*l.remoteCfg,
			remote.WithLevel(l.sinkLevel(l.remoteLevel)),
			remote.WithRender(l.renderFunc()),
			remote.WithErrorFunc(l.remoteErrFn),
			remote.WithDiagnostics(l.remoteDiagWriter()),
		)
		if err != nil {
			closeAll()
			return err
		}
		closers = append(closers, h)
		sinks = append(sinks, h)
	}

	var handler slog.Handler
	switch len(sinks) {
	case 0:
		closeAll()
		return errors.New("pipeline has no sinks")
	case 1:
		handler = sinks[0]
	default:
		handler = newFanoutHandler(sinks)
	}

	// Redaction is a pre-sink gate: one pass, identical for every sink.
	if len(l.redactFields) > 0 {
		handler = newRedactHandler(handler, l.redactFields)
	}

	newLogger := slog.New(handler)
	if attrs := l.baseAttrs(); len(attrs) > 0 {
		newLogger = newLogger.With(attrs...)
	}

	// The previous sink set is fully replaced, never layered.
	prev := l.closers
	l.closers = closers
	l.logger.Store(newLogger)
	for _, c := range prev {
		_ = c.Close()
	}

	if l.registerGlobal {
		slog.SetDefault(newLogger)
	}

	return nil
}

// formatHandler builds a sink handler of the configured format over w.
func (l *Logger) formatHandler(w io.Writer, level Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   l.addSource,
		ReplaceAttr: l.replaceAttr,
	}

	switch l.format {
	case FormatText:
		return slog.NewTextHandler(w, opts)
	case FormatConsole:
		return newConsoleHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// renderFunc builds the remote sink's renderer: records are rendered to
// their final text in the pipeline's format before delivery.
func (l *Logger) renderFunc() remote.RenderFunc {
	format := l.format
	opts := &slog.HandlerOptions{
		// Deliver whatever routing hands us; the sink level already gated.
		Level:       LevelDebug,
		ReplaceAttr: l.replaceAttr,
	}

	return func(ctx context.Context, r slog.Record) (string, error) {
		var buf bytes.Buffer

		var h slog.Handler
		switch format {
		case FormatText, FormatConsole:
			// Console colors do not belong on the wire.
			h = slog.NewTextHandler(&buf, opts)
		default:
			h = slog.NewJSONHandler(&buf, opts)
		}

		if err := h.Handle(ctx, r); err != nil {
			return "", err
		}

		return strings.TrimSuffix(buf.String(), "\n"), nil
	}
}

// sinkLevel resolves a per-sink override against the pipeline level.
func (l *Logger) sinkLevel(override *Level) Level {
	if override != nil {
		return *override
	}

	return l.level
}

// remoteDiagWriter returns the remote diagnostics stream, defaulting to
// stderr so diagnostics stay off the stream application logs may use.
func (l *Logger) remoteDiagWriter() io.Writer {
	if l.remoteDiag != nil {
		return l.remoteDiag
	}

	return os.Stderr
}

// baseAttrs returns service identification attributes attached to every record.
func (l *Logger) baseAttrs() []any {
	var attrs []any
	if l.serviceName != "" {
		attrs = append(attrs, "service", l.serviceName)
	}
	if l.serviceVersion != "" {
		attrs = append(attrs, "version", l.serviceVersion)
	}
	if l.environment != "" && l.serviceName != "" {
		attrs = append(attrs, "environment", l.environment)
	}

	return attrs
}

// samplingResetter resets the sampling counter periodically.
//
// The ticker and stop channel are passed in rather than read from the
// struct: Shutdown nils those fields under the mutex, which this
// goroutine does not hold.
func (l *Logger) samplingResetter(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			l.sampleCounter.Store(0)
		case <-stop:
			return
		}
	}
}

// shouldSample determines if a log entry passes the sampling policy.
//
// Errors always pass: sampling them could hide production incidents.
// Lower-severity entries exist for observability and are safe to drop.
func (l *Logger) shouldSample(level slog.Level) bool {
	if level >= slog.LevelError {
		return true
	}

	if l.samplingConfig == nil {
		return true
	}

	count := l.sampleCounter.Add(1)
	if count <= int64(l.samplingConfig.Initial) {
		return true
	}

	if l.samplingConfig.Thereafter == 0 {
		return true
	}

	return (count-int64(l.samplingConfig.Initial))%int64(l.samplingConfig.Thereafter) == 0
}

// Logger returns the underlying [slog.Logger].
//
// Thread-safety: uses atomic.Pointer, safe for concurrent access.
func (l *Logger) Logger() *slog.Logger {
	return l.logger.Load()
}

// With returns a logger with additional attributes.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.Logger().With(args...)
}

// WithGroup returns a logger with a group name.
func (l *Logger) WithGroup(name string) *slog.Logger {
	return l.Logger().WithGroup(name)
}

// log is the internal helper that funnels every level method through the
// shutdown check, the level check and the sampling decision.
func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if l.isShuttingDown.Load() {
		return
	}

	logger := l.Logger()

	if !logger.Enabled(bgCtx, level) {
		return
	}

	if !l.shouldSample(level) {
		return
	}

	logger.Log(bgCtx, level, msg, args...)
}

// Debug logs a debug message with structured attributes.
// Thread-safe and safe to call concurrently.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs an informational message with structured attributes.
// Thread-safe and safe to call concurrently.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message with structured attributes.
// Thread-safe and safe to call concurrently.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs an error message with structured attributes.
// Thread-safe and safe to call concurrently.
// Note: errors bypass sampling and are always logged.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

// Shutdown gracefully shuts down the pipeline: further log calls are
// dropped and every owned sink (rotating file, remote connection context)
// is released. Repeated calls are safe no-ops.
func (l *Logger) Shutdown(_ context.Context) error {
	l.isShuttingDown.Store(true)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sampleTicker != nil {
		l.sampleTicker.Stop()
		close(l.sampleStop)
		l.sampleTicker = nil
		l.sampleStop = nil
	}

	var errs []error
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil

	return errors.Join(errs...)
}

// SetLevel dynamically changes the minimum pipeline level at runtime.
//
// The sink set is rebuilt at the new level; on rebuild failure the previous
// level is restored and the error returned. Not supported with custom
// loggers (returns [ErrCannotChangeLevel]).
func (l *Logger) SetLevel(level Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.useCustom {
		return ErrCannotChangeLevel
	}

	oldLevel := l.level
	l.level = level

	if err := l.buildPipeline(); err != nil {
		l.level = oldLevel
		return err
	}

	return nil
}

// Level returns the current minimum pipeline level.
func (l *Logger) Level() Level {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.level
}

// Format returns the configured log format.
func (l *Logger) Format() Format {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.format
}

// ServiceName returns the service name.
func (l *Logger) ServiceName() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.serviceName
}

// Environment returns the environment.
func (l *Logger) Environment() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.environment
}

// IsEnabled returns true if the pipeline is active and not shutting down.
func (l *Logger) IsEnabled() bool {
	return !l.isShuttingDown.Load()
}

// DebugInfo returns diagnostic information about the pipeline.
func (l *Logger) DebugInfo() map[string]any {
	l.mu.Lock()
	defer l.mu.Unlock()

	info := map[string]any{
		"format":      string(l.format),
		"level":       l.level.String(),
		"console":     l.consoleEnabled,
		"file":        l.fileCfg != nil,
		"remote":      l.remoteCfg != nil,
		"redacting":   len(l.redactFields) > 0,
		"environment": l.environment,
		"is_custom":   l.useCustom,
		"is_shutdown": l.isShuttingDown.Load(),
	}

	if l.samplingConfig != nil {
		info["sampling"] = map[string]any{
			"initial":    l.samplingConfig.Initial,
			"thereafter": l.samplingConfig.Thereafter,
			"tick":       l.samplingConfig.Tick.String(),
			"counter":    l.sampleCounter.Load(),
		}
	}

	return info
}
