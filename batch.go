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
	"log/slog"
	"sync"
	"time"
)

// BatchLogger accumulates log entries and hands them to the pipeline in
// batches: either when the batch fills or when the flush interval elapses,
// whichever comes first.
//
// Trade-offs: entries appear with up to one flush interval of delay, and a
// crash before flush loses the buffered entries (bounded by batch size).
// Audit-grade records should use the pipeline directly.
//
// Thread-safe: safe to use concurrently by multiple goroutines.
type BatchLogger struct {
	pipeline  *Logger
	entries   []batchEntry
	mu        sync.Mutex
	batchSize int
	ticker    *time.Ticker
	done      chan struct{}
}

type batchEntry struct {
	level slog.Level
	msg   string
	attrs []any
}

// NewBatchLogger creates a batching front over an assembled pipeline.
// Typical values: batchSize 100-1000, flushInterval 1-5 seconds.
//
// Always Close() the batch logger; buffered entries are lost otherwise:
//
//	bl := logpipe.NewBatchLogger(pipeline, 100, time.Second)
//	defer bl.Close()
func NewBatchLogger(pipeline *Logger, batchSize int, flushInterval time.Duration) *BatchLogger {
	bl := &BatchLogger{
		pipeline:  pipeline,
		entries:   make([]batchEntry, 0, batchSize),
		batchSize: batchSize,
		ticker:    time.NewTicker(flushInterval),
		done:      make(chan struct{}),
	}

	go bl.flusher()

	return bl
}

// Debug logs a debug message (batched).
func (bl *BatchLogger) Debug(msg string, args ...any) {
	bl.add(slog.LevelDebug, msg, args...)
}

// Info logs an info message (batched).
func (bl *BatchLogger) Info(msg string, args ...any) {
	bl.add(slog.LevelInfo, msg, args...)
}

// Warn logs a warning message (batched).
func (bl *BatchLogger) Warn(msg string, args ...any) {
	bl.add(slog.LevelWarn, msg, args...)
}

// Error logs an error message (batched).
func (bl *BatchLogger) Error(msg string, args ...any) {
	bl.add(slog.LevelError, msg, args...)
}

func (bl *BatchLogger) add(level slog.Level, msg string, args ...any) {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	bl.entries = append(bl.entries, batchEntry{level, msg, args})
	if len(bl.entries) >= bl.batchSize {
		bl.flushLocked()
	}
}

func (bl *BatchLogger) flusher() {
	for {
		select {
		case <-bl.ticker.C:
			bl.Flush()
		case <-bl.done:
			return
		}
	}
}

// Flush hands all buffered entries to the pipeline.
func (bl *BatchLogger) Flush() {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	bl.flushLocked()
}

func (bl *BatchLogger) flushLocked() {
	for _, e := range bl.entries {
		bl.pipeline.log(e.level, e.msg, e.attrs...)
	}
	bl.entries = bl.entries[:0]
}

// Size returns the current number of buffered entries.
func (bl *BatchLogger) Size() int {
	bl.mu.Lock()
	defer bl.mu.Unlock()

	return len(bl.entries)
}

// Close stops the flusher and flushes any remaining entries.
func (bl *BatchLogger) Close() {
	close(bl.done)
	bl.ticker.Stop()
	bl.Flush()
}
