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
	"bufio"
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

// LogEntry represents a parsed log entry for testing.
type LogEntry struct {
	Time    time.Time
	Level   string
	Message string
	Attrs   map[string]any
}

// NewTestLogger creates a pipeline for testing with an in-memory buffer.
// The returned buffer can be used with [ParseJSONLogEntries] to inspect
// the output.
func NewTestLogger() (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	pipeline := MustNew(
		WithJSONFormat(),
		WithOutput(buf),
		WithLevel(LevelDebug),
	)

	return pipeline, buf
}

// ParseJSONLogEntries parses JSON log entries from buf into [LogEntry]
// values. It reads a copy, so the original buffer is not consumed.
func ParseJSONLogEntries(buf *bytes.Buffer) ([]LogEntry, error) {
	data := buf.Bytes()
	reader := bytes.NewReader(data)

	var entries []LogEntry
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, err
		}

		le := LogEntry{
			Attrs: make(map[string]any),
		}
		if msg, ok := entry["msg"].(string); ok {
			le.Message = msg
		}
		if level, ok := entry["level"].(string); ok {
			le.Level = level
		}

		for k, v := range entry {
			if k != "time" && k != "level" && k != "msg" {
				le.Attrs[k] = v
			}
		}

		entries = append(entries, le)
	}

	return entries, scanner.Err()
}

// TestHelper bundles an in-memory pipeline with its capture buffer.
type TestHelper struct {
	Logger *Logger
	Buffer *bytes.Buffer
}

// NewTestHelper creates a [TestHelper] with in-memory logging. Additional
// [Option] values customize the pipeline.
func NewTestHelper(t *testing.T, opts ...Option) *TestHelper {
	t.Helper()

	buf := &bytes.Buffer{}
	defaultOpts := []Option{
		WithJSONFormat(),
		WithOutput(buf),
		WithLevel(LevelDebug),
	}
	defaultOpts = append(defaultOpts, opts...)

	return &TestHelper{
		Logger: MustNew(defaultOpts...),
		Buffer: buf,
	}
}

// Logs returns all parsed log entries.
func (th *TestHelper) Logs() ([]LogEntry, error) {
	return ParseJSONLogEntries(th.Buffer)
}

// LastLog returns the most recent log entry, or nil when nothing was logged.
func (th *TestHelper) LastLog() (*LogEntry, error) {
	entries, err := th.Logs()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	return &entries[len(entries)-1], nil
}
