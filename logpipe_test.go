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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/logpipe/rotate"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr error
		wantMsg string
	}{
		{
			name: "defaults",
		},
		{
			name: "text format",
			opts: []Option{WithTextFormat()},
		},
		{
			name: "console format",
			opts: []Option{WithConsoleFormat()},
		},
		{
			name:    "invalid format",
			opts:    []Option{WithFormat(Format("xml"))},
			wantErr: ErrInvalidFormat,
		},
		{
			name:    "nil custom logger",
			opts:    []Option{WithCustomLogger(nil)},
			wantErr: ErrNilLogger,
		},
		{
			name:    "no sinks at all",
			opts:    []Option{WithoutConsole()},
			wantMsg: "no sinks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, err := New(append(tt.opts, WithOutput(&bytes.Buffer{}))...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.wantMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantMsg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, l.Logger())
			require.NoError(t, l.Shutdown(context.Background()))
		})
	}
}

func TestNewNilOutput(t *testing.T) {
	t.Parallel()

	_, err := New(WithOutput(nil))
	require.Error(t, err)
}

func TestMustNewPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		MustNew(WithFormat(Format("bogus")))
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "DEBUG", want: LevelDebug},
		{in: "debug", want: LevelDebug},
		{in: "Info", want: LevelInfo},
		{in: " WARN ", want: LevelWarn},
		{in: "WARNING", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "TRACE", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t, WithLevel(LevelWarn))

	helper.Logger.Debug("too low")
	helper.Logger.Info("still too low")
	helper.Logger.Warn("passes")
	helper.Logger.Error("also passes")

	entries, err := helper.Logs()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "passes", entries[0].Message)
	assert.Equal(t, "also passes", entries[1].Message)
}

func TestStructuredAttributes(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t)

	helper.Logger.Info("order placed", "order_id", "A-17", "total", 42.5)

	last, err := helper.LastLog()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "order placed", last.Message)
	assert.Equal(t, "A-17", last.Attrs["order_id"])
	assert.InEpsilon(t, 42.5, last.Attrs["total"], 0.001)
}

func TestServiceAttributes(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t,
		WithServiceName("checkout"),
		WithServiceVersion("1.2.3"),
		WithEnvironment("staging"),
	)

	helper.Logger.Info("up")

	last, err := helper.LastLog()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "checkout", last.Attrs["service"])
	assert.Equal(t, "1.2.3", last.Attrs["version"])
	assert.Equal(t, "staging", last.Attrs["environment"])
}

func TestSetLevel(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t, WithLevel(LevelInfo))

	helper.Logger.Debug("dropped")
	require.NoError(t, helper.Logger.SetLevel(LevelDebug))
	helper.Logger.Debug("kept")

	entries, err := helper.Logs()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, LevelDebug, helper.Logger.Level())
}

func TestSetLevelCustomLogger(t *testing.T) {
	t.Parallel()

	custom := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	l, err := New(WithCustomLogger(custom))
	require.NoError(t, err)

	require.ErrorIs(t, l.SetLevel(LevelDebug), ErrCannotChangeLevel)
}

func TestSetLevelRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	// An unopenable file path makes the rebuild fail.
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	var buf bytes.Buffer
	l, err := New(
		WithOutput(&buf),
		WithLevel(LevelInfo),
		WithFile(path),
	)
	require.NoError(t, err)
	defer l.Shutdown(context.Background())

	// Replace the log file path with a directory so reopening fails.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))

	require.Error(t, l.SetLevel(LevelDebug))
	assert.Equal(t, LevelInfo, l.Level())
}

func TestShutdownDropsSubsequentLogs(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t)

	helper.Logger.Info("before")
	require.NoError(t, helper.Logger.Shutdown(context.Background()))
	helper.Logger.Info("after")

	entries, err := helper.Logs()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "before", entries[0].Message)
	assert.False(t, helper.Logger.IsEnabled())
}

func TestShutdownIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(
		WithOutput(&bytes.Buffer{}),
		WithFile(path),
	)
	require.NoError(t, err)

	require.NoError(t, l.Shutdown(context.Background()))
	require.NoError(t, l.Shutdown(context.Background()))
}

func TestFileSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	var buf bytes.Buffer
	l, err := New(
		WithOutput(&buf),
		WithFile(path),
	)
	require.NoError(t, err)

	l.Info("to both sinks")
	require.NoError(t, l.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to both sinks")
	assert.Contains(t, buf.String(), "to both sinks")
}

func TestFileSinkRotation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(
		WithOutput(&bytes.Buffer{}),
		WithRotatingFile(rotate.Config{
			Path:        path,
			MaxBytes:    200,
			BackupCount: 2,
		}),
	)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		l.Info("rotation pressure", "seq", i)
	}
	require.NoError(t, l.Shutdown(context.Background()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(200))

	backups, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(backups), 2)
	assert.NotEmpty(t, backups)
}

func TestPerSinkLevels(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	var buf bytes.Buffer
	l, err := New(
		WithOutput(&buf),
		WithLevel(LevelDebug),
		WithConsoleLevel(LevelError),
		WithFile(path),
		WithFileLevel(LevelDebug),
	)
	require.NoError(t, err)

	l.Debug("file only")
	l.Error("everywhere")
	require.NoError(t, l.Shutdown(context.Background()))

	assert.NotContains(t, buf.String(), "file only")
	assert.Contains(t, buf.String(), "everywhere")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file only")
	assert.Contains(t, string(data), "everywhere")
}

func TestSampling(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t, WithSampling(SamplingConfig{
		Initial:    3,
		Thereafter: 5,
	}))

	for i := 0; i < 13; i++ {
		helper.Logger.Info("chatty")
	}

	entries, err := helper.Logs()
	require.NoError(t, err)
	// First 3 pass, then entries 8 and 13 (1 in every 5).
	assert.Len(t, entries, 5)
}

func TestSamplingErrorsBypass(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t, WithSampling(SamplingConfig{
		Initial:    1,
		Thereafter: 1000,
	}))

	for i := 0; i < 10; i++ {
		helper.Logger.Error("incident")
	}

	entries, err := helper.Logs()
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}

func TestSamplingValidation(t *testing.T) {
	t.Parallel()

	_, err := New(
		WithOutput(&bytes.Buffer{}),
		WithSampling(SamplingConfig{Initial: -1}),
	)
	require.Error(t, err)
}

func TestWithAttrsAndGroups(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t)

	helper.Logger.With("request_id", "r-9").Info("handled")

	last, err := helper.LastLog()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "r-9", last.Attrs["request_id"])

	helper.Buffer.Reset()
	helper.Logger.WithGroup("http").Info("handled", "status", 200)

	last, err = helper.LastLog()
	require.NoError(t, err)
	require.NotNil(t, last)
	group, ok := last.Attrs["http"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 200, group["status"])
}

func TestReplaceAttr(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t, WithReplaceAttr(func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "shout" {
			return slog.String("shout", strings.ToUpper(a.Value.String()))
		}
		return a
	}))

	helper.Logger.Info("msg", "shout", "quiet")

	last, err := helper.LastLog()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "QUIET", last.Attrs["shout"])
}

func TestCustomLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	custom := slog.New(slog.NewJSONHandler(&buf, nil))

	l, err := New(WithCustomLogger(custom))
	require.NoError(t, err)

	l.Info("through custom")
	assert.Contains(t, buf.String(), "through custom")
}

func TestGlobalInstallReplaces(t *testing.T) {
	// Mutates the process-global slog default; not parallel.
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	_, err := New(
		WithOutput(&buf),
		WithGlobalLogger(),
	)
	require.NoError(t, err)

	slog.Info("via global")
	assert.Contains(t, buf.String(), "via global")

	// A second install fully replaces the first, never layers on it.
	var buf2 bytes.Buffer
	_, err = New(
		WithOutput(&buf2),
		WithGlobalLogger(),
	)
	require.NoError(t, err)

	buf.Reset()
	slog.Info("second install")
	assert.Empty(t, buf.String())
	assert.Contains(t, buf2.String(), "second install")
}

func TestDebugInfo(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t,
		WithRedactFields("password"),
		WithSampling(SamplingConfig{Initial: 1, Thereafter: 2, Tick: time.Minute}),
	)
	defer helper.Logger.Shutdown(context.Background())

	info := helper.Logger.DebugInfo()
	assert.Equal(t, "json", info["format"])
	assert.Equal(t, true, info["console"])
	assert.Equal(t, true, info["redacting"])
	assert.Contains(t, info, "sampling")
}
