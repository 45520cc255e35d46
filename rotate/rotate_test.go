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

package rotate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "size policy",
			cfg:  Config{Policy: PolicySize},
		},
		{
			name: "time policy",
			cfg:  Config{Policy: PolicyTime},
		},
		{
			name: "empty policy defaults to size",
			cfg:  Config{},
		},
		{
			name:    "unknown policy",
			cfg:     Config{Policy: Policy("hourly")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tt.cfg
			cfg.Path = filepath.Join(t.TempDir(), "app.log")

			w, err := NewWriter(cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, w.Close())
		})
	}
}

func TestNewWriterEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewWriter(Config{})
	require.Error(t, err)
}

func TestWriteAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewWriter(Config{Path: path})
	require.NoError(t, err)

	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestSizeRollover(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w, err := NewWriter(Config{
		Path:        path,
		Policy:      PolicySize,
		MaxBytes:    200,
		BackupCount: 2,
	})
	require.NoError(t, err)

	line := bytes.Repeat([]byte("x"), 49)
	line = append(line, '\n') // 50 bytes per line
	for i := 0; i < 100; i++ {
		_, err := w.Write(line)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Active file exists and respects the bound.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, info.Size(), int64(200))

	// At most BackupCount backups, each within the bound.
	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
	assert.NotEmpty(t, matches)
	for _, m := range matches {
		info, err := os.Stat(m)
		require.NoError(t, err)
		assert.LessOrEqual(t, info.Size(), int64(200), m)
	}
}

func TestSizeRolloverKeepsLatestFirst(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewWriter(Config{
		Path:        path,
		MaxBytes:    10,
		BackupCount: 3,
	})
	require.NoError(t, err)

	for _, chunk := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n"} {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// .1 is the most recently rotated content.
	data, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbb\n", string(data))

	data, err = os.ReadFile(path + ".2")
	require.NoError(t, err)
	assert.Equal(t, "aaaaaaaa\n", string(data))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cccccccc\n", string(data))
}

func TestRolloverWithoutBackups(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewWriter(Config{
		Path:        path,
		MaxBytes:    10,
		BackupCount: -1,
	})
	require.NoError(t, err)

	_, err = w.Write([]byte("aaaaaaaa\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("bbbbbbbb\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.Empty(t, matches)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bbbbbbbb\n", string(data))
}

func TestSingleWriteNeverSplits(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewWriter(Config{
		Path:        path,
		MaxBytes:    10,
		BackupCount: 1,
	})
	require.NoError(t, err)

	// A write larger than MaxBytes still lands in one file.
	big := bytes.Repeat([]byte("y"), 64)
	_, err = w.Write(big)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 64)
}

func TestTimeRollover(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewWriter(Config{
		Path:        path,
		Policy:      PolicyTime,
		Interval:    50 * time.Millisecond,
		BackupCount: 3,
	})
	require.NoError(t, err)

	_, err = w.Write([]byte("early\n"))
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)

	_, err = w.Write([]byte("late\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "early\n", string(data))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "late\n", string(data))
}

func TestTimeRolloverPrunesBackups(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")

	// Pre-seed more stamped backups than the retention bound.
	for i := 0; i < 4; i++ {
		stamp := time.Now().Add(-time.Duration(4-i) * time.Hour).Format(timeSuffixLayout)
		require.NoError(t, os.WriteFile(fmt.Sprintf("%s.%s", path, stamp), []byte("old\n"), 0o644))
	}

	w, err := NewWriter(Config{
		Path:        path,
		Policy:      PolicyTime,
		Interval:    time.Millisecond,
		BackupCount: 2,
	})
	require.NoError(t, err)

	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	w, err := NewWriter(Config{Path: path})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("nope\n"))
	require.Error(t, err)
}

func TestReopenKeepsExistingSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("z"), 190), 0o644))

	w, err := NewWriter(Config{
		Path:        path,
		MaxBytes:    200,
		BackupCount: 1,
	})
	require.NoError(t, err)

	// 190 existing + 20 incoming exceeds the bound: rotate before writing.
	_, err = w.Write(bytes.Repeat([]byte("w"), 20))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, 20)

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	assert.Len(t, backup, 190)
}
