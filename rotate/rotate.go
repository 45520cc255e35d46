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

// Package rotate provides a rolling log file writer with size-based and
// time-based rollover policies and a bounded number of retained backups.
package rotate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Policy selects how the writer decides to roll the active file over.
type Policy string

const (
	// PolicySize rolls over when a write would push the active file past
	// MaxBytes. Backups are numbered: app.log.1 is the most recent.
	PolicySize Policy = "size"

	// PolicyTime rolls over when the active file is older than Interval.
	// Backups carry the timestamp of their rollover.
	PolicyTime Policy = "time"
)

const (
	// DefaultMaxBytes is the size bound applied when none is configured.
	DefaultMaxBytes int64 = 10 * 1024 * 1024

	// DefaultBackupCount is the retention bound applied when none is configured.
	DefaultBackupCount = 7

	// DefaultInterval is the time-based rollover period applied when none
	// is configured.
	DefaultInterval = 24 * time.Hour
)

// timeSuffixLayout names time-based backups, e.g. app.log.20260831-153000.
const timeSuffixLayout = "20060102-150405"

// Config describes a rolling file destination.
type Config struct {
	// Path is the active log file. Parent directories are created on open.
	Path string

	// Policy selects size- or time-based rollover. Defaults to PolicySize.
	Policy Policy

	// MaxBytes bounds the active file under PolicySize.
	MaxBytes int64

	// Interval bounds the active file's age under PolicyTime.
	Interval time.Duration

	// BackupCount bounds how many rolled files are retained. Zero applies
	// DefaultBackupCount; a negative count keeps no backups, so the
	// active file is simply dropped on rollover.
	BackupCount int
}

// Writer is an io.WriteCloser that rolls its underlying file over per the
// configured policy. Safe for concurrent use.
type Writer struct {
	cfg Config

	mu     sync.Mutex
	file   *os.File
	size   int64
	opened time.Time
	closed bool
}

// NewWriter opens (or creates, appending) the active file at cfg.Path and
// returns a rolling writer over it.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Path == "" {
		return nil, errors.New("rotate: path cannot be empty")
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicySize
	}
	if cfg.Policy != PolicySize && cfg.Policy != PolicyTime {
		return nil, fmt.Errorf("rotate: unknown policy %q", cfg.Policy)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BackupCount == 0 {
		cfg.BackupCount = DefaultBackupCount
	} else if cfg.BackupCount < 0 {
		cfg.BackupCount = 0
	}

	w := &Writer{cfg: cfg}
	if err := w.open(); err != nil {
		return nil, err
	}

	return w, nil
}

// Write appends p to the active file, rolling over first if the configured
// policy requires it. The in-flight write always lands in one file.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, errors.New("rotate: writer is closed")
	}

	if w.shouldRotate(int64(len(p))) {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)

	return n, err
}

// Close closes the active file. Repeated calls are safe no-ops.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	err := w.file.Close()
	w.file = nil

	return err
}

func (w *Writer) open() error {
	if dir := filepath.Dir(w.cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("rotate: create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(w.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("rotate: open log file: %w", err)
	}

	w.file = f
	w.opened = time.Now()
	w.size = 0
	if info, err := f.Stat(); err == nil {
		w.size = info.Size()
		if w.cfg.Policy == PolicyTime {
			// An existing file keeps its original age so restarts do
			// not reset the rollover window.
			if info.ModTime().Before(w.opened) {
				w.opened = info.ModTime()
			}
		}
	}

	return nil
}

func (w *Writer) shouldRotate(incoming int64) bool {
	switch w.cfg.Policy {
	case PolicyTime:
		return time.Since(w.opened) >= w.cfg.Interval
	default:
		return w.size > 0 && w.size+incoming > w.cfg.MaxBytes
	}
}

func (w *Writer) rotate() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("rotate: close before rollover: %w", err)
	}
	w.file = nil

	var err error
	if w.cfg.BackupCount == 0 {
		err = os.Remove(w.cfg.Path)
	} else if w.cfg.Policy == PolicyTime {
		err = w.shiftTimeBackups()
	} else {
		err = w.shiftSizeBackups()
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return w.open()
}

// shiftSizeBackups renames path.i to path.(i+1) for the retained range and
// moves the active file to path.1, dropping the oldest backup.
func (w *Writer) shiftSizeBackups() error {
	oldest := fmt.Sprintf("%s.%d", w.cfg.Path, w.cfg.BackupCount)
	if err := os.Remove(oldest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("rotate: drop oldest backup: %w", err)
	}

	for i := w.cfg.BackupCount - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", w.cfg.Path, i)
		to := fmt.Sprintf("%s.%d", w.cfg.Path, i+1)
		if err := os.Rename(from, to); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("rotate: shift backup: %w", err)
		}
	}

	return os.Rename(w.cfg.Path, w.cfg.Path+".1")
}

// shiftTimeBackups stamps the active file with its window start and prunes
// stamped backups beyond the retention bound.
func (w *Writer) shiftTimeBackups() error {
	backup := w.cfg.Path + "." + w.opened.Format(timeSuffixLayout)
	if err := os.Rename(w.cfg.Path, backup); err != nil {
		return err
	}

	matches, err := filepath.Glob(w.cfg.Path + ".*")
	if err != nil {
		return fmt.Errorf("rotate: list backups: %w", err)
	}

	// Timestamp suffixes sort lexically in age order.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for i, path := range matches {
		if i < w.cfg.BackupCount {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("rotate: prune backup: %w", err)
		}
	}

	return nil
}
