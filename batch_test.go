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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchLoggerFlushOnSize(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t)
	bl := NewBatchLogger(helper.Logger, 3, time.Hour)
	defer bl.Close()

	bl.Info("one")
	bl.Info("two")
	assert.Equal(t, 2, bl.Size())

	entries, err := helper.Logs()
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Third entry fills the batch and triggers the flush.
	bl.Info("three")
	assert.Equal(t, 0, bl.Size())

	entries, err = helper.Logs()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "one", entries[0].Message)
	assert.Equal(t, "three", entries[2].Message)
}

func TestBatchLoggerFlushOnClose(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t)
	bl := NewBatchLogger(helper.Logger, 100, time.Hour)

	bl.Debug("buffered debug")
	bl.Error("buffered error", "code", 500)
	bl.Close()

	entries, err := helper.Logs()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "buffered debug", entries[0].Message)
	assert.Equal(t, "buffered error", entries[1].Message)
	assert.EqualValues(t, 500, entries[1].Attrs["code"])
}

func TestBatchLoggerFlushOnInterval(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t)
	bl := NewBatchLogger(helper.Logger, 100, 20*time.Millisecond)
	defer bl.Close()

	bl.Warn("interval flushed")
	require.Equal(t, 1, bl.Size())

	// Size drains under the batch mutex, so observing zero means the
	// pipeline writes completed.
	assert.Eventually(t, func() bool {
		return bl.Size() == 0
	}, time.Second, 10*time.Millisecond)

	entries, err := helper.Logs()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "interval flushed", entries[0].Message)
}

func TestBatchLoggerManualFlush(t *testing.T) {
	t.Parallel()

	helper := NewTestHelper(t)
	bl := NewBatchLogger(helper.Logger, 100, time.Hour)
	defer bl.Close()

	bl.Info("manual")
	bl.Flush()

	entries, err := helper.Logs()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, bl.Size())
}
