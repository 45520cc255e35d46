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

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// transientStatuses are the HTTP response codes eligible for retry.
// Any other non-2xx status is treated as permanent.
var transientStatuses = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// deliver runs the bounded retry sequence for one payload.
//
// Each call is an independent attempt sequence: 1 + MaxRetries total
// attempts, sleeping the backoff delay between retryable failures. The
// caller holds the delivery mutex.
func (h *Handler) deliver(ctx context.Context, payload []byte) error {
	attempts := h.cfg.MaxRetries + 1

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = h.post(ctx, payload)
		if last == nil {
			return nil
		}

		if !retryable(last) || attempt == attempts {
			break
		}

		time.Sleep(h.backoff(attempt))
	}

	return fmt.Errorf("delivery failed after %d attempt(s): %w", attempts, last)
}

// post issues a single POST of the payload to the collector.
func (h *Handler) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if h.auth != "" {
		req.Header.Set("Authorization", h.auth)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}

	return nil
}

// retryable reports whether a failed attempt may be retried. Transport
// failures (timeouts, refused or dropped connections) are always
// retryable; response failures only when the status is in the transient set.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		_, transient := transientStatuses[statusErr.Code]
		return transient
	}

	return true
}

// backoff returns the delay before the retry following the given attempt:
// BackoffFactor * 2^(attempt-1) seconds.
func (h *Handler) backoff(attempt int) time.Duration {
	seconds := h.cfg.BackoffFactor * math.Pow(2, float64(attempt-1))
	return time.Duration(seconds * float64(time.Second))
}
