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
	"context"
	"log/slog"
)

// RedactedPlaceholder is the constant every redacted field value is
// overwritten with.
const RedactedPlaceholder = "[REDACTED]"

// redactHandler is the redaction gate: a handler sitting above the sink
// fanout that overwrites matching attribute values before any sink formats
// or transmits the record.
//
// Redaction is applied once per record, identically for every sink, and is
// idempotent: a value already replaced stays [RedactedPlaceholder].
// Matching descends into group attributes, so extra-field mappings logged
// as groups are covered too. Non-matching attributes pass through unchanged.
type redactHandler struct {
	next   slog.Handler
	fields map[string]struct{}
}

// newRedactHandler wraps next with a redaction gate for the given field names.
func newRedactHandler(next slog.Handler, fields []string) *redactHandler {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}

	return &redactHandler{next: next, fields: set}
}

// Enabled defers to the wrapped handler.
func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle rewrites matching attributes and passes the record on.
func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		rec.AddAttrs(h.redactAttr(a))
		return true
	})

	return h.next.Handle(ctx, rec)
}

// WithAttrs redacts the pre-bound attributes before handing them to the
// wrapped handler, so logger.With(...) values cannot bypass the gate.
func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redactAttr(a)
	}

	return &redactHandler{next: h.next.WithAttrs(redacted), fields: h.fields}
}

// WithGroup opens the group on the wrapped handler, keeping the gate on top.
func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), fields: h.fields}
}

// redactAttr returns the attribute with its value overwritten when its key
// matches, descending into groups.
func (h *redactHandler) redactAttr(a slog.Attr) slog.Attr {
	if _, match := h.fields[a.Key]; match {
		return slog.String(a.Key, RedactedPlaceholder)
	}

	if a.Value.Kind() == slog.KindGroup {
		members := a.Value.Group()
		redacted := make([]any, 0, len(members))
		for _, m := range members {
			redacted = append(redacted, h.redactAttr(m))
		}

		return slog.Group(a.Key, redacted...)
	}

	return a
}
