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
	"errors"
	"fmt"
)

// Sentinel errors for [errors.Is] checks.
var (
	// ErrNilLogger indicates a nil custom logger was provided to [WithCustomLogger].
	ErrNilLogger = errors.New("custom logger is nil")

	// ErrInvalidFormat indicates an unsupported log format was specified.
	// Valid formats: FormatJSON, FormatText, FormatConsole.
	ErrInvalidFormat = errors.New("invalid log format")

	// ErrInvalidLevel indicates a log level name outside the known set.
	ErrInvalidLevel = errors.New("invalid log level")

	// ErrCannotChangeLevel indicates the level cannot be changed dynamically.
	// Returned by [Logger.SetLevel] when using a custom logger.
	ErrCannotChangeLevel = errors.New("cannot change level on custom logger")

	// ErrMissingSetting indicates a required setting was absent from every
	// consulted source.
	ErrMissingSetting = errors.New("missing required setting")

	// ErrInvalidSetting indicates a setting was present but failed type
	// coercion or a named validator.
	ErrInvalidSetting = errors.New("invalid setting")

	// ErrUnsupportedFormat indicates a settings file whose extension maps
	// to no registered decoder.
	ErrUnsupportedFormat = errors.New("unsupported settings file format")
)

// SettingError reports a problem with one named setting during resolution.
// It wraps [ErrMissingSetting] or [ErrInvalidSetting], so both coarse
// [errors.Is] checks and fine-grained inspection of the offending setting
// are possible.
type SettingError struct {
	Setting string // canonical dotted setting name, e.g. "cloud.endpoint"
	Value   any    // raw offending value, nil when the setting was absent
	Reason  string // human-readable cause, empty for missing settings
	Err     error  // ErrMissingSetting or ErrInvalidSetting
}

// Error returns the setting name, its raw value and the reason when present.
func (e *SettingError) Error() string {
	if e.Value == nil && e.Reason == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Setting)
	}

	return fmt.Sprintf("%v: %s = %v (%s)", e.Err, e.Setting, e.Value, e.Reason)
}

// Unwrap returns the wrapped sentinel, enabling errors.Is checks.
func (e *SettingError) Unwrap() error {
	return e.Err
}

// newMissingSettingError reports a required setting absent from all sources.
func newMissingSettingError(setting string) *SettingError {
	return &SettingError{Setting: setting, Err: ErrMissingSetting}
}

// newInvalidSettingError reports a present setting that failed validation.
func newInvalidSettingError(setting string, value any, reason string) *SettingError {
	return &SettingError{Setting: setting, Value: value, Reason: reason, Err: ErrInvalidSetting}
}
