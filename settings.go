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
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"

	"rivaas.dev/logpipe/codec"
	"rivaas.dev/logpipe/remote"
	"rivaas.dev/logpipe/rotate"
	"rivaas.dev/logpipe/source"
)

// Settings is a resolved configuration snapshot: the flattened answer to
// "what should the pipeline look like", regardless of whether the values
// came from an explicit map, a settings file or named environment variables.
type Settings struct {
	// Environment tags records with the deployment environment.
	Environment string `mapstructure:"environment"`

	// Level is the minimum severity name: DEBUG, INFO, WARN or ERROR.
	Level string `mapstructure:"level"`

	// Format selects the record representation: json, text or console.
	Format string `mapstructure:"format"`

	// Handlers lists the active sinks: console, file, cloud.
	Handlers []string `mapstructure:"handlers"`

	// File is the rotating file sink's path; required when the file
	// handler is active.
	File string `mapstructure:"file"`

	// Rotation describes the file sink's rollover policy.
	Rotation RotationSettings `mapstructure:"rotation"`

	// RedactFields lists field names overwritten before emission.
	RedactFields []string `mapstructure:"redact_fields"`

	// Cloud describes the remote delivery sink.
	Cloud CloudSettings `mapstructure:"cloud"`
}

// RotationSettings mirrors [rotate.Config] in loader form.
type RotationSettings struct {
	Policy      string        `mapstructure:"policy"`
	MaxBytes    int64         `mapstructure:"max_bytes"`
	BackupCount int           `mapstructure:"backup_count"`
	Interval    time.Duration `mapstructure:"interval"`
}

// CloudSettings mirrors [remote.Config] in loader form. Timeout is in
// seconds, matching the LOG_CLOUD_TIMEOUT environment variable.
type CloudSettings struct {
	Endpoint      string  `mapstructure:"endpoint"`
	Token         string  `mapstructure:"token"`
	Timeout       int     `mapstructure:"timeout"`
	MaxRetries    int     `mapstructure:"max_retries"`
	BackoffFactor float64 `mapstructure:"backoff_factor"`
}

// Sink names accepted in Settings.Handlers.
const (
	HandlerConsole = "console"
	HandlerFile    = "file"
	HandlerCloud   = "cloud"
)

// envSchema maps the documented environment variables to canonical dotted
// setting keys. The table is explicit so multi-word setting names stay
// unambiguous.
var envSchema = map[string]string{
	"LOG_ENV":                   "environment",
	"LOG_LEVEL":                 "level",
	"LOG_FORMAT":                "format",
	"LOG_HANDLERS":              "handlers",
	"LOG_FILE":                  "file",
	"LOG_REDACT_FIELDS":         "redact_fields",
	"LOG_ROTATION_POLICY":       "rotation.policy",
	"LOG_ROTATION_MAX_BYTES":    "rotation.max_bytes",
	"LOG_ROTATION_BACKUP_COUNT": "rotation.backup_count",
	"LOG_ROTATION_INTERVAL":     "rotation.interval",
	remote.EnvEndpoint:          "cloud.endpoint",
	remote.EnvToken:             "cloud.token",
	remote.EnvTimeout:           "cloud.timeout",
	remote.EnvMaxRetries:        "cloud.max_retries",
	remote.EnvBackoffFactor:     "cloud.backoff_factor",
}

// defaultable settings and their lenient-mode values. In strict mode any of
// these absent from every source is a missing-setting error instead.
var settingDefaults = map[string]any{
	"environment": "production",
	"level":       "INFO",
	"format":      string(FormatJSON),
	"handlers":    []string{HandlerConsole},
}

// extensionFormats maps settings file extensions to decoder types.
var extensionFormats = map[string]codec.Type{
	".yaml": codec.TypeYAML,
	".yml":  codec.TypeYAML,
	".json": codec.TypeJSON,
	".toml": codec.TypeTOML,
}

// detectFormat picks the decoder type from the file extension. Unsupported
// extensions are a format error.
func detectFormat(path string) (codec.Type, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if format, ok := extensionFormats[ext]; ok {
		return format, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// resolver accumulates the inputs of one ResolveSettings call.
type resolver struct {
	explicit map[string]any
	filePath string
	fileData []byte
	fileType codec.Type
	noEnv    bool
	strict   bool
}

// ResolveOption configures settings resolution.
type ResolveOption func(*resolver)

// WithSettingsMap supplies an explicit settings map. It has the highest
// precedence: values here override the settings file and the environment.
func WithSettingsMap(m map[string]any) ResolveOption {
	return func(r *resolver) { r.explicit = m }
}

// WithSettingsFile supplies a settings file (.yaml, .yml, .json or .toml).
// File values override environment variables but lose to an explicit map.
func WithSettingsFile(path string) ResolveOption {
	return func(r *resolver) { r.filePath = path }
}

// WithSettingsContent supplies settings document bytes in the given format,
// with the same precedence as a settings file.
func WithSettingsContent(data []byte, format codec.Type) ResolveOption {
	return func(r *resolver) {
		r.fileData = data
		r.fileType = format
	}
}

// WithoutEnv disables the environment variable source.
func WithoutEnv() ResolveOption {
	return func(r *resolver) { r.noEnv = true }
}

// WithStrict makes absent-but-defaultable settings an error instead of
// silently defaulting them.
func WithStrict() ResolveOption {
	return func(r *resolver) { r.strict = true }
}

// ResolveSettings resolves a configuration snapshot with the documented
// precedence: explicit map > settings file > environment variables, with
// documented defaults filling whatever remains (lenient mode only).
//
// Settings that are present but fail coercion or a named validator produce
// a [*SettingError] naming the setting, its raw value and the reason.
func ResolveSettings(opts ...ResolveOption) (*Settings, error) {
	var r resolver
	for _, opt := range opts {
		opt(&r)
	}

	merged := make(map[string]any)

	if !r.noEnv {
		env, err := source.NewEnvVars(envSchema).Load(bgCtx)
		if err != nil {
			return nil, fmt.Errorf("load environment: %w", err)
		}
		merged = env
	}

	if fileMap, err := r.loadFile(); err != nil {
		return nil, err
	} else if fileMap != nil {
		if err := mergo.Merge(&merged, fileMap, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge settings file: %w", err)
		}
	}

	if r.explicit != nil {
		if err := mergo.Merge(&merged, r.explicit, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge explicit settings: %w", err)
		}
	}

	if r.strict {
		for _, setting := range []string{"environment", "level", "format", "handlers"} {
			if _, ok := merged[setting]; !ok {
				return nil, newMissingSettingError(setting)
			}
		}
	}
	if err := mergo.Merge(&merged, settingDefaults); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	settings, err := bindSettings(merged)
	if err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// loadFile decodes the configured settings file or content, if any.
func (r *resolver) loadFile() (map[string]any, error) {
	var (
		src        *source.File
		formatType codec.Type
	)

	switch {
	case r.filePath != "":
		var err error
		formatType, err = detectFormat(r.filePath)
		if err != nil {
			return nil, err
		}
		decoder, err := codec.Get(formatType)
		if err != nil {
			return nil, err
		}
		src = source.NewFile(r.filePath, decoder)
	case r.fileData != nil:
		decoder, err := codec.Get(r.fileType)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, r.fileType)
		}
		src = source.NewFileContent(r.fileData, decoder)
	default:
		return nil, nil
	}

	return src.Load(bgCtx)
}

// bindSettings decodes the merged map into a Settings value, coercing
// string representations (numbers, durations, comma-separated lists) along
// the way.
func bindSettings(merged map[string]any) (*Settings, error) {
	var settings Settings

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &settings,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("build settings decoder: %w", err)
	}

	if err := decoder.Decode(merged); err != nil {
		return nil, newInvalidSettingError("settings", merged, err.Error())
	}

	return &settings, nil
}

// Validate applies the named validators: level and format enum membership,
// handler names, rotation policy shape and remote endpoint URL shape.
func (s *Settings) Validate() error {
	if _, err := ParseLevel(s.Level); err != nil {
		return newInvalidSettingError("level", s.Level, "must be one of DEBUG, INFO, WARN, ERROR")
	}

	switch Format(s.Format) {
	case FormatJSON, FormatText, FormatConsole:
	default:
		return newInvalidSettingError("format", s.Format, "must be one of json, text, console")
	}

	for _, h := range s.Handlers {
		switch h {
		case HandlerConsole, HandlerFile, HandlerCloud:
		default:
			return newInvalidSettingError("handlers", h, "must be one of console, file, cloud")
		}
	}

	if s.hasHandler(HandlerFile) && s.File == "" {
		return newMissingSettingError("file")
	}

	switch rotate.Policy(s.Rotation.Policy) {
	case "", rotate.PolicySize, rotate.PolicyTime:
	default:
		return newInvalidSettingError("rotation.policy", s.Rotation.Policy, "must be size or time")
	}
	if s.Rotation.MaxBytes < 0 {
		return newInvalidSettingError("rotation.max_bytes", s.Rotation.MaxBytes, "must be non-negative")
	}
	if s.Rotation.BackupCount < 0 {
		return newInvalidSettingError("rotation.backup_count", s.Rotation.BackupCount, "must be non-negative")
	}

	if s.hasHandler(HandlerCloud) {
		if s.Cloud.Endpoint == "" {
			return newMissingSettingError("cloud.endpoint")
		}
		if u, err := url.Parse(s.Cloud.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return newInvalidSettingError("cloud.endpoint", s.Cloud.Endpoint, "must be an absolute URL with scheme and host")
		}
	}
	if s.Cloud.Timeout < 0 {
		return newInvalidSettingError("cloud.timeout", s.Cloud.Timeout, "must be non-negative")
	}
	if s.Cloud.MaxRetries < 0 {
		return newInvalidSettingError("cloud.max_retries", s.Cloud.MaxRetries, "must be non-negative")
	}
	if s.Cloud.BackoffFactor < 0 {
		return newInvalidSettingError("cloud.backoff_factor", s.Cloud.BackoffFactor, "must be non-negative")
	}

	return nil
}

func (s *Settings) hasHandler(name string) bool {
	for _, h := range s.Handlers {
		if h == name {
			return true
		}
	}

	return false
}

// options converts the snapshot into pipeline options.
func (s *Settings) options() ([]Option, error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithFormat(Format(s.Format)),
		WithLevel(level),
		WithEnvironment(s.Environment),
	}

	if !s.hasHandler(HandlerConsole) {
		opts = append(opts, WithoutConsole())
	}

	if s.hasHandler(HandlerFile) {
		opts = append(opts, WithRotatingFile(rotate.Config{
			Path:        s.File,
			Policy:      rotate.Policy(s.Rotation.Policy),
			MaxBytes:    s.Rotation.MaxBytes,
			Interval:    s.Rotation.Interval,
			BackupCount: s.Rotation.BackupCount,
		}))
	}

	if s.hasHandler(HandlerCloud) {
		opts = append(opts, WithRemote(remote.Config{
			Endpoint:      s.Cloud.Endpoint,
			Token:         s.Cloud.Token,
			Timeout:       time.Duration(s.Cloud.Timeout) * time.Second,
			MaxRetries:    s.Cloud.MaxRetries,
			BackoffFactor: s.Cloud.BackoffFactor,
		}))
	}

	if len(s.RedactFields) > 0 {
		opts = append(opts, WithRedactFields(s.RedactFields...))
	}

	return opts, nil
}

// NewFromSettings assembles a pipeline from a resolved snapshot. Additional
// options (an output writer for tests, a global install) are applied after
// the snapshot-derived ones.
func NewFromSettings(s *Settings, extra ...Option) (*Logger, error) {
	opts, err := s.options()
	if err != nil {
		return nil, err
	}

	return New(append(opts, extra...)...)
}

// Configure is the one-call entry point: resolve a settings snapshot and
// assemble it, optionally installing the result as the global slog default
// via [WithGlobalLogger] in extra.
func Configure(resolveOpts []ResolveOption, extra ...Option) (*Logger, error) {
	settings, err := ResolveSettings(resolveOpts...)
	if err != nil {
		return nil, err
	}

	return NewFromSettings(settings, extra...)
}
