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
	"io"
	"log/slog"

	"rivaas.dev/logpipe/remote"
	"rivaas.dev/logpipe/rotate"
)

// WithFormat sets the log format.
func WithFormat(f Format) Option {
	return func(l *Logger) { l.format = f }
}

// WithJSONFormat uses JSON structured logging (default).
func WithJSONFormat() Option {
	return WithFormat(FormatJSON)
}

// WithTextFormat uses text key=value logging.
func WithTextFormat() Option {
	return WithFormat(FormatText)
}

// WithConsoleFormat uses human-readable console logging.
func WithConsoleFormat() Option {
	return WithFormat(FormatConsole)
}

// WithOutput sets the console sink's output writer.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.output = w }
}

// WithLevel sets the minimum pipeline log level.
func WithLevel(level Level) Option {
	return func(l *Logger) { l.level = level }
}

// WithDebugLevel enables debug logging.
func WithDebugLevel() Option {
	return WithLevel(LevelDebug)
}

// WithoutConsole removes the console sink from the pipeline. At least one
// other sink (file or remote) must then be configured.
func WithoutConsole() Option {
	return func(l *Logger) { l.consoleEnabled = false }
}

// WithConsoleLevel overrides the minimum severity routed to the console sink.
func WithConsoleLevel(level Level) Option {
	return func(l *Logger) { l.consoleLevel = &level }
}

// WithRotatingFile adds a rotating file sink. The rotation policy (size- or
// time-based, with a bounded backup count) is described by cfg.
func WithRotatingFile(cfg rotate.Config) Option {
	return func(l *Logger) { l.fileCfg = &cfg }
}

// WithFile adds a rotating file sink at path with the default size policy.
func WithFile(path string) Option {
	return WithRotatingFile(rotate.Config{Path: path})
}

// WithFileLevel overrides the minimum severity routed to the file sink.
func WithFileLevel(level Level) Option {
	return func(l *Logger) { l.fileLevel = &level }
}

// WithRemote adds a remote delivery sink shipping rendered records to an
// HTTP collector. Endpoint validation failures fail pipeline construction.
func WithRemote(cfg remote.Config) Option {
	return func(l *Logger) { l.remoteCfg = &cfg }
}

// WithRemoteLevel overrides the minimum severity routed to the remote sink.
func WithRemoteLevel(level Level) Option {
	return func(l *Logger) { l.remoteLevel = &level }
}

// WithRemoteErrorFunc sets the side-channel callback invoked with every
// contained remote delivery failure.
func WithRemoteErrorFunc(fn func(error)) Option {
	return func(l *Logger) { l.remoteErrFn = fn }
}

// WithRemoteDiagnostics sets the secondary stream remote delivery failure
// diagnostics are written to. Defaults to stderr.
func WithRemoteDiagnostics(w io.Writer) Option {
	return func(l *Logger) { l.remoteDiag = w }
}

// WithRedactFields installs the redaction gate for the given field names.
// Matching attributes are overwritten with the [RedactedPlaceholder] before
// any sink formats or transmits the record.
func WithRedactFields(fields ...string) Option {
	return func(l *Logger) { l.redactFields = append(l.redactFields, fields...) }
}

// WithServiceName sets the service name.
// When set, the service name is automatically added to all log entries.
func WithServiceName(name string) Option {
	return func(l *Logger) { l.serviceName = name }
}

// WithServiceVersion sets the service version.
// When set, the version is automatically added to all log entries.
func WithServiceVersion(version string) Option {
	return func(l *Logger) { l.serviceVersion = version }
}

// WithEnvironment sets the environment.
func WithEnvironment(env string) Option {
	return func(l *Logger) {
		if env != "" {
			l.environment = env
		}
	}
}

// WithSource enables source code location in logs.
func WithSource(enabled bool) Option {
	return func(l *Logger) { l.addSource = enabled }
}

// WithReplaceAttr sets a custom attribute replacer function applied by
// every formatting sink. The function receives groups and a [slog.Attr] and
// returns a modified attribute.
func WithReplaceAttr(fn func(groups []string, a slog.Attr) slog.Attr) Option {
	return func(l *Logger) { l.replaceAttr = fn }
}

// WithCustomLogger uses a custom [slog.Logger] instead of assembling sinks.
// When using a custom logger, [Logger.SetLevel] is not supported.
func WithCustomLogger(customLogger *slog.Logger) Option {
	return func(l *Logger) {
		l.customLogger = customLogger
		l.useCustom = true
	}
}

// WithGlobalLogger registers this pipeline as the global slog default
// logger. By default pipelines are not registered globally, so multiple
// pipelines can coexist in the same process.
func WithGlobalLogger() Option {
	return func(l *Logger) { l.registerGlobal = true }
}

// WithSampling enables log sampling to reduce volume in high-traffic
// scenarios. See [SamplingConfig] for the policy knobs.
func WithSampling(cfg SamplingConfig) Option {
	return func(l *Logger) { l.samplingConfig = &cfg }
}
