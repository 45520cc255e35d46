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

// Package logpipe provides centralized, pluggable logging pipeline
// configuration on top of log/slog: format selection (JSON, text, console),
// routing to sinks (console, rotating file, remote HTTP collector) and
// redaction of sensitive fields before emission.
//
// The package wraps the standard logging facility rather than implementing
// one: records flow through slog, and logpipe decides how they are
// formatted, where they go and what never leaves the process.
//
// # Basic Usage
//
//	pipeline := logpipe.MustNew(logpipe.WithConsoleFormat())
//	defer pipeline.Shutdown(context.Background())
//	pipeline.Info("service started", "port", 8080)
//
// # Sinks
//
// Console output is always available. A rotating file sink and a remote
// delivery sink are added per configuration:
//
//	pipeline, err := logpipe.New(
//	    logpipe.WithJSONFormat(),
//	    logpipe.WithRotatingFile(rotate.Config{
//	        Path:        "/var/log/app.log",
//	        MaxBytes:    10 * 1024 * 1024,
//	        BackupCount: 7,
//	    }),
//	    logpipe.WithRemote(remote.Config{
//	        Endpoint: "https://logs.example.com/ingest",
//	        Token:    os.Getenv("LOG_CLOUD_TOKEN"),
//	    }),
//	)
//
// Remote delivery failures never reach the emitting call site: they are
// retried with bounded exponential backoff, then reported on a side channel
// while all other sinks keep working.
//
// # Redaction
//
// Field redaction is a pre-sink gate applied identically for every sink:
//
//	pipeline := logpipe.MustNew(
//	    logpipe.WithRedactFields("password", "token"),
//	)
//	pipeline.Info("login", "user", "ada", "password", "hunter2")
//	// password is emitted as [REDACTED] on every sink
//
// # Settings Resolution
//
// Pipelines can also be assembled from resolved settings with a defined
// precedence: explicit map > settings file (.yaml/.yml/.json/.toml) >
// documented LOG_* environment variables:
//
//	pipeline, err := logpipe.Configure([]logpipe.ResolveOption{
//	    logpipe.WithSettingsFile("logging.yaml"),
//	})
//
// # Global Installation
//
// By default pipelines are not installed globally; pass
// [WithGlobalLogger] to register the assembled logger as the slog default.
// Re-assembling with the option set fully replaces the previous
// configuration.
package logpipe
