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

package source

import (
	"context"
	"os"
	"strings"
)

// EnvVars loads settings from a fixed table of named environment variables.
//
// Unlike prefix-scanning loaders, the schema is explicit: each environment
// variable maps to one canonical dotted setting key. That keeps multi-word
// setting names (backup_count, redact_fields) unambiguous, since underscores
// in variable names cannot be used as a nesting separator.
type EnvVars struct {
	schema map[string]string // env var name -> dotted setting key
}

// NewEnvVars creates an EnvVars source from a schema mapping environment
// variable names to dotted setting keys, e.g.
//
//	source.NewEnvVars(map[string]string{
//	    "LOG_LEVEL":          "level",
//	    "LOG_CLOUD_ENDPOINT": "cloud.endpoint",
//	})
func NewEnvVars(schema map[string]string) *EnvVars {
	return &EnvVars{schema: schema}
}

// Load reads the schema's environment variables and builds a nested settings
// map. Unset and empty variables are skipped; values are kept as strings and
// coerced later during binding.
func (e *EnvVars) Load(context.Context) (map[string]any, error) {
	settings := make(map[string]any)

	for name, key := range e.schema {
		value, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}

		setNested(settings, key, strings.TrimSpace(value))
	}

	return settings, nil
}

// setNested stores value under a dotted key, creating intermediate maps.
func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")

	current := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
