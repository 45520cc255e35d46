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
	"errors"
	"fmt"
)

var (
	// ErrMissingEndpoint indicates no collector endpoint was provided via
	// configuration or the LOG_CLOUD_ENDPOINT environment variable.
	ErrMissingEndpoint = errors.New("remote endpoint must be provided via config or " + EnvEndpoint)

	// ErrInvalidEndpoint indicates the configured endpoint is not an
	// absolute URL with both a scheme and a host.
	ErrInvalidEndpoint = errors.New("invalid remote endpoint URL")
)

// StatusError reports a non-2xx collector response.
type StatusError struct {
	Code int
}

// Error returns the status code in a readable form.
func (e *StatusError) Error() string {
	return fmt.Sprintf("collector returned status %d", e.Code)
}
