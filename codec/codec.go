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

// Package codec decodes serialized settings documents into configuration maps.
//
// Settings files are read, never written, so the package only deals with
// decoding. Decoders register themselves at init time and are looked up by
// type, which keeps the loader independent of the concrete formats it
// supports.
package codec

import "fmt"

// Type identifies a settings document format.
type Type string

// Decoder converts an encoded settings document into a Go value.
// Implementations must be safe for concurrent use.
type Decoder interface {
	// Decode converts the encoded data into the value pointed to by v.
	// It returns an error if decoding fails or if v is not a valid target.
	Decode(data []byte, v any) error
}

var decoders = make(map[Type]Decoder)

// Register registers a decoder for the given format type. Registering a
// decoder for an already-registered type replaces the previous one.
func Register(name Type, decoder Decoder) {
	decoders[name] = decoder
}

// Get retrieves the registered decoder for the given format type. If no
// decoder is registered for the type, an error is returned.
func Get(name Type) (Decoder, error) {
	decoder, exists := decoders[name]
	if !exists {
		return nil, fmt.Errorf("decoder not found for type: %s", name)
	}

	return decoder, nil
}
