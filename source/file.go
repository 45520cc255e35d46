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
	"fmt"
	"os"

	"rivaas.dev/logpipe/codec"
)

// File loads settings from a serialized settings file or from raw byte
// content. The decoder determines how the content is parsed.
type File struct {
	path    string
	data    []byte
	decoder codec.Decoder
}

// NewFile creates a File source that reads the given path at load time.
func NewFile(path string, decoder codec.Decoder) *File {
	return &File{
		path:    path,
		decoder: decoder,
	}
}

// NewFileContent creates a File source over the provided byte slice.
// Useful for embedded settings or tests.
func NewFileContent(data []byte, decoder codec.Decoder) *File {
	return &File{
		data:    data,
		decoder: decoder,
	}
}

// Load reads and decodes the settings document into a map[string]any.
//
// Errors:
//   - the file cannot be read (NewFile only)
//   - the document cannot be decoded
func (f *File) Load(context.Context) (map[string]any, error) {
	data := f.data

	if f.path != "" {
		var err error
		data, err = os.ReadFile(f.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	var settings map[string]any
	if err := f.decoder.Decode(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings file: %w", err)
	}

	return settings, nil
}
