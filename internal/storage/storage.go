// Copyright 2026 The cvmquery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

type ReaderAtSeeker interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// Reader is a seekable source for a model database.
type Reader interface {
	ReaderAtSeeker
	io.Closer
	Size() int64
}

// NewReader opens a model database.  Names with an http or https scheme are
// read with range requests, names with any other scheme are opened as blobs
// and everything else is treated as a local path.
func NewReader(ctx context.Context, name string) (Reader, error) {
	scheme := schemeOf(name)
	switch scheme {
	case "":
		return newFileReader(name)
	case "http", "https":
		return NewRangeReader(ctx, name)
	default:
		return NewBlobReader(ctx, name)
	}
}

func schemeOf(name string) string {
	if !strings.Contains(name, "://") {
		return ""
	}
	parsed, err := url.Parse(name)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Scheme)
}

type fileReader struct {
	*os.File
	size int64
}

func newFileReader(name string) (*fileReader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory", name)
	}
	return &fileReader{File: f, size: info.Size()}, nil
}

func (r *fileReader) Size() int64 {
	return r.size
}
