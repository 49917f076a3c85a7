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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	headRequestSize  = 512
	defaultReadAhead = 64 * 1024
)

// RangeReader reads a remote model database with HTTP range requests.  Each
// request fetches at least the read-ahead size so that a row group is usually
// decoded from a single response.
type RangeReader struct {
	ctx       context.Context
	url       string
	client    *http.Client
	readAhead int64
	size      int64
	offset    int64
	validator string
	window    []byte
	windowAt  int64
	requests  int
}

type RangeOption func(*RangeReader)

func WithHTTPClient(client *http.Client) RangeOption {
	return func(r *RangeReader) {
		r.client = client
	}
}

// WithReadAhead sets the minimum number of bytes fetched per request.
func WithReadAhead(size int64) RangeOption {
	return func(r *RangeReader) {
		if size > 0 {
			r.readAhead = size
		}
	}
}

func NewRangeReader(ctx context.Context, url string, options ...RangeOption) (*RangeReader, error) {
	r := &RangeReader{
		ctx:       ctx,
		url:       url,
		client:    &http.Client{},
		readAhead: defaultReadAhead,
	}
	for _, option := range options {
		option(r)
	}
	if err := r.head(); err != nil {
		return nil, err
	}
	return r, nil
}

// head fetches the first bytes of the file to learn its size and validator.
func (r *RangeReader) head() error {
	data, resp, err := r.fetch(0, headRequestSize)
	if err != nil {
		return err
	}
	r.window = data
	r.windowAt = 0

	if resp.StatusCode != http.StatusPartialContent {
		r.size = int64(len(data))
		return nil
	}

	size, err := totalSize(resp.Header.Get("Content-Range"))
	if err != nil {
		return fmt.Errorf("invalid content-range header from %s: %w", r.url, err)
	}
	r.size = size
	r.validator = validatorFromResponse(resp)
	return nil
}

// totalSize parses the complete length from a header like "bytes 0-511/1234".
func totalSize(contentRange string) (int64, error) {
	_, total, found := strings.Cut(contentRange, "/")
	if !found {
		return 0, fmt.Errorf("missing length in %q", contentRange)
	}
	if total == "*" {
		return 0, errors.New("server did not report the file length")
	}
	return strconv.ParseInt(total, 10, 64)
}

func validatorFromResponse(resp *http.Response) string {
	if etag := resp.Header.Get("ETag"); strings.HasPrefix(etag, `"`) {
		return etag
	}
	return resp.Header.Get("Last-Modified")
}

func (r *RangeReader) fetch(start int64, length int64) ([]byte, *http.Response, error) {
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, start+length-1))
	if r.validator != "" {
		req.Header.Set("If-Range", r.validator)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		remoteRequests.WithLabelValues(resultError).Inc()
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		remoteRequests.WithLabelValues(resultError).Inc()
		return nil, nil, fmt.Errorf("unexpected response from %s: %d", r.url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		remoteRequests.WithLabelValues(resultError).Inc()
		return nil, nil, fmt.Errorf("failed to read response from %s: %w", r.url, err)
	}
	r.requests += 1
	remoteRequests.WithLabelValues(resultOK).Inc()
	remoteBytes.Add(float64(len(data)))
	return data, resp, nil
}

func (r *RangeReader) buffered(offset int64) bool {
	return r.window != nil && offset >= r.windowAt && offset < r.windowAt+int64(len(r.window))
}

// fill replaces the window with bytes starting at the current offset.
func (r *RangeReader) fill(length int64) error {
	length = max(length, r.readAhead)
	length = min(length, r.size-r.offset)

	data, resp, err := r.fetch(r.offset, length)
	if err != nil {
		return err
	}
	r.window = data
	r.windowAt = r.offset
	if resp.StatusCode != http.StatusPartialContent {
		// the server ignored the range and sent the whole file
		r.windowAt = 0
	}
	if !r.buffered(r.offset) {
		return fmt.Errorf("short response from %s at offset %d", r.url, r.offset)
	}
	return nil
}

func (r *RangeReader) Size() int64 {
	return r.size
}

// Requests returns the number of successful requests made so far.
func (r *RangeReader) Requests() int {
	return r.requests
}

func (r *RangeReader) Read(data []byte) (int, error) {
	if r.offset >= r.size {
		return 0, io.EOF
	}
	if !r.buffered(r.offset) {
		if err := r.fill(int64(len(data))); err != nil {
			return 0, err
		}
	}
	n := copy(data, r.window[r.offset-r.windowAt:])
	r.offset += int64(n)
	return n, nil
}

func (r *RangeReader) ReadAt(data []byte, offset int64) (int, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	total := 0
	for total < len(data) {
		n, err := r.Read(data[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *RangeReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.offset
	case io.SeekEnd:
		offset += r.size
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if offset < 0 {
		return 0, fmt.Errorf("attempt to seek to a negative offset: %d", offset)
	}
	r.offset = offset
	return offset, nil
}

func (r *RangeReader) Close() error {
	r.window = nil
	r.client.CloseIdleConnections()
	return nil
}
