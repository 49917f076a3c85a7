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

package pqutil

import (
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v16/parquet/compress"
)

// CompressionNames lists the codecs accepted by GetCompression.
var CompressionNames = []string{"uncompressed", "snappy", "gzip", "brotli", "zstd", "lz4"}

func GetCompression(codec string) (compress.Compression, error) {
	switch strings.ToLower(codec) {
	case "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "lz4":
		return compress.Codecs.Lz4, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("invalid compression codec %s", codec)
	}
}

// CompressionName returns the lower case name of a codec.
func CompressionName(codec compress.Compression) string {
	return strings.ToLower(codec.String())
}
