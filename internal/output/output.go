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

// Package output writes query results.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
)

const (
	FormatText    = "text"
	FormatGeoJSON = "geojson"
	FormatParquet = "parquet"
)

var Formats = []string{FormatText, FormatGeoJSON, FormatParquet}

// A Writer writes one record per queried location.  Close flushes buffered
// records.
type Writer interface {
	Write(loc geo.Location, values []float64) error
	Close() error
}

type Config struct {
	Format string
	Writer io.Writer
	Values []*model.ValueSpec
	// Compression applies to parquet output.
	Compression string
}

func NewWriter(config *Config) (Writer, error) {
	switch strings.ToLower(config.Format) {
	case "", FormatText:
		return NewTextWriter(config.Writer, config.Values), nil
	case FormatGeoJSON:
		return NewGeoJSONWriter(config.Writer, config.Values), nil
	case FormatParquet:
		return NewParquetWriter(config.Writer, config.Values, config.Compression)
	default:
		return nil, fmt.Errorf("unsupported output format %q, expected one of %s", config.Format, strings.Join(Formats, ", "))
	}
}

func checkLength(values []float64, specs []*model.ValueSpec) error {
	if len(values) != len(specs) {
		return fmt.Errorf("expected %d values, got %d", len(specs), len(values))
	}
	return nil
}
