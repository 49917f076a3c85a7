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

package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
)

const locationFormat = "%9.4f%8.4f%9.1f"

var valueFormats = map[string]string{
	model.ValueVp:            "%8.1f",
	model.ValueVs:            "%8.1f",
	model.ValueDensity:       "%8.1f",
	model.ValueQp:            "%9.1f",
	model.ValueQs:            "%9.1f",
	model.ValueDepthFreeSurf: "%9.1f",
	model.ValueFaultBlock:    "%4d",
	model.ValueZone:          "%4d",
}

// TextWriter writes fixed-width lines: the location followed by one field
// per value.
type TextWriter struct {
	writer  *bufio.Writer
	specs   []*model.ValueSpec
	formats []string
}

func NewTextWriter(w io.Writer, specs []*model.ValueSpec) *TextWriter {
	formats := make([]string, len(specs))
	for i, spec := range specs {
		format, ok := valueFormats[spec.Name]
		switch {
		case ok:
			formats[i] = format
		case spec.IsInt():
			formats[i] = "%4d"
		default:
			formats[i] = "%9.1f"
		}
	}
	return &TextWriter{writer: bufio.NewWriter(w), specs: specs, formats: formats}
}

func (w *TextWriter) Write(loc geo.Location, values []float64) error {
	if err := checkLength(values, w.specs); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.writer, locationFormat, loc.Lon, loc.Lat, loc.Elev); err != nil {
		return err
	}
	for i, value := range values {
		var err error
		if w.formats[i] == "%4d" {
			_, err = fmt.Fprintf(w.writer, "%4d", int(value))
		} else {
			_, err = fmt.Fprintf(w.writer, w.formats[i], value)
		}
		if err != nil {
			return err
		}
	}
	_, err := w.writer.WriteString("\n")
	return err
}

func (w *TextWriter) Close() error {
	return w.writer.Flush()
}
