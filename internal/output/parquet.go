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
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/pqutil"
)

const (
	ColLon  = "lon"
	ColLat  = "lat"
	ColElev = "elev"

	// ValuesMetadataKey holds the JSON encoded value specs of a results file.
	ValuesMetadataKey = "cvm_values"
)

const defaultResultRowGroupLength = 64 * 1024

// ParquetWriter writes results as rows of lon, lat, elev and one column per
// value.
type ParquetWriter struct {
	specs             []*model.ValueSpec
	fileWriter        *pqarrow.FileWriter
	recordBuilder     *array.RecordBuilder
	maxRowGroupLength int64
	bufferedLength    int64
	closed            bool
}

func resultSchema(specs []*model.ValueSpec) (*arrow.Schema, error) {
	fields := []arrow.Field{
		{Name: ColLon, Type: arrow.PrimitiveTypes.Float64},
		{Name: ColLat, Type: arrow.PrimitiveTypes.Float64},
		{Name: ColElev, Type: arrow.PrimitiveTypes.Float64},
	}
	for _, spec := range specs {
		switch spec.Name {
		case ColLon, ColLat, ColElev:
			return nil, fmt.Errorf("value name %q is reserved", spec.Name)
		}
		dataType := arrow.DataType(arrow.PrimitiveTypes.Float64)
		if spec.IsInt() {
			dataType = arrow.PrimitiveTypes.Int32
		}
		fields = append(fields, arrow.Field{Name: spec.Name, Type: dataType})
	}
	return arrow.NewSchema(fields, nil), nil
}

func NewParquetWriter(w io.Writer, specs []*model.ValueSpec, compression string) (*ParquetWriter, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	schema, err := resultSchema(specs)
	if err != nil {
		return nil, err
	}

	options := []parquet.WriterProperty{parquet.WithMaxRowGroupLength(defaultResultRowGroupLength)}
	if compression != "" {
		codec, err := pqutil.GetCompression(compression)
		if err != nil {
			return nil, err
		}
		options = append(options, parquet.WithCompression(codec))
	}
	properties := parquet.NewWriterProperties(options...)

	fileWriter, err := pqarrow.NewFileWriter(schema, w, properties, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, err
	}

	return &ParquetWriter{
		specs:             specs,
		fileWriter:        fileWriter,
		recordBuilder:     array.NewRecordBuilder(memory.DefaultAllocator, schema),
		maxRowGroupLength: properties.MaxRowGroupLength(),
	}, nil
}

func (w *ParquetWriter) Write(loc geo.Location, values []float64) error {
	if err := checkLength(values, w.specs); err != nil {
		return err
	}

	w.recordBuilder.Field(0).(*array.Float64Builder).Append(loc.Lon)
	w.recordBuilder.Field(1).(*array.Float64Builder).Append(loc.Lat)
	w.recordBuilder.Field(2).(*array.Float64Builder).Append(loc.Elev)
	for i, value := range values {
		switch builder := w.recordBuilder.Field(3 + i).(type) {
		case *array.Float64Builder:
			builder.Append(value)
		case *array.Int32Builder:
			builder.Append(int32(value))
		}
	}

	w.bufferedLength += 1
	if w.bufferedLength >= w.maxRowGroupLength {
		return w.writeBuffered()
	}
	return nil
}

func (w *ParquetWriter) writeBuffered() error {
	record := w.recordBuilder.NewRecord()
	defer record.Release()
	if err := w.fileWriter.WriteBuffered(record); err != nil {
		return err
	}
	w.bufferedLength = 0
	return nil
}

func (w *ParquetWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.recordBuilder.Release()

	if w.bufferedLength > 0 {
		if err := w.writeBuffered(); err != nil {
			return err
		}
	}

	encoded, err := json.Marshal(w.specs)
	if err != nil {
		return err
	}
	if err := w.fileWriter.AppendKeyValueMetadata(ValuesMetadataKey, string(encoded)); err != nil {
		return fmt.Errorf("trouble appending %q metadata: %w", ValuesMetadataKey, err)
	}
	return w.fileWriter.Close()
}
