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

package model

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"
	"github.com/apache/arrow/go/v16/parquet/schema"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/pqutil"
)

const (
	defaultReadBatchSize = 1024
)

type ReaderConfig struct {
	BatchSize int
	Reader    parquet.ReaderAtSeeker
	File      *file.Reader
}

// A Reader gives access to the blocks of a model file one row group at a time.
type Reader struct {
	fileReader    *file.Reader
	arrowReader   *pqarrow.FileReader
	metadata      *Metadata
	rowGroupBoxes []geo.Box
	bounds        geo.Box
}

func NewParquetFileReader(config *ReaderConfig) (*file.Reader, error) {
	fileReader := config.File
	if fileReader == nil {
		if config.Reader == nil {
			return nil, errors.New("config must include a File or Reader value")
		}
		fr, frErr := file.NewParquetReader(config.Reader)
		if frErr != nil {
			return nil, frErr
		}
		fileReader = fr
	}
	return fileReader, nil
}

func NewArrowFileReader(config *ReaderConfig, parquetReader *file.Reader) (*pqarrow.FileReader, error) {
	batchSize := config.BatchSize
	if batchSize == 0 {
		batchSize = defaultReadBatchSize
	}

	return pqarrow.NewFileReader(parquetReader, pqarrow.ArrowReadProperties{BatchSize: int64(batchSize)}, memory.DefaultAllocator)
}

func NewReader(config *ReaderConfig) (*Reader, error) {
	fileReader, err := NewParquetFileReader(config)
	if err != nil {
		return nil, fmt.Errorf("could not get ParquetFileReader: %w", err)
	}

	reader, err := newReader(config, fileReader)
	if err != nil {
		_ = fileReader.Close()
		return nil, err
	}
	return reader, nil
}

func newReader(config *ReaderConfig, fileReader *file.Reader) (*Reader, error) {
	modelMetadata, err := GetMetadata(fileReader.MetaData().KeyValueMetadata())
	if err != nil {
		return nil, fmt.Errorf("could not get model metadata: %w", err)
	}

	if err := CheckSchema(fileReader.MetaData().Schema, modelMetadata); err != nil {
		return nil, err
	}

	arrowReader, err := NewArrowFileReader(config, fileReader)
	if err != nil {
		return nil, fmt.Errorf("could not get ArrowFileReader: %w", err)
	}

	boxes, err := RowGroupBoxes(fileReader.MetaData())
	if err != nil {
		return nil, fmt.Errorf("could not index row groups: %w", err)
	}

	bounds := geo.EmptyBox()
	for _, box := range boxes {
		bounds = bounds.Extend(box)
	}

	return &Reader{
		fileReader:    fileReader,
		arrowReader:   arrowReader,
		metadata:      modelMetadata,
		rowGroupBoxes: boxes,
		bounds:        bounds,
	}, nil
}

// CheckSchema verifies that the file has a double column for each box
// coordinate and a column of the declared type for each value.
func CheckSchema(sc *schema.Schema, modelMetadata *Metadata) error {
	for _, name := range BoxColumns {
		node, ok := pqutil.LookupPrimitiveNode(sc, name)
		if !ok {
			return fmt.Errorf("missing required column %q", name)
		}
		if node.PhysicalType() != parquet.Types.Double {
			return fmt.Errorf("expected column %q to be double, got %s", name, node.PhysicalType())
		}
	}
	for _, value := range modelMetadata.Values {
		node, ok := pqutil.LookupPrimitiveNode(sc, value.Name)
		if !ok {
			return fmt.Errorf("missing column for value %q", value.Name)
		}
		expected := parquet.Types.Double
		if value.IsInt() {
			expected = parquet.Types.Int32
		}
		if node.PhysicalType() != expected {
			return fmt.Errorf("expected column %q to be %s, got %s", value.Name, expected, node.PhysicalType())
		}
	}
	return nil
}

func (r *Reader) Metadata() *Metadata {
	return r.metadata
}

func (r *Reader) Schema() *schema.Schema {
	return r.fileReader.MetaData().Schema
}

func (r *Reader) FileReader() *file.Reader {
	return r.fileReader
}

func (r *Reader) NumRows() int64 {
	return r.fileReader.NumRows()
}

func (r *Reader) NumRowGroups() int {
	return len(r.rowGroupBoxes)
}

// RowGroupBox returns the extent of the blocks in a row group.
func (r *Reader) RowGroupBox(rowGroup int) geo.Box {
	return r.rowGroupBoxes[rowGroup]
}

// Bounds returns the extent of all blocks as found in the row group statistics.
func (r *Reader) Bounds() geo.Box {
	return r.bounds
}

// RowGroupsContaining returns the row groups whose extent contains p.
func (r *Reader) RowGroupsContaining(p geo.Point) []int {
	if !r.bounds.Contains(p) {
		return []int{}
	}
	return rowGroupsWhere(r.rowGroupBoxes, func(box geo.Box) bool {
		return box.Contains(p)
	})
}

// RowGroupsIntersecting returns the row groups whose extent intersects box.
func (r *Reader) RowGroupsIntersecting(box geo.Box) []int {
	return rowGroupsWhere(r.rowGroupBoxes, func(rowGroupBox geo.Box) bool {
		return rowGroupBox.Intersects(box)
	})
}

// ReadBlocks decodes all blocks of a row group.
func (r *Reader) ReadBlocks(ctx context.Context, rowGroup int) ([]Block, error) {
	if rowGroup < 0 || rowGroup >= r.NumRowGroups() {
		return nil, fmt.Errorf("row group %d out of range [0, %d)", rowGroup, r.NumRowGroups())
	}

	recordReader, err := r.arrowReader.GetRecordReader(ctx, nil, []int{rowGroup})
	if err != nil {
		return nil, fmt.Errorf("trouble reading row group %d: %w", rowGroup, err)
	}
	defer recordReader.Release()

	numRows := r.fileReader.MetaData().RowGroup(rowGroup).NumRows()
	blocks := make([]Block, 0, numRows)
	for {
		record, readErr := recordReader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("trouble reading row group %d: %w", rowGroup, readErr)
		}
		if record == nil {
			break
		}
		decoded, err := r.decode(record)
		if err != nil {
			return nil, fmt.Errorf("trouble decoding row group %d: %w", rowGroup, err)
		}
		blocks = append(blocks, decoded...)
	}
	if int64(len(blocks)) != numRows {
		return nil, fmt.Errorf("trouble reading row group %d: read %d of %d blocks", rowGroup, len(blocks), numRows)
	}
	return blocks, nil
}

// Blocks calls fn for every block in the file, in storage order.
func (r *Reader) Blocks(ctx context.Context, fn func(rowGroup int, block Block) error) error {
	for rowGroup := 0; rowGroup < r.NumRowGroups(); rowGroup += 1 {
		blocks, err := r.ReadBlocks(ctx, rowGroup)
		if err != nil {
			return err
		}
		for _, block := range blocks {
			if err := fn(rowGroup, block); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reader) decode(record arrow.Record) ([]Block, error) {
	recordSchema := record.Schema()
	column := func(name string) (arrow.Array, error) {
		indices := recordSchema.FieldIndices(name)
		if len(indices) != 1 {
			return nil, fmt.Errorf("expected exactly one %q column, found %d", name, len(indices))
		}
		return record.Column(indices[0]), nil
	}

	boxColumns := make([]*array.Float64, len(BoxColumns))
	for i, name := range BoxColumns {
		col, err := column(name)
		if err != nil {
			return nil, err
		}
		floats, ok := col.(*array.Float64)
		if !ok {
			return nil, fmt.Errorf("expected a float64 array for %q, got %s", name, col.DataType())
		}
		boxColumns[i] = floats
	}

	valueColumns := make([]func(int) float64, len(r.metadata.Values))
	for i, value := range r.metadata.Values {
		col, err := column(value.Name)
		if err != nil {
			return nil, err
		}
		switch typed := col.(type) {
		case *array.Float64:
			valueColumns[i] = typed.Value
		case *array.Int32:
			valueColumns[i] = func(row int) float64 { return float64(typed.Value(row)) }
		default:
			return nil, fmt.Errorf("unsupported array type %s for %q", col.DataType(), value.Name)
		}
	}

	numRows := int(record.NumRows())
	blocks := make([]Block, numRows)
	for row := 0; row < numRows; row += 1 {
		values := make([]float64, len(valueColumns))
		for i, get := range valueColumns {
			values[i] = get(row)
		}
		blocks[row] = Block{
			Box: geo.Box{
				Xmin: boxColumns[0].Value(row),
				Ymin: boxColumns[1].Value(row),
				Zmin: boxColumns[2].Value(row),
				Xmax: boxColumns[3].Value(row),
				Ymax: boxColumns[4].Value(row),
				Zmax: boxColumns[5].Value(row),
			},
			Values: values,
		}
	}
	return blocks, nil
}

func (r *Reader) Close() error {
	return r.fileReader.Close()
}
