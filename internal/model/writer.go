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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/pqutil"
)

const defaultRowGroupLength = 4096

type WriterConfig struct {
	Writer         io.Writer
	Metadata       *Metadata
	Compression    string
	RowGroupLength int
}

// A Writer collects blocks and writes them as a model file on Close.  Blocks
// are stored in Z-order of their centers so that each row group covers a
// compact region.
type Writer struct {
	writer         io.Writer
	metadata       *Metadata
	arrowSchema    *arrow.Schema
	properties     *parquet.WriterProperties
	rowGroupLength int
	blocks         []Block
	stats          *geo.BoundsStats
	closed         bool
}

func NewWriter(config *WriterConfig) (*Writer, error) {
	if config.Writer == nil {
		return nil, errors.New("writer is required")
	}

	modelMetadata := config.Metadata
	if modelMetadata == nil {
		modelMetadata = DefaultMetadata()
	} else {
		modelMetadata = modelMetadata.Clone()
	}
	if modelMetadata.Version == "" {
		modelMetadata.Version = Version
	}
	if len(modelMetadata.Values) == 0 {
		return nil, errors.New("model must have at least one value")
	}

	arrowSchema, err := ArrowSchema(modelMetadata.Values)
	if err != nil {
		return nil, err
	}

	options := []parquet.WriterProperty{}
	if config.Compression != "" {
		codec, err := pqutil.GetCompression(config.Compression)
		if err != nil {
			return nil, err
		}
		options = append(options, parquet.WithCompression(codec))
	}

	rowGroupLength := config.RowGroupLength
	if rowGroupLength <= 0 {
		rowGroupLength = defaultRowGroupLength
	}
	options = append(options, parquet.WithMaxRowGroupLength(int64(rowGroupLength)))

	return &Writer{
		writer:         config.Writer,
		metadata:       modelMetadata,
		arrowSchema:    arrowSchema,
		properties:     parquet.NewWriterProperties(options...),
		rowGroupLength: rowGroupLength,
		stats:          geo.NewBoundsStats(false),
	}, nil
}

func (w *Writer) Metadata() *Metadata {
	return w.metadata
}

func (w *Writer) Add(block Block) error {
	if w.closed {
		return errors.New("writer is closed")
	}
	if len(block.Values) != len(w.metadata.Values) {
		return fmt.Errorf("expected %d values, got %d", len(w.metadata.Values), len(block.Values))
	}
	if block.Box.Degenerate() {
		return fmt.Errorf("block %v has no volume", block.Box.Slice())
	}
	w.blocks = append(w.blocks, block)
	w.stats.Add(block.Box)
	return nil
}

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if len(w.blocks) == 0 {
		return errors.New("no blocks to write")
	}

	bounds := w.stats.Bounds()
	w.metadata.Bounds = bounds.Slice()

	keys := make([]uint64, len(w.blocks))
	for i, block := range w.blocks {
		keys[i] = geo.MortonKey(block.Box.Center(), bounds)
	}
	sort.Sort(&byKey{blocks: w.blocks, keys: keys})

	fileWriter, err := pqarrow.NewFileWriter(w.arrowSchema, w.writer, w.properties, pqarrow.DefaultWriterProps())
	if err != nil {
		return err
	}

	for start := 0; start < len(w.blocks); start += w.rowGroupLength {
		end := min(start+w.rowGroupLength, len(w.blocks))
		record := w.buildRecord(w.blocks[start:end])
		writeErr := fileWriter.Write(record)
		record.Release()
		if writeErr != nil {
			return fmt.Errorf("trouble writing blocks: %w", writeErr)
		}
	}

	encodedMetadata, jsonErr := json.Marshal(w.metadata)
	if jsonErr != nil {
		return fmt.Errorf("trouble encoding %q metadata: %w", MetadataKey, jsonErr)
	}
	if err := fileWriter.AppendKeyValueMetadata(MetadataKey, string(encodedMetadata)); err != nil {
		return fmt.Errorf("trouble appending %q metadata: %w", MetadataKey, err)
	}
	return fileWriter.Close()
}

func (w *Writer) buildRecord(blocks []Block) arrow.Record {
	builder := array.NewRecordBuilder(memory.DefaultAllocator, w.arrowSchema)
	defer builder.Release()

	boxBuilders := make([]*array.Float64Builder, len(BoxColumns))
	for i := range BoxColumns {
		boxBuilders[i] = builder.Field(i).(*array.Float64Builder)
	}

	for _, block := range blocks {
		for i, value := range block.Box.Slice() {
			boxBuilders[i].Append(value)
		}
		for i, value := range block.Values {
			switch field := builder.Field(len(BoxColumns) + i).(type) {
			case *array.Float64Builder:
				field.Append(value)
			case *array.Int32Builder:
				field.Append(int32(value))
			}
		}
	}
	return builder.NewRecord()
}

type byKey struct {
	blocks []Block
	keys   []uint64
}

func (s *byKey) Len() int {
	return len(s.blocks)
}

func (s *byKey) Less(i, j int) bool {
	return s.keys[i] < s.keys[j]
}

func (s *byKey) Swap(i, j int) {
	s.blocks[i], s.blocks[j] = s.blocks[j], s.blocks[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}
