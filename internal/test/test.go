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

package test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/stretchr/testify/require"
)

// Grid describes a regular grid of blocks for generated models.
type Grid struct {
	Bounds geo.Box
	Nx     int
	Ny     int
	Nz     int
}

// GridBlocks returns the blocks of a regular grid with values computed from
// each block's cell indices.
func GridBlocks(grid Grid, values func(i, j, k int) []float64) []model.Block {
	dx := (grid.Bounds.Xmax - grid.Bounds.Xmin) / float64(grid.Nx)
	dy := (grid.Bounds.Ymax - grid.Bounds.Ymin) / float64(grid.Ny)
	dz := (grid.Bounds.Zmax - grid.Bounds.Zmin) / float64(grid.Nz)

	blocks := make([]model.Block, 0, grid.Nx*grid.Ny*grid.Nz)
	for k := 0; k < grid.Nz; k += 1 {
		for j := 0; j < grid.Ny; j += 1 {
			for i := 0; i < grid.Nx; i += 1 {
				box := geo.Box{
					Xmin: grid.Bounds.Xmin + float64(i)*dx,
					Ymin: grid.Bounds.Ymin + float64(j)*dy,
					Zmin: grid.Bounds.Zmin + float64(k)*dz,
					Xmax: grid.Bounds.Xmin + float64(i+1)*dx,
					Ymax: grid.Bounds.Ymin + float64(j+1)*dy,
					Zmax: grid.Bounds.Zmin + float64(k+1)*dz,
				}
				blocks = append(blocks, model.Block{Box: box, Values: values(i, j, k)})
			}
		}
	}
	return blocks
}

// CellValues returns the default eight model values for a grid cell.  Each
// value encodes the cell indices so tests can tell blocks apart.
func CellValues(i, j, k int) []float64 {
	base := float64(1000*k + 100*j + 10*i)
	return []float64{
		base + 1, // Vp
		base + 2, // Vs
		base + 3, // Density
		base + 4, // Qp
		base + 5, // Qs
		base + 6, // DepthFreeSurf
		float64(i + 1),
		float64(j + 1),
	}
}

// ModelBytes writes blocks as a model file.
func ModelBytes(t *testing.T, metadata *model.Metadata, blocks []model.Block, rowGroupLength int) []byte {
	output := &bytes.Buffer{}
	writer, err := model.NewWriter(&model.WriterConfig{
		Writer:         output,
		Metadata:       metadata,
		RowGroupLength: rowGroupLength,
	})
	require.NoError(t, err)

	for _, block := range blocks {
		require.NoError(t, writer.Add(block))
	}
	require.NoError(t, writer.Close())
	return output.Bytes()
}

// ModelFile writes blocks as a model file in a temporary directory and
// returns its path.
func ModelFile(t *testing.T, metadata *model.Metadata, blocks []model.Block, rowGroupLength int) string {
	name := filepath.Join(t.TempDir(), "model.parquet")
	require.NoError(t, os.WriteFile(name, ModelBytes(t, metadata, blocks, rowGroupLength), 0o644))
	return name
}

// GridModelFile writes a 4x4x2 grid model covering lon [-122, -121],
// lat [37, 38] and elevation [-2000, 0].
func GridModelFile(t *testing.T, rowGroupLength int) string {
	grid := Grid{
		Bounds: geo.Box{Xmin: -122, Ymin: 37, Zmin: -2000, Xmax: -121, Ymax: 38, Zmax: 0},
		Nx:     4,
		Ny:     4,
		Nz:     2,
	}
	metadata := model.DefaultMetadata()
	metadata.Name = "test grid"
	return ModelFile(t, metadata, GridBlocks(grid, CellValues), rowGroupLength)
}

// WriteFile writes data to a named file in a temporary directory and returns its path.
func WriteFile(t *testing.T, name string, data string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

// ParquetWithoutMetadata writes a single row of doubles with the given
// column names and no model metadata.
func ParquetWithoutMetadata(t *testing.T, columns ...string) []byte {
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64}
	}
	schema := arrow.NewSchema(fields, nil)

	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()
	for i := range columns {
		builder.Field(i).(*array.Float64Builder).Append(float64(i))
	}
	rec := builder.NewRecord()
	defer rec.Release()

	output := &bytes.Buffer{}
	writer, err := pqarrow.NewFileWriter(schema, output, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)

	require.NoError(t, writer.Write(rec))
	require.NoError(t, writer.Close())

	return output.Bytes()
}

func Dedent(block string) string {
	newline := "\n"
	whitespace := " \t"

	lines := strings.Split(block, newline)
	prefixLen := -1

	if len(lines) == 0 {
		return block
	}

	if len(strings.TrimLeft(lines[0], whitespace)) == 0 {
		lines = lines[1:]
	}
	if len(strings.TrimLeft(lines[len(lines)-1], whitespace)) == 0 {
		lines = lines[:len(lines)-1]
	}

	dedentedLines := []string{}
	for _, line := range lines {
		if prefixLen < 0 {
			trimmedLine := strings.TrimLeft(line, whitespace)
			prefixLen = len(line) - len(trimmedLine)
			dedentedLines = append(dedentedLines, trimmedLine)
			continue
		}
		if prefixLen > len(line)-1 {
			dedentedLines = append(dedentedLines, strings.TrimLeft(line, whitespace))
			continue
		}
		dedentedLines = append(dedentedLines, line[prefixLen:])
	}
	return strings.Join(dedentedLines, newline) + newline
}

func Tab2Space(str string) string {
	return strings.ReplaceAll(str, "\t", "  ")
}
