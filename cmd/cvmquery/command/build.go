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

package command

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
)

type BuildCmd struct {
	Input          string            `arg:"" name:"input" help:"CSV file with a header row and one block per row.  Use - to read from stdin."`
	Output         string            `arg:"" name:"output" help:"Output velocity model database." type:"path"`
	Name           string            `help:"Model name."`
	Description    string            `help:"Model description."`
	CRS            string            `name:"crs" help:"Coordinate reference system of the block coordinates.  Blocks are in longitude, latitude and elevation if not provided."`
	NoData         float64           `name:"no-data" help:"Value returned for locations outside the model." default:"-999"`
	IntValues      []string          `name:"int-values" help:"Names of columns holding integer values.  FaultBlock and Zone are integers by default."`
	Units          map[string]string `help:"Units of value columns (for example --units Vp=m/s)."`
	Compression    string            `help:"Parquet compression to use.  Possible values: ${enum}." enum:"uncompressed, snappy, gzip, brotli, zstd, lz4" default:"zstd"`
	RowGroupLength int               `help:"Maximum number of blocks per row group."`
}

func (c *BuildCmd) Run() error {
	var input io.Reader
	if c.Input == "-" {
		input = os.Stdin
	} else {
		i, readErr := os.Open(c.Input)
		if readErr != nil {
			return NewCommandError("failed to read from %q: %w", c.Input, readErr)
		}
		defer i.Close()
		input = i
	}

	output, createErr := os.Create(c.Output)
	if createErr != nil {
		return NewCommandError("failed to open %q for writing: %w", c.Output, createErr)
	}
	defer output.Close()

	csvReader := csv.NewReader(input)
	csvReader.TrimLeadingSpace = true
	csvReader.ReuseRecord = true

	header, err := csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return NewCommandError("input has no header row")
		}
		return NewCommandError("trouble reading header: %w", err)
	}

	layout, err := c.columnLayout(header)
	if err != nil {
		return NewCommandError("%w", err)
	}

	writer, err := model.NewWriter(&model.WriterConfig{
		Writer: output,
		Metadata: &model.Metadata{
			Version:     model.Version,
			Name:        c.Name,
			Description: c.Description,
			CRS:         c.CRS,
			Values:      layout.values,
			NoData:      c.NoData,
		},
		Compression:    c.Compression,
		RowGroupLength: c.RowGroupLength,
	})
	if err != nil {
		return NewCommandError("trouble creating model writer: %w", err)
	}

	for {
		record, readErr := csvReader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return NewCommandError("trouble reading blocks: %w", readErr)
		}
		line, _ := csvReader.FieldPos(0)

		block, err := layout.block(record)
		if err != nil {
			return NewCommandError("line %d: %w", line, err)
		}
		if err := writer.Add(block); err != nil {
			return NewCommandError("line %d: %w", line, err)
		}
	}

	if err := writer.Close(); err != nil {
		return NewCommandError("trouble writing model: %w", err)
	}
	return nil
}

type columnLayout struct {
	box    [6]int
	values []*model.ValueSpec
	value  []int
}

// columnLayout maps header columns to block extents and values.  Every
// column that is not a box coordinate is a value.
func (c *BuildCmd) columnLayout(header []string) (*columnLayout, error) {
	layout := &columnLayout{}
	for i := range layout.box {
		layout.box[i] = -1
	}

	defaults := model.DefaultMetadata()
	for col, name := range header {
		name = strings.TrimSpace(name)
		if index := slices.Index(model.BoxColumns, strings.ToLower(name)); index >= 0 {
			if layout.box[index] >= 0 {
				return nil, fmt.Errorf("duplicate column %q", name)
			}
			layout.box[index] = col
			continue
		}

		spec := &model.ValueSpec{Name: name, Type: model.ValueTypeFloat}
		if index := defaults.ValueIndex(name); index >= 0 {
			*spec = *defaults.Values[index]
			spec.Name = name
		}
		for _, intName := range c.IntValues {
			if strings.EqualFold(intName, name) {
				spec.Type = model.ValueTypeInt
			}
		}
		if units, ok := c.Units[name]; ok {
			spec.Units = units
		}
		layout.values = append(layout.values, spec)
		layout.value = append(layout.value, col)
	}

	for i, col := range layout.box {
		if col < 0 {
			return nil, fmt.Errorf("missing required column %q", model.BoxColumns[i])
		}
	}
	if len(layout.values) == 0 {
		return nil, errors.New("expected at least one value column")
	}
	return layout, nil
}

func (l *columnLayout) block(record []string) (model.Block, error) {
	parse := func(col int) (float64, error) {
		if col >= len(record) {
			return 0, fmt.Errorf("expected at least %d fields, got %d", col+1, len(record))
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", record[col])
		}
		return value, nil
	}

	extent := make([]float64, len(l.box))
	for i, col := range l.box {
		value, err := parse(col)
		if err != nil {
			return model.Block{}, err
		}
		extent[i] = value
	}
	box, err := geo.NewBoxFromSlice(extent)
	if err != nil {
		return model.Block{}, err
	}

	values := make([]float64, len(l.value))
	for i, col := range l.value {
		value, err := parse(col)
		if err != nil {
			return model.Block{}, err
		}
		values[i] = value
	}
	return model.Block{Box: box, Values: values}, nil
}
