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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/apache/arrow/go/v16/parquet/schema"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/pqutil"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

type InfoCmd struct {
	Input     string `arg:"" optional:"" name:"input" help:"Path or URL for a velocity model database.  If not provided, input is read from stdin."`
	Format    string `help:"Report format.  Possible values: ${enum}." enum:"text, json" default:"text"`
	Unpretty  bool   `help:"No newlines or indentation in the JSON output."`
	RowGroups bool   `name:"row-groups" help:"List the extent of each row group."`
	Bbox      string `help:"Only list row groups intersecting the provided box (in xmin,ymin,zmin,xmax,ymax,zmax format)."`
	Schema    bool   `help:"Print the Parquet schema."`
}

const (
	ColName        = "Column"
	ColType        = "Type"
	ColUnits       = "Units"
	ColAnnotation  = "Annotation"
	ColCompression = "Compression"
	ColRowGroup    = "Row Group"
	ColRows        = "Rows"
	ColExtent      = "Extent"
)

type ModelInfo struct {
	Schema       *InfoSchema     `json:"schema"`
	Metadata     *model.Metadata `json:"metadata"`
	NumRows      int64           `json:"rows"`
	NumRowGroups int             `json:"rowGroups"`
	Bounds       []float64       `json:"bounds"`
	Groups       []*RowGroupInfo `json:"groups,omitempty"`
}

type RowGroupInfo struct {
	Index   int       `json:"index"`
	NumRows int64     `json:"rows"`
	Extent  []float64 `json:"extent"`
}

type InfoSchema struct {
	Name        string        `json:"name,omitempty"`
	Type        string        `json:"type,omitempty"`
	Units       string        `json:"units,omitempty"`
	Annotation  string        `json:"annotation,omitempty"`
	Compression string        `json:"compression,omitempty"`
	Fields      []*InfoSchema `json:"fields,omitempty"`
}

func (c *InfoCmd) Run(ctx context.Context) error {
	filter, err := geo.NewBoxFromString(c.Bbox)
	if err != nil {
		return NewCommandError("%w", err)
	}

	input, inputErr := readerFromInput(ctx, c.Input)
	if inputErr != nil {
		return NewCommandError("trouble getting a reader from %q: %w", c.Input, inputErr)
	}
	defer input.Close()

	reader, err := model.NewReader(&model.ReaderConfig{Reader: input})
	if err != nil {
		return NewCommandError("failed to read %s as a velocity model: %w", inputName(c.Input), err)
	}
	defer reader.Close()

	info := &ModelInfo{
		Schema:       buildSchema(reader.FileReader(), reader.Metadata()),
		Metadata:     reader.Metadata(),
		NumRows:      reader.NumRows(),
		NumRowGroups: reader.NumRowGroups(),
		Bounds:       reader.Bounds().Slice(),
	}

	if c.RowGroups || filter != nil {
		rowGroups := make([]int, reader.NumRowGroups())
		for i := range rowGroups {
			rowGroups[i] = i
		}
		if filter != nil {
			rowGroups = reader.RowGroupsIntersecting(*filter)
		}
		fileMetadata := reader.FileReader().MetaData()
		info.Groups = make([]*RowGroupInfo, len(rowGroups))
		for i, rowGroup := range rowGroups {
			info.Groups[i] = &RowGroupInfo{
				Index:   rowGroup,
				NumRows: fileMetadata.RowGroup(rowGroup).NumRows(),
				Extent:  reader.RowGroupBox(rowGroup).Slice(),
			}
		}
	}

	if c.Format == "json" {
		return c.formatJSON(info)
	}
	if err := c.formatText(info); err != nil {
		return err
	}
	if c.Schema {
		fmt.Print(pqutil.ParquetSchemaString(reader.Schema()))
	}
	return nil
}

func (c *InfoCmd) formatText(info *ModelInfo) error {
	metadata := info.Metadata

	header := table.Row{ColName, ColType, ColUnits, ColAnnotation, ColCompression}

	out := os.Stdout
	tbl := table.NewWriter()
	if term.IsTerminal(int(out.Fd())) {
		width, _, err := term.GetSize(int(out.Fd()))
		if err == nil {
			tbl.SetAllowedRowLength(width)
		}
	}

	tbl.AppendHeader(header)
	for _, field := range info.Schema.Fields {
		name := field.Name
		if metadata.ValueIndex(name) >= 0 {
			name = text.Bold.Sprint(name)
		}
		tbl.AppendRow(table.Row{name, field.Type, field.Units, field.Annotation, field.Compression})
	}

	modelName := metadata.Name
	if modelName == "" {
		modelName = "unnamed"
	}
	crs := metadata.CRS
	if crs == "" {
		crs = "geographic"
	}
	tbl.AppendFooter(makeFooter("Model", modelName, header), table.RowConfig{AutoMerge: true, AutoMergeAlign: text.AlignLeft})
	tbl.AppendFooter(makeFooter("Version", metadata.Version, header), table.RowConfig{AutoMerge: true, AutoMergeAlign: text.AlignLeft})
	tbl.AppendFooter(makeFooter("CRS", crs, header), table.RowConfig{AutoMerge: true, AutoMergeAlign: text.AlignLeft})
	tbl.AppendFooter(makeFooter("Bounds", formatFloats(info.Bounds), header), table.RowConfig{AutoMerge: true, AutoMergeAlign: text.AlignLeft})
	tbl.AppendFooter(makeFooter("No Data", formatFloats([]float64{metadata.NoData}), header), table.RowConfig{AutoMerge: true, AutoMergeAlign: text.AlignLeft})
	tbl.AppendFooter(makeFooter("Rows", info.NumRows, header), table.RowConfig{AutoMerge: true})
	tbl.AppendFooter(makeFooter("Row Groups", info.NumRowGroups, header), table.RowConfig{AutoMerge: true})

	tbl.SetStyle(table.StyleRounded)
	tbl.SetOutputMirror(out)
	tbl.Render()

	if len(info.Groups) == 0 {
		return nil
	}

	groups := table.NewWriter()
	groups.AppendHeader(table.Row{ColRowGroup, ColRows, ColExtent})
	for _, group := range info.Groups {
		groups.AppendRow(table.Row{group.Index, group.NumRows, formatFloats(group.Extent)})
	}
	groups.SetStyle(table.StyleRounded)
	groups.SetOutputMirror(out)
	groups.Render()

	return nil
}

func makeFooter(key string, value any, header table.Row) table.Row {
	row := table.Row{key, value}
	for i := len(row); i < len(header); i += 1 {
		row = append(row, value)
	}
	return row
}

func formatFloats(values []float64) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if len(strs) == 1 {
		return strs[0]
	}
	return fmt.Sprintf("[%s]", strings.Join(strs, ", "))
}

func (c *InfoCmd) formatJSON(info *ModelInfo) error {
	encoder := json.NewEncoder(os.Stdout)
	if !c.Unpretty {
		encoder.SetIndent("", "  ")
		encoder.SetEscapeHTML(false)
	}
	if err := encoder.Encode(info); err != nil {
		return fmt.Errorf("failed to encode model info: %w", err)
	}

	return nil
}

func getCompression(fileReader *file.Reader, node schema.Node) string {
	if fileReader.NumRowGroups() == 0 {
		return "unknown"
	}
	rowGroupReader := fileReader.RowGroup(0)
	colIndex := fileReader.MetaData().Schema.ColumnIndexByName(node.Path())
	if colIndex < 0 {
		return "unknown"
	}
	col, err := rowGroupReader.MetaData().ColumnChunk(colIndex)
	if err != nil {
		return "unknown"
	}
	return pqutil.CompressionName(col.Compression())
}

func buildSchema(fileReader *file.Reader, metadata *model.Metadata) *InfoSchema {
	root := fileReader.MetaData().Schema.Root()
	info := &InfoSchema{Fields: make([]*InfoSchema, 0, root.NumFields())}
	for i := 0; i < root.NumFields(); i += 1 {
		node := root.Field(i)
		field := &InfoSchema{
			Name:        node.Name(),
			Annotation:  strings.ToLower(pqutil.Annotation(node)),
			Compression: getCompression(fileReader, node),
		}
		if leaf, ok := node.(*schema.PrimitiveNode); ok {
			field.Type = pqutil.TypeName(leaf)
		} else {
			field.Type = "group"
		}
		if index := metadata.ValueIndex(node.Name()); index >= 0 {
			field.Units = metadata.Values[index].Units
		}
		info.Fields = append(info.Fields, field)
	}
	return info
}
