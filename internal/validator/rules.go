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

package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/pqutil"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

type MetadataMap map[string]any

type FileInfo struct {
	File     *file.Reader
	Metadata *model.Metadata
}

type RuleData interface {
	*file.Reader | MetadataMap | *FileInfo
}

type Rule interface {
	Title() string
	Validate() error
}

type errFatal string

var ErrFatal = errFatal("fatal error")

func (e errFatal) Error() string {
	return string(e)
}

func (e errFatal) Is(target error) bool {
	_, ok := target.(errFatal)
	return ok
}

func fatal(format string, a ...any) errFatal {
	return errFatal(fmt.Sprintf(format, a...))
}

type GenericRule[T RuleData] struct {
	title    string
	value    T
	validate func(T) error
}

var _ Rule = (*GenericRule[*file.Reader])(nil)

func (r *GenericRule[T]) Title() string {
	return r.title
}

func (r *GenericRule[T]) Init(value T) {
	r.value = value
}

func (r *GenericRule[T]) Validate() error {
	return r.validate(r.value)
}

// BlockRule checks every block of a model.  The first error is kept.
type BlockRule struct {
	title string
	value func(info *FileInfo, rowGroupBox geo.Box, block model.Block) error
	info  *FileInfo
	err   error
}

var _ Rule = (*BlockRule)(nil)

func (r *BlockRule) Title() string {
	return r.title
}

func (r *BlockRule) Init(info *FileInfo) {
	r.info = info
	r.err = nil
}

func (r *BlockRule) Value(rowGroupBox geo.Box, block model.Block) error {
	if r.err == nil {
		r.err = r.value(r.info, rowGroupBox, block)
	}
	return r.err
}

func (r *BlockRule) Validate() error {
	return r.err
}

func asJSON(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("<unable to encode as JSON: %s>", err)
	}
	return string(data)
}

func RequiredModelKey() Rule {
	return &GenericRule[*file.Reader]{
		title: fmt.Sprintf("file must include a %q metadata key", model.MetadataKey),
		validate: func(file *file.Reader) error {
			kv := file.MetaData().KeyValueMetadata()
			if kv.FindValue(model.MetadataKey) == nil {
				return fatal("missing %q metadata key", model.MetadataKey)
			}
			return nil
		},
	}
}

func RequiredMetadataType() Rule {
	return &GenericRule[*file.Reader]{
		title: "metadata must be a JSON object",
		validate: func(file *file.Reader) error {
			value, err := model.GetMetadataValue(file.MetaData().KeyValueMetadata())
			if err != nil {
				return fatal("%s", err)
			}

			metadataMap := map[string]any{}
			if err := json.Unmarshal([]byte(value), &metadataMap); err != nil {
				return fatal("failed to parse file metadata as a JSON object")
			}
			return nil
		},
	}
}

func simplifiedValidationMessage(err *jsonschema.ValidationError) string {
	leaf := err
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "input"
	}
	return fmt.Sprintf("%s is invalid: %s", location, leaf.Message)
}

func MetadataSchema() Rule {
	return &GenericRule[MetadataMap]{
		title: "metadata must match the model metadata schema",
		validate: func(metadata MetadataMap) error {
			schema, err := compileMetadataSchema()
			if err != nil {
				return fatal("failed to compile metadata schema: %s", err)
			}
			err = schema.Validate(map[string]any(metadata))
			if err == nil {
				return nil
			}
			validationErr, ok := err.(*jsonschema.ValidationError)
			if !ok {
				return fatal("%s", err)
			}
			return fatal("%s", simplifiedValidationMessage(validationErr))
		},
	}
}

func RequiredVersion() Rule {
	return &GenericRule[MetadataMap]{
		title: `metadata must include a supported "version" string`,
		validate: func(metadata MetadataMap) error {
			value, ok := metadata["version"]
			if !ok {
				return errors.New(`missing "version" in metadata`)
			}
			version, ok := value.(string)
			if !ok {
				return fmt.Errorf(`expected "version" to be a string, got %s`, asJSON(value))
			}
			major, _, _ := strings.Cut(version, ".")
			expected, _, _ := strings.Cut(model.Version, ".")
			if major != expected {
				return fmt.Errorf(`unsupported version %q, expected %s.x`, version, expected)
			}
			return nil
		},
	}
}

func RequiredValues() Rule {
	return &GenericRule[MetadataMap]{
		title: `metadata must include a non-empty "values" list with unique names`,
		validate: func(metadata MetadataMap) error {
			values, ok := metadata["values"].([]any)
			if !ok || len(values) == 0 {
				return fatal(`expected "values" to be a non-empty list, got %s`, asJSON(metadata["values"]))
			}
			seen := map[string]bool{}
			for _, value := range values {
				spec, ok := value.(map[string]any)
				if !ok {
					return fatal(`expected value to be an object, got %s`, asJSON(value))
				}
				name, _ := spec["name"].(string)
				key := strings.ToLower(name)
				if seen[key] {
					return fatal("duplicate value name %q", name)
				}
				seen[key] = true
			}
			return nil
		},
	}
}

func OptionalBbox() Rule {
	return &GenericRule[MetadataMap]{
		title: `optional "bbox" must be an array of 6 numbers with minimums before maximums`,
		validate: func(metadata MetadataMap) error {
			value, ok := metadata["bbox"]
			if !ok {
				return nil
			}
			bbox, ok := value.([]any)
			if !ok || len(bbox) != 6 {
				return fmt.Errorf(`expected "bbox" to be a list of 6 numbers, got %s`, asJSON(value))
			}
			numbers := make([]float64, len(bbox))
			for i, item := range bbox {
				number, ok := item.(float64)
				if !ok {
					return fmt.Errorf(`expected "bbox" to be a list of numbers, got %s`, asJSON(bbox))
				}
				numbers[i] = number
			}
			box, _ := geo.NewBoxFromSlice(numbers)
			if box.IsEmpty() {
				return fmt.Errorf(`expected "bbox" minimums to be less than maximums, got %s`, asJSON(bbox))
			}
			return nil
		},
	}
}

func OptionalCRS() Rule {
	return &GenericRule[*FileInfo]{
		title: `optional "crs" must be a coordinate reference system known to PROJ`,
		validate: func(info *FileInfo) error {
			projector, err := geo.NewProjector(info.Metadata.CRS)
			if err != nil {
				return err
			}
			projector.Close()
			return nil
		},
	}
}

func RequiredBoxColumns() Rule {
	return &GenericRule[*FileInfo]{
		title: "box columns must be stored as required doubles",
		validate: func(info *FileInfo) error {
			schema := info.File.MetaData().Schema
			for _, name := range model.BoxColumns {
				node, ok := pqutil.LookupPrimitiveNode(schema, name)
				if !ok {
					return fatal("missing box column %q", name)
				}
				if node.PhysicalType() != parquet.Types.Double {
					return fatal("unexpected type for column %q, got %s", name, node.PhysicalType())
				}
				if node.RepetitionType() != parquet.Repetitions.Required {
					return fatal("column %q must be required", name)
				}
			}
			return nil
		},
	}
}

func RequiredValueColumns() Rule {
	return &GenericRule[*FileInfo]{
		title: "each value must have a column of the declared type",
		validate: func(info *FileInfo) error {
			if err := model.CheckSchema(info.File.MetaData().Schema, info.Metadata); err != nil {
				return fatal("%s", err)
			}
			return nil
		},
	}
}

func RowGroupStatistics() Rule {
	return &GenericRule[*FileInfo]{
		title: "row groups must have min/max statistics for the box columns",
		validate: func(info *FileInfo) error {
			if _, err := model.RowGroupBoxes(info.File.MetaData()); err != nil {
				return fatal("%s", err)
			}
			return nil
		},
	}
}

func BlockVolume() Rule {
	return &BlockRule{
		title: "all blocks must have a positive volume",
		value: func(info *FileInfo, rowGroupBox geo.Box, block model.Block) error {
			if block.Box.Degenerate() {
				return fmt.Errorf("block %s has no volume", asJSON(block.Box.Slice()))
			}
			return nil
		},
	}
}

func BlockBounds() Rule {
	return &BlockRule{
		title: `all blocks must fall within the "bbox" metadata (if present)`,
		value: func(info *FileInfo, rowGroupBox geo.Box, block model.Block) error {
			if len(info.Metadata.Bounds) == 0 {
				return nil
			}
			bounds := info.Metadata.Box()
			if !bounds.ContainsBox(block.Box) {
				return fmt.Errorf("block %s extends outside of the bbox %s", asJSON(block.Box.Slice()), asJSON(info.Metadata.Bounds))
			}
			return nil
		},
	}
}

func BlockRowGroupBounds() Rule {
	return &BlockRule{
		title: "all blocks must fall within their row group statistics",
		value: func(info *FileInfo, rowGroupBox geo.Box, block model.Block) error {
			if !rowGroupBox.ContainsBox(block.Box) {
				return fatal("block %s extends outside of its row group statistics %s", asJSON(block.Box.Slice()), asJSON(rowGroupBox.Slice()))
			}
			return nil
		},
	}
}

func FiniteValues() Rule {
	return &BlockRule{
		title: "all values must be finite numbers",
		value: func(info *FileInfo, rowGroupBox geo.Box, block model.Block) error {
			for i, value := range block.Values {
				if math.IsNaN(value) || math.IsInf(value, 0) {
					return fmt.Errorf("block %s has a non-finite %q value", asJSON(block.Box.Slice()), info.Metadata.Values[i].Name)
				}
			}
			return nil
		},
	}
}
