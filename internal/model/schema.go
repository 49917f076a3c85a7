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
	"fmt"

	"github.com/apache/arrow/go/v16/arrow"
	"github.com/cvmtools/cvmquery/internal/geo"
)

const (
	ColXmin = "xmin"
	ColYmin = "ymin"
	ColZmin = "zmin"
	ColXmax = "xmax"
	ColYmax = "ymax"
	ColZmax = "zmax"
)

// BoxColumns lists the block extent columns in storage order.
var BoxColumns = []string{ColXmin, ColYmin, ColZmin, ColXmax, ColYmax, ColZmax}

func isBoxColumn(name string) bool {
	for _, col := range BoxColumns {
		if col == name {
			return true
		}
	}
	return false
}

// A Block is an axis-aligned box of the model with constant values.  Values
// follow the order of the model metadata.
type Block struct {
	Box    geo.Box
	Values []float64
}

// ArrowSchema returns the storage schema for a model with the given values.
func ArrowSchema(values []*ValueSpec) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(BoxColumns)+len(values))
	for _, name := range BoxColumns {
		fields = append(fields, arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64, Nullable: false})
	}

	seen := map[string]bool{}
	for _, value := range values {
		if value.Name == "" {
			return nil, fmt.Errorf("value names must not be empty")
		}
		if isBoxColumn(value.Name) {
			return nil, fmt.Errorf("value name %q is reserved", value.Name)
		}
		if seen[value.Name] {
			return nil, fmt.Errorf("duplicate value name %q", value.Name)
		}
		seen[value.Name] = true

		var dataType arrow.DataType
		switch value.Type {
		case ValueTypeFloat:
			dataType = arrow.PrimitiveTypes.Float64
		case ValueTypeInt:
			dataType = arrow.PrimitiveTypes.Int32
		default:
			return nil, fmt.Errorf("unsupported type %q for value %q", value.Type, value.Name)
		}
		fields = append(fields, arrow.Field{Name: value.Name, Type: dataType, Nullable: false})
	}
	return arrow.NewSchema(fields, nil), nil
}
