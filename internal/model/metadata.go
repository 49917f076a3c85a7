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
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v16/parquet/metadata"
	"github.com/cvmtools/cvmquery/internal/geo"
)

const (
	Version       = "1.0.0"
	MetadataKey   = "cvm"
	DefaultNoData = -999.0

	ValueTypeFloat = "float"
	ValueTypeInt   = "int"
)

// Names of the values stored in a Central California style velocity model.
const (
	ValueVp            = "Vp"
	ValueVs            = "Vs"
	ValueDensity       = "Density"
	ValueQp            = "Qp"
	ValueQs            = "Qs"
	ValueDepthFreeSurf = "DepthFreeSurf"
	ValueFaultBlock    = "FaultBlock"
	ValueZone          = "Zone"
)

type ValueSpec struct {
	Name  string `json:"name"`
	Units string `json:"units,omitempty"`
	Type  string `json:"type"`
}

func (v *ValueSpec) IsInt() bool {
	return v.Type == ValueTypeInt
}

// DefaultValues returns the value layout of the Central California model.
func DefaultValues() []*ValueSpec {
	return []*ValueSpec{
		{Name: ValueVp, Units: "m/s", Type: ValueTypeFloat},
		{Name: ValueVs, Units: "m/s", Type: ValueTypeFloat},
		{Name: ValueDensity, Units: "kg/m**3", Type: ValueTypeFloat},
		{Name: ValueQp, Type: ValueTypeFloat},
		{Name: ValueQs, Type: ValueTypeFloat},
		{Name: ValueDepthFreeSurf, Units: "m", Type: ValueTypeFloat},
		{Name: ValueFaultBlock, Type: ValueTypeInt},
		{Name: ValueZone, Type: ValueTypeInt},
	}
}

type Metadata struct {
	Version     string       `json:"version"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	CRS         string       `json:"crs,omitempty"`
	Values      []*ValueSpec `json:"values"`
	Bounds      []float64    `json:"bbox,omitempty"`
	NoData      float64      `json:"no_data"`
}

func DefaultMetadata() *Metadata {
	return &Metadata{
		Version: Version,
		Values:  DefaultValues(),
		NoData:  DefaultNoData,
	}
}

func (m *Metadata) Clone() *Metadata {
	clone := &Metadata{}
	*clone = *m
	clone.Values = make([]*ValueSpec, len(m.Values))
	for i, v := range m.Values {
		value := *v
		clone.Values[i] = &value
	}
	clone.Bounds = make([]float64, len(m.Bounds))
	copy(clone.Bounds, m.Bounds)
	return clone
}

// ValueIndex returns the position of the named value or -1.  Names are
// matched case-insensitively.
func (m *Metadata) ValueIndex(name string) int {
	for i, v := range m.Values {
		if strings.EqualFold(v.Name, name) {
			return i
		}
	}
	return -1
}

func (m *Metadata) ValueNames() []string {
	names := make([]string, len(m.Values))
	for i, v := range m.Values {
		names[i] = v.Name
	}
	return names
}

// Box returns the model bounds, or an empty box when the metadata has none.
func (m *Metadata) Box() geo.Box {
	box, err := geo.NewBoxFromSlice(m.Bounds)
	if err != nil {
		return geo.EmptyBox()
	}
	return box
}

var ErrNoMetadata = fmt.Errorf("missing %s metadata key", MetadataKey)
var ErrDuplicateMetadata = fmt.Errorf("found more than one %s metadata key", MetadataKey)

func GetMetadata(keyValueMetadata metadata.KeyValueMetadata) (*Metadata, error) {
	value, err := GetMetadataValue(keyValueMetadata)
	if err != nil {
		return nil, err
	}
	modelMetadata := &Metadata{}
	if jsonErr := json.Unmarshal([]byte(value), modelMetadata); jsonErr != nil {
		return nil, fmt.Errorf("unable to parse %s metadata: %w", MetadataKey, jsonErr)
	}
	return modelMetadata, nil
}

func GetMetadataValue(keyValueMetadata metadata.KeyValueMetadata) (string, error) {
	var value *string
	for _, kv := range keyValueMetadata {
		if kv.Key == MetadataKey {
			if value != nil {
				return "", ErrDuplicateMetadata
			}
			value = kv.Value
		}
	}
	if value == nil {
		return "", ErrNoMetadata
	}
	return *value, nil
}
