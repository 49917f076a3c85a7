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
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/apache/arrow/go/v16/parquet/metadata"
	"github.com/cvmtools/cvmquery/internal/geo"
)

// Return min/max statistics for a double column in a given RowGroup.
func GetColumnMinMax(fileMetadata *metadata.FileMetaData, rowGroup int, columnPath string) (min float64, max float64, err error) {
	rowGroupMetadata := fileMetadata.RowGroup(rowGroup)
	if rowGroupMetadata == nil {
		return 0, 0, fmt.Errorf("metadata for RowGroup %v is nil", rowGroup)
	}

	rowGroupSchema := rowGroupMetadata.Schema
	if rowGroupSchema == nil {
		return 0, 0, fmt.Errorf("schema for RowGroup %v is nil", rowGroup)
	}

	columnIdx := rowGroupSchema.ColumnIndexByName(columnPath)
	if columnIdx == -1 {
		return 0, 0, fmt.Errorf("column %v not found", columnPath)
	}

	columnMetadata, err := rowGroupMetadata.ColumnChunk(columnIdx)
	if err != nil {
		return 0, 0, fmt.Errorf("couldn't get ColumnChunkMetadata for RowGroup %v/Column %v: %w", rowGroup, columnPath, err)
	}
	columnStats, err := columnMetadata.Statistics()
	if err != nil {
		return 0, 0, fmt.Errorf("couldn't get ColumnChunkMetadata stats: %w", err)
	}
	if columnStats == nil || !columnStats.HasMinMax() {
		return 0, 0, fmt.Errorf("no min/max statistics available for RowGroup %v/Column %v", rowGroup, columnPath)
	}

	encodedMin := columnStats.EncodeMin()
	encodedMax := columnStats.EncodeMax()
	if len(encodedMin) != 8 || len(encodedMax) != 8 {
		return 0, 0, fmt.Errorf("expected double statistics for column %v", columnPath)
	}
	min = math.Float64frombits(binary.LittleEndian.Uint64(encodedMin))
	max = math.Float64frombits(binary.LittleEndian.Uint64(encodedMax))
	return min, max, nil
}

// RowGroupBox returns the extent of all blocks in a row group based on the
// row group min/max stats of the box columns.
func RowGroupBox(fileMetadata *metadata.FileMetaData, rowGroup int) (geo.Box, error) {
	box := geo.Box{}
	lower := []*float64{&box.Xmin, &box.Ymin, &box.Zmin}
	upper := []*float64{&box.Xmax, &box.Ymax, &box.Zmax}

	for i, name := range BoxColumns[:3] {
		min, _, err := GetColumnMinMax(fileMetadata, rowGroup, name)
		if err != nil {
			return box, fmt.Errorf("could not get min/max statistics for %v: %w", name, err)
		}
		*lower[i] = min
	}
	for i, name := range BoxColumns[3:] {
		_, max, err := GetColumnMinMax(fileMetadata, rowGroup, name)
		if err != nil {
			return box, fmt.Errorf("could not get min/max statistics for %v: %w", name, err)
		}
		*upper[i] = max
	}
	return box, nil
}

type rowGroupBoxResult struct {
	Index int
	Box   geo.Box
	Error error
}

// RowGroupBoxes computes the extent of every row group.  Row groups are
// processed concurrently.
func RowGroupBoxes(fileMetadata *metadata.FileMetaData) ([]geo.Box, error) {
	numRowGroups := len(fileMetadata.RowGroups)
	boxes := make([]geo.Box, numRowGroups)

	queue := make(chan *rowGroupBoxResult)
	for i := 0; i < numRowGroups; i += 1 {
		go func(i int) {
			result := &rowGroupBoxResult{Index: i}
			result.Box, result.Error = RowGroupBox(fileMetadata, i)
			queue <- result
		}(i)
	}

	var firstErr error
	for i := 0; i < numRowGroups; i += 1 {
		res := <-queue
		if res.Error != nil {
			if firstErr == nil {
				firstErr = res.Error
			}
			continue
		}
		boxes[res.Index] = res.Box
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return boxes, nil
}

// rowGroupsWhere returns the sorted indices of boxes matching the predicate.
func rowGroupsWhere(boxes []geo.Box, predicate func(geo.Box) bool) []int {
	indices := []int{}
	for i, box := range boxes {
		if predicate(box) {
			indices = append(indices, i)
		}
	}
	slices.Sort(indices)
	return indices
}
