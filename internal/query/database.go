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

package query

import (
	"context"
	"fmt"

	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
)

// A database is one opened model with its projection and block cache.
type database struct {
	name      string
	reader    *model.Reader
	projector geo.Projector
	indices   []int
	cache     *lru.Cache[int, []model.Block]
}

func openDatabase(ctx context.Context, name string, cacheSize int) (*database, error) {
	source, err := storage.NewReader(ctx, name)
	if err != nil {
		return nil, err
	}

	reader, err := model.NewReader(&model.ReaderConfig{Reader: source})
	if err != nil {
		_ = source.Close()
		return nil, err
	}

	projector, err := geo.NewProjector(reader.Metadata().CRS)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	cache, err := lru.NewWithEvict(cacheSize, func(int, []model.Block) {
		blockCacheEvictions.Inc()
	})
	if err != nil {
		projector.Close()
		_ = reader.Close()
		return nil, err
	}

	return &database{
		name:      name,
		reader:    reader,
		projector: projector,
		cache:     cache,
	}, nil
}

func (d *database) metadata() *model.Metadata {
	return d.reader.Metadata()
}

// selectValues maps the requested value names onto the model's values.
func (d *database) selectValues(names []string) error {
	metadata := d.metadata()
	indices := make([]int, len(names))
	for i, name := range names {
		index := metadata.ValueIndex(name)
		if index < 0 {
			return fmt.Errorf("value '%s' not found in database '%s'", name, d.name)
		}
		indices[i] = index
	}
	d.indices = indices
	return nil
}

func (d *database) blocks(ctx context.Context, rowGroup int) ([]model.Block, error) {
	if blocks, ok := d.cache.Get(rowGroup); ok {
		blockCacheHits.Inc()
		return blocks, nil
	}
	blockCacheMisses.Inc()

	blocks, err := d.reader.ReadBlocks(ctx, rowGroup)
	if err != nil {
		return nil, err
	}
	d.cache.Add(rowGroup, blocks)
	return blocks, nil
}

// containing returns the block containing p.  Blocks own their lower faces;
// a point on the upper face of the model falls back to the closed test.
func (d *database) containing(ctx context.Context, p geo.Point) (*model.Block, error) {
	var fallback *model.Block
	for _, rowGroup := range d.reader.RowGroupsContaining(p) {
		blocks, err := d.blocks(ctx, rowGroup)
		if err != nil {
			return nil, err
		}
		for i := range blocks {
			block := &blocks[i]
			if block.Box.ContainsHalfOpen(p) {
				return block, nil
			}
			if fallback == nil && block.Box.Contains(p) {
				fallback = block
			}
		}
	}
	return fallback, nil
}

func (d *database) pick(block *model.Block) []float64 {
	values := make([]float64, len(d.indices))
	for i, index := range d.indices {
		values[i] = block.Values[index]
	}
	return values
}

// queryMaxRes returns the values of the block containing p, or nil.
func (d *database) queryMaxRes(ctx context.Context, p geo.Point) ([]float64, error) {
	block, err := d.containing(ctx, p)
	if err != nil || block == nil {
		return nil, err
	}
	return d.pick(block), nil
}

// queryFixedRes averages float values over the blocks intersecting a cube
// with the given edge length centered on p, weighted by overlapping volume.
// No-data values do not contribute.  Integer values are those of the block
// containing p.
func (d *database) queryFixedRes(ctx context.Context, p geo.Point, resolution float64) ([]float64, error) {
	block, err := d.containing(ctx, p)
	if err != nil || block == nil {
		return nil, err
	}
	values := d.pick(block)

	metadata := d.metadata()
	search := d.projector.SearchBox(p, resolution)
	sums := make([]float64, len(d.indices))
	weights := make([]float64, len(d.indices))
	for _, rowGroup := range d.reader.RowGroupsIntersecting(search) {
		blocks, err := d.blocks(ctx, rowGroup)
		if err != nil {
			return nil, err
		}
		for _, candidate := range blocks {
			overlap, ok := candidate.Box.Intersection(search)
			if !ok {
				continue
			}
			volume := overlap.Volume()
			for i, index := range d.indices {
				value := candidate.Values[index]
				if value == metadata.NoData {
					continue
				}
				sums[i] += volume * value
				weights[i] += volume
			}
		}
	}

	for i, index := range d.indices {
		if metadata.Values[index].IsInt() || weights[i] == 0 {
			continue
		}
		values[i] = sums[i] / weights[i]
	}
	return values, nil
}

func (d *database) close() error {
	d.projector.Close()
	return d.reader.Close()
}
