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

package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// Location is a geographic query location.  Elevation is in meters above sea level.
type Location struct {
	Lon  float64
	Lat  float64
	Elev float64
}

func (l Location) String() string {
	return fmt.Sprintf("(%g, %g, %g)", l.Lon, l.Lat, l.Elev)
}

// Point is a location in model coordinates.
type Point struct {
	X float64
	Y float64
	Z float64
}

type Box struct {
	Xmin float64
	Ymin float64
	Zmin float64
	Xmax float64
	Ymax float64
	Zmax float64
}

// EmptyBox returns a box that contains nothing and grows with Extend.
func EmptyBox() Box {
	return Box{
		Xmin: math.MaxFloat64,
		Ymin: math.MaxFloat64,
		Zmin: math.MaxFloat64,
		Xmax: -math.MaxFloat64,
		Ymax: -math.MaxFloat64,
		Zmax: -math.MaxFloat64,
	}
}

// CubeAround returns the cube with the given edge length centered on p.
func CubeAround(p Point, edge float64) Box {
	half := edge / 2
	return Box{
		Xmin: p.X - half,
		Ymin: p.Y - half,
		Zmin: p.Z - half,
		Xmax: p.X + half,
		Ymax: p.Y + half,
		Zmax: p.Z + half,
	}
}

func (b Box) IsEmpty() bool {
	return b.Xmin > b.Xmax || b.Ymin > b.Ymax || b.Zmin > b.Zmax
}

// Degenerate reports whether the box has no volume.
func (b Box) Degenerate() bool {
	return !(b.Xmax > b.Xmin && b.Ymax > b.Ymin && b.Zmax > b.Zmin)
}

// Contains checks whether p lies inside the box or on its boundary.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Xmin && p.X <= b.Xmax &&
		p.Y >= b.Ymin && p.Y <= b.Ymax &&
		p.Z >= b.Zmin && p.Z <= b.Zmax
}

// ContainsHalfOpen checks whether p lies in [min, max) along every axis, so
// that a point on a face shared by two neighboring boxes belongs to only one.
func (b Box) ContainsHalfOpen(p Point) bool {
	return p.X >= b.Xmin && p.X < b.Xmax &&
		p.Y >= b.Ymin && p.Y < b.Ymax &&
		p.Z >= b.Zmin && p.Z < b.Zmax
}

// ContainsBox checks whether other lies entirely within b.
func (b Box) ContainsBox(other Box) bool {
	return other.Xmin >= b.Xmin && other.Xmax <= b.Xmax &&
		other.Ymin >= b.Ymin && other.Ymax <= b.Ymax &&
		other.Zmin >= b.Zmin && other.Zmax <= b.Zmax
}

// Checks whether the box overlaps with another axis-aligned box.  Touching boxes intersect.
func (b Box) Intersects(other Box) bool {
	if b.Xmax < other.Xmin || other.Xmax < b.Xmin {
		return false
	}
	if b.Ymax < other.Ymin || other.Ymax < b.Ymin {
		return false
	}
	if b.Zmax < other.Zmin || other.Zmax < b.Zmin {
		return false
	}
	return true
}

// Intersection returns the overlap of the two boxes.  The second return
// value is false when the overlap has no volume.
func (b Box) Intersection(other Box) (Box, bool) {
	overlap := Box{
		Xmin: math.Max(b.Xmin, other.Xmin),
		Ymin: math.Max(b.Ymin, other.Ymin),
		Zmin: math.Max(b.Zmin, other.Zmin),
		Xmax: math.Min(b.Xmax, other.Xmax),
		Ymax: math.Min(b.Ymax, other.Ymax),
		Zmax: math.Min(b.Zmax, other.Zmax),
	}
	if overlap.Degenerate() {
		return overlap, false
	}
	return overlap, true
}

func (b Box) Volume() float64 {
	if b.Degenerate() {
		return 0
	}
	return (b.Xmax - b.Xmin) * (b.Ymax - b.Ymin) * (b.Zmax - b.Zmin)
}

func (b Box) Center() Point {
	return Point{
		X: (b.Xmin + b.Xmax) / 2,
		Y: (b.Ymin + b.Ymax) / 2,
		Z: (b.Zmin + b.Zmax) / 2,
	}
}

// Extend returns the smallest box containing both b and other.
func (b Box) Extend(other Box) Box {
	return Box{
		Xmin: math.Min(b.Xmin, other.Xmin),
		Ymin: math.Min(b.Ymin, other.Ymin),
		Zmin: math.Min(b.Zmin, other.Zmin),
		Xmax: math.Max(b.Xmax, other.Xmax),
		Ymax: math.Max(b.Ymax, other.Ymax),
		Zmax: math.Max(b.Zmax, other.Zmax),
	}
}

// Bound returns the horizontal extent of the box.
func (b Box) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Xmin, b.Ymin},
		Max: orb.Point{b.Xmax, b.Ymax},
	}
}

// Slice returns the box as xmin, ymin, zmin, xmax, ymax, zmax.
func (b Box) Slice() []float64 {
	return []float64{b.Xmin, b.Ymin, b.Zmin, b.Xmax, b.Ymax, b.Zmax}
}

func NewBoxFromSlice(values []float64) (Box, error) {
	if len(values) != 6 {
		return Box{}, fmt.Errorf("expected 6 values for a box, got %d", len(values))
	}
	return Box{
		Xmin: values[0],
		Ymin: values[1],
		Zmin: values[2],
		Xmax: values[3],
		Ymax: values[4],
		Zmax: values[5],
	}, nil
}

// Create a new Box from a string of comma-separated values in format xmin,ymin,zmin,xmax,ymax,zmax.
// An empty string yields a nil box.
func NewBoxFromString(bounds string) (*Box, error) {
	if bounds == "" {
		return nil, nil
	}

	parts := strings.Split(bounds, ",")
	if len(parts) != 6 {
		return nil, errors.New("please provide 6 comma-separated values (xmin,ymin,zmin,xmax,ymax,zmax) as a box")
	}

	names := []string{"xmin", "ymin", "zmin", "xmax", "ymax", "zmax"}
	values := make([]float64, len(parts))
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("trouble parsing %s input as float64: %w", names[i], err)
		}
		values[i] = value
	}

	box, err := NewBoxFromSlice(values)
	if err != nil {
		return nil, err
	}
	if box.IsEmpty() {
		return nil, fmt.Errorf("box minimum exceeds maximum: %s", bounds)
	}
	return &box, nil
}

// BoundsStats accumulates the extent of a set of boxes.
type BoundsStats struct {
	mutex *sync.RWMutex
	box   Box
	count int64
}

func NewBoundsStats(concurrent bool) *BoundsStats {
	var mutex *sync.RWMutex
	if concurrent {
		mutex = &sync.RWMutex{}
	}
	return &BoundsStats{
		mutex: mutex,
		box:   EmptyBox(),
	}
}

func (s *BoundsStats) writeLock() {
	if s.mutex == nil {
		return
	}
	s.mutex.Lock()
}

func (s *BoundsStats) writeUnlock() {
	if s.mutex == nil {
		return
	}
	s.mutex.Unlock()
}

func (s *BoundsStats) readLock() {
	if s.mutex == nil {
		return
	}
	s.mutex.RLock()
}

func (s *BoundsStats) readUnlock() {
	if s.mutex == nil {
		return
	}
	s.mutex.RUnlock()
}

func (s *BoundsStats) Add(box Box) {
	s.writeLock()
	s.box = s.box.Extend(box)
	s.count += 1
	s.writeUnlock()
}

func (s *BoundsStats) Bounds() Box {
	s.readLock()
	box := s.box
	s.readUnlock()
	return box
}

func (s *BoundsStats) Count() int64 {
	s.readLock()
	count := s.count
	s.readUnlock()
	return count
}
