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

import "math"

const mortonBits = 21

// MortonKey returns the Z-order key of p within bounds.  Points outside
// bounds are clamped to its faces.
func MortonKey(p Point, bounds Box) uint64 {
	x := quantize(p.X, bounds.Xmin, bounds.Xmax)
	y := quantize(p.Y, bounds.Ymin, bounds.Ymax)
	z := quantize(p.Z, bounds.Zmin, bounds.Zmax)
	return spread(x) | spread(y)<<1 | spread(z)<<2
}

func quantize(value, lo, hi float64) uint64 {
	const cells = 1 << mortonBits
	if hi <= lo {
		return 0
	}
	scaled := (value - lo) / (hi - lo) * cells
	scaled = math.Max(0, math.Min(cells-1, math.Floor(scaled)))
	return uint64(scaled)
}

// spread inserts two zero bits between each of the low 21 bits of v.
func spread(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}
