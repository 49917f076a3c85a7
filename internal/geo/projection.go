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
	"fmt"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/twpayne/go-proj/v10"
)

// SourceCRS is the coordinate reference system of query locations.
const SourceCRS = "EPSG:4326"

// A Projector converts query locations into model coordinates.
type Projector interface {
	Forward(loc Location) (Point, error)
	// SearchBox returns the model-coordinate box covering a cube with the
	// given edge length in meters centered on p.
	SearchBox(p Point, edge float64) Box
	Close()
}

// NewProjector returns a projector from geographic coordinates into crs.  An
// empty crs means the model is geographic, with x and y being longitude and
// latitude.
func NewProjector(crs string) (Projector, error) {
	if crs == "" || crs == SourceCRS {
		return geographic{}, nil
	}
	pj, err := proj.NewCRSToCRS(SourceCRS, crs, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create transformation to %s: %w", crs, err)
	}
	// lon/lat axis order in, easting/northing out
	normalized, err := pj.NormalizeForVisualization()
	pj.Destroy()
	if err != nil {
		return nil, fmt.Errorf("failed to normalize transformation to %s: %w", crs, err)
	}
	return &projected{pj: normalized}, nil
}

type geographic struct{}

func (geographic) Forward(loc Location) (Point, error) {
	return Point{X: loc.Lon, Y: loc.Lat, Z: loc.Elev}, nil
}

func (geographic) SearchBox(p Point, edge float64) Box {
	bound := orbgeo.NewBoundAroundPoint(orb.Point{p.X, p.Y}, edge/2)
	return Box{
		Xmin: bound.Min.X(),
		Ymin: bound.Min.Y(),
		Zmin: p.Z - edge/2,
		Xmax: bound.Max.X(),
		Ymax: bound.Max.Y(),
		Zmax: p.Z + edge/2,
	}
}

func (geographic) Close() {}

type projected struct {
	pj *proj.PJ
}

func (p *projected) Forward(loc Location) (Point, error) {
	coord, err := p.pj.Forward(proj.NewCoord(loc.Lon, loc.Lat, 0, 0))
	if err != nil {
		return Point{}, fmt.Errorf("failed to project %s: %w", loc, err)
	}
	return Point{X: coord.X(), Y: coord.Y(), Z: loc.Elev}, nil
}

func (p *projected) SearchBox(center Point, edge float64) Box {
	return CubeAround(center, edge)
}

func (p *projected) Close() {
	if p.pj != nil {
		p.pj.Destroy()
		p.pj = nil
	}
}

// ProjVersion returns the version of the PROJ library used for model
// coordinate transformations.
func ProjVersion() string {
	return fmt.Sprintf("%d.%d.%d", proj.VersionMajor, proj.VersionMinor, proj.VersionPatch)
}
