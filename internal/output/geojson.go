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

package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
)

const elevationProperty = "elevation"

var (
	featureCollectionPrefix = []byte(`{"type":"FeatureCollection","features":[`)
	arraySeparator          = []byte(",")
	featureCollectionSuffix = []byte("]}\n")
)

// GeoJSONWriter streams a feature collection with one point feature per
// location.  Elevation and values are feature properties.
type GeoJSONWriter struct {
	writer  *bufio.Writer
	specs   []*model.ValueSpec
	writing bool
	closed  bool
}

func NewGeoJSONWriter(w io.Writer, specs []*model.ValueSpec) *GeoJSONWriter {
	return &GeoJSONWriter{writer: bufio.NewWriter(w), specs: specs}
}

func (w *GeoJSONWriter) Write(loc geo.Location, values []float64) error {
	if err := checkLength(values, w.specs); err != nil {
		return err
	}

	separator := arraySeparator
	if !w.writing {
		separator = featureCollectionPrefix
		w.writing = true
	}
	if _, err := w.writer.Write(separator); err != nil {
		return err
	}

	feature := orbjson.NewFeature(orb.Point{loc.Lon, loc.Lat})
	feature.Properties[elevationProperty] = loc.Elev
	for i, spec := range w.specs {
		if spec.IsInt() {
			feature.Properties[spec.Name] = int64(values[i])
			continue
		}
		feature.Properties[spec.Name] = values[i]
	}

	data, err := json.Marshal(feature)
	if err != nil {
		return err
	}
	_, err = w.writer.Write(data)
	return err
}

// Close ends the feature collection.  It is safe to call more than once.
func (w *GeoJSONWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if !w.writing {
		if _, err := w.writer.Write(featureCollectionPrefix); err != nil {
			return err
		}
	}
	if _, err := w.writer.Write(featureCollectionSuffix); err != nil {
		return err
	}
	return w.writer.Flush()
}
