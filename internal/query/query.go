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

// Package query answers material property queries against velocity model
// databases.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cvmtools/cvmquery/internal/errorhandler"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
)

// Type selects how values are computed for a location.
type Type string

const (
	// MaxRes returns the values of the block containing the location.
	MaxRes Type = "maxres"
	// FixedRes averages values over a cube centered on the location.
	FixedRes Type = "fixedres"
)

const (
	DefaultCacheSize  = 32
	DefaultResolution = 200.0
)

// ParseType returns the query type with the given name.
func ParseType(name string) (Type, error) {
	switch Type(strings.ToLower(name)) {
	case MaxRes:
		return MaxRes, nil
	case FixedRes:
		return FixedRes, nil
	default:
		return "", fmt.Errorf("unknown query type '%s'", name)
	}
}

var ErrNotFound = errors.New("location not found")

var ErrNotOpen = errors.New("query session is not open")

// A Session queries one detailed model and an optional extended model.  A
// Session is not safe for concurrent use.
type Session struct {
	filename         string
	extendedFilename string
	valueNames       []string
	queryType        Type
	resolution       float64
	cacheSize        int
	logFilename      string
	logger           *slog.Logger

	handler  *errorhandler.Handler
	detailed *database
	extended *database
	values   []*model.ValueSpec
	noData   float64
}

func New(options ...Option) *Session {
	s := &Session{
		queryType:  MaxRes,
		resolution: DefaultResolution,
		cacheSize:  DefaultCacheSize,
		handler:    errorhandler.New(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

func (s *Session) ErrorHandler() *errorhandler.Handler {
	return s.handler
}

// Open opens the databases and prepares the session for queries.
func (s *Session) Open(ctx context.Context) error {
	if s.detailed != nil {
		return s.handler.Error("Query session is already open.")
	}
	if s.filename == "" {
		return s.handler.Error("Filename for velocity model database not set.")
	}
	if s.queryType != MaxRes && s.queryType != FixedRes {
		return s.handler.Error("Unknown query type '%s'.", s.queryType)
	}
	if s.queryType == FixedRes && s.resolution <= 0 {
		return s.handler.Error("Resolution for fixed resolution queries must be positive, got %g.", s.resolution)
	}
	if s.cacheSize <= 0 {
		return s.handler.Error("Cache size must be positive, got %d.", s.cacheSize)
	}

	if s.logFilename != "" {
		if err := s.handler.SetLogFilename(s.logFilename); err != nil {
			return err
		}
	} else if s.logger != nil {
		if err := s.handler.SetLogger(s.logger); err != nil {
			return s.handler.Error("Could not set logger: %s", err)
		}
	}

	detailed, err := openDatabase(ctx, s.filename, s.cacheSize)
	if err != nil {
		return s.handler.Error("Could not open velocity model database '%s': %s", s.filename, err)
	}

	names := s.valueNames
	if len(names) == 0 {
		names = detailed.metadata().ValueNames()
	}
	if err := detailed.selectValues(names); err != nil {
		_ = detailed.close()
		return s.handler.Error("Could not select values: %s", err)
	}

	var extended *database
	if s.extendedFilename != "" {
		extended, err = openDatabase(ctx, s.extendedFilename, s.cacheSize)
		if err != nil {
			_ = detailed.close()
			return s.handler.Error("Could not open extended velocity model database '%s': %s", s.extendedFilename, err)
		}
		if err := extended.selectValues(names); err != nil {
			_ = extended.close()
			_ = detailed.close()
			return s.handler.Error("Could not select values: %s", err)
		}
	}

	metadata := detailed.metadata()
	values := make([]*model.ValueSpec, len(detailed.indices))
	for i, index := range detailed.indices {
		values[i] = metadata.Values[index]
	}

	s.detailed = detailed
	s.extended = extended
	s.values = values
	s.noData = metadata.NoData

	s.handler.Log("opened velocity model", "filename", s.filename, "extended", s.extendedFilename, "query_type", string(s.queryType), "values", strings.Join(names, ","))
	return nil
}

// Values returns the specs of the values returned by Query, in order.
func (s *Session) Values() []*model.ValueSpec {
	return s.values
}

func (s *Session) NoData() float64 {
	return s.noData
}

func (s *Session) IsOpen() bool {
	return s.detailed != nil
}

// Query returns the values at a location.  When no model contains the
// location the returned values are all no-data, the error handler status is
// a warning and the error wraps ErrNotFound.
func (s *Session) Query(ctx context.Context, lon float64, lat float64, elev float64) ([]float64, error) {
	if s.detailed == nil {
		queriesTotal.WithLabelValues(outcomeError).Inc()
		return nil, fmt.Errorf("%w: %w", ErrNotOpen, s.handler.Error("Query session is not open."))
	}

	loc := geo.Location{Lon: lon, Lat: lat, Elev: elev}

	values, err := s.queryDatabase(ctx, s.detailed, loc)
	if err != nil {
		queriesTotal.WithLabelValues(outcomeError).Inc()
		return nil, s.handler.Error("Error querying location %s in database '%s': %s", loc, s.detailed.name, err)
	}
	if values != nil {
		queriesTotal.WithLabelValues(outcomeFound).Inc()
		return values, nil
	}

	if s.extended != nil {
		values, err = s.queryDatabase(ctx, s.extended, loc)
		if err != nil {
			queriesTotal.WithLabelValues(outcomeError).Inc()
			return nil, s.handler.Error("Error querying location %s in database '%s': %s", loc, s.extended.name, err)
		}
		if values != nil {
			queriesTotal.WithLabelValues(outcomeExtended).Inc()
			return values, nil
		}
	}

	queriesTotal.WithLabelValues(outcomeNotFound).Inc()
	values = make([]float64, len(s.values))
	for i := range values {
		values[i] = s.noData
	}
	return values, fmt.Errorf("%w: %w", ErrNotFound, s.handler.Warning("Could not find location %s in database.", loc))
}

func (s *Session) queryDatabase(ctx context.Context, db *database, loc geo.Location) ([]float64, error) {
	p, err := db.projector.Forward(loc)
	if err != nil {
		return nil, err
	}
	switch s.queryType {
	case FixedRes:
		return db.queryFixedRes(ctx, p, s.resolution)
	default:
		return db.queryMaxRes(ctx, p)
	}
}

// Close closes the databases and the error handler log.  It is safe to call
// more than once.
func (s *Session) Close() error {
	var errs []error
	if s.extended != nil {
		errs = append(errs, s.extended.close())
		s.extended = nil
	}
	if s.detailed != nil {
		errs = append(errs, s.detailed.close())
		s.detailed = nil
	}
	errs = append(errs, s.handler.Close())
	return errors.Join(errs...)
}
