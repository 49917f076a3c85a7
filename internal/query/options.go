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

import "log/slog"

// An Option sets an option on a Session.
type Option func(*Session)

// WithFilename sets the detailed model database.
func WithFilename(name string) Option {
	return func(s *Session) {
		s.filename = name
	}
}

// WithExtendedFilename sets the model consulted for locations outside the
// detailed model.
func WithExtendedFilename(name string) Option {
	return func(s *Session) {
		s.extendedFilename = name
	}
}

// WithValues selects the values returned by Query, by name.  By default all
// values of the detailed model are returned.
func WithValues(names ...string) Option {
	return func(s *Session) {
		s.valueNames = names
	}
}

func WithQueryType(queryType Type) Option {
	return func(s *Session) {
		s.queryType = queryType
	}
}

// WithResolution sets the edge length in meters of the averaging cube used
// by fixed resolution queries.
func WithResolution(resolution float64) Option {
	return func(s *Session) {
		s.resolution = resolution
	}
}

// WithCacheSize sets the number of decoded row groups kept per model.
func WithCacheSize(cacheSize int) Option {
	return func(s *Session) {
		s.cacheSize = cacheSize
	}
}

func WithLogFilename(name string) Option {
	return func(s *Session) {
		s.logFilename = name
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}
