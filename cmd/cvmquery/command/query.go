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

package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/cvmtools/cvmquery/internal/config"
	"github.com/cvmtools/cvmquery/internal/errorhandler"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/output"
	"github.com/cvmtools/cvmquery/internal/query"
)

type QueryCmd struct {
	Input       string   `short:"i" required:"" name:"input" help:"File with one longitude, latitude and elevation triple per location." type:"path" placeholder:"fileIn"`
	Output      string   `short:"o" required:"" name:"output" help:"File for the queried values." type:"path" placeholder:"fileOut"`
	Database    string   `short:"d" name:"database" help:"Path or URL of the velocity model database." placeholder:"dbfile"`
	Log         string   `short:"l" name:"log" help:"File for query warnings." type:"path" placeholder:"logfile"`
	Extended    string   `short:"e" name:"extended" help:"Path or URL of an extended model consulted outside the detailed model."`
	Values      []string `help:"Names of the values to query.  Defaults to all values in the model."`
	QueryType   string   `name:"query-type" help:"Query type.  Possible values: maxres, fixedres."`
	Resolution  float64  `help:"Edge length in meters of the averaging cube for fixedres queries."`
	CacheSize   int      `name:"cache-size" help:"Number of decoded row groups to keep in memory."`
	Format      string   `help:"Output format.  Possible values: text, geojson, parquet."`
	Compression string   `help:"Compression for parquet output.  Possible values: uncompressed, snappy, gzip, brotli, zstd, lz4."`
}

// resolve fills unset flags from the config.
func (c *QueryCmd) resolve(cfg *config.Config) {
	if c.Database == "" {
		c.Database = cfg.Query.Database
	}
	if c.Extended == "" {
		c.Extended = cfg.Query.Extended
	}
	if len(c.Values) == 0 {
		c.Values = cfg.Query.Values
	}
	if c.QueryType == "" {
		c.QueryType = cfg.Query.Type
	}
	if c.Resolution == 0 {
		c.Resolution = cfg.Query.Resolution
	}
	if c.CacheSize == 0 {
		c.CacheSize = cfg.Query.CacheSize
	}
	if c.Log == "" {
		c.Log = cfg.Query.LogFile
	}
	if c.Format == "" {
		c.Format = cfg.Output.Format
	}
	if c.Compression == "" {
		c.Compression = cfg.Output.Compression
	}
}

func (c *QueryCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	c.resolve(cfg)
	if c.Database == "" {
		return NewUsageError("missing flags: --database=dbfile")
	}

	options := []query.Option{
		query.WithFilename(c.Database),
		query.WithValues(c.Values...),
		query.WithLogFilename(c.Log),
	}
	if c.Extended != "" {
		options = append(options, query.WithExtendedFilename(c.Extended))
	}
	if c.QueryType != "" {
		queryType, err := query.ParseType(c.QueryType)
		if err != nil {
			return NewCommandError("%w", err)
		}
		options = append(options, query.WithQueryType(queryType))
	}
	if c.Resolution != 0 {
		options = append(options, query.WithResolution(c.Resolution))
	}
	if c.CacheSize != 0 {
		options = append(options, query.WithCacheSize(c.CacheSize))
	}

	session := query.New(options...)
	defer session.Close()

	// the output is only truncated once the model is known to be readable
	if err := session.Open(ctx); err != nil {
		return NewCommandError("%w", err)
	}

	input, err := os.Open(c.Input)
	if err != nil {
		return NewCommandError("could not open input file '%s'", c.Input)
	}
	defer input.Close()

	outputFile, err := os.Create(c.Output)
	if err != nil {
		return NewCommandError("could not open output file '%s'", c.Output)
	}
	defer outputFile.Close()

	writer, err := output.NewWriter(&output.Config{
		Format:      c.Format,
		Writer:      outputFile,
		Values:      session.Values(),
		Compression: c.Compression,
	})
	if err != nil {
		return NewCommandError("%w", err)
	}
	defer writer.Close()

	count, warnings, err := c.queryAll(ctx, session, input, writer)
	if err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return NewCommandError("trouble writing output: %w", err)
	}
	if err := session.Close(); err != nil {
		return NewCommandError("trouble closing velocity model: %w", err)
	}
	logger.Debug("queried locations", "count", count, "warnings", warnings, "output", c.Output)
	return nil
}

// queryAll queries every location in input.  Locations that cannot be
// found are reported on stderr and written with no-data values.
func (c *QueryCmd) queryAll(ctx context.Context, session *query.Session, input io.Reader, writer output.Writer) (count int, warnings int, err error) {
	handler := session.ErrorHandler()
	locations := newLocationScanner(input)
	for locations.Scan() {
		loc := locations.Location()
		values, queryErr := session.Query(ctx, loc.Lon, loc.Lat, loc.Elev)
		if queryErr != nil {
			if errorhandler.IsFatal(queryErr) {
				message := handler.Message()
				if message == "" {
					message = queryErr.Error()
				}
				return count, warnings, NewCommandError("%s", message)
			}
			fmt.Fprintln(os.Stderr, handler.Message())
			handler.ResetStatus()
			warnings += 1
		}
		if err := writer.Write(loc, values); err != nil {
			return count, warnings, NewCommandError("trouble writing location %s: %w", loc, err)
		}
		count += 1
	}
	if err := locations.Err(); err != nil {
		return count, warnings, NewCommandError("trouble reading input file '%s': %w", c.Input, err)
	}
	return count, warnings, nil
}

var errIncompleteLocation = errors.New("expected longitude, latitude and elevation")

// locationScanner reads whitespace separated longitude, latitude and
// elevation triples.
type locationScanner struct {
	scanner  *bufio.Scanner
	location geo.Location
	count    int
	err      error
}

func newLocationScanner(r io.Reader) *locationScanner {
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	return &locationScanner{scanner: scanner}
}

func (s *locationScanner) Scan() bool {
	if s.err != nil {
		return false
	}

	var coords [3]float64
	for i := range coords {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.err = err
			} else if i > 0 {
				s.err = fmt.Errorf("location %d: %w", s.count+1, errIncompleteLocation)
			}
			return false
		}
		value, err := strconv.ParseFloat(s.scanner.Text(), 64)
		if err != nil {
			s.err = fmt.Errorf("location %d: invalid number %q", s.count+1, s.scanner.Text())
			return false
		}
		coords[i] = value
	}

	s.count += 1
	s.location = geo.Location{Lon: coords[0], Lat: coords[1], Elev: coords[2]}
	return true
}

func (s *locationScanner) Location() geo.Location {
	return s.location
}

func (s *locationScanner) Err() error {
	return s.err
}
