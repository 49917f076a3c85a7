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
	"context"
	"log/slog"

	"github.com/cvmtools/cvmquery/internal/config"
	"github.com/cvmtools/cvmquery/internal/query"
	"github.com/cvmtools/cvmquery/internal/server"
)

type ServeCmd struct {
	Database  string   `short:"d" name:"database" help:"Path or URL of the velocity model database." placeholder:"dbfile"`
	Extended  string   `short:"e" name:"extended" help:"Path or URL of an extended model consulted outside the detailed model."`
	Values    []string `help:"Names of the values to query.  Defaults to all values in the model."`
	QueryType string   `name:"query-type" help:"Query type.  Possible values: maxres, fixedres."`
	Port      int      `help:"Port to listen on."`
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if c.Database == "" {
		c.Database = cfg.Query.Database
	}
	if c.Database == "" {
		return NewUsageError("missing flags: --database=dbfile")
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
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	queryType, err := query.ParseType(c.QueryType)
	if err != nil {
		return NewCommandError("%w", err)
	}

	options := []query.Option{
		query.WithFilename(c.Database),
		query.WithValues(c.Values...),
		query.WithQueryType(queryType),
		query.WithResolution(cfg.Query.Resolution),
		query.WithCacheSize(cfg.Query.CacheSize),
		query.WithLogger(logger),
	}
	if c.Extended != "" {
		options = append(options, query.WithExtendedFilename(c.Extended))
	}
	if cfg.Query.LogFile != "" {
		options = append(options, query.WithLogFilename(cfg.Query.LogFile))
	}

	session := query.New(options...)
	defer session.Close()

	if err := session.Open(ctx); err != nil {
		return NewCommandError("%w", err)
	}

	s := server.New(cfg, logger, session)
	if err := s.Run(ctx, cfg.ServerAddr()); err != nil {
		return NewCommandError("server failed: %w", err)
	}
	return nil
}
