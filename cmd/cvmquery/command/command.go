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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/cvmtools/cvmquery/internal/config"
	"github.com/cvmtools/cvmquery/internal/storage"
)

type CLI struct {
	Config string `help:"Path to a YAML config file.  Defaults to cvmquery.yaml in the working directory or $HOME/.cvmquery." type:"path"`

	Query    QueryCmd    `cmd:"" default:"withargs" help:"Query a velocity model for the locations in an input file."`
	Build    BuildCmd    `cmd:"" help:"Build a velocity model database from a CSV file of blocks."`
	Info     InfoCmd     `cmd:"" help:"Describe a velocity model database."`
	Validate ValidateCmd `cmd:"" help:"Validate a velocity model database."`
	Serve    ServeCmd    `cmd:"" help:"Serve queries over HTTP."`
	Version  VersionCmd  `cmd:"" help:"Print the version of this program."`
}

const description = "Query seismic velocity models for material properties at geographic locations."

// CommandError is returned by commands for failures that are reported to the
// user without usage text.
type CommandError struct {
	err error
}

func NewCommandError(format string, a ...any) *CommandError {
	return &CommandError{err: fmt.Errorf(format, a...)}
}

func (e *CommandError) Error() string {
	return e.err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.err
}

// UsageError is returned by commands when the arguments are incomplete.  The
// usage text is printed with the error.
type UsageError struct {
	message string
}

func NewUsageError(format string, a ...any) *UsageError {
	return &UsageError{message: fmt.Sprintf(format, a...)}
}

func (e *UsageError) Error() string {
	return e.message
}

type exitCode int

// Main parses args, runs the selected command and returns the process exit
// code.  Usage and errors are written to stderr.
func Main(ctx context.Context, args []string, info *VersionInfo) (code int) {
	defer func() {
		if r := recover(); r != nil {
			exit, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(exit)
		}
	}()

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("cvmquery"),
		kong.Description(description),
		kong.Writers(os.Stderr, os.Stderr),
		kong.Exit(func(code int) { panic(exitCode(code)) }),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvmquery: error: %s\n", err)
		return 1
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvmquery: error: %s\n", err)
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) && parseErr.Context != nil {
			_ = parseErr.Context.PrintUsage(false)
		}
		return 1
	}

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cvmquery: error: %s\n", err)
		return 1
	}

	kongCtx.BindTo(ctx, (*context.Context)(nil))
	kongCtx.Bind(cfg, cfg.NewLogger(os.Stderr), info)
	if err := kongCtx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "cvmquery: error: %s\n", err)
		var usageErr *UsageError
		if errors.As(err, &usageErr) {
			_ = kongCtx.PrintUsage(false)
		}
		return 1
	}
	return 0
}

type readCloser interface {
	storage.ReaderAtSeeker
	io.Closer
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error {
	return nil
}

// readerFromInput opens a local path or URL.  With an empty input, stdin is
// read into memory.
func readerFromInput(ctx context.Context, input string) (readCloser, error) {
	if input == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("trouble reading from stdin: %w", err)
		}
		return nopCloser{bytes.NewReader(data)}, nil
	}
	return storage.NewReader(ctx, input)
}

func inputName(input string) string {
	if input == "" {
		return "<stdin>"
	}
	return input
}
