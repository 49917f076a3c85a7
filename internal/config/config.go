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

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables that override settings,
// for example CVMQUERY_QUERY_CACHE_SIZE.
const EnvPrefix = "CVMQUERY"

// Config holds settings shared by all commands.  Command line flags take
// precedence over these values.
type Config struct {
	Query  QueryConfig  `mapstructure:"query"`
	Output OutputConfig `mapstructure:"output"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type QueryConfig struct {
	Database   string   `mapstructure:"database"`
	Extended   string   `mapstructure:"extended"`
	Values     []string `mapstructure:"values"`
	Type       string   `mapstructure:"type"`
	Resolution float64  `mapstructure:"resolution"`
	CacheSize  int      `mapstructure:"cache_size"`
	LogFile    string   `mapstructure:"log_file"`
}

type OutputConfig struct {
	Format      string `mapstructure:"format"`
	Compression string `mapstructure:"compression"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	GinMode      string   `mapstructure:"gin_mode"` // debug, release, test
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("query.database", "")
	v.SetDefault("query.extended", "")
	v.SetDefault("query.values", []string{})
	v.SetDefault("query.type", "maxres")
	v.SetDefault("query.resolution", 200.0)
	v.SetDefault("query.cache_size", 32)
	v.SetDefault("query.log_file", "")
	v.SetDefault("output.format", "text")
	v.SetDefault("output.compression", "zstd")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.gin_mode", "release")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, an optional config file and
// environment variables.  When configFile is empty, a cvmquery.yaml in the
// working directory or in $HOME/.cvmquery is used if present.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("cvmquery")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cvmquery")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ServerAddr returns the server address in the form ":port".
func (c *Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(c.Log.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(c.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
