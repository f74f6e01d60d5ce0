// Package config loads streamstore configuration from YAML.
//
// A file is first checked against the embedded CUE schema (unknown keys,
// enum values, ranges, duration syntax) and then decoded over Default().
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/streamstore/internal/retry"
	"github.com/roach88/streamstore/internal/session"
	"github.com/roach88/streamstore/internal/sqlite"
)

//go:embed schema.cue
var schemaCUE string

// ErrInvalidConfig marks a configuration rejected by the schema or decoder.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full streamstore configuration.
type Config struct {
	Database Database `yaml:"database"`
	Retry    Retry    `yaml:"retry"`
	Log      Log      `yaml:"log"`
	Trace    Trace    `yaml:"trace"`
}

// Database selects and tunes the SQLite backend.
type Database struct {
	Path         string        `yaml:"path"`
	Driver       string        `yaml:"driver"`
	Schema       string        `yaml:"schema"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

// Retry tunes the deadlock retry policy. MaxRetries 0 retries forever.
type Retry struct {
	MaxRetries      uint64        `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Trace turns on span logging. Spans are written through the configured
// logger.
type Trace struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: Database{
			Path:         "streams.db",
			Driver:       sqlite.DriverMattn,
			Schema:       sqlite.DefaultSchema,
			MaxOpenConns: sqlite.DefaultMaxOpenConns,
			BusyTimeout:  sqlite.DefaultBusyTimeout,
		},
		Retry: Retry{
			InitialInterval: retry.DefaultInitialInterval,
			MaxInterval:     retry.DefaultMaxInterval,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse validates data against the schema and decodes it over Default().
// name is used in error messages.
func Parse(name string, data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := validate(name, data); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	return cfg, nil
}

func validate(name string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	file, err := cueyaml.Extract(name, data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, details(err))
	}

	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, details(err))
	}
	return nil
}

func details(err error) string {
	return strings.TrimSpace(cueerrors.Details(err, nil))
}

// SQLiteOptions translates the database section into sqlite.Open options.
func (c *Config) SQLiteOptions() []sqlite.Option {
	return []sqlite.Option{
		sqlite.WithDriver(c.Database.Driver),
		sqlite.WithSchema(c.Database.Schema),
		sqlite.WithMaxOpenConns(c.Database.MaxOpenConns),
		sqlite.WithBusyTimeout(c.Database.BusyTimeout),
	}
}

// RetryPolicy builds the retry policy for a backend classifier.
func (c *Config) RetryPolicy(classifier session.Classifier) retry.Policy {
	p := retry.New(classifier)
	p.MaxRetries = c.Retry.MaxRetries
	p.InitialInterval = c.Retry.InitialInterval
	p.MaxInterval = c.Retry.MaxInterval
	return p
}

// Logger builds a slog logger writing to w.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return nil, fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch c.Log.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
}
