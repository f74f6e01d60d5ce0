package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/streamstore/internal/config"
	"github.com/roach88/streamstore/internal/sqlite"
	"github.com/roach88/streamstore/internal/streams"
	"github.com/roach88/streamstore/internal/streamstore"
	"github.com/roach88/streamstore/internal/telemetry"
)

// storeEnv is an opened store and everything a command needs to drive it.
type storeEnv struct {
	Config             *config.Config
	DB                 *sqlite.DB
	Store              streamstore.StreamStore
	PayloadConcurrency int
	Logger             *slog.Logger

	// tracer is set when span logging is enabled.
	tracer *sdktrace.TracerProvider
}

// Close flushes spans and releases the database, logging rather than
// returning failures.
func (e *storeEnv) Close() {
	if e.tracer != nil {
		if err := e.tracer.Shutdown(context.Background()); err != nil {
			e.Logger.Error("error shutting down tracer", "error", err)
		}
	}
	if err := e.DB.Close(); err != nil {
		e.Logger.Error("error closing database", "error", err)
	}
}

// loadConfig resolves the effective configuration: file (if any), then
// global flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if opts.Trace {
		cfg.Trace.Enabled = true
	}
	return cfg, nil
}

// openStore opens the configured database and builds a traced store on it.
// Logs go to the command's stderr so JSON output stays parseable.
func openStore(opts *RootOptions, cmd *cobra.Command) (*storeEnv, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger, err := cfg.Logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	db, err := sqlite.Open(cfg.Database.Path, cfg.SQLiteOptions()...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	store := streamstore.FromSQLite(db,
		streamstore.WithLogger(logger),
		streamstore.WithRetryPolicy(cfg.RetryPolicy(db.Classifier())),
	)

	env := &storeEnv{
		Config:             cfg,
		DB:                 db,
		PayloadConcurrency: store.PayloadConcurrency(),
		Logger:             logger,
	}
	// Without span logging the decorator reports to the global provider,
	// which is a no-op unless an embedding program installs one.
	var tp trace.TracerProvider
	if cfg.Trace.Enabled {
		env.tracer = telemetry.NewLogProvider(logger)
		tp = env.tracer
	}
	env.Store = telemetry.NewTracing(store, tp)
	return env, nil
}

// storeError maps a store failure onto an exit code. A concurrency
// conflict is an expected outcome (exit 1); everything else is a command
// error (exit 2).
func storeError(action string, err error) error {
	switch {
	case errors.Is(err, streams.ErrWrongExpectedVersion):
		return WrapExitError(ExitFailure, "wrong expected version", err)
	case errors.Is(err, streams.ErrInvalidArgument):
		return WrapExitError(ExitCommandError, "invalid argument", err)
	default:
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s failed", action), err)
	}
}
