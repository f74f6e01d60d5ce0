package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/roach88/streamstore/internal/session"
)

// Driver names as registered with database/sql.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// Defaults applied by Open.
const (
	DefaultSchema       = "main"
	DefaultMaxOpenConns = 1
	DefaultBusyTimeout  = 5 * time.Second
)

// currentSchemaVersion is stamped into PRAGMA user_version.
// 1 - streams, messages, expected_version_checks
const currentSchemaVersion = 1

var schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type options struct {
	driver       string
	schema       string
	maxOpenConns int
	busyTimeout  time.Duration
}

// Option configures Open.
type Option func(*options)

// WithDriver selects DriverMattn (default) or DriverModernc.
func WithDriver(name string) Option {
	return func(o *options) { o.driver = name }
}

// WithSchema sets the schema that qualifies every table. Only "main" and
// "temp" exist unless the caller attaches further databases.
func WithSchema(name string) Option {
	return func(o *options) { o.schema = name }
}

// WithMaxOpenConns bounds the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

// WithBusyTimeout sets how long a connection waits on a locked database
// before SQLite reports SQLITE_BUSY.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// DB is an opened stream store database. It implements session.Factory.
type DB struct {
	db         *sql.DB
	driver     string
	scripts    *session.Scripts
	classifier session.Classifier
}

// Open creates or opens a SQLite database at path, applies pragmas and
// provisions the schema. Open is idempotent.
func Open(path string, opts ...Option) (*DB, error) {
	o := options{
		driver:       DriverMattn,
		schema:       DefaultSchema,
		maxOpenConns: DefaultMaxOpenConns,
		busyTimeout:  DefaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !schemaNamePattern.MatchString(o.schema) {
		return nil, fmt.Errorf("invalid schema name %q", o.schema)
	}
	if o.maxOpenConns < 1 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", o.maxOpenConns)
	}

	dsn, err := buildDSN(o.driver, path, o.busyTimeout)
	if err != nil {
		return nil, err
	}
	scripts, err := renderScripts(o.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to render scripts: %w", err)
	}

	db, err := sql.Open(o.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY altogether.
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxOpenConns)

	if err := applySchema(db, scripts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{
		db:         db,
		driver:     o.driver,
		scripts:    scripts,
		classifier: NewClassifier(o.driver),
	}, nil
}

// buildDSN encodes the pragmas in the form each driver understands, so that
// every pooled connection gets them.
func buildDSN(driver, path string, busyTimeout time.Duration) (string, error) {
	ms := busyTimeout.Milliseconds()
	q := url.Values{}
	switch driver {
	case DriverMattn:
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
		q.Set("_busy_timeout", fmt.Sprint(ms))
		q.Set("_foreign_keys", "on")
	case DriverModernc:
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", ms))
		q.Add("_pragma", "foreign_keys(1)")
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	return "file:" + path + "?" + q.Encode(), nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// SQL returns the underlying sql.DB.
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Driver returns the database/sql driver name in use.
func (d *DB) Driver() string {
	return d.driver
}

// Scripts returns the command texts rendered for this database's schema.
func (d *DB) Scripts() *session.Scripts {
	return d.scripts
}

// Classifier returns the error classifier for this database's driver.
func (d *DB) Classifier() session.Classifier {
	return d.classifier
}

// Begin acquires a connection and starts a deferred transaction on it.
func (d *DB) Begin(ctx context.Context) (session.Session, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	return &txSession{tx: tx}, nil
}

// applySchema creates tables if they don't exist and checks the stamped
// schema version.
func applySchema(db *sql.DB, scripts *session.Scripts) error {
	if _, err := db.Exec(scripts.CreateSchema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	pragma := fmt.Sprintf("PRAGMA %s.user_version", scripts.Schema)
	var version int
	if err := db.QueryRow(pragma).Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("%s = %d", pragma, currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (d *DB) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := d.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
