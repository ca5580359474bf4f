// Package store persists print jobs in a relational queue table.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	DefaultSQLiteDSN = "file:printq.db?_busy_timeout=5000&_journal_mode=WAL"
)

//go:embed migrations
var migrations embed.FS

type Store struct {
	db     *sql.DB
	driver string
	logger *zap.SugaredLogger
}

// Open connects to the queue database. SQLite is limited to one connection
// so conditional updates are serialized the same way PostgreSQL row locks
// serialize them.
func Open(driver, dsn string, logger *zap.SugaredLogger) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = DefaultSQLiteDSN
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("database dsn is required for %s", driver)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return New(db, driver, logger), nil
}

func New(db *sql.DB, driver string, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, driver: driver, logger: logger}
}

// Migrate brings the schema up to date.
func (s *Store) Migrate(ctx context.Context) error {
	dialect, dir := "sqlite3", "migrations/sqlite3"
	if s.driver == DriverPostgres {
		dialect, dir = "postgres", "migrations/postgres"
	}

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{s.logger})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}

// rebind turns ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Infof(strings.TrimSpace(format), v...)
}
