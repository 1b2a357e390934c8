package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"

	// PostgreSQL driver, selected with driver "postgres".
	_ "github.com/lib/pq"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects the database driver and connection string.
type Config struct {
	Driver string
	DSN    string
}

// Store holds the database handle and provides access to repositories.
type Store struct {
	db      *sqlx.DB
	dialect string
}

// Open connects to the database described by cfg, applies SQLite pragmas
// where relevant and creates any missing tables.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		driverName  string
		dialectName string
		bindName    string
	)
	switch cfg.Driver {
	case "", DriverSQLite:
		driverName, dialectName, bindName = "sqlite", dialect.SQLite, "sqlite3"
	case DriverPostgres:
		driverName, dialectName, bindName = "postgres", dialect.Postgres, "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dialectName == dialect.SQLite {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	s := &Store{db: sqlx.NewDb(db, bindName), dialect: dialectName}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Progress returns the progress record repository.
func (s *Store) Progress() *ProgressRepo {
	return &ProgressRepo{db: s.db, sb: entsql.Dialect(s.dialect)}
}

// Catalog returns the topic and question repository.
func (s *Store) Catalog() *CatalogRepo {
	return &CatalogRepo{db: s.db, sb: entsql.Dialect(s.dialect)}
}

// Attempts returns the append-only attempt log.
func (s *Store) Attempts() *AttemptRepo {
	return &AttemptRepo{db: s.db, sb: entsql.Dialect(s.dialect)}
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite database file path in priority order:
// 1. $XDG_DATA_HOME/drillbox/drillbox.db
// 2. ~/.local/share/drillbox/drillbox.db
func DefaultDBPath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "drillbox", "drillbox.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
