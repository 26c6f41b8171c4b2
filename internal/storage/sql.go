package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "dashboard_reports"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect holds the statements that differ between drivers.
type dialect struct {
	create string
	upsert string
	get    string
}

func dialectFor(driver, table string) (dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return dialect{
			create: "CREATE TABLE IF NOT EXISTS " + table + " (object_key TEXT PRIMARY KEY, body BYTEA NOT NULL, updated_at TIMESTAMPTZ NOT NULL)",
			upsert: "INSERT INTO " + table + " (object_key, body, updated_at) VALUES ($1,$2,$3) ON CONFLICT (object_key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at",
			get:    "SELECT body FROM " + table + " WHERE object_key = $1",
		}, nil
	case "mysql":
		return dialect{
			create: "CREATE TABLE IF NOT EXISTS " + table + " (object_key VARCHAR(512) PRIMARY KEY, body LONGBLOB NOT NULL, updated_at DATETIME(6) NOT NULL)",
			upsert: "INSERT INTO " + table + " (object_key, body, updated_at) VALUES (?,?,?) ON DUPLICATE KEY UPDATE body = VALUES(body), updated_at = VALUES(updated_at)",
			get:    "SELECT body FROM " + table + " WHERE object_key = ?",
		}, nil
	case "sqlite3":
		return dialect{
			create: "CREATE TABLE IF NOT EXISTS " + table + " (object_key TEXT PRIMARY KEY, body BLOB NOT NULL, updated_at TIMESTAMP NOT NULL)",
			upsert: "INSERT INTO " + table + " (object_key, body, updated_at) VALUES (?,?,?) ON CONFLICT (object_key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at",
			get:    "SELECT body FROM " + table + " WHERE object_key = ?",
		}, nil
	default:
		return dialect{}, fmt.Errorf("storage: sql: unsupported driver %q", driver)
	}
}

// SQL stores objects as rows of one table keyed by object_key.
type SQL struct {
	db      *sql.DB
	table   string
	dialect dialect
	now     func() time.Time
}

// NewSQL wraps an open database. driver selects the dialect: pgx, mysql or
// sqlite3.
func NewSQL(db *sql.DB, driver, table string) (*SQL, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("storage: sql: invalid table name %q", table)
	}
	d, err := dialectFor(driver, table)
	if err != nil {
		return nil, err
	}
	return &SQL{db: db, table: table, dialect: d, now: time.Now}, nil
}

// OpenSQL opens dsn with driver, pings it and creates the table. "postgres"
// is served by the pgx driver.
func OpenSQL(ctx context.Context, driver, dsn, table string) (*SQL, error) {
	if driver == "postgres" {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: sql: open: %w", err)
	}
	s, err := NewSQL(db, driver, table)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: sql: ping: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the table if it does not exist.
func (s *SQL) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.create); err != nil {
		return fmt.Errorf("storage: sql: migrate %s: %w", s.table, err)
	}
	return nil
}

func (s *SQL) Fetch(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, s.dialect.get, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: sql: get %s: %w", key, err)
	}
	return body, nil
}

func (s *SQL) Put(ctx context.Context, key string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, data, s.now().UTC()); err != nil {
		return fmt.Errorf("storage: sql: put %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQL) Close() error { return s.db.Close() }
