package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNoDatabase is returned by every operation on a nil *DB.
var ErrNoDatabase = errors.New("database not available")

// DB wraps a database connection and exposes a small key-value store on top of it.
type DB struct {
	*sql.DB
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	expires_at INTEGER
);`

// NewDB opens the SQLite database at path, creating the file and schema if needed.
// An empty path falls back to DATABASE_PATH and then to data/devotional.db.
func NewDB(path string) (*DB, error) {
	if path == "" {
		path = getEnvOrDefault("DATABASE_PATH", filepath.Join("data", "devotional.db"))
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway; one connection keeps :memory: databases coherent.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{DB: sqlDB, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Get returns the value stored under key. Expired entries are reported as missing.
func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	if d == nil || d.DB == nil {
		return "", false, ErrNoDatabase
	}

	var (
		value     string
		expiresAt sql.NullInt64
	)
	err := d.QueryRowContext(ctx, "SELECT value, expires_at FROM kv WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}

	if expiresAt.Valid && !d.clock().Before(time.Unix(0, expiresAt.Int64)) {
		return "", false, nil
	}
	return value, true, nil
}

// Set stores value under key without expiry, replacing any previous value.
func (d *DB) Set(ctx context.Context, key, value string) error {
	return d.put(ctx, key, value, sql.NullInt64{})
}

// SetTTL stores value under key and treats it as missing once ttl has elapsed.
func (d *DB) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	expires := d.clock().Add(ttl).UnixNano()
	return d.put(ctx, key, value, sql.NullInt64{Int64: expires, Valid: true})
}

func (d *DB) put(ctx context.Context, key, value string, expiresAt sql.NullInt64) error {
	if d == nil || d.DB == nil {
		return ErrNoDatabase
	}

	_, err := d.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at, expires_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`,
		key, value, d.clock().UnixNano(), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (d *DB) Delete(ctx context.Context, keys ...string) error {
	if d == nil || d.DB == nil {
		return ErrNoDatabase
	}
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	if _, err := d.ExecContext(ctx, "DELETE FROM kv WHERE key IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Keys lists every stored key starting with prefix, expired or not, in sorted order.
func (d *DB) Keys(ctx context.Context, prefix string) ([]string, error) {
	if d == nil || d.DB == nil {
		return nil, ErrNoDatabase
	}

	rows, err := d.QueryContext(ctx,
		"SELECT key FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key",
		prefix, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// PurgeExpired removes entries whose TTL has elapsed and returns how many were removed.
func (d *DB) PurgeExpired(ctx context.Context) (int64, error) {
	if d == nil || d.DB == nil {
		return 0, ErrNoDatabase
	}

	res, err := d.ExecContext(ctx,
		"DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?",
		d.clock().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", err)
	}
	return res.RowsAffected()
}

// Ping reports whether the database is reachable.
func (d *DB) Ping() error {
	if d == nil || d.DB == nil {
		return ErrNoDatabase
	}
	return d.DB.Ping()
}

// Close releases the connection. Closing a nil DB is a no-op.
func (d *DB) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

func (d *DB) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
