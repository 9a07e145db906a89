package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a database/sql connection to one of the supported engines
// (Postgres, MySQL, SQLite) with thread-safety.
type DB struct {
	conn    *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

// New opens a connection for the given DATABASE_URL and verifies it with a
// short ping. The engine is chosen from the DSN shape, see resolveDSN.
func New(dsn string) (*DB, error) {
	dialect, driverDSN, err := resolveDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(dialect.Driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect.Name, err)
	}

	if dialect.Name == "sqlite" {
		// Serialize writers; SQLite locks the whole file anyway.
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(5)
		conn.SetMaxIdleConns(2)
		conn.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect.Name, err)
	}

	return &DB{conn: conn, dialect: dialect}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying sql.DB connection (thread-safe)
func (db *DB) Conn() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn
}

// Dialect returns the engine dialect for this connection.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Migrate creates the sabanas namespace, both tables and their indexes.
// Safe to run on every start.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, stmt := range db.dialect.MigrationStatements() {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed on %s: %w", db.dialect.Name, err)
		}
	}
	return nil
}

// GetVersion returns the storage engine version string.
func (db *DB) GetVersion() (string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var version string
	err := db.conn.QueryRow(db.dialect.VersionQuery()).Scan(&version)
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", db.dialect.Name, err)
	}
	return version, nil
}
