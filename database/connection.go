// database/connection.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL/MariaDB driver
	"github.com/hikingtw/trailguard/config"
)

// Store is the handle to the trail database. It is constructed once at
// process start, shared by the orchestrator and the handlers, and closed at
// process end.
type Store struct {
	db *sql.DB
}

// Open initializes the connection pool and verifies connectivity.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	// DSN: username:password@protocol(address)/dbname?param=value
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
	)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("connected to database", "host", cfg.Host, "dbname", cfg.DBName)
	return &Store{db: db}, nil
}

// Ping verifies the connection is still alive; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool. Called on application shutdown.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	slog.Info("database connection closed")
	return err
}
