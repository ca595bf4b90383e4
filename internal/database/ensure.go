// internal/database/ensure.go
package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/raffle-backend/internal/config"
)

// EnsureDatabase creates the configured database when it is missing. It
// connects through the server's maintenance database.
func EnsureDatabase(cfg config.DatabaseConfig) error {
	if cfg.Database == "" {
		return errors.New("database name is empty")
	}

	db, err := sql.Open("postgres", cfg.MaintenanceDSN())
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping admin connection: %w", err)
	}

	var exists bool
	err = db.QueryRow("SELECT true FROM pg_database WHERE datname = $1", cfg.Database).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check database existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(cfg.Database)); err != nil {
		return fmt.Errorf("create database %q: %w", cfg.Database, err)
	}

	logrus.WithField("database", cfg.Database).Info("Database created")
	return nil
}
