// cmd/server/migrate.go
package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javajoker/raffle-backend/internal/database"
)

var createDB bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the schema to the configured database",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&createDB, "create-db", false, "create the database first when it does not exist")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if createDB {
		if err := database.EnsureDatabase(cfg.Database); err != nil {
			return fmt.Errorf("create database: %w", err)
		}
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	logrus.WithField("database", cfg.Database.Database).Info("Migrations applied")
	return nil
}
