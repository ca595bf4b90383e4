// cmd/server/root.go
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/javajoker/raffle-backend/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "raffle-server",
	Short:         "Raffle backend: ticket inventory, sales ledger and winners",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadConfig reads and validates the environment, then configures logrus
// from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	setupLogging(cfg.Log, cfg.Environment == "production")
	return cfg, nil
}

// setupLogging applies LOG_LEVEL and LOG_FORMAT. Production logs JSON unless
// a format is set explicitly.
func setupLogging(cfg config.LogConfig, production bool) {
	logrus.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Format, "json") || (production && cfg.Format == "") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
