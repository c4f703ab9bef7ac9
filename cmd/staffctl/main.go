// Package main implements staffctl, the command-line triage tool for
// escalated support questions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/supportdesk/backend/internal/escalation"
	"github.com/supportdesk/backend/internal/storage/sqlite"
	"github.com/supportdesk/backend/pkg/config"
	"github.com/supportdesk/backend/pkg/logger"
)

var (
	// configPath overrides the config file search
	configPath string
	// dbPath overrides sqlite.path from config
	dbPath string
	// outputJSON switches table output to JSON
	outputJSON bool

	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "staffctl",
	Short: "Triage escalated support questions",
	Long: `staffctl works on the same query database as the API server.
It lists questions awaiting staff, shows a single record, records resolutions
and flushes the answer cache.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "query database path (overrides sqlite.path)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.SQLite.Path = dbPath
	}

	// stdout carries command output
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, "stderr"); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

type services struct {
	db       *sqlite.Client
	store    *escalation.Store
	workflow *escalation.Workflow
}

func (s *services) Close() {
	s.db.Close()
	logger.Sync()
}

func initServices() (*services, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.NewClient(cfg.SQLite.Path, cfg.SQLite.BusyTimeoutMs)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return &services{
		db:       db,
		store:    escalation.NewStore(db),
		workflow: escalation.NewWorkflow(db),
	}, nil
}
