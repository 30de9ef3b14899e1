package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vivianur/hackathon-web/internal/config"
	"github.com/vivianur/hackathon-web/internal/db"
	"github.com/vivianur/hackathon-web/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Apply pending SQL migrations to the MindEase database",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

		database, err := db.OpenSQLite(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer database.Close()

		applied, err := db.RunMigrations(cmd.Context(), database, cfg.MigrationsDir, logger)
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		logger.Info().Int("applied", applied).Str("db_path", cfg.DBPath).Msg("migrations applied successfully")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./config.yaml or ./config/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
