// Command studyctl runs administrative tasks against the study tracking
// store: applying migrations, exporting a user's sessions and printing a
// user's dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"studytrack/backend/internal/app"
	"studytrack/backend/internal/config"
	"studytrack/backend/internal/logging"
)

var configFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "studyctl",
		Short: "Administrative commands for the study tracking backend",
		Long: `studyctl reads the same configuration as the server (environment
variables, optionally a YAML file) and works directly on the store.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file")
	root.AddCommand(newMigrateCmd(), newExportCmd(), newDashboardCmd())
	return root
}

// openApp loads configuration and assembles services without the event bus.
func openApp(migrate bool) (*app.App, error) {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(cfg, logger, app.Options{Migrate: migrate})
}
