package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"studytrack/backend/internal/db"
	"studytrack/backend/internal/service"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := db.RunMigrations(a.DB, a.Dialect, a.Config.MigrationsDir)
			if err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			fmt.Fprintf(out, "%d migration(s) applied\n", len(applied))
			return nil
		},
	}
}

func newExportCmd() *cobra.Command {
	var (
		user   string
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's sessions as CSV or JSON",
		Long: `Export every stored session of one user.

Examples:
  studyctl export --user ada@example.com
  studyctl export --user ada@example.com --format json --out sessions.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			found, apiErr := a.Services.Users.Resolve(ctx, user)
			if apiErr != nil {
				return apiErr
			}
			export, apiErr := a.Services.Sessions.Export(ctx, found.ID, format)
			if apiErr != nil {
				return apiErr
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(export.Body)
				return err
			}
			if err := os.WriteFile(output, export.Body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user email or id")
	cmd.Flags().StringVar(&format, "format", service.FormatCSV, "csv or json")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newDashboardCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print a user's dashboard statistics as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			found, apiErr := a.Services.Users.Resolve(ctx, user)
			if apiErr != nil {
				return apiErr
			}
			dashboard, apiErr := a.Services.Stats.Dashboard(ctx, found.ID)
			if apiErr != nil {
				return apiErr
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dashboard)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user email or id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
