package main

import (
	"context"
	"fmt"

	"resource-manager/internal/app"
	"resource-manager/internal/calendar"
	"resource-manager/internal/config"
	"resource-manager/internal/db"
	"resource-manager/internal/schedule"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Operator tools for the resource manager",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newEndDateCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

func newEndDateCmd() *cobra.Command {
	var (
		start       string
		hours       int
		resources   int
		hoursPerDay int
	)

	cmd := &cobra.Command{
		Use:   "end-date",
		Short: "Compute the committed end date for an estimate",
		Example: `  schedctl end-date --start 2026-10-19 --hours 56 --resources 2
  schedctl end-date --start 2026-10-24 --hours 7 --hours-per-day 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := calendar.Parse(start)
			if err != nil {
				return fmt.Errorf("invalid --start %q, expected YYYY-MM-DD", start)
			}
			if hours <= 0 {
				return fmt.Errorf("--hours must be greater than 0")
			}
			if resources <= 0 {
				return fmt.Errorf("--resources must be greater than 0")
			}

			rng := schedule.New(hoursPerDay).Compute(startDate, hours, resources)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "start:       %s (%s)\n", calendar.Format(rng.Start), rng.Start.Weekday())
			fmt.Fprintf(out, "end:         %s (%s)\n", calendar.Format(rng.End), rng.End.Weekday())
			fmt.Fprintf(out, "days needed: %d\n", rng.DaysNeeded)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&hours, "hours", 0, "estimated effort in hours")
	cmd.Flags().IntVar(&resources, "resources", 1, "number of resources assigned")
	cmd.Flags().IntVar(&hoursPerDay, "hours-per-day", schedule.DefaultHoursPerDay, "daily capacity of one resource")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("hours")

	return cmd
}

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, constraints and triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			var (
				cfg *config.Config
				err error
			)
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load()
			}
			if err != nil {
				return err
			}

			database, err := db.New(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close(database)

			if err := db.RunMigrations(context.Background(), database, app.Models()...); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a config file (defaults to configs/config.<ENV>.yaml)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "schedctl %s (commit %s, built %s)\n", app.Version, app.GitCommit, app.BuildTime)
		},
	}
}
