package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/scheduler"
	"github.com/spf13/cobra"
)

func newSchedulerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Scheduled-task activation commands",
	}

	cmd.AddCommand(newSchedulerRunCmd())
	cmd.AddCommand(newSchedulerTickCmd())
	return cmd
}

func newSchedulerRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the activation loop",
		Long:  "Activates scheduled tasks on the configured cron cadence until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			runner, err := scheduler.NewRunner(cfg.Scheduler.Cron, gormDB, notifierSinks(cfg))
			if err != nil {
				return err
			}
			runner.Start()
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduler running (%s). Ctrl-C to stop.\n", cfg.Scheduler.Cron)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			<-sig

			runner.Stop()
			fmt.Fprintln(cmd.OutOrStdout(), "Scheduler stopped.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}

func newSchedulerTickCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one activation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			n, err := scheduler.ActivateDue(gormDB, notifierSinks(cfg), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %d task(s).\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}
