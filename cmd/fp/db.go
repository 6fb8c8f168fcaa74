package main

import (
	"fmt"

	"github.com/fieldpilot/fieldpilot/internal/config"
	"github.com/fieldpilot/fieldpilot/internal/db"
	"github.com/fieldpilot/fieldpilot/internal/notify"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := db.AutoMigrate(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migration complete.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate all tables",
		Long:  "Drops every FieldPilot table and recreates the schema. All data is lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to reset without --force")
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := db.Reset(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database reset.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().BoolVar(&force, "force", false, "confirm the destructive reset")
	return cmd
}

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return cfg, gormDB, nil
}

// notifierSinks builds the configured notification sinks, falling back to
// the process log when no chat integration is set up.
func notifierSinks(cfg *config.Config) []notify.Notifier {
	var sinks []notify.Notifier
	if cfg.Notify.Slack.BotToken != "" {
		if s, err := notify.NewSlackNotifier(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel); err == nil {
			sinks = append(sinks, s)
		}
	}
	if cfg.Notify.Discord.Token != "" {
		if d, err := notify.NewDiscordNotifier(cfg.Notify.Discord.Token, cfg.Notify.Discord.Channel); err == nil {
			sinks = append(sinks, d)
		}
	}
	if len(sinks) == 0 {
		sinks = append(sinks, notify.LogNotifier{})
	}
	return sinks
}
