package main

import (
	"fmt"

	"github.com/fieldpilot/fieldpilot/internal/history"
	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/task"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		configPath string
		action     string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "history <task-number>",
		Short: "Show a task's audit ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := task.GetByNumber(gormDB, args[0])
			if err != nil {
				return err
			}
			entries, err := history.List(gormDB, t.ID, history.Filters{Action: action, ActorID: actor})
			if err != nil {
				return err
			}
			dir := cfg.Directory()

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history entries.")
				return nil
			}
			for _, e := range entries {
				who := identity.Name(dir, e.ActorID)
				if e.ActorID == "" {
					who = "system"
				}
				line := fmt.Sprintf("[%s] %s: %s", e.CreatedAt.Format("2006-01-02 15:04:05"), who, e.Action)
				if e.OldValue != "" || e.NewValue != "" {
					line += fmt.Sprintf(" (%s → %s)", e.OldValue, e.NewValue)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&action, "action", "", "filter by action")
	cmd.Flags().StringVar(&actor, "actor", "", "filter by acting staff ID")
	return cmd
}

func newCommentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Task comment commands",
	}

	cmd.AddCommand(newCommentAddCmd())
	cmd.AddCommand(newCommentListCmd())
	return cmd
}

func newCommentAddCmd() *cobra.Command {
	var (
		configPath string
		author     string
		text       string
	)

	cmd := &cobra.Command{
		Use:   "add <task-number>",
		Short: "Add a comment to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := task.GetByNumber(gormDB, args[0])
			if err != nil {
				return err
			}
			if _, err := history.AddComment(gormDB, t.ID, author, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Comment added to task %s\n", t.TaskNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&author, "author", "", "commenting staff ID")
	cmd.Flags().StringVar(&text, "text", "", "comment text (required)")
	cmd.MarkFlagRequired("text")
	return cmd
}

func newCommentListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <task-number>",
		Short: "List a task's comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := task.GetByNumber(gormDB, args[0])
			if err != nil {
				return err
			}
			comments, err := history.Comments(gormDB, t.ID)
			if err != nil {
				return err
			}
			dir := cfg.Directory()

			out := cmd.OutOrStdout()
			if len(comments) == 0 {
				fmt.Fprintln(out, "No comments.")
				return nil
			}
			for _, c := range comments {
				who := identity.Name(dir, c.AuthorID)
				if c.SystemGenerated {
					who = "system"
				}
				fmt.Fprintf(out, "[%s] %s: %s\n", c.CreatedAt.Format("2006-01-02 15:04:05"), who, c.Comment)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}
