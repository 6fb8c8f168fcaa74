package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/assignment"
	"github.com/fieldpilot/fieldpilot/internal/config"
	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/models"
	"github.com/fieldpilot/fieldpilot/internal/notify"
	"github.com/fieldpilot/fieldpilot/internal/task"
	"github.com/fieldpilot/fieldpilot/internal/team"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskStatusCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskAssignCmd())
	cmd.AddCommand(newTaskWorkCmd())
	cmd.AddCommand(newTaskMaterialCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath  string
		equipmentID string
		title       string
		description string
		priority    string
		start       string
		end         string
		actor       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		Long:  "Creates a task with an auto-generated task number. Critical tasks alert the configured notification sinks immediately.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			opts := task.CreateOpts{
				EquipmentID: equipmentID,
				Title:       title,
				Description: description,
				Priority:    priority,
				ActorID:     actor,
			}
			if start != "" {
				ts, err := time.Parse("2006-01-02 15:04", start)
				if err != nil {
					return fmt.Errorf("parse --start: %w", err)
				}
				opts.ScheduledStart = &ts
			}
			if end != "" {
				ts, err := time.Parse("2006-01-02 15:04", end)
				if err != nil {
					return fmt.Errorf("parse --end: %w", err)
				}
				opts.ScheduledEnd = &ts
			}

			var equip task.EquipmentLookup
			if len(cfg.Equipment) > 0 {
				equip = task.EquipmentSet(cfg.EquipmentSet())
			}
			created, err := task.Create(gormDB, equip, notifierSinks(cfg), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created task %s\n", created.TaskNumber)
			if created.IsScheduled {
				fmt.Fprintf(out, "Scheduled: %s\n", created.ScheduledStart.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&equipmentID, "equipment", "", "equipment ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low, medium, high, critical)")
	cmd.Flags().StringVar(&start, "start", "", "scheduled start (YYYY-MM-DD HH:MM); marks the task scheduled")
	cmd.Flags().StringVar(&end, "end", "", "scheduled end (YYYY-MM-DD HH:MM)")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	cmd.MarkFlagRequired("equipment")
	cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath  string
		status      string
		priority    string
		equipmentID string
		scheduled   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			filters := task.ListFilters{
				Status:      status,
				Priority:    priority,
				EquipmentID: equipmentID,
			}
			if cmd.Flags().Changed("scheduled") {
				filters.Scheduled = &scheduled
			}

			tasks, err := task.List(gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tTITLE\tSTATUS\tPRIORITY\tEQUIPMENT")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					t.TaskNumber, truncate(t.Title, 40), t.Status, t.Priority, t.EquipmentID)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&priority, "priority", "", "filter by priority")
	cmd.Flags().StringVar(&equipmentID, "equipment", "", "filter by equipment")
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "filter by scheduled flag")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <task-number>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			return runTaskShow(cmd, cfg, gormDB, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}

func runTaskShow(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB, number string) error {
	t, err := task.GetByNumber(gormDB, number)
	if err != nil {
		return err
	}
	dir := cfg.Directory()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Number:      %s\n", t.TaskNumber)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Status:      %s\n", t.Status)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	fmt.Fprintf(out, "Equipment:   %s\n", t.EquipmentID)
	if t.IsScheduled && t.ScheduledStart != nil {
		fmt.Fprintf(out, "Scheduled:   %s\n", t.ScheduledStart.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(out, "Created:     %s by %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"), identity.Name(dir, t.CreatedBy))
	if t.CompletedAt != nil {
		fmt.Fprintf(out, "Completed:   %s\n", t.CompletedAt.Format("2006-01-02 15:04:05"))
	}
	if t.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", t.Description)
	}
	if t.Notes != "" {
		fmt.Fprintf(out, "\nNotes:\n%s\n", t.Notes)
	}

	assignments, err := assignment.ListForTask(gormDB, t.ID)
	if err != nil {
		return err
	}
	if len(assignments) > 0 {
		fmt.Fprintln(out, "\nAssignments:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tTARGET\tWORK STATUS")
		for _, a := range assignments {
			target := ""
			if a.AssigneeID != nil {
				target = identity.Name(dir, *a.AssigneeID)
			} else if crew, err := team.Get(gormDB, *a.TeamID); err == nil {
				target = "team " + crew.Name
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", a.ID, target, a.WorkStatus)
		}
		w.Flush()
	}
	return nil
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		description string
		notes       string
		priority    string
		actor       string
	)

	cmd := &cobra.Command{
		Use:   "update <task-number>",
		Short: "Update task fields",
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

			opts := task.UpdateOpts{ActorID: actor}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("notes") {
				opts.Notes = &notes
			}
			if cmd.Flags().Changed("priority") {
				opts.Priority = &priority
			}
			if opts.Title == nil && opts.Description == nil && opts.Notes == nil && opts.Priority == nil {
				return fmt.Errorf("no fields to update; use --title, --description, --notes, or --priority")
			}

			if _, err := task.Update(gormDB, t.ID, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", t.TaskNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	return cmd
}

func newTaskStatusCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "status <task-number> <new-status>",
		Short: "Change a task's administrative status",
		Long:  "Moves a task through the status machine (new, pending, closed, reopened, rejected). Closing is blocked while technicians are on site.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := task.GetByNumber(gormDB, args[0])
			if err != nil {
				return err
			}

			updated, err := task.SetStatus(gormDB, cfg.Directory(), notifierSinks(cfg), t.ID, args[1], actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", updated.TaskNumber, updated.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "delete <task-number>",
		Short: "Soft-delete a task",
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
			if err := task.SoftDelete(gormDB, t.ID, actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", t.TaskNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	return cmd
}

func newTaskAssignCmd() *cobra.Command {
	var (
		configPath   string
		technicianID string
		teamID       string
		actor        string
	)

	cmd := &cobra.Command{
		Use:   "assign <task-number>",
		Short: "Assign a task to a technician or a team",
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

			var target assignment.Target
			switch {
			case technicianID != "" && teamID != "":
				return fmt.Errorf("use either --technician or --team, not both")
			case technicianID != "":
				target = assignment.Individual(technicianID)
			case teamID != "":
				target = assignment.ForTeam(teamID)
			default:
				return fmt.Errorf("one of --technician or --team is required")
			}

			a, err := assignment.Assign(gormDB, t.ID, target, actor)
			if err != nil {
				return err
			}

			recipients, err := assignment.Recipients(gormDB, t.ID)
			if err == nil {
				notify.Dispatch(notifierSinks(cfg), notify.TaskAssigned(
					t.TaskNumber, t.Title, t.Priority == models.PriorityCritical, recipients))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Assigned task %s (assignment %s)\n", t.TaskNumber, a.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&technicianID, "technician", "", "technician staff ID")
	cmd.Flags().StringVar(&teamID, "team", "", "team ID")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	return cmd
}

func newTaskWorkCmd() *cobra.Command {
	var (
		configPath string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "work <assignment-id> <status>",
		Short: "Change an assignment's work status",
		Long:  "Moves an assignment between open, hold, in_progress and done. Individual assignments require recorded site presence before in_progress and a completed visit before done.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := assignment.SetWorkStatus(gormDB, args[0], args[1], actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assignment %s is now %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	return cmd
}

func newTaskMaterialCmd() *cobra.Command {
	var (
		configPath string
		logType    string
		name       string
		quantity   string
		unit       string
		notes      string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "material <task-number>",
		Short: "Log a material as needed or received",
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

			qty := decimal.Zero
			if quantity != "" {
				qty, err = decimal.NewFromString(quantity)
				if err != nil {
					return fmt.Errorf("parse --qty: %w", err)
				}
			}

			if _, err := task.LogMaterial(gormDB, t.ID, task.MaterialOpts{
				LogType:      logType,
				MaterialName: name,
				Quantity:     qty,
				Unit:         unit,
				Notes:        notes,
				ActorID:      actor,
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged material %q (%s) for task %s\n", name, logType, t.TaskNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&logType, "type", models.MaterialNeeded, "log type (needed, received)")
	cmd.Flags().StringVar(&name, "name", "", "material name (required)")
	cmd.Flags().StringVar(&quantity, "qty", "", "quantity")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of measure")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	cmd.MarkFlagRequired("name")
	return cmd
}
