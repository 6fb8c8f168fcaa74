package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/report"
	"github.com/fieldpilot/fieldpilot/internal/task"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Work-hour reporting commands",
	}

	cmd.AddCommand(newReportHoursCmd())
	cmd.AddCommand(newReportTaskCmd())
	return cmd
}

func newReportHoursCmd() *cobra.Command {
	var (
		configPath   string
		technicianID string
		from         string
		to           string
	)

	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Aggregate work hours by technician",
		Long:  "Sums completed visits per technician. --from is inclusive and --to exclusive, both on the departure time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			filters := report.Filters{TechnicianID: technicianID}
			if from != "" {
				ts, err := time.Parse("2006-01-02", from)
				if err != nil {
					return fmt.Errorf("parse --from: %w", err)
				}
				filters.From = &ts
			}
			if to != "" {
				ts, err := time.Parse("2006-01-02", to)
				if err != nil {
					return fmt.Errorf("parse --to: %w", err)
				}
				filters.To = &ts
			}

			rows, err := report.WorkHours(gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No completed visits in range.")
				return nil
			}
			dir := cfg.Directory()

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TECHNICIAN\tVISITS\tTOTAL\tNORMAL\tOVERTIME")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					identity.Name(dir, r.TechnicianID), r.Visits,
					r.Total.StringFixed(2), r.Normal.StringFixed(2), r.Overtime.StringFixed(2))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&technicianID, "tech", "", "filter by technician")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD, inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD, exclusive)")
	return cmd
}

func newReportTaskCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "task <task-number>",
		Short: "Summarize a task's work hours",
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
			s, err := report.ForTask(gormDB, t.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task:     %s\n", t.TaskNumber)
			fmt.Fprintf(out, "Visits:   %d\n", s.Visits)
			fmt.Fprintf(out, "Total:    %s h\n", s.Total.StringFixed(2))
			fmt.Fprintf(out, "Normal:   %s h\n", s.Normal.StringFixed(2))
			fmt.Fprintf(out, "Overtime: %s h\n", s.Overtime.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}
