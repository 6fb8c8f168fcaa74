package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/task"
	"github.com/fieldpilot/fieldpilot/internal/timelog"
	"github.com/spf13/cobra"
)

func newVisitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visit",
		Short: "Site visit commands (travel, arrive, lunch, depart)",
	}

	cmd.AddCommand(newVisitTravelCmd())
	cmd.AddCommand(newVisitArriveCmd())
	cmd.AddCommand(newVisitLunchCmd())
	cmd.AddCommand(newVisitDepartCmd())
	cmd.AddCommand(newVisitListCmd())
	cmd.AddCommand(newVisitActiveCmd())
	return cmd
}

func newVisitTravelCmd() *cobra.Command {
	var (
		configPath   string
		technicianID string
	)

	cmd := &cobra.Command{
		Use:   "travel <task-number>",
		Short: "Start traveling to a task's site",
		Long:  "Opens a visit. A technician can hold only one open visit at a time; travel to a second site is rejected until the first visit is departed.",
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
			if _, err := timelog.StartTravel(gormDB, cfg.Directory(), t.ID, technicianID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is traveling to task %s\n",
				identity.Name(cfg.Directory(), technicianID), t.TaskNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&technicianID, "tech", "", "technician staff ID (required)")
	cmd.MarkFlagRequired("tech")
	return cmd
}

func newVisitArriveCmd() *cobra.Command {
	var (
		configPath   string
		technicianID string
	)

	cmd := &cobra.Command{
		Use:   "arrive <task-number>",
		Short: "Record arrival at the site",
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
			if _, err := timelog.Arrive(gormDB, cfg.Directory(), t.ID, technicianID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s arrived at task %s\n",
				identity.Name(cfg.Directory(), technicianID), t.TaskNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&technicianID, "tech", "", "technician staff ID (required)")
	cmd.MarkFlagRequired("tech")
	return cmd
}

func newVisitLunchCmd() *cobra.Command {
	var (
		configPath   string
		technicianID string
		end          bool
	)

	cmd := &cobra.Command{
		Use:   "lunch <task-number>",
		Short: "Start or end the visit's lunch window",
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
			if end {
				if _, err := timelog.EndLunch(gormDB, cfg.Directory(), t.ID, technicianID); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Lunch ended.")
				return nil
			}
			if _, err := timelog.StartLunch(gormDB, cfg.Directory(), t.ID, technicianID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Lunch started.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&technicianID, "tech", "", "technician staff ID (required)")
	cmd.Flags().BoolVar(&end, "end", false, "end the lunch window instead of starting it")
	cmd.MarkFlagRequired("tech")
	return cmd
}

func newVisitDepartCmd() *cobra.Command {
	var (
		configPath      string
		technicianID    string
		equipmentStatus string
	)

	cmd := &cobra.Command{
		Use:   "depart <task-number>",
		Short: "Depart from the site",
		Long:  "Closes the visit. The equipment status (functional or shutdown) is mandatory, and the work-hour breakdown is derived and stored.",
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
			l, err := timelog.Depart(gormDB, cfg.Directory(), t.ID, technicianID, equipmentStatus)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Departed task %s: %s h total (%s normal, %s overtime), equipment %s\n",
				t.TaskNumber, l.TotalWorkHours.StringFixed(2), l.NormalHours.StringFixed(2),
				l.OvertimeHours.StringFixed(2), l.EquipmentStatusAtDeparture)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&technicianID, "tech", "", "technician staff ID (required)")
	cmd.Flags().StringVar(&equipmentStatus, "equipment-status", "", "equipment status at departure: functional or shutdown (required)")
	cmd.MarkFlagRequired("tech")
	cmd.MarkFlagRequired("equipment-status")
	return cmd
}

func newVisitListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <task-number>",
		Short: "List a task's visits",
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
			logs, err := timelog.ListForTask(gormDB, t.ID)
			if err != nil {
				return err
			}
			dir := cfg.Directory()

			out := cmd.OutOrStdout()
			if len(logs) == 0 {
				fmt.Fprintln(out, "No visits recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TECHNICIAN\tARRIVED\tDEPARTED\tHOURS\tEQUIPMENT")
			for _, l := range logs {
				arrived, departed, equipment := "-", "-", "-"
				if l.ArrivedAt != nil {
					arrived = l.ArrivedAt.Format("2006-01-02 15:04")
				}
				if l.DepartedAt != nil {
					departed = l.DepartedAt.Format("2006-01-02 15:04")
					equipment = l.EquipmentStatusAtDeparture
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					identity.Name(dir, l.TechnicianID), arrived, departed,
					l.TotalWorkHours.StringFixed(2), equipment)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}

func newVisitActiveCmd() *cobra.Command {
	var (
		configPath   string
		technicianID string
	)

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Show a technician's open visit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			l, err := timelog.ActiveForTechnician(gormDB, technicianID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if l == nil {
				fmt.Fprintln(out, "No open visit.")
				return nil
			}

			t, err := task.Get(gormDB, l.TaskID)
			if err != nil {
				return err
			}
			state := "traveling"
			if l.IsOnLunch() {
				state = "on lunch"
			} else if l.IsOnSite() {
				state = "on site"
			}
			fmt.Fprintf(out, "%s is %s for task %s\n",
				identity.Name(cfg.Directory(), technicianID), state, t.TaskNumber)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&technicianID, "tech", "", "technician staff ID (required)")
	cmd.MarkFlagRequired("tech")
	return cmd
}
