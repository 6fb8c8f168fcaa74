package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fieldpilot/fieldpilot/internal/identity"
	"github.com/fieldpilot/fieldpilot/internal/team"
	"github.com/spf13/cobra"
)

func newTeamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Technician team management commands",
	}

	cmd.AddCommand(newTeamCreateCmd())
	cmd.AddCommand(newTeamListCmd())
	cmd.AddCommand(newTeamShowCmd())
	cmd.AddCommand(newTeamAddCmd())
	cmd.AddCommand(newTeamRemoveCmd())
	cmd.AddCommand(newTeamActiveCmd())
	return cmd
}

func newTeamCreateCmd() *cobra.Command {
	var (
		configPath  string
		name        string
		description string
		members     []string
		actor       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a technician team",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			created, err := team.Create(gormDB, cfg.Directory(), team.CreateOpts{
				Name:        name,
				Description: description,
				MemberIDs:   members,
				ActorID:     actor,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created team %s (%s) with %d member(s)\n",
				created.Name, created.ID, len(created.Members))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringVar(&name, "name", "", "team name (required)")
	cmd.Flags().StringVar(&description, "description", "", "team description")
	cmd.Flags().StringSliceVar(&members, "member", nil, "technician staff ID (repeatable)")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newTeamListCmd() *cobra.Command {
	var (
		configPath string
		activeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			filters := team.ListFilters{}
			if cmd.Flags().Changed("active") {
				filters.Active = &activeOnly
			}
			teams, err := team.List(gormDB, filters)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(teams) == 0 {
				fmt.Fprintln(out, "No teams found.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tACTIVE\tMEMBERS")
			for _, t := range teams {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", t.ID, t.Name, t.Active, len(t.Members))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().BoolVar(&activeOnly, "active", true, "filter by active flag")
	return cmd
}

func newTeamShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <team-id>",
		Short: "Show team details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			t, err := team.Get(gormDB, args[0])
			if err != nil {
				return err
			}
			dir := cfg.Directory()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", t.ID)
			fmt.Fprintf(out, "Name:        %s\n", t.Name)
			fmt.Fprintf(out, "Active:      %t\n", t.Active)
			if t.Description != "" {
				fmt.Fprintf(out, "Description: %s\n", t.Description)
			}
			if len(t.Members) > 0 {
				names := make([]string, len(t.Members))
				for i, m := range t.Members {
					names[i] = identity.Name(dir, m.TechnicianID)
				}
				fmt.Fprintf(out, "Members:     %s\n", strings.Join(names, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}

func newTeamAddCmd() *cobra.Command {
	var (
		configPath string
		members    []string
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "add <team-id>",
		Short: "Add technicians to a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := team.AddMembers(gormDB, cfg.Directory(), args[0], members, actor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d member(s) to team %s\n", len(members), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().StringSliceVar(&members, "member", nil, "technician staff ID (repeatable, required)")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	cmd.MarkFlagRequired("member")
	return cmd
}

func newTeamRemoveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "remove <team-id> <technician-id>",
		Short: "Remove a technician from a team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := team.RemoveMember(gormDB, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from team %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	return cmd
}

func newTeamActiveCmd() *cobra.Command {
	var (
		configPath string
		active     bool
		actor      string
	)

	cmd := &cobra.Command{
		Use:   "active <team-id>",
		Short: "Activate or deactivate a team",
		Long:  "Inactive teams keep their existing assignments but cannot receive new ones.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := team.SetActive(gormDB, args[0], active, actor); err != nil {
				return err
			}
			state := "inactive"
			if active {
				state = "active"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Team %s is now %s\n", args[0], state)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "fieldpilot.yaml", "path to FieldPilot config file")
	cmd.Flags().BoolVar(&active, "set", true, "desired active state")
	cmd.Flags().StringVar(&actor, "actor", "", "acting staff ID")
	return cmd
}
