package main

import (
	"fmt"

	"superparty/utils"

	"github.com/spf13/cobra"
)

func newTeamsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "teams",
		Aliases: []string{"team"},
		Short:   "Manage teams and their rosters",
	}
	cmd.AddCommand(
		newTeamListCmd(a),
		newTeamAddCmd(a),
		newTeamDeleteCmd(a),
		newTeamRosterCmd(a),
		newTeamAddHeroCmd(a),
		newTeamRemoveHeroCmd(a),
		newTeamDefaultCmd(a),
	)
	return cmd
}

func newTeamListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all teams sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			teams, err := a.ctrl.Teams()
			if err != nil {
				return err
			}
			return printerFor(cmd).teams(teams)
		},
	}
}

func newTeamAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create an empty team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			team, err := a.ctrl.CreateTeam(args[0])
			if err != nil {
				return err
			}
			if p := printerFor(cmd); p.isJSON() {
				return p.json(team)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created team %q (%d)\n", team.Name, team.ID)
			return nil
		},
	}
}

func newTeamDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a team; its heroes are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			if err := a.ctrl.DeleteTeam(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted team %d\n", id)
			return nil
		},
	}
}

func newTeamRosterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "roster <team-id>",
		Short: "Show a team and its heroes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			team, err := a.ctrl.Team(id)
			if err != nil {
				return err
			}
			return printerFor(cmd).team(team)
		},
	}
}

func newTeamAddHeroCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-hero <hero-id>",
		Short: "Put a hero on a team (the default team unless --team is set)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			heroID, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			teamID, _ := cmd.Flags().GetUint("team")

			var added bool
			if teamID == 0 {
				added, err = a.ctrl.AddHeroToDefaultTeam(heroID)
			} else {
				added, err = a.ctrl.AddHeroToTeam(heroID, teamID)
			}
			if err != nil {
				return err
			}
			if !added {
				return fmt.Errorf("hero %d not added: party is full or already has this hero", heroID)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added hero %d\n", heroID)
			return nil
		},
	}
	cmd.Flags().Uint("team", 0, "team id (default team when omitted)")
	return cmd
}

func newTeamRemoveHeroCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove-hero <hero-id>",
		Short: "Take a hero off a team (the default team unless --team is set)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			heroID, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			teamID, _ := cmd.Flags().GetUint("team")
			if teamID == 0 {
				team, err := a.ctrl.DefaultTeam()
				if err != nil {
					return err
				}
				teamID = team.ID
			}
			if err := a.ctrl.RemoveHeroFromTeam(heroID, teamID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed hero %d from team %d\n", heroID, teamID)
			return nil
		},
	}
	cmd.Flags().Uint("team", 0, "team id (default team when omitted)")
	return cmd
}

func newTeamDefaultCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "default",
		Short: "Show the default team, creating it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := a.ctrl.DefaultTeam()
			if err != nil {
				return err
			}
			team, err := a.ctrl.Team(def.ID)
			if err != nil {
				return err
			}
			return printerFor(cmd).team(team)
		},
	}
}
