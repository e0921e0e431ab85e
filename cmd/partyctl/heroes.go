package main

import (
	"fmt"

	"superparty/models"
	"superparty/utils"

	"github.com/spf13/cobra"
)

func newHeroesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "heroes",
		Aliases: []string{"hero"},
		Short:   "Manage heroes",
	}
	cmd.AddCommand(
		newHeroListCmd(a),
		newHeroAddCmd(a),
		newHeroUpdateCmd(a),
		newHeroDeleteCmd(a),
		newHeroImportCmd(a),
	)
	return cmd
}

func newHeroListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all heroes sorted by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			heroes, err := a.ctrl.Heroes()
			if err != nil {
				return err
			}
			return printerFor(cmd).heroes(heroes)
		},
	}
}

func newHeroAddCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a hero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abilities, _ := cmd.Flags().GetString("abilities")
			universeFlag, _ := cmd.Flags().GetString("universe")
			universe, err := models.ParseUniverse(universeFlag)
			if err != nil {
				return err
			}

			hero, err := a.ctrl.CreateHero(args[0], abilities, universe)
			if err != nil {
				return err
			}
			if p := printerFor(cmd); p.isJSON() {
				return p.json(hero)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created hero %q (%d)\n", hero.Name, hero.ID)
			return nil
		},
	}
	cmd.Flags().String("abilities", "", "description of the hero's abilities")
	cmd.Flags().String("universe", "marvel", "universe: marvel or dc")
	return cmd
}

func newHeroUpdateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a hero's name, abilities or universe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			current, err := a.ctrl.Hero(id)
			if err != nil {
				return err
			}

			name, abilities, universe := current.Name, current.Abilities, current.Universe
			if cmd.Flags().Changed("name") {
				name, _ = cmd.Flags().GetString("name")
			}
			if cmd.Flags().Changed("abilities") {
				abilities, _ = cmd.Flags().GetString("abilities")
			}
			if cmd.Flags().Changed("universe") {
				v, _ := cmd.Flags().GetString("universe")
				if universe, err = models.ParseUniverse(v); err != nil {
					return err
				}
			}

			hero, err := a.ctrl.UpdateHero(id, name, abilities, universe)
			if err != nil {
				return err
			}
			if p := printerFor(cmd); p.isJSON() {
				return p.json(hero)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated hero %q (%d)\n", hero.Name, hero.ID)
			return nil
		},
	}
	cmd.Flags().String("name", "", "new name")
	cmd.Flags().String("abilities", "", "new abilities")
	cmd.Flags().String("universe", "", "new universe: marvel or dc")
	return cmd
}

func newHeroDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a hero and remove it from every team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseID(args[0])
			if err != nil {
				return err
			}
			if err := a.ctrl.DeleteHero(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted hero %d\n", id)
			return nil
		},
	}
}
