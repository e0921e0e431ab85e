package main

import (
	"encoding/json"
	"fmt"
	"os"

	"superparty/models"

	"github.com/spf13/cobra"
)

// heroRecord is one entry of an import file.
type heroRecord struct {
	Name      string `json:"name"`
	Abilities string `json:"abilities"`
	Universe  string `json:"universe"`
}

func newHeroImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Create heroes from a JSON array of {name, abilities, universe}",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var records []heroRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			heroes := make([]models.Hero, 0, len(records))
			for i, r := range records {
				universe, err := models.ParseUniverse(r.Universe)
				if err != nil {
					return fmt.Errorf("record %d: %w", i+1, err)
				}
				heroes = append(heroes, models.Hero{Name: r.Name, Abilities: r.Abilities, Universe: universe})
			}

			n, err := a.ctrl.ImportHeroes(heroes)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d heroes from %s\n", n, args[0])
			return nil
		},
	}
}
