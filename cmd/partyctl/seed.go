package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default team and load the stock heroes into an empty store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := a.ctrl.Store().CountHeroes()
			if err != nil {
				return err
			}
			if err := a.ctrl.Bootstrap(true); err != nil {
				return err
			}
			after, err := a.ctrl.Store().CountHeroes()
			if err != nil {
				return err
			}
			if after == before {
				fmt.Fprintf(cmd.OutOrStdout(), "Store already has %d heroes, nothing seeded\n", before)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d heroes\n", after-before)
			return nil
		},
	}
}
