package main

import (
	"fmt"

	"superparty/services"

	"github.com/spf13/cobra"
)

func newCleanupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove roster slots whose hero or team no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewCleanupService(a.ctrl, 0, nil)
			removed, err := svc.RunOnce()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d orphaned roster slots\n", removed)
			return nil
		},
	}
}
