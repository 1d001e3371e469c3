package main

import (
	"github.com/spf13/cobra"
)

func projectCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "project <orderID>",
		Short: "Recompute the earliest booking for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("order", args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			e, err := a.projector.Project(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
}
