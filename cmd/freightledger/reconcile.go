package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"freightledger/infrastructure/audit"
	"freightledger/ledger"
)

func reconcileCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute capacity counters",
	}
	cmd.AddCommand(reconcileAllCommand(a))
	cmd.AddCommand(reconcileConsignmentCommand(a))
	return cmd
}

func reconcileAllCommand(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Reconcile every consignment and record a run report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			report, err := a.batch.RunFull(cmd.Context(), actor)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d consignments failed", report.Failed, report.Processed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", getenv("FREIGHTLEDGER_ACTOR", audit.SystemActor), "actor recorded on the run")
	return cmd
}

func reconcileConsignmentCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "consignment <id>",
		Short: "Reconcile a single consignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("consignment", args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			res, err := a.engine.Reconcile(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func parseID(entity, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ledger.InvalidArgument("invalid %s id %q", entity, raw)
	}
	return id, ledger.ValidID(entity, id)
}
