package main

import (
	"time"

	"github.com/spf13/cobra"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/timeref"
	"freightledger/ledger"
)

type clockOutput struct {
	CurrentAt time.Time `json:"current_at"`
	Today     string    `json:"today"`
	Version   int64     `json:"version,omitempty"`
}

func clockCommand(a *app) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Inspect or move the time reference",
	}
	cmd.PersistentFlags().StringVar(&actor, "actor", getenv("FREIGHTLEDGER_ACTOR", audit.SystemActor), "actor recorded in the audit log")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current time reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			row, err := a.clock.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), clockOutput{
				CurrentAt: row.CurrentAt.UTC(),
				Today:     ledger.Day(row.CurrentAt).Format(time.DateOnly),
				Version:   row.Version,
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <RFC3339|YYYY-MM-DD>",
		Short: "Overwrite the time reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			literal, err := timeref.ParseLiteral(args[0])
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			value, err := a.clock.Set(cmd.Context(), actor, literal)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), clockOutput{CurrentAt: value, Today: ledger.Day(value).Format(time.DateOnly)})
		},
	})

	var minutes int
	advance := &cobra.Command{
		Use:   "advance",
		Short: "Move the time reference forward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			var (
				value time.Time
				err   error
			)
			if cmd.Flags().Changed("minutes") {
				value, err = a.clock.Advance(cmd.Context(), actor, minutes)
			} else {
				value, err = a.clock.AdvanceDefault(cmd.Context(), actor)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), clockOutput{CurrentAt: value, Today: ledger.Day(value).Format(time.DateOnly)})
		},
	}
	advance.Flags().IntVar(&minutes, "minutes", 0, "minutes to advance (default: configured clock.advance_minutes)")
	cmd.AddCommand(advance)
	return cmd
}
