package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/config"
	"freightledger/infrastructure/sqlite"
	"freightledger/infrastructure/timeref"
	"freightledger/ledger/appointments"
	"freightledger/ledger/projection"
	"freightledger/ledger/receipt"
	"freightledger/ledger/reconcile"
	"freightledger/ledger/triggers"
)

// app carries the loaded configuration and, once opened, the wired services.
type app struct {
	configPath string
	cfg        config.Config
	logger     *slog.Logger

	db           *sqlite.DB
	clock        *timeref.Service
	engine       *reconcile.Engine
	batch        *reconcile.Batch
	projector    *projection.Projector
	appointments *appointments.Service
	receipt      *receipt.Service
}

func main() {
	root, a := newCLI()
	err := root.Execute()
	if cerr := a.close(); cerr != nil {
		log.Printf("close db: %v", cerr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func newCLI() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "freightledger",
		Short:         "Warehouse booking capacity ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			a.logger = cfg.Logger()
			slog.SetDefault(a.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file (default $"+config.PathEnv+")")

	root.AddCommand(serveCommand(a))
	root.AddCommand(migrateCommand(a))
	root.AddCommand(reconcileCommand(a))
	root.AddCommand(projectCommand(a))
	root.AddCommand(clockCommand(a))
	return root, a
}

// open connects to SQLite, applies migrations and wires the services.
func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}
	db, err := sqlite.OpenDB(a.cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := sqlite.ApplyMigrations(ctx, db, a.cfg.SQLite.MigrationsDir); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	auditSvc := audit.NewService()
	a.db = db
	a.clock = timeref.NewService(db, auditSvc, a.cfg.Clock.AdvanceMinutes)
	a.engine = reconcile.NewEngine(db, a.clock, reconcile.RetryPolicy{
		InitialInterval: a.cfg.Batch.InitialRetryInterval,
		MaxElapsed:      a.cfg.Batch.MaxRetryElapsed,
	}, a.logger)
	a.batch = reconcile.NewBatch(a.engine, a.logger)
	a.projector = projection.NewProjector(db)
	recompute := triggers.NewRecomputer(a.engine, a.projector)
	a.appointments = appointments.NewService(db, auditSvc, recompute)
	a.receipt = receipt.NewService(db, auditSvc, a.clock, recompute, a.logger)
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
