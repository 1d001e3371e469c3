package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "freightledger/infrastructure/http"
	"freightledger/infrastructure/metrics"
)

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			metrics.Init(a.db.ReadSQL, a.logger)

			server := httpserver.NewServer(a.cfg.HTTP.Addr, httpserver.Deps{
				DB:           a.db,
				Clock:        a.clock,
				Engine:       a.engine,
				Batch:        a.batch,
				Projector:    a.projector,
				Appointments: a.appointments,
				Receipt:      a.receipt,
				Logger:       a.logger,

				AllowedOrigins: a.cfg.HTTP.AllowedOrigins,
			})
			if err := server.Start(); err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			a.logger.Info("shutting down", slog.String("signal", sig.String()))

			if err := server.Stop(); err != nil {
				a.logger.Error("graceful shutdown error", slog.Any("err", err))
			}
			return nil
		},
	}
}
