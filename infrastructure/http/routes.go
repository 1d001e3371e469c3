package http

import (
	"github.com/go-chi/chi/v5"

	"freightledger/infrastructure/timeref"
	"freightledger/ledger/appointments"
	"freightledger/ledger/capacity"
	"freightledger/ledger/projection"
	"freightledger/ledger/receipt"
	"freightledger/ledger/reconcile"
)

// RegisterClockRoutes registers the time reference routes.
func (s *Server) RegisterClockRoutes(r chi.Router) {
	r.Get("/clock", timeref.ClockQueryHandler(s.Clock))
	r.Put("/clock", timeref.SetClockCommandHandler(s.Clock))
	r.Post("/clock/advance", timeref.AdvanceClockCommandHandler(s.Clock))
	r.Get("/clock/history", timeref.ClockHistoryQueryHandler(s.Clock))
}

// RegisterReconcileRoutes registers reconciliation, counters and projection routes.
func (s *Server) RegisterReconcileRoutes(r chi.Router) {
	r.Post("/consignments/{id}/reconcile", reconcile.ReconcileConsignmentCommandHandler(s.Engine))
	r.Get("/consignments/{id}/counters", capacity.CountersQueryHandler(s.DB))

	r.Post("/reconcile/runs", reconcile.RunFullCommandHandler(s.Batch))
	r.Get("/reconcile/runs", reconcile.RunsQueryHandler(s.Batch))
	r.Get("/reconcile/runs/{runID}", reconcile.RunQueryHandler(s.Batch))

	r.Post("/orders/{id}/projection", projection.ProjectOrderCommandHandler(s.Projector))
	r.Get("/orders/{id}/projection", projection.ProjectionQueryHandler(s.Projector))
}

func (s *Server) RegisterAppointmentRoutes(r chi.Router) {
	r.Post("/appointments", appointments.CreateAppointmentCommandHandler(s.Appointments))
	r.Post("/appointments/{id}/reject", appointments.RejectAppointmentCommandHandler(s.Appointments))
	r.Post("/appointments/{id}/reschedule", appointments.RescheduleAppointmentCommandHandler(s.Appointments))
	r.Delete("/appointments/{id}", appointments.DeleteAppointmentCommandHandler(s.Appointments))

	r.Post("/appointments/{id}/lines", appointments.CreateLineCommandHandler(s.Appointments))
	r.Put("/lines/{lineID}", appointments.UpdateLineCommandHandler(s.Appointments))
	r.Put("/lines/{lineID}/rejected", appointments.SetRejectedQuantityCommandHandler(s.Appointments))
	r.Delete("/lines/{lineID}", appointments.DeleteLineCommandHandler(s.Appointments))
}

func (s *Server) RegisterReceiptRoutes(r chi.Router) {
	r.Post("/consignments/{id}/lots", receipt.ReceiveLotCommandHandler(s.Receipt))
	r.Put("/consignments/{id}/estimate", receipt.UpdateEstimateCommandHandler(s.Receipt))
}
