package appointments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"freightledger/infrastructure/audit"
	"freightledger/infrastructure/sqlite"
	"freightledger/ledger"
	"freightledger/ledger/bookings"
	"freightledger/ledger/triggers"
	"freightledger/models"
)

// Service owns appointment and booking line writes. Every write that changes
// a consignment's ledger recomputes it in the same transaction.
type Service struct {
	DB        *sqlite.DB
	Audit     *audit.Service
	Recompute *triggers.Recomputer

	scope bun.IDB
}

func NewService(db *sqlite.DB, auditSvc *audit.Service, recompute *triggers.Recomputer) *Service {
	if auditSvc == nil {
		auditSvc = audit.NewService()
	}
	return &Service{DB: db, Audit: auditSvc, Recompute: recompute}
}

// In returns a copy of the service whose writes join scope instead of opening
// their own transaction.
func (s *Service) In(scope bun.IDB) *Service {
	c := *s
	c.scope = scope
	return &c
}

func (s *Service) write(ctx context.Context, fn func(ctx context.Context, idb bun.IDB) error) error {
	return s.DB.WithinWriteScope(ctx, s.scope, fn)
}

func (s *Service) Create(ctx context.Context, actor string, in AppointmentInput) (models.Appointment, error) {
	appt := models.Appointment{
		AccountID:     in.AccountID,
		RequestedDate: day(in.RequestedDate),
		ConfirmedDate: day(in.ConfirmedDate),
	}
	if err := in.Validate(); err != nil {
		return appt, err
	}
	err := s.write(ctx, func(ctx context.Context, idb bun.IDB) error {
		if _, err := idb.NewInsert().Model(&appt).Exec(ctx); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, "appointment.create", "appointments", fmt.Sprint(appt.ID), nil, appt)
	})
	return appt, err
}

func (s *Service) CreateLine(ctx context.Context, actor string, appointmentID int64, in LineInput) (LineResult, error) {
	var out LineResult
	if err := ledger.ValidID("appointment", appointmentID); err != nil {
		return out, err
	}
	if err := in.Validate(); err != nil {
		return out, err
	}

	err := s.write(ctx, func(ctx context.Context, idb bun.IDB) error {
		if _, err := loadAppointment(ctx, idb, appointmentID); err != nil {
			return err
		}
		if err := consignmentExists(ctx, idb, in.ConsignmentID); err != nil {
			return err
		}
		line := models.BookingLine{
			AppointmentID: appointmentID,
			ConsignmentID: in.ConsignmentID,
			EstimatedQty:  in.EstimatedQty,
			RejectedQty:   in.RejectedQty,
		}
		if _, err := idb.NewInsert().Model(&line).Exec(ctx); err != nil {
			return err
		}
		out.Line = line

		var err error
		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, line.ConsignmentID); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, "line.create", "booking_lines", fmt.Sprint(line.ID), nil, line)
	})
	return out, err
}

// UpdateLine changes quantities and possibly the consignment of a line. Both
// the old and the new consignment are recomputed.
func (s *Service) UpdateLine(ctx context.Context, actor string, lineID int64, in LineInput) (LineResult, error) {
	var out LineResult
	if err := ledger.ValidID("line", lineID); err != nil {
		return out, err
	}
	if err := in.Validate(); err != nil {
		return out, err
	}

	err := s.write(ctx, func(ctx context.Context, idb bun.IDB) error {
		before, err := loadLine(ctx, idb, lineID)
		if err != nil {
			return err
		}
		if in.ConsignmentID != before.ConsignmentID {
			if err := consignmentExists(ctx, idb, in.ConsignmentID); err != nil {
				return err
			}
		}
		after := before
		after.ConsignmentID = in.ConsignmentID
		after.EstimatedQty = in.EstimatedQty
		after.RejectedQty = in.RejectedQty
		if err := updateLine(ctx, idb, after); err != nil {
			return err
		}
		out.Line = after

		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, before.ConsignmentID, after.ConsignmentID); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, "line.update", "booking_lines", fmt.Sprint(lineID), before, after)
	})
	return out, err
}

func (s *Service) SetRejectedQuantity(ctx context.Context, actor string, lineID int64, rejected int64) (LineResult, error) {
	var out LineResult
	if err := ledger.ValidID("line", lineID); err != nil {
		return out, err
	}
	if rejected < 0 {
		return out, ledger.InvalidArgument("rejected quantity must not be negative, got %d", rejected)
	}

	err := s.write(ctx, func(ctx context.Context, idb bun.IDB) error {
		before, err := loadLine(ctx, idb, lineID)
		if err != nil {
			return err
		}
		after := before
		after.RejectedQty = rejected
		if err := updateLine(ctx, idb, after); err != nil {
			return err
		}
		out.Line = after

		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, after.ConsignmentID); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, "line.reject_qty", "booking_lines", fmt.Sprint(lineID), before, after)
	})
	return out, err
}

func (s *Service) DeleteLine(ctx context.Context, actor string, lineID int64) (LineResult, error) {
	var out LineResult
	if err := ledger.ValidID("line", lineID); err != nil {
		return out, err
	}

	err := s.write(ctx, func(ctx context.Context, idb bun.IDB) error {
		before, err := loadLine(ctx, idb, lineID)
		if err != nil {
			return err
		}
		if _, err := idb.NewDelete().Model((*models.BookingLine)(nil)).Where("id = ?", lineID).Exec(ctx); err != nil {
			return err
		}
		out.Line = before

		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, before.ConsignmentID); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, "line.delete", "booking_lines", fmt.Sprint(lineID), before, nil)
	})
	return out, err
}

// SetRejected flips the appointment's rejected flag and recomputes every
// consignment booked on it.
func (s *Service) SetRejected(ctx context.Context, actor string, appointmentID int64, rejected bool) (AppointmentResult, error) {
	return s.updateAppointment(ctx, actor, appointmentID, "appointment.reject", func(a *models.Appointment) {
		a.Rejected = rejected
	})
}

// Reschedule changes the appointment dates, which moves every line on it.
func (s *Service) Reschedule(ctx context.Context, actor string, appointmentID int64, in ScheduleInput) (AppointmentResult, error) {
	return s.updateAppointment(ctx, actor, appointmentID, "appointment.reschedule", func(a *models.Appointment) {
		a.RequestedDate = day(in.RequestedDate)
		a.ConfirmedDate = day(in.ConfirmedDate)
	})
}

func (s *Service) updateAppointment(ctx context.Context, actor string, appointmentID int64, action string, apply func(*models.Appointment)) (AppointmentResult, error) {
	var out AppointmentResult
	if err := ledger.ValidID("appointment", appointmentID); err != nil {
		return out, err
	}

	err := s.write(ctx, func(ctx context.Context, idb bun.IDB) error {
		before, err := loadAppointment(ctx, idb, appointmentID)
		if err != nil {
			return err
		}
		after := before
		apply(&after)
		if _, err := idb.NewUpdate().
			Model((*models.Appointment)(nil)).
			Set("requested_date = ?", after.RequestedDate).
			Set("confirmed_date = ?", after.ConfirmedDate).
			Set("rejected = ?", after.Rejected).
			Set("updated_at = CURRENT_TIMESTAMP").
			Where("id = ?", appointmentID).
			Exec(ctx); err != nil {
			return err
		}
		out.Appointment = after

		ids, err := bookings.ConsignmentsForAppointment(ctx, idb, appointmentID)
		if err != nil {
			return err
		}
		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, ids...); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, action, "appointments", fmt.Sprint(appointmentID), before, after)
	})
	return out, err
}

// Delete removes an appointment and, by cascade, its lines. Consignments are
// collected before the delete so each one is recomputed afterwards.
func (s *Service) Delete(ctx context.Context, actor string, appointmentID int64) (AppointmentResult, error) {
	var out AppointmentResult
	if err := ledger.ValidID("appointment", appointmentID); err != nil {
		return out, err
	}

	err := s.write(ctx, func(ctx context.Context, idb bun.IDB) error {
		before, err := loadAppointment(ctx, idb, appointmentID)
		if err != nil {
			return err
		}
		ids, err := bookings.ConsignmentsForAppointment(ctx, idb, appointmentID)
		if err != nil {
			return err
		}
		if _, err := idb.NewDelete().Model((*models.Appointment)(nil)).Where("id = ?", appointmentID).Exec(ctx); err != nil {
			return err
		}
		out.Appointment = before

		if out.Recomputed, err = s.Recompute.Consignments(ctx, idb, ids...); err != nil {
			return err
		}
		return s.Audit.Write(ctx, idb, actor, "appointment.delete", "appointments", fmt.Sprint(appointmentID), before, nil)
	})
	return out, err
}

func updateLine(ctx context.Context, idb bun.IDB, line models.BookingLine) error {
	_, err := idb.NewUpdate().
		Model((*models.BookingLine)(nil)).
		Set("consignment_id = ?", line.ConsignmentID).
		Set("estimated_qty = ?", line.EstimatedQty).
		Set("rejected_qty = ?", line.RejectedQty).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", line.ID).
		Exec(ctx)
	return err
}

func loadAppointment(ctx context.Context, idb bun.IDB, id int64) (models.Appointment, error) {
	var appt models.Appointment
	err := idb.NewSelect().Model(&appt).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return appt, ledger.NotFound("appointment", id)
	}
	return appt, err
}

func loadLine(ctx context.Context, idb bun.IDB, id int64) (models.BookingLine, error) {
	var line models.BookingLine
	err := idb.NewSelect().Model(&line).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return line, ledger.NotFound("line", id)
	}
	return line, err
}

func consignmentExists(ctx context.Context, idb bun.IDB, id int64) error {
	exists, err := idb.NewSelect().Model((*models.Consignment)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return ledger.NotFound("consignment", id)
	}
	return nil
}
