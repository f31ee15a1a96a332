package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/harborhealth/clinicdesk/internal/domain/appointment"
)

// pgExclusionViolation is raised by the gist exclusion constraint on
// (provider_id, time range). It backstops the advisory-lock path.
const pgExclusionViolation = "23P01"

type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// lockSchedulingKeys takes transaction-scoped advisory locks for the patient
// and, if set, the provider. Lock order is fixed (patient before provider) so
// concurrent bookings cannot deadlock. The locks serialize the conflict check
// with the subsequent insert/update, closing the check-then-act race.
func lockSchedulingKeys(tx *gorm.DB, patientID uuid.UUID, providerID *uuid.UUID) error {
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?::text, 0))", patientID.String()).Error; err != nil {
		return err
	}
	if providerID != nil {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?::text, 0))", providerID.String()).Error; err != nil {
			return err
		}
	}
	return nil
}

func findConflict(tx *gorm.DB, patientID uuid.UUID, providerID *uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (appointment.ConflictKind, error) {
	overlap := func(q *gorm.DB) *gorm.DB {
		q = q.Model(&appointment.Appointment{}).
			Where("status <> ?", appointment.StatusCanceled).
			Where("deleted_at IS NULL").
			Where("start_at < ? AND end_at > ?", end, start)
		if excludeID != nil {
			q = q.Where("id <> ?", *excludeID)
		}
		return q
	}

	// Patient check first: a slot conflicting on both reports the patient.
	var count int64
	if err := overlap(tx).Where("patient_id = ?", patientID).Count(&count).Error; err != nil {
		return appointment.ConflictNone, err
	}
	if count > 0 {
		return appointment.ConflictPatient, nil
	}

	if providerID != nil {
		if err := overlap(tx).Where("provider_id = ?", *providerID).Count(&count).Error; err != nil {
			return appointment.ConflictNone, err
		}
		if count > 0 {
			return appointment.ConflictProvider, nil
		}
	}

	return appointment.ConflictNone, nil
}

func conflictErr(kind appointment.ConflictKind) error {
	switch kind {
	case appointment.ConflictPatient:
		return appointment.ErrPatientSlotTaken
	case appointment.ConflictProvider:
		return appointment.ErrProviderSlotTaken
	}
	return nil
}

func (r *GormAppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSchedulingKeys(tx, a.PatientID, a.ProviderID); err != nil {
			return err
		}
		kind, err := findConflict(tx, a.PatientID, a.ProviderID, a.StartAt, a.EndAt, nil)
		if err != nil {
			return err
		}
		if kind != appointment.ConflictNone {
			return conflictErr(kind)
		}
		return tx.Create(a).Error
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return appointment.ErrProviderSlotTaken
	}
	return err
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appointment.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) Update(ctx context.Context, id uuid.UUID, cmd *appointment.UpdateCommand, checkConflict bool) (*appointment.Appointment, error) {
	var updated *appointment.Appointment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a appointment.Appointment
		if err := tx.Where("deleted_at IS NULL").First(&a, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appointment.ErrAppointmentNotFound
			}
			return err
		}

		if cmd.ProviderID != nil {
			a.ProviderID = *cmd.ProviderID
		}
		if cmd.StartAt != nil {
			a.StartAt = *cmd.StartAt
		}
		if cmd.EndAt != nil {
			a.EndAt = *cmd.EndAt
		}
		if cmd.Status != nil {
			a.Status = *cmd.Status
		}
		if cmd.Reason != nil {
			a.Reason = *cmd.Reason
		}
		if cmd.Notes != nil {
			a.Notes = *cmd.Notes
		}
		if cmd.ProcedureCode != nil {
			a.ProcedureCode = *cmd.ProcedureCode
		}
		if cmd.Amount != nil {
			a.Amount = cmd.Amount
		}

		if checkConflict && cmd.ChangesTime() && a.CountsForConflict() {
			if err := lockSchedulingKeys(tx, a.PatientID, a.ProviderID); err != nil {
				return err
			}
			kind, err := findConflict(tx, a.PatientID, a.ProviderID, a.StartAt, a.EndAt, &a.ID)
			if err != nil {
				return err
			}
			if kind != appointment.ConflictNone {
				return conflictErr(kind)
			}
		}

		if err := tx.Save(&a).Error; err != nil {
			return err
		}
		updated = &a
		return nil
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
		return nil, appointment.ErrProviderSlotTaken
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *GormAppointmentRepository) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	update := map[string]any{
		"status": a.Status,
	}
	if a.CanceledAt != nil {
		update["canceled_at"] = *a.CanceledAt
		update["cancellation_reason"] = a.CancellationReason
		update["canceled_by"] = a.CanceledBy
	}

	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND deleted_at IS NULL", a.ID).
		Updates(update)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *GormAppointmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Delete(&appointment.Appointment{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return appointment.ErrAppointmentNotFound
	}
	return nil
}

func (r *GormAppointmentRepository) DeleteByPatient(ctx context.Context, patientID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Unscoped().
		Delete(&appointment.Appointment{}, "patient_id = ?", patientID).Error
}

func (r *GormAppointmentRepository) List(ctx context.Context, q *appointment.ListQuery) ([]*appointment.Appointment, error) {
	db := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("deleted_at IS NULL")

	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.ProviderID != nil {
		db = db.Where("provider_id = ?", *q.ProviderID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.Date != nil {
		day := q.Date.UTC().Truncate(24 * time.Hour)
		db = db.Where("start_at >= ? AND start_at < ?", day, day.Add(24*time.Hour))
	}
	if q.DateFrom != nil {
		db = db.Where("start_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		db = db.Where("start_at < ?", *q.DateTo)
	}

	order := "start_at asc"
	if q.Descending {
		order = "start_at desc"
	}
	db = db.Order(order)

	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}

	var appts []*appointment.Appointment
	if err := db.Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *GormAppointmentRepository) FindConflict(ctx context.Context, patientID uuid.UUID, providerID *uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (appointment.ConflictKind, error) {
	return findConflict(r.db.WithContext(ctx), patientID, providerID, start, end, excludeID)
}

func (r *GormAppointmentRepository) GetUpcoming(ctx context.Context, withinHours int) ([]*appointment.Appointment, error) {
	now := time.Now()
	var appts []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Where("status = ?", appointment.StatusScheduled).
		Where("start_at >= ? AND start_at < ?", now, now.Add(time.Duration(withinHours)*time.Hour)).
		Order("start_at asc").
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}
