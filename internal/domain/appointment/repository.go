package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new appointment. The conflict check and the insert
	// run in one transaction holding advisory locks for the patient and
	// provider, so concurrent bookings of the same slot cannot both land.
	// Returns ErrPatientSlotTaken or ErrProviderSlotTaken on overlap.
	Create(ctx context.Context, a *Appointment) error

	// GetByID returns ErrAppointmentNotFound if the id does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Update applies partial updates. When checkConflict is set and the
	// command moves the slot, the overlap check re-runs (excluding the
	// appointment's own id) under the same locking as Create.
	Update(ctx context.Context, id uuid.UUID, cmd *UpdateCommand, checkConflict bool) (*Appointment, error)

	// UpdateStatus persists a status change already validated by the entity.
	UpdateStatus(ctx context.Context, a *Appointment) error

	// Delete removes the row. Used by the staff patient-deletion cascade.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByPatient hard-deletes all appointments belonging to a patient.
	DeleteByPatient(ctx context.Context, patientID uuid.UUID) error

	List(ctx context.Context, q *ListQuery) ([]*Appointment, error)

	// FindConflict is the pure overlap query: no locks, no writes.
	FindConflict(ctx context.Context, patientID uuid.UUID, providerID *uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (ConflictKind, error)

	// GetUpcoming returns non-canceled appointments starting within the next
	// N hours, for the external reminder poller.
	GetUpcoming(ctx context.Context, withinHours int) ([]*Appointment, error)
}
