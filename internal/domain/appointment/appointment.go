package appointment

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// State transitions:
//
//	scheduled  → checked_in | canceled | no_show
//	checked_in → completed | canceled
//	completed, canceled, no_show are terminal
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusNoShow    Status = "no_show"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	}
	return false
}

// ConflictKind classifies the outcome of an overlap check. The patient
// check runs first, so a slot conflicting on both reports ConflictPatient.
type ConflictKind string

const (
	ConflictNone     ConflictKind = "none"
	ConflictPatient  ConflictKind = "patient_conflict"
	ConflictProvider ConflictKind = "provider_conflict"
)

type Appointment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index"`
	// ProviderID is nil for unassigned appointments.
	ProviderID *uuid.UUID `gorm:"column:provider_id;type:uuid;index"`

	StartAt time.Time `gorm:"column:start_at;not null;index"`
	EndAt   time.Time `gorm:"column:end_at;not null"`
	Status  Status    `gorm:"column:status;type:varchar(30);not null;default:'scheduled';index"`

	Reason string `gorm:"column:reason;type:text"`
	Notes  string `gorm:"column:notes;type:text"`

	// Billing metadata, filled in at checkout.
	ProcedureCode string   `gorm:"column:procedure_code;type:varchar(20)"`
	Amount        *float64 `gorm:"column:amount;type:numeric(10,2)"`

	// Cancellation tracking
	CanceledAt         *time.Time `gorm:"column:canceled_at"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text"`
	CanceledBy         *uuid.UUID `gorm:"column:canceled_by;type:uuid"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

// DurationMins is the derived boundary field: whole minutes, never negative.
func (a *Appointment) DurationMins() int {
	mins := math.Round(a.EndAt.Sub(a.StartAt).Seconds() / 60)
	if mins < 0 {
		return 0
	}
	return int(mins)
}

// CountsForConflict reports whether this appointment blocks other bookings.
// Canceled appointments release their slot.
func (a *Appointment) CountsForConflict() bool {
	return a.Status != StatusCanceled && a.DeletedAt == nil
}

func (a *Appointment) CanTransitionTo(newStatus Status) bool {
	allowed := map[Status][]Status{
		StatusScheduled: {StatusCheckedIn, StatusCanceled, StatusNoShow},
		StatusCheckedIn: {StatusCompleted, StatusCanceled},
		StatusCompleted: {},
		StatusCanceled:  {},
		StatusNoShow:    {},
	}

	for _, s := range allowed[a.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

func (a *Appointment) Cancel(reason string, canceledBy uuid.UUID) error {
	if !a.CanTransitionTo(StatusCanceled) {
		return ErrInvalidStatusTransition
	}
	now := time.Now()
	a.Status = StatusCanceled
	a.CanceledAt = &now
	a.CancellationReason = reason
	a.CanceledBy = &canceledBy
	return nil
}

// Overlaps reports whether the two half-open intervals [s1,e1) and [s2,e2)
// share any instant.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return !(e1.Compare(s2) <= 0 || s1.Compare(e2) >= 0)
}

type CreateCommand struct {
	PatientID     uuid.UUID
	ProviderID    *uuid.UUID
	StartAt       time.Time
	EndAt         time.Time
	Status        Status
	Reason        string
	Notes         string
	ProcedureCode string
	Amount        *float64
	CreatedBy     uuid.UUID
}

// UpdateCommand carries partial-update fields; nil means "leave unchanged".
type UpdateCommand struct {
	ProviderID    **uuid.UUID // outer nil = unchanged, inner nil = unassign
	StartAt       *time.Time
	EndAt         *time.Time
	Status        *Status
	Reason        *string
	Notes         *string
	ProcedureCode *string
	Amount        *float64
	UpdatedBy     uuid.UUID
}

// ChangesTime reports whether the update moves the appointment's slot.
func (c *UpdateCommand) ChangesTime() bool {
	return c.StartAt != nil || c.EndAt != nil || c.ProviderID != nil
}

type ListQuery struct {
	PatientID  *uuid.UUID
	ProviderID *uuid.UUID
	Status     *Status
	// Date restricts to appointments starting on a single calendar day (UTC).
	Date     *time.Time
	DateFrom *time.Time
	DateTo   *time.Time
	// Descending orders by start_at descending for recent-activity views.
	Descending bool
	Limit      int
	Offset     int
}
