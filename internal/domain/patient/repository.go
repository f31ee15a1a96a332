package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create persists a new patient. Returns ErrPatientAlreadyExists on duplicate NationalID.
	Create(ctx context.Context, p *Patient) error

	// GetByID returns ErrPatientNotFound if the id does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Delete removes the row. Appointment cleanup is the service's job.
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, q *ListQuery) ([]*Patient, error)

	// ExistsByNationalID checks for uniqueness without fetching the full record.
	ExistsByNationalID(ctx context.Context, nationalID string) (bool, error)
}
