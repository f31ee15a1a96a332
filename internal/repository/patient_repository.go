package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/harborhealth/clinicdesk/internal/domain/patient"
)

const pgUniqueViolation = "23505"

type GormPatientRepository struct {
	db *gorm.DB
}

func NewGormPatientRepository(db *gorm.DB) *GormPatientRepository {
	return &GormPatientRepository{db: db}
}

func (r *GormPatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	err := r.db.WithContext(ctx).Create(p).Error

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return patient.ErrPatientAlreadyExists
	}
	return err
}

func (r *GormPatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPatientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Unscoped().
		Delete(&patient.Patient{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *GormPatientRepository) List(ctx context.Context, q *patient.ListQuery) ([]*patient.Patient, error) {
	db := r.db.WithContext(ctx).
		Model(&patient.Patient{}).
		Where("deleted_at IS NULL")

	if q.Search != "" {
		db = db.Where("first_name || ' ' || last_name ILIKE ?", "%"+q.Search+"%")
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}

	var patients []*patient.Patient
	if err := db.Order("last_name asc, first_name asc").Find(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}

func (r *GormPatientRepository) ExistsByNationalID(ctx context.Context, nationalID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&patient.Patient{}).
		Where("national_id = ? AND deleted_at IS NULL", nationalID).
		Count(&count).Error
	return count > 0, err
}
