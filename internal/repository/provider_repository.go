package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harborhealth/clinicdesk/internal/domain/provider"
)

type GormProviderRepository struct {
	db *gorm.DB
}

func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

func (r *GormProviderRepository) Create(ctx context.Context, p *provider.Provider) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *GormProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*provider.Provider, error) {
	var p provider.Provider
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, provider.ErrProviderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProviderRepository) List(ctx context.Context, activeOnly bool) ([]*provider.Provider, error) {
	db := r.db.WithContext(ctx).Where("deleted_at IS NULL")
	if activeOnly {
		db = db.Where("is_active = true")
	}

	var providers []*provider.Provider
	if err := db.Order("last_name asc").Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}
