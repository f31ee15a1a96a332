package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrProviderNotFound = errors.New("provider not found")

// Provider is a treating doctor that appointments may be assigned to.
type Provider struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
	DeletedAt *time.Time `gorm:"index"`

	FirstName string `gorm:"column:first_name;type:varchar(100);not null"`
	LastName  string `gorm:"column:last_name;type:varchar(100);not null"`
	Specialty string `gorm:"column:specialty;type:varchar(100);index"`
	IsActive  bool   `gorm:"column:is_active;default:true;index"`
}

func (Provider) TableName() string {
	return "clinical.providers"
}

func (p *Provider) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type Repository interface {
	Create(ctx context.Context, p *Provider) error
	GetByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	List(ctx context.Context, activeOnly bool) ([]*Provider, error)
}
