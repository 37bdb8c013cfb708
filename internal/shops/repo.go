package shops

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
)

// Repository manages persistence for shops.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, shop *models.Shop) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error)
	UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) error
	UpdatePerformanceScore(ctx context.Context, id uuid.UUID, score float64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shop repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, shop *models.Shop) error {
	return r.db.WithContext(ctx).Create(shop).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (r *repository) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).First(&shop, "owner_id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shop, nil
}

func (r *repository) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) error {
	return r.db.WithContext(ctx).Model(&models.Shop{}).
		Where("id = ?", id).
		Update("kyc_status", status).Error
}

func (r *repository) UpdatePerformanceScore(ctx context.Context, id uuid.UUID, score float64) error {
	return r.db.WithContext(ctx).Model(&models.Shop{}).
		Where("id = ?", id).
		Update("performance_score", score).Error
}
