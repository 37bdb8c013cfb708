package buybox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
)

// Offer is one listing joined with the shop fields ranking needs.
type Offer struct {
	Listing          models.Listing
	ShopKYCStatus    enums.KYCStatus
	PerformanceScore float64
	ShopActive       bool
}

// Repository manages the ranking reads and the winner flag writes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListOffers(ctx context.Context, productID uuid.UUID) ([]Offer, error)
	GetWinner(ctx context.Context, productID uuid.UUID) (*models.Listing, error)
	SetWinner(ctx context.Context, productID uuid.UUID, winnerID *uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ranking repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListOffers(ctx context.Context, productID uuid.UUID) ([]Offer, error) {
	var listings []models.Listing
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&listings).Error; err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, nil
	}

	shopIDs := make([]uuid.UUID, 0, len(listings))
	seen := map[uuid.UUID]bool{}
	for _, l := range listings {
		if !seen[l.ShopID] {
			seen[l.ShopID] = true
			shopIDs = append(shopIDs, l.ShopID)
		}
	}

	var shopRows []models.Shop
	if err := r.db.WithContext(ctx).
		Where("id IN ?", shopIDs).
		Find(&shopRows).Error; err != nil {
		return nil, err
	}
	shopByID := make(map[uuid.UUID]models.Shop, len(shopRows))
	for _, s := range shopRows {
		shopByID[s.ID] = s
	}

	offers := make([]Offer, 0, len(listings))
	for _, l := range listings {
		shop, ok := shopByID[l.ShopID]
		if !ok {
			continue
		}
		offers = append(offers, Offer{
			Listing:          l,
			ShopKYCStatus:    shop.KYCStatus,
			PerformanceScore: shop.PerformanceScore,
			ShopActive:       shop.Active,
		})
	}
	return offers, nil
}

func (r *repository) GetWinner(ctx context.Context, productID uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND buy_box_winner = ?", productID, true).
		First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// SetWinner clears the flag on every listing of the product and sets it on the
// winner, in that order, so at most one row ever carries it.
func (r *repository) SetWinner(ctx context.Context, productID uuid.UUID, winnerID *uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("product_id = ? AND buy_box_winner = ?", productID, true).
		Update("buy_box_winner", false).Error; err != nil {
		return err
	}
	if winnerID == nil {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ?", *winnerID).
		Update("buy_box_winner", true).Error
}
