package listings

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/shops"
	dbpkg "github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

// Recomputer re-ranks the offers for a product. Price, stock, and activation
// writes call it before returning so reads never see a stale winner.
type Recomputer interface {
	Recompute(ctx context.Context, productID uuid.UUID) error
}

// Service defines seller-facing listing operations.
type Service interface {
	CreateListing(ctx context.Context, input CreateListingInput) (*models.Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, priceCents int, salePriceCents *int) (*models.Listing, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int, reason string) (*models.Listing, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Listing, error)
}

type service struct {
	client     *dbpkg.Client
	repo       Repository
	shopRepo   shops.Repository
	recomputer Recomputer
}

// CreateListingInput captures the fields for a new offer.
type CreateListingInput struct {
	ProductID      uuid.UUID
	ShopID         uuid.UUID
	SKU            string
	PriceCents     int
	SalePriceCents *int
	Stock          int
	ShippingSpeed  enums.ShippingSpeed
}

// NewService wires a listing service with its dependencies.
func NewService(client *dbpkg.Client, repo Repository, shopRepo shops.Repository, recomputer Recomputer) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if shopRepo == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	if recomputer == nil {
		return nil, fmt.Errorf("recomputer required")
	}
	return &service{client: client, repo: repo, shopRepo: shopRepo, recomputer: recomputer}, nil
}

func (s *service) CreateListing(ctx context.Context, input CreateListingInput) (*models.Listing, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	if input.PriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if input.SalePriceCents != nil && *input.SalePriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale price must be positive")
	}
	if input.ShippingSpeed == "" {
		input.ShippingSpeed = enums.ShippingSpeedStandard
	}
	if !input.ShippingSpeed.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid shipping speed %q", input.ShippingSpeed))
	}

	shop, err := s.shopRepo.GetByID(ctx, input.ShopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop")
	}
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	if shop.KYCStatus != enums.KYCStatusApproved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shop is not kyc approved")
	}

	listing := &models.Listing{
		ProductID:      input.ProductID,
		ShopID:         input.ShopID,
		SKU:            input.SKU,
		PriceCents:     input.PriceCents,
		SalePriceCents: input.SalePriceCents,
		Stock:          input.Stock,
		StockStatus:    stockStatusFor(input.Stock),
		ShippingSpeed:  input.ShippingSpeed,
		TrackQuantity:  true,
		Active:         true,
	}
	if err := s.repo.Create(ctx, listing); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_listings_product_shop") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "shop already lists this product")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating listing")
	}

	if err := s.recomputer.Recompute(ctx, listing.ProductID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recomputing offer ranking")
	}
	return s.GetListing(ctx, listing.ID)
}

func (s *service) GetListing(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	listing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listing")
	}
	if listing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	return listing, nil
}

func (s *service) UpdatePrice(ctx context.Context, id uuid.UUID, priceCents int, salePriceCents *int) (*models.Listing, error) {
	if priceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if salePriceCents != nil && *salePriceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale price must be positive")
	}

	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"price_cents":      priceCents,
		"sale_price_cents": salePriceCents,
	}
	if err := s.repo.Update(ctx, listing.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating price")
	}

	if err := s.recomputer.Recompute(ctx, listing.ProductID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recomputing offer ranking")
	}
	return s.GetListing(ctx, listing.ID)
}

func (s *service) AdjustStock(ctx context.Context, id uuid.UUID, delta int, reason string) (*models.Listing, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock delta cannot be zero")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required")
	}

	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if delta < 0 {
			ok, err := txRepo.DecrementStock(ctx, listing.ID, -delta)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock for adjustment")
			}
		} else {
			if err := txRepo.IncrementStock(ctx, listing.ID, delta); err != nil {
				return err
			}
		}
		if err := txRepo.RecordAdjustment(ctx, &models.InventoryAdjustment{
			ListingID: listing.ID,
			Delta:     delta,
			Reason:    reason,
		}); err != nil {
			return err
		}
		return syncStockStatus(ctx, txRepo, listing.ID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjusting stock")
	}

	if err := s.recomputer.Recompute(ctx, listing.ProductID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recomputing offer ranking")
	}
	return s.GetListing(ctx, listing.ID)
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.Listing, error) {
	listing, err := s.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Active == active {
		return listing, nil
	}

	if err := s.repo.Update(ctx, listing.ID, map[string]any{"active": active}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating listing state")
	}

	if err := s.recomputer.Recompute(ctx, listing.ProductID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recomputing offer ranking")
	}
	return s.GetListing(ctx, listing.ID)
}

func syncStockStatus(ctx context.Context, repo Repository, id uuid.UUID) error {
	listing, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if listing == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
	}
	status := stockStatusFor(listing.Stock)
	if listing.StockStatus == status {
		return nil
	}
	return repo.Update(ctx, id, map[string]any{"stock_status": status})
}

func stockStatusFor(stock int) enums.StockStatus {
	if stock > 0 {
		return enums.StockStatusInStock
	}
	return enums.StockStatusOutOfStock
}
