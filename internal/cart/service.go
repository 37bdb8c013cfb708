package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/internal/buybox"
	"github.com/bazario/bazario-backend/pkg/db/models"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

// Service defines buyer cart operations. Adding a product resolves the
// current winning offer, so the cart references concrete listings.
type Service interface {
	GetCart(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error)
	AddProduct(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.Cart, error)
	UpdateQuantity(ctx context.Context, buyerID, listingID uuid.UUID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, buyerID, listingID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo   Repository
	buybox buybox.Service
}

// NewService wires a cart service with its dependencies.
func NewService(repo Repository, buyboxSvc buybox.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if buyboxSvc == nil {
		return nil, fmt.Errorf("buybox service required")
	}
	return &service{repo: repo, buybox: buyboxSvc}, nil
}

// GetCart loads the buyer's cart, creating an empty one on first touch.
func (s *service) GetCart(ctx context.Context, buyerID uuid.UUID) (*models.Cart, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	cart, err := s.repo.GetByBuyerID(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if cart != nil {
		return cart, nil
	}

	cart = &models.Cart{BuyerID: buyerID}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating cart")
	}
	return cart, nil
}

// AddProduct resolves the product's winning offer and adds it to the cart.
// Adding the same product again bumps the quantity on the existing line.
func (s *service) AddProduct(ctx context.Context, buyerID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	winner, err := s.buybox.Winner(ctx, productID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetItem(ctx, cart.ID, winner.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}
	if existing != nil {
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart item")
		}
		return s.GetCart(ctx, buyerID)
	}

	item := &models.CartItem{
		CartID:         cart.ID,
		ListingID:      winner.ID,
		ShopID:         winner.ShopID,
		Quantity:       quantity,
		UnitPriceCents: winner.EffectivePriceCents(),
	}
	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adding cart item")
	}
	return s.GetCart(ctx, buyerID)
}

func (s *service) UpdateQuantity(ctx context.Context, buyerID, listingID uuid.UUID, quantity int) (*models.Cart, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.GetItem(ctx, cart.ID, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating cart item")
	}
	return s.GetCart(ctx, buyerID)
}

func (s *service) RemoveItem(ctx context.Context, buyerID, listingID uuid.UUID) (*models.Cart, error) {
	if listingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing id is required")
	}

	cart, err := s.GetCart(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.GetItem(ctx, cart.ID, listingID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "removing cart item")
	}
	return s.GetCart(ctx, buyerID)
}
