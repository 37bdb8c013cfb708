package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/cart"
	"github.com/bazario/bazario-backend/internal/listings"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/shops"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/money"
	"github.com/bazario/bazario-backend/pkg/outbox"
)

var timeNow = time.Now

// Service turns a cart into a persisted order split per shop. Everything in
// PlaceOrder commits or rolls back as one unit: stock decrements, the order
// tree, coupon usage, the cart clear, and the placed event.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error)
}

// PlaceOrderInput captures a buyer's checkout submission.
type PlaceOrderInput struct {
	BuyerID       uuid.UUID
	AddressID     uuid.UUID
	PaymentMethod string
	CouponCode    *string
}

type service struct {
	client      *db.Client
	repo        Repository
	cartRepo    cart.Repository
	listingRepo listings.Repository
	shopRepo    shops.Repository
	orderRepo   orders.Repository
	events      *outbox.Service
	cfg         config.CheckoutConfig
	logg        *logger.Logger
}

// NewService wires a checkout service with its dependencies.
func NewService(
	client *db.Client,
	repo Repository,
	cartRepo cart.Repository,
	listingRepo listings.Repository,
	shopRepo shops.Repository,
	orderRepo orders.Repository,
	events *outbox.Service,
	cfg config.CheckoutConfig,
	logg *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("checkout repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if listingRepo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if shopRepo == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{
		client:      client,
		repo:        repo,
		cartRepo:    cartRepo,
		listingRepo: listingRepo,
		shopRepo:    shopRepo,
		orderRepo:   orderRepo,
		events:      events,
		cfg:         cfg,
		logg:        logg,
	}, nil
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "address id is required")
	}
	if input.PaymentMethod == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}

	buyerCart, err := s.cartRepo.GetByBuyerID(ctx, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if buyerCart == nil || len(buyerCart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	address, err := s.repo.GetAddress(ctx, input.AddressID, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading address")
	}
	if address == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
	}

	listingByID, productByID, err := s.loadCatalog(ctx, buyerCart.Items)
	if err != nil {
		return nil, err
	}
	if err := s.validateItems(ctx, buyerCart.Items, listingByID); err != nil {
		return nil, err
	}

	groups := groupByShop(buyerCart.Items, listingByID)
	totalCents := 0
	for _, group := range groups {
		totalCents += group.SubtotalCents
	}

	discountCents, couponCode := s.resolveDiscount(ctx, input.CouponCode, totalCents)
	// Tax applies to the pre-discount total; the coupon only reduces the
	// grand total.
	taxCents := money.ApplyBPS(totalCents, s.cfg.TaxRateBPS)
	grandTotalCents := totalCents + taxCents - discountCents

	order := &models.Order{
		BuyerID:         input.BuyerID,
		TotalCents:      totalCents,
		TaxCents:        taxCents,
		DiscountCents:   discountCents,
		GrandTotalCents: grandTotalCents,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   input.PaymentMethod,
		CouponCode:      couponCode,
		ShippingAddress: address.Snapshot(),
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txListings := s.listingRepo.WithTx(tx)
		txOrders := s.orderRepo.WithTx(tx)
		txCarts := s.cartRepo.WithTx(tx)
		txRepo := s.repo.WithTx(tx)

		order.SubOrders = buildSubOrders(groups, listingByID, productByID)
		if err := txOrders.CreateOrder(ctx, order); err != nil {
			return err
		}

		for _, item := range buyerCart.Items {
			listing := listingByID[item.ListingID]
			if !listing.TrackQuantity {
				continue
			}
			ok, err := txListings.DecrementStock(ctx, item.ListingID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("insufficient stock for listing %s", item.ListingID)).
					WithDetails(map[string]any{"listing_id": item.ListingID.String()})
			}
			if err := txListings.RecordAdjustment(ctx, &models.InventoryAdjustment{
				ListingID: item.ListingID,
				Delta:     -item.Quantity,
				Reason:    "checkout",
			}); err != nil {
				return err
			}
		}

		if couponCode != nil {
			coupon, err := txRepo.GetCouponByCode(ctx, *couponCode)
			if err != nil {
				return err
			}
			if coupon != nil {
				ok, err := txRepo.IncrementCouponUsage(ctx, coupon.ID)
				if err != nil {
					return err
				}
				if !ok {
					return pkgerrors.New(pkgerrors.CodeConflict, "coupon usage limit reached")
				}
			}
		}

		if err := txCarts.ClearItems(ctx, buyerCart.ID); err != nil {
			return err
		}

		subOrderIDs := make([]uuid.UUID, 0, len(order.SubOrders))
		shopIDs := make([]uuid.UUID, 0, len(order.SubOrders))
		for _, so := range order.SubOrders {
			subOrderIDs = append(subOrderIDs, so.ID)
			shopIDs = append(shopIDs, so.ShopID)
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: "buyer"},
			Data: outbox.OrderPlacedData{
				OrderID:        order.ID,
				BuyerID:        input.BuyerID,
				SubOrderIDs:    subOrderIDs,
				SubOrderShops:  shopIDs,
				GrandTotal:     grandTotalCents,
				Currency:       "USD",
				CouponCode:     couponCode,
				DiscountCents:  discountCents,
				TaxCents:       taxCents,
				SubtotalCents:  totalCents,
				LineItemsCount: len(buyerCart.Items),
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "placing order")
	}

	placed, err := s.orderRepo.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading placed order")
	}
	return placed, nil
}

func (s *service) loadCatalog(ctx context.Context, items []models.CartItem) (map[uuid.UUID]models.Listing, map[uuid.UUID]models.Product, error) {
	listingIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		listingIDs = append(listingIDs, item.ListingID)
	}
	listingRows, err := s.listingRepo.ListByIDs(ctx, listingIDs)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading listings")
	}
	listingByID := make(map[uuid.UUID]models.Listing, len(listingRows))
	productIDs := make([]uuid.UUID, 0, len(listingRows))
	for _, l := range listingRows {
		listingByID[l.ID] = l
		productIDs = append(productIDs, l.ProductID)
	}
	productByID, err := s.repo.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	return listingByID, productByID, nil
}

func (s *service) validateItems(ctx context.Context, items []models.CartItem, listingByID map[uuid.UUID]models.Listing) error {
	for _, item := range items {
		listing, ok := listingByID[item.ListingID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("listing %s no longer exists", item.ListingID))
		}
		if !listing.Active {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("listing %s is inactive", item.ListingID))
		}
		if listing.TrackQuantity && listing.Stock < item.Quantity && !listing.AllowBackorder {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("insufficient stock for listing %s", item.ListingID))
		}
		shop, err := s.shopRepo.GetByID(ctx, listing.ShopID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop")
		}
		if shop == nil || !shop.Active || shop.KYCStatus != enums.KYCStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("shop for listing %s cannot take orders", item.ListingID))
		}
	}
	return nil
}

// resolveDiscount applies the coupon when it is usable and silently skips it
// otherwise. A bad coupon never blocks checkout.
func (s *service) resolveDiscount(ctx context.Context, code *string, subtotalCents int) (int, *string) {
	if code == nil || *code == "" {
		return 0, nil
	}
	coupon, err := s.repo.GetCouponByCode(ctx, *code)
	if err != nil || coupon == nil || !coupon.UsableAt(timeNow(), subtotalCents) {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "coupon_code", *code), "coupon skipped")
		}
		return 0, nil
	}

	discount := 0
	switch {
	case coupon.FlatCents != nil:
		discount = *coupon.FlatCents
	case coupon.PercentBPS != nil:
		discount = money.ApplyBPS(subtotalCents, *coupon.PercentBPS)
		if coupon.MaxDiscountCents != nil && discount > *coupon.MaxDiscountCents {
			discount = *coupon.MaxDiscountCents
		}
	}
	if discount > subtotalCents {
		discount = subtotalCents
	}
	if discount <= 0 {
		return 0, nil
	}
	return discount, code
}

func buildSubOrders(groups []shopGroup, listingByID map[uuid.UUID]models.Listing, productByID map[uuid.UUID]models.Product) []models.SubOrder {
	subOrders := make([]models.SubOrder, 0, len(groups))
	for _, group := range groups {
		subOrder := models.SubOrder{
			ShopID:        group.ShopID,
			SubtotalCents: group.SubtotalCents,
			Status:        enums.SubOrderStatusPending,
		}
		for _, item := range group.Items {
			listing := listingByID[item.ListingID]
			listingID := listing.ID
			productID := listing.ProductID
			title := "unknown product"
			var imageURL *string
			if product, ok := productByID[listing.ProductID]; ok {
				title = product.Title
				imageURL = product.ImageURL
			}
			unitPrice := listing.EffectivePriceCents()
			subOrder.Items = append(subOrder.Items, models.SubOrderItem{
				ListingID:      &listingID,
				ProductID:      &productID,
				Title:          title,
				ImageURL:       imageURL,
				UnitPriceCents: unitPrice,
				Quantity:       item.Quantity,
				TotalCents:     unitPrice * item.Quantity,
			})
		}
		subOrders = append(subOrders, subOrder)
	}
	return subOrders
}
