package listings

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/shops"
	dbpkg "github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

type fakeListingRepo struct {
	listings    map[uuid.UUID]*models.Listing
	adjustments []models.InventoryAdjustment
	createErr   error
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: map[uuid.UUID]*models.Listing{}}
}

func (f *fakeListingRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeListingRepo) Create(ctx context.Context, listing *models.Listing) error {
	if f.createErr != nil {
		return f.createErr
	}
	listing.ID = uuid.New()
	f.listings[listing.ID] = listing
	return nil
}

func (f *fakeListingRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	if l, ok := f.listings[id]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeListingRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Listing, error) {
	return nil, nil
}

func (f *fakeListingRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	return nil, nil
}

func (f *fakeListingRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	l := f.listings[id]
	if v, ok := updates["price_cents"].(int); ok {
		l.PriceCents = v
	}
	if v, ok := updates["sale_price_cents"].(*int); ok {
		l.SalePriceCents = v
	}
	if v, ok := updates["active"].(bool); ok {
		l.Active = v
	}
	if v, ok := updates["stock_status"].(enums.StockStatus); ok {
		l.StockStatus = v
	}
	return nil
}

func (f *fakeListingRepo) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	l := f.listings[id]
	if l.Stock < quantity {
		return false, nil
	}
	l.Stock -= quantity
	return true, nil
}

func (f *fakeListingRepo) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	f.listings[id].Stock += quantity
	return nil
}

func (f *fakeListingRepo) RecordAdjustment(ctx context.Context, adj *models.InventoryAdjustment) error {
	f.adjustments = append(f.adjustments, *adj)
	return nil
}

type fakeShopRepo struct {
	shops map[uuid.UUID]*models.Shop
}

func (f *fakeShopRepo) WithTx(tx *gorm.DB) shops.Repository               { return f }
func (f *fakeShopRepo) Create(ctx context.Context, sh *models.Shop) error { return nil }
func (f *fakeShopRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if sh, ok := f.shops[id]; ok {
		cp := *sh
		return &cp, nil
	}
	return nil, nil
}
func (f *fakeShopRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error) {
	return nil, nil
}
func (f *fakeShopRepo) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) error {
	return nil
}
func (f *fakeShopRepo) UpdatePerformanceScore(ctx context.Context, id uuid.UUID, score float64) error {
	return nil
}

type fakeRecomputer struct {
	products []uuid.UUID
}

func (f *fakeRecomputer) Recompute(ctx context.Context, productID uuid.UUID) error {
	f.products = append(f.products, productID)
	return nil
}

type listingFixture struct {
	shop       *models.Shop
	repo       *fakeListingRepo
	recomputer *fakeRecomputer
	svc        Service
}

func newListingFixture(t *testing.T) *listingFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	f := &listingFixture{
		repo:       newFakeListingRepo(),
		recomputer: &fakeRecomputer{},
	}
	f.shop = &models.Shop{ID: uuid.New(), OwnerID: uuid.New(), KYCStatus: enums.KYCStatusApproved, Active: true}
	shopRepo := &fakeShopRepo{shops: map[uuid.UUID]*models.Shop{f.shop.ID: f.shop}}
	svc, err := NewService(dbpkg.NewWithConn(conn), f.repo, shopRepo, f.recomputer)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *listingFixture) seedListing(t *testing.T, stock int) *models.Listing {
	t.Helper()
	listing, err := f.svc.CreateListing(context.Background(), CreateListingInput{
		ProductID:  uuid.New(),
		ShopID:     f.shop.ID,
		SKU:        "SKU-1",
		PriceCents: 15000,
		Stock:      stock,
	})
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return listing
}

func TestCreateListingDefaultsAndRecomputes(t *testing.T) {
	f := newListingFixture(t)

	listing := f.seedListing(t, 10)

	if !listing.Active {
		t.Fatalf("expected new listing active")
	}
	if listing.ShippingSpeed != enums.ShippingSpeedStandard {
		t.Fatalf("expected standard shipping default, got %s", listing.ShippingSpeed)
	}
	if listing.StockStatus != enums.StockStatusInStock {
		t.Fatalf("expected in_stock, got %s", listing.StockStatus)
	}
	if len(f.recomputer.products) != 1 || f.recomputer.products[0] != listing.ProductID {
		t.Fatalf("expected one recompute for the product, got %v", f.recomputer.products)
	}
}

func TestCreateListingRequiresApprovedShop(t *testing.T) {
	f := newListingFixture(t)
	f.shop.KYCStatus = enums.KYCStatusPending

	_, err := f.svc.CreateListing(context.Background(), CreateListingInput{
		ProductID:  uuid.New(),
		ShopID:     f.shop.ID,
		PriceCents: 15000,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for unapproved shop, got %v", err)
	}
}

func TestCreateListingDuplicateProduct(t *testing.T) {
	f := newListingFixture(t)
	f.repo.createErr = errors.New(`duplicate key value violates unique constraint "ux_listings_product_shop"`)

	_, err := f.svc.CreateListing(context.Background(), CreateListingInput{
		ProductID:  uuid.New(),
		ShopID:     f.shop.ID,
		PriceCents: 15000,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for duplicate listing, got %v", err)
	}
}

func TestUpdatePriceRecomputes(t *testing.T) {
	f := newListingFixture(t)
	listing := f.seedListing(t, 10)
	sale := 12000

	updated, err := f.svc.UpdatePrice(context.Background(), listing.ID, 14000, &sale)
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if updated.PriceCents != 14000 {
		t.Fatalf("expected price 14000, got %d", updated.PriceCents)
	}
	if updated.SalePriceCents == nil || *updated.SalePriceCents != 12000 {
		t.Fatalf("expected sale price 12000, got %v", updated.SalePriceCents)
	}
	if len(f.recomputer.products) != 2 {
		t.Fatalf("expected recompute after price change, got %d calls", len(f.recomputer.products))
	}
}

func TestAdjustStockDownToZero(t *testing.T) {
	f := newListingFixture(t)
	listing := f.seedListing(t, 3)

	updated, err := f.svc.AdjustStock(context.Background(), listing.ID, -3, "damaged in warehouse")
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if updated.Stock != 0 {
		t.Fatalf("expected empty stock, got %d", updated.Stock)
	}
	if updated.StockStatus != enums.StockStatusOutOfStock {
		t.Fatalf("expected out_of_stock, got %s", updated.StockStatus)
	}
	if len(f.repo.adjustments) != 1 {
		t.Fatalf("expected 1 adjustment row, got %d", len(f.repo.adjustments))
	}
	if f.repo.adjustments[0].Delta != -3 || f.repo.adjustments[0].Reason != "damaged in warehouse" {
		t.Fatalf("unexpected adjustment %+v", f.repo.adjustments[0])
	}
}

func TestAdjustStockRejectsOverdraw(t *testing.T) {
	f := newListingFixture(t)
	listing := f.seedListing(t, 2)

	_, err := f.svc.AdjustStock(context.Background(), listing.ID, -5, "shrinkage")
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on overdraw, got %v", err)
	}
}

func TestSetActiveTogglesAndRecomputes(t *testing.T) {
	f := newListingFixture(t)
	listing := f.seedListing(t, 5)

	updated, err := f.svc.SetActive(context.Background(), listing.ID, false)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if updated.Active {
		t.Fatalf("expected inactive listing")
	}
	if len(f.recomputer.products) != 2 {
		t.Fatalf("expected recompute after deactivation, got %d calls", len(f.recomputer.products))
	}

	// Toggling to the current state is a no-op.
	if _, err := f.svc.SetActive(context.Background(), listing.ID, false); err != nil {
		t.Fatalf("idempotent deactivate: %v", err)
	}
	if len(f.recomputer.products) != 2 {
		t.Fatalf("expected no recompute on no-op toggle, got %d calls", len(f.recomputer.products))
	}
}
