package buybox

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

type setWinnerCall struct {
	productID uuid.UUID
	winnerID  *uuid.UUID
}

type fakeRepository struct {
	mu       sync.Mutex
	offers   []Offer
	winner   *models.Listing
	setCalls []setWinnerCall

	listOffersFn func(ctx context.Context, productID uuid.UUID) ([]Offer, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) ListOffers(ctx context.Context, productID uuid.UUID) ([]Offer, error) {
	if f.listOffersFn != nil {
		return f.listOffersFn(ctx, productID)
	}
	return f.offers, nil
}

func (f *fakeRepository) GetWinner(ctx context.Context, productID uuid.UUID) (*models.Listing, error) {
	return f.winner, nil
}

func (f *fakeRepository) SetWinner(ctx context.Context, productID uuid.UUID, winnerID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, setWinnerCall{productID: productID, winnerID: winnerID})
	return nil
}

func testClient(t *testing.T) *db.Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db.NewWithConn(conn)
}

func defaultWeights() config.BuyBoxConfig {
	return config.BuyBoxConfig{
		PriceWeight:        40,
		ReputationWeight:   30,
		ShippingWeight:     20,
		AvailabilityWeight: 10,
		AvailabilityCap:    100,
	}
}

func approvedOffer(listing models.Listing, reputation float64) Offer {
	return Offer{
		Listing:          listing,
		ShopKYCStatus:    enums.KYCStatusApproved,
		PerformanceScore: reputation,
		ShopActive:       true,
	}
}

func TestRankScoresCompetingOffers(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	listingA := models.Listing{
		ID:            uuid.New(),
		ProductID:     productID,
		PriceCents:    10000,
		Stock:         50,
		ShippingSpeed: enums.ShippingSpeedStandard,
		Active:        true,
	}
	listingB := models.Listing{
		ID:            uuid.New(),
		ProductID:     productID,
		PriceCents:    9000,
		Stock:         5,
		ShippingSpeed: enums.ShippingSpeedOvernight,
		Active:        true,
	}

	repo := &fakeRepository{offers: []Offer{
		approvedOffer(listingA, 90),
		approvedOffer(listingB, 60),
	}}

	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	ranked, err := svc.Rank(context.Background(), productID)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked offers, got %d", len(ranked))
	}

	// The cheaper overnight offer edges out the better-stocked one: 78.5 vs 78.
	if ranked[0].Listing.ID != listingB.ID {
		t.Fatalf("expected listing B to win, got %s", ranked[0].Listing.ID)
	}
	if math.Abs(ranked[0].Score-78.5) > 1e-9 {
		t.Fatalf("expected winning score 78.5, got %f", ranked[0].Score)
	}
	if math.Abs(ranked[1].Score-78.0) > 1e-9 {
		t.Fatalf("expected runner-up score 78, got %f", ranked[1].Score)
	}
}

func TestRankUsesSalePriceAndCapsAvailability(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	salePrice := 8000
	listing := models.Listing{
		ID:             uuid.New(),
		ProductID:      productID,
		PriceCents:     10000,
		SalePriceCents: &salePrice,
		Stock:          500,
		ShippingSpeed:  enums.ShippingSpeedExpedited,
		Active:         true,
	}

	repo := &fakeRepository{offers: []Offer{approvedOffer(listing, 100)}}
	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	ranked, err := svc.Rank(context.Background(), productID)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 ranked offer, got %d", len(ranked))
	}
	// Sole offer: full price score, full reputation, expedited 0.75, stock
	// capped at 1.0.
	want := 40.0 + 30.0 + 15.0 + 10.0
	if math.Abs(ranked[0].Score-want) > 1e-9 {
		t.Fatalf("expected score %f, got %f", want, ranked[0].Score)
	}
}

func TestRankExcludesIneligibleOffers(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	base := func() models.Listing {
		return models.Listing{
			ID:            uuid.New(),
			ProductID:     productID,
			PriceCents:    1000,
			Stock:         10,
			ShippingSpeed: enums.ShippingSpeedStandard,
			Active:        true,
		}
	}

	inactive := base()
	inactive.Active = false
	outOfStock := base()
	outOfStock.Stock = 0
	eligible := base()

	unapproved := approvedOffer(base(), 90)
	unapproved.ShopKYCStatus = enums.KYCStatusPending
	suspendedShop := approvedOffer(base(), 90)
	suspendedShop.ShopActive = false

	repo := &fakeRepository{offers: []Offer{
		approvedOffer(inactive, 90),
		approvedOffer(outOfStock, 90),
		unapproved,
		suspendedShop,
		approvedOffer(eligible, 90),
	}}

	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	ranked, err := svc.Rank(context.Background(), productID)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected only the eligible offer, got %d", len(ranked))
	}
	if ranked[0].Listing.ID != eligible.ID {
		t.Fatalf("expected eligible listing %s, got %s", eligible.ID, ranked[0].Listing.ID)
	}
}

func TestRankTieBreaksOnLowestListingID(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	idLow := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idHigh := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

	makeListing := func(id uuid.UUID) models.Listing {
		return models.Listing{
			ID:            id,
			ProductID:     productID,
			PriceCents:    1000,
			Stock:         10,
			ShippingSpeed: enums.ShippingSpeedStandard,
			Active:        true,
		}
	}

	// Identical offers in both orders always resolve to the same winner.
	for _, offers := range [][]Offer{
		{approvedOffer(makeListing(idHigh), 50), approvedOffer(makeListing(idLow), 50)},
		{approvedOffer(makeListing(idLow), 50), approvedOffer(makeListing(idHigh), 50)},
	} {
		repo := &fakeRepository{offers: offers}
		svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
		if err != nil {
			t.Fatalf("build service: %v", err)
		}
		ranked, err := svc.Rank(context.Background(), productID)
		if err != nil {
			t.Fatalf("rank: %v", err)
		}
		if ranked[0].Listing.ID != idLow {
			t.Fatalf("expected tie to resolve to lowest id, got %s", ranked[0].Listing.ID)
		}
	}
}

func TestRecomputeSetsWinnerFlag(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	listing := models.Listing{
		ID:            uuid.New(),
		ProductID:     productID,
		PriceCents:    1000,
		Stock:         10,
		ShippingSpeed: enums.ShippingSpeedStandard,
		Active:        true,
	}
	repo := &fakeRepository{offers: []Offer{approvedOffer(listing, 80)}}

	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.Recompute(context.Background(), productID); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(repo.setCalls) != 1 {
		t.Fatalf("expected 1 SetWinner call, got %d", len(repo.setCalls))
	}
	call := repo.setCalls[0]
	if call.productID != productID {
		t.Fatalf("unexpected product id %s", call.productID)
	}
	if call.winnerID == nil || *call.winnerID != listing.ID {
		t.Fatalf("expected winner %s, got %v", listing.ID, call.winnerID)
	}
}

func TestRecomputeKeepsWinnerWhenNoneEligible(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	listing := models.Listing{
		ID:         uuid.New(),
		ProductID:  productID,
		PriceCents: 1000,
		Stock:      0,
		Active:     true,
	}
	repo := &fakeRepository{offers: []Offer{approvedOffer(listing, 80)}}

	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	// The sole offer is out of stock, so the recompute must leave the last
	// known winner untouched instead of clearing the flag.
	if err := svc.Recompute(context.Background(), productID); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if len(repo.setCalls) != 0 {
		t.Fatalf("expected no SetWinner calls, got %d", len(repo.setCalls))
	}
}

func TestShippingMultiplierIgnoresUnknownSpeed(t *testing.T) {
	t.Parallel()

	if got := shippingMultiplier(enums.ShippingSpeedStandard); got != 0.5 {
		t.Fatalf("expected standard 0.5, got %f", got)
	}
	if got := shippingMultiplier(enums.ShippingSpeed("")); got != 0 {
		t.Fatalf("expected missing speed to score 0, got %f", got)
	}
	if got := shippingMultiplier(enums.ShippingSpeed("carrier-pigeon")); got != 0 {
		t.Fatalf("expected unknown speed to score 0, got %f", got)
	}
}

func TestRecomputeSerializesPerProduct(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	listing := models.Listing{
		ID:            uuid.New(),
		ProductID:     productID,
		PriceCents:    1000,
		Stock:         10,
		ShippingSpeed: enums.ShippingSpeedStandard,
		Active:        true,
	}

	var mu sync.Mutex
	inFlight := 0
	overlapped := false
	repo := &fakeRepository{}
	repo.listOffersFn = func(ctx context.Context, id uuid.UUID) ([]Offer, error) {
		mu.Lock()
		inFlight++
		if inFlight > 1 {
			overlapped = true
		}
		mu.Unlock()

		offers := []Offer{approvedOffer(listing, 80)}

		mu.Lock()
		inFlight--
		mu.Unlock()
		return offers, nil
	}

	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := svc.Recompute(context.Background(), productID); err != nil {
				t.Errorf("recompute: %v", err)
			}
		}()
	}
	wg.Wait()

	if overlapped {
		t.Fatalf("expected recomputes for one product to run serially")
	}
	if len(repo.setCalls) != 8 {
		t.Fatalf("expected 8 SetWinner calls, got %d", len(repo.setCalls))
	}
}

func TestWinnerMissingReportsNotFound(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{}
	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	_, err = svc.Winner(context.Background(), uuid.New())
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestValidationRejectsNilProduct(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{}
	svc, err := NewService(testClient(t), repo, defaultWeights(), nil)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if err := svc.Recompute(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Winner(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.Rank(context.Background(), uuid.Nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
