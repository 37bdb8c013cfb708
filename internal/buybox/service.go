package buybox

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

// Service ranks the competing offers for a product and maintains the single
// winner flag.
type Service interface {
	Recompute(ctx context.Context, productID uuid.UUID) error
	Winner(ctx context.Context, productID uuid.UUID) (*models.Listing, error)
	Rank(ctx context.Context, productID uuid.UUID) ([]RankedOffer, error)
}

// RankedOffer pairs a listing with its composite score, highest first.
type RankedOffer struct {
	Listing models.Listing
	Score   float64
}

type service struct {
	client *db.Client
	repo   Repository
	cfg    config.BuyBoxConfig
	logg   *logger.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewService wires the offer ranking service.
func NewService(client *db.Client, repo Repository, cfg config.BuyBoxConfig, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("buybox repository required")
	}
	return &service{
		client: client,
		repo:   repo,
		cfg:    cfg,
		logg:   logg,
		locks:  map[uuid.UUID]*sync.Mutex{},
	}, nil
}

// productLock serializes recomputes per product. Two concurrent writes to
// different listings of the same product queue here instead of racing on the
// winner flag.
func (s *service) productLock(productID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[productID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[productID] = lock
	}
	return lock
}

// Recompute re-scores every eligible offer for the product and swaps the
// winner flag inside one transaction.
func (s *service) Recompute(ctx context.Context, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	lock := s.productLock(productID)
	lock.Lock()
	defer lock.Unlock()

	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		offers, err := txRepo.ListOffers(ctx, productID)
		if err != nil {
			return err
		}

		ranked := s.rankOffers(offers)
		if len(ranked) == 0 {
			// No eligible offers: keep the last known winner on the board
			// rather than clearing it.
			if s.logg != nil {
				fields := map[string]any{"product_id": productID.String(), "eligible": 0}
				s.logg.Info(s.logg.WithFields(ctx, fields), "offer ranking recompute skipped")
			}
			return nil
		}

		winnerID := ranked[0].Listing.ID
		if err := txRepo.SetWinner(ctx, productID, &winnerID); err != nil {
			return err
		}

		if s.logg != nil {
			fields := map[string]any{
				"product_id":        productID.String(),
				"eligible":          len(ranked),
				"winner_listing_id": winnerID.String(),
			}
			s.logg.Info(s.logg.WithFields(ctx, fields), "offer ranking recomputed")
		}
		return nil
	})
}

// Winner returns the current winner without recomputing. A missing winner is
// reported as such; staleness is repaired by the next write, never by a read.
func (s *service) Winner(ctx context.Context, productID uuid.UUID) (*models.Listing, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	listing, err := s.repo.GetWinner(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading winner")
	}
	if listing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no eligible offer for product")
	}
	return listing, nil
}

// Rank returns the scored eligible offers, highest first.
func (s *service) Rank(ctx context.Context, productID uuid.UUID) ([]RankedOffer, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	offers, err := s.repo.ListOffers(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading offers")
	}
	return s.rankOffers(offers), nil
}

func (s *service) rankOffers(offers []Offer) []RankedOffer {
	eligible := make([]Offer, 0, len(offers))
	for _, offer := range offers {
		if !offer.eligible() {
			continue
		}
		eligible = append(eligible, offer)
	}
	if len(eligible) == 0 {
		return nil
	}

	minPrice := eligible[0].Listing.EffectivePriceCents()
	for _, offer := range eligible[1:] {
		if p := offer.Listing.EffectivePriceCents(); p < minPrice {
			minPrice = p
		}
	}

	ranked := make([]RankedOffer, 0, len(eligible))
	for _, offer := range eligible {
		ranked = append(ranked, RankedOffer{
			Listing: offer.Listing,
			Score:   s.score(offer, minPrice),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		// Equal scores fall back to the lowest listing id so the ranking is
		// deterministic across recomputes.
		return strings.Compare(ranked[i].Listing.ID.String(), ranked[j].Listing.ID.String()) < 0
	})
	return ranked
}

func (o Offer) eligible() bool {
	return o.Listing.Active &&
		o.ShopActive &&
		o.ShopKYCStatus == enums.KYCStatusApproved &&
		o.Listing.Stock > 0
}

func (s *service) score(offer Offer, minPrice int) float64 {
	price := offer.Listing.EffectivePriceCents()
	var priceScore float64
	if price > 0 {
		priceScore = float64(minPrice) / float64(price) * s.cfg.PriceWeight
	}

	reputation := offer.PerformanceScore
	if reputation < 0 {
		reputation = 0
	}
	if reputation > 100 {
		reputation = 100
	}
	reputationScore := reputation / 100 * s.cfg.ReputationWeight

	shippingScore := shippingMultiplier(offer.Listing.ShippingSpeed) * s.cfg.ShippingWeight

	stockCap := s.cfg.AvailabilityCap
	if stockCap <= 0 {
		stockCap = 100
	}
	availability := float64(offer.Listing.Stock) / float64(stockCap)
	if availability > 1 {
		availability = 1
	}
	availabilityScore := availability * s.cfg.AvailabilityWeight

	return priceScore + reputationScore + shippingScore + availabilityScore
}

func shippingMultiplier(speed enums.ShippingSpeed) float64 {
	switch speed {
	case enums.ShippingSpeedOvernight:
		return 1.0
	case enums.ShippingSpeedExpedited:
		return 0.75
	case enums.ShippingSpeedStandard:
		return 0.5
	default:
		return 0
	}
}
