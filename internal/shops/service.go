package shops

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/outbox"
)

// Service defines shop lifecycle and reputation operations.
type Service interface {
	CreateShop(ctx context.Context, input CreateShopInput) (*models.Shop, error)
	GetShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	DecideKYC(ctx context.Context, input DecideKYCInput) (*models.Shop, error)
	Reputation(ctx context.Context, shopID uuid.UUID) (float64, error)
}

// ReputationProvider is the read surface offer ranking consumes. Scores are
// clamped to [0,100] so a corrupt row can never distort the composite.
type ReputationProvider interface {
	Reputation(ctx context.Context, shopID uuid.UUID) (float64, error)
}

type service struct {
	client *db.Client
	repo   Repository
	events *outbox.Service
}

// CreateShopInput captures the fields needed to open a storefront.
type CreateShopInput struct {
	OwnerID    uuid.UUID
	Name       string
	Categories []string
}

// DecideKYCInput captures an admin KYC decision.
type DecideKYCInput struct {
	ShopID  uuid.UUID
	AdminID uuid.UUID
	Approve bool
	Reason  *string
}

// NewService wires a shop service with its dependencies.
func NewService(client *db.Client, repo Repository, events *outbox.Service) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{client: client, repo: repo, events: events}, nil
}

func (s *service) CreateShop(ctx context.Context, input CreateShopInput) (*models.Shop, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop name is required")
	}

	existing, err := s.repo.GetByOwnerID(ctx, input.OwnerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop by owner")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "owner already has a shop")
	}

	shop := &models.Shop{
		OwnerID:    input.OwnerID,
		Name:       input.Name,
		KYCStatus:  enums.KYCStatusPending,
		Categories: input.Categories,
		Active:     true,
	}
	if err := s.repo.Create(ctx, shop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating shop")
	}
	return shop, nil
}

func (s *service) GetShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	shop, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop")
	}
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	return shop, nil
}

// DecideKYC applies an admin approval or rejection to a pending shop. The
// status write and the decision event commit together.
func (s *service) DecideKYC(ctx context.Context, input DecideKYCInput) (*models.Shop, error) {
	if input.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}

	shop, err := s.GetShop(ctx, input.ShopID)
	if err != nil {
		return nil, err
	}
	if shop.KYCStatus != enums.KYCStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("kyc already decided: %s", shop.KYCStatus))
	}

	status := enums.KYCStatusRejected
	if input.Approve {
		status = enums.KYCStatusApproved
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateKYCStatus(ctx, shop.ID, status); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventShopKYCDecided,
			AggregateType: enums.AggregateShop,
			AggregateID:   shop.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: "admin"},
			Data: outbox.ShopKYCDecidedData{
				ShopID:   shop.ID,
				Decision: status.String(),
				Reason:   input.Reason,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying kyc decision")
	}

	shop.KYCStatus = status
	return shop, nil
}

// Reputation returns the shop's performance score clamped to [0,100].
func (s *service) Reputation(ctx context.Context, shopID uuid.UUID) (float64, error) {
	shop, err := s.GetShop(ctx, shopID)
	if err != nil {
		return 0, err
	}
	return clampScore(shop.PerformanceScore), nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
