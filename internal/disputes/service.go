package disputes

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
)

// Service opens and reads disputes. Resolution moves money, so it lives with
// the settlement orchestrator.
type Service interface {
	OpenDispute(ctx context.Context, input OpenDisputeInput) (*models.Dispute, error)
	GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
}

// OpenDisputeInput captures a buyer complaint against a sub-order.
type OpenDisputeInput struct {
	SubOrderID uuid.UUID
	BuyerID    uuid.UUID
	Reason     string
}

type service struct {
	repo      Repository
	orderRepo orders.Repository
}

// NewService wires a dispute service with its dependencies.
func NewService(repo Repository, orderRepo orders.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{repo: repo, orderRepo: orderRepo}, nil
}

func (s *service) OpenDispute(ctx context.Context, input OpenDisputeInput) (*models.Dispute, error) {
	if input.SubOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-order id is required")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	subOrder, err := s.orderRepo.GetSubOrder(ctx, input.SubOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sub-order")
	}
	if subOrder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	order, err := s.orderRepo.GetOrder(ctx, subOrder.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading parent order")
	}
	if order == nil || order.BuyerID != input.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	if subOrder.SettledAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order already settled")
	}
	if subOrder.Status == enums.SubOrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order already cancelled")
	}

	open, err := s.repo.HasOpenForSubOrder(ctx, input.SubOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking open disputes")
	}
	if open {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "dispute already open for sub-order")
	}

	dispute := &models.Dispute{
		SubOrderID: input.SubOrderID,
		BuyerID:    input.BuyerID,
		Reason:     input.Reason,
		Status:     enums.DisputeStatusOpen,
	}
	if err := s.repo.Create(ctx, dispute); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating dispute")
	}
	return dispute, nil
}

func (s *service) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id is required")
	}
	dispute, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading dispute")
	}
	if dispute == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
	}
	return dispute, nil
}
