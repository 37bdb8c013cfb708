package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Service defines read and fulfillment-progress operations on orders.
// Cancellation and settlement move money, so they live with the settlement
// orchestrator, not here.
type Service interface {
	GetOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error)
	ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	GetSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	ListShopSubOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.SubOrder, error)
	AdvanceSubOrder(ctx context.Context, subOrderID uuid.UUID, target enums.SubOrderStatus) (*models.SubOrder, error)
	RequestReturn(ctx context.Context, buyerID, subOrderID uuid.UUID) (*models.SubOrder, error)
}

type service struct {
	repo Repository
}

// NewService wires an order service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetOrder(ctx context.Context, buyerID, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if buyerID != uuid.Nil && order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	rows, err := s.repo.ListOrdersByBuyer(ctx, buyerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing orders")
	}
	return rows, nil
}

func (s *service) GetSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-order id is required")
	}
	subOrder, err := s.repo.GetSubOrder(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sub-order")
	}
	if subOrder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	return subOrder, nil
}

func (s *service) ListShopSubOrders(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.SubOrder, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	rows, err := s.repo.ListSubOrdersByShop(ctx, shopID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing sub-orders")
	}
	return rows, nil
}

// AdvanceSubOrder moves fulfillment forward. Statuses never move backwards,
// and cancellation is rejected here because it reverses money.
func (s *service) AdvanceSubOrder(ctx context.Context, subOrderID uuid.UUID, target enums.SubOrderStatus) (*models.SubOrder, error) {
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid sub-order status %q", target))
	}
	if target == enums.SubOrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation is a settlement operation")
	}

	subOrder, err := s.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	if !subOrder.Status.CanTransitionTo(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot move sub-order from %s to %s", subOrder.Status, target))
	}

	updates := map[string]any{"status": target}
	if target == enums.SubOrderStatusDelivered {
		updates["delivered_at"] = time.Now()
	}
	if err := s.repo.UpdateSubOrder(ctx, subOrder.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating sub-order status")
	}
	return s.GetSubOrder(ctx, subOrder.ID)
}

// RequestReturn opens the return workflow on a delivered, unsettled sub-order.
func (s *service) RequestReturn(ctx context.Context, buyerID, subOrderID uuid.UUID) (*models.SubOrder, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id is required")
	}
	subOrder, err := s.GetSubOrder(ctx, subOrderID)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.GetOrder(ctx, subOrder.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading parent order")
	}
	if order == nil || order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	if subOrder.Status != enums.SubOrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered sub-orders can be returned")
	}
	if subOrder.SettledAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sub-order already settled")
	}
	if subOrder.ReturnStatus != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "return already requested")
	}

	status := enums.ReturnStatusRequested
	if err := s.repo.UpdateSubOrder(ctx, subOrder.ID, map[string]any{"return_status": status}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "requesting return")
	}
	return s.GetSubOrder(ctx, subOrder.ID)
}
