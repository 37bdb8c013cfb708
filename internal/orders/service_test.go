package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

type stubRepo struct {
	orders    map[uuid.UUID]*models.Order
	subOrders map[uuid.UUID]*models.SubOrder
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		orders:    map[uuid.UUID]*models.Order{},
		subOrders: map[uuid.UUID]*models.SubOrder{},
	}
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *stubRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := s.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (s *stubRepo) GetOrderByGatewayTxID(ctx context.Context, gatewayTxID string) (*models.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	var rows []models.Order
	for _, o := range s.orders {
		if o.BuyerID == buyerID {
			rows = append(rows, *o)
		}
	}
	return rows, nil
}

func (s *stubRepo) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}

func (s *stubRepo) GetSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	if so, ok := s.subOrders[id]; ok {
		cp := *so
		return &cp, nil
	}
	return nil, nil
}

func (s *stubRepo) ListSubOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	return nil, nil
}

func (s *stubRepo) ListSubOrdersByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.SubOrder, error) {
	return nil, nil
}

func (s *stubRepo) ListReleasable(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.SubOrder, error) {
	return nil, nil
}

func (s *stubRepo) UpdateSubOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	so := s.subOrders[id]
	if v, ok := updates["status"].(enums.SubOrderStatus); ok {
		so.Status = v
	}
	if v, ok := updates["return_status"].(enums.ReturnStatus); ok {
		so.ReturnStatus = &v
	}
	if v, ok := updates["delivered_at"].(time.Time); ok {
		so.DeliveredAt = &v
	}
	return nil
}

type orderFixture struct {
	buyerID  uuid.UUID
	order    *models.Order
	subOrder *models.SubOrder
	repo     *stubRepo
	svc      Service
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	repo := newStubRepo()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	f := &orderFixture{buyerID: uuid.New(), repo: repo, svc: svc}
	f.order = &models.Order{
		ID:            uuid.New(),
		BuyerID:       f.buyerID,
		PaymentStatus: enums.PaymentStatusPaid,
		Status:        enums.OrderStatusProcessing,
	}
	f.subOrder = &models.SubOrder{
		ID:      uuid.New(),
		OrderID: f.order.ID,
		ShopID:  uuid.New(),
		Status:  enums.SubOrderStatusProcessing,
	}
	repo.orders[f.order.ID] = f.order
	repo.subOrders[f.subOrder.ID] = f.subOrder
	return f
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	f := newOrderFixture(t)

	order, err := f.svc.GetOrder(context.Background(), f.buyerID, f.order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.ID != f.order.ID {
		t.Fatalf("expected order %s, got %s", f.order.ID, order.ID)
	}

	_, err = f.svc.GetOrder(context.Background(), uuid.New(), f.order.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign buyer, got %v", err)
	}
}

func TestAdvanceSubOrderForwardOnly(t *testing.T) {
	f := newOrderFixture(t)

	subOrder, err := f.svc.AdvanceSubOrder(context.Background(), f.subOrder.ID, enums.SubOrderStatusShipped)
	if err != nil {
		t.Fatalf("advance to shipped: %v", err)
	}
	if subOrder.Status != enums.SubOrderStatusShipped {
		t.Fatalf("expected shipped, got %s", subOrder.Status)
	}

	_, err = f.svc.AdvanceSubOrder(context.Background(), f.subOrder.ID, enums.SubOrderStatusProcessing)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict moving backwards, got %v", err)
	}
}

func TestAdvanceSubOrderStampsDelivery(t *testing.T) {
	f := newOrderFixture(t)
	f.subOrder.Status = enums.SubOrderStatusShipped

	subOrder, err := f.svc.AdvanceSubOrder(context.Background(), f.subOrder.ID, enums.SubOrderStatusDelivered)
	if err != nil {
		t.Fatalf("advance to delivered: %v", err)
	}
	if subOrder.DeliveredAt == nil {
		t.Fatalf("expected delivered timestamp")
	}
}

func TestAdvanceSubOrderRejectsCancellation(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.AdvanceSubOrder(context.Background(), f.subOrder.ID, enums.SubOrderStatusCancelled)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRequestReturnOnDeliveredSubOrder(t *testing.T) {
	f := newOrderFixture(t)
	deliveredAt := time.Now()
	f.subOrder.Status = enums.SubOrderStatusDelivered
	f.subOrder.DeliveredAt = &deliveredAt

	subOrder, err := f.svc.RequestReturn(context.Background(), f.buyerID, f.subOrder.ID)
	if err != nil {
		t.Fatalf("request return: %v", err)
	}
	if subOrder.ReturnStatus == nil || *subOrder.ReturnStatus != enums.ReturnStatusRequested {
		t.Fatalf("expected requested return, got %v", subOrder.ReturnStatus)
	}

	_, err = f.svc.RequestReturn(context.Background(), f.buyerID, f.subOrder.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on duplicate request, got %v", err)
	}
}

func TestRequestReturnRequiresDelivery(t *testing.T) {
	f := newOrderFixture(t)

	_, err := f.svc.RequestReturn(context.Background(), f.buyerID, f.subOrder.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict before delivery, got %v", err)
	}
}

func TestRequestReturnBlockedAfterSettlement(t *testing.T) {
	f := newOrderFixture(t)
	now := time.Now()
	f.subOrder.Status = enums.SubOrderStatusDelivered
	f.subOrder.DeliveredAt = &now
	f.subOrder.SettledAt = &now

	_, err := f.svc.RequestReturn(context.Background(), f.buyerID, f.subOrder.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict after settlement, got %v", err)
	}
}
