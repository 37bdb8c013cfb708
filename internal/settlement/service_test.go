package settlement

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/internal/disputes"
	"github.com/bazario/bazario-backend/internal/listings"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/shops"
	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

type fakeOrdersRepo struct {
	orders    map[uuid.UUID]*models.Order
	subOrders map[uuid.UUID]*models.SubOrder
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{
		orders:    map[uuid.UUID]*models.Order{},
		subOrders: map[uuid.UUID]*models.SubOrder{},
	}
}

func (f *fakeOrdersRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrdersRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o, ok := f.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeOrdersRepo) GetOrderByGatewayTxID(ctx context.Context, gatewayTxID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.GatewayTxID != nil && *o.GatewayTxID == gatewayTxID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeOrdersRepo) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	o := f.orders[id]
	if v, ok := updates["payment_status"].(enums.PaymentStatus); ok {
		o.PaymentStatus = v
	}
	if v, ok := updates["status"].(enums.OrderStatus); ok {
		o.Status = v
	}
	if v, ok := updates["gateway_tx_id"].(string); ok {
		o.GatewayTxID = &v
	}
	if v, ok := updates["paid_at"].(time.Time); ok {
		o.PaidAt = &v
	}
	return nil
}

func (f *fakeOrdersRepo) GetSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	if so, ok := f.subOrders[id]; ok {
		cp := *so
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeOrdersRepo) ListSubOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	var rows []models.SubOrder
	for _, so := range f.subOrders {
		if so.OrderID == orderID {
			rows = append(rows, *so)
		}
	}
	return rows, nil
}

func (f *fakeOrdersRepo) ListSubOrdersByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.SubOrder, error) {
	return nil, nil
}

func (f *fakeOrdersRepo) ListReleasable(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.SubOrder, error) {
	var rows []models.SubOrder
	for _, so := range f.subOrders {
		if so.Status != enums.SubOrderStatusDelivered || so.SettledAt != nil {
			continue
		}
		if so.ReturnStatus != nil && *so.ReturnStatus != enums.ReturnStatusRejected {
			continue
		}
		if so.DeliveredAt == nil || !so.DeliveredAt.Before(deliveredBefore) {
			continue
		}
		rows = append(rows, *so)
	}
	return rows, nil
}

func (f *fakeOrdersRepo) UpdateSubOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	so := f.subOrders[id]
	if v, ok := updates["status"].(enums.SubOrderStatus); ok {
		so.Status = v
	}
	if v, ok := updates["return_status"].(enums.ReturnStatus); ok {
		so.ReturnStatus = &v
	}
	if v, ok := updates["commission_cents"].(int); ok {
		so.CommissionCents = &v
	}
	if v, ok := updates["commission_rate_bps"].(int64); ok {
		so.CommissionRateBPS = &v
	}
	if v, ok := updates["cancelled_at"].(time.Time); ok {
		so.CancelledAt = &v
	}
	if v, ok := updates["settled_at"].(time.Time); ok {
		so.SettledAt = &v
	}
	if v, ok := updates["delivered_at"].(time.Time); ok {
		so.DeliveredAt = &v
	}
	return nil
}

type fakeLedger struct {
	wallets      map[uuid.UUID]*models.Wallet
	credits      []wallet.CreditSellerPendingInput
	releases     []wallet.ReleaseSettlementInput
	refunds      []wallet.RefundInput
	refundResult wallet.RefundResult
	creditErr    error
	releaseErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{wallets: map[uuid.UUID]*models.Wallet{}}
}

func (f *fakeLedger) GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if w, ok := f.wallets[userID]; ok {
		return w, nil
	}
	w := &models.Wallet{ID: uuid.New(), UserID: userID, Currency: "USD"}
	f.wallets[userID] = w
	return w, nil
}

func (f *fakeLedger) GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return nil, nil
}

func (f *fakeLedger) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error) {
	return nil, nil
}

func (f *fakeLedger) ReplayBalances(ctx context.Context, walletID uuid.UUID) (int, int, error) {
	return 0, 0, nil
}

func (f *fakeLedger) CreditSellerPending(ctx context.Context, tx *gorm.DB, input wallet.CreditSellerPendingInput) error {
	if f.creditErr != nil {
		return f.creditErr
	}
	f.credits = append(f.credits, input)
	return nil
}

func (f *fakeLedger) ReleaseSettlement(ctx context.Context, tx *gorm.DB, input wallet.ReleaseSettlementInput) error {
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.releases = append(f.releases, input)
	return nil
}

func (f *fakeLedger) RefundToBuyer(ctx context.Context, tx *gorm.DB, input wallet.RefundInput) (*wallet.RefundResult, error) {
	f.refunds = append(f.refunds, input)
	result := f.refundResult
	return &result, nil
}

func (f *fakeLedger) RequestPayout(ctx context.Context, input wallet.RequestPayoutInput) (*models.PayoutRequest, error) {
	return nil, nil
}

func (f *fakeLedger) ResolvePayout(ctx context.Context, input wallet.ResolvePayoutInput) (*models.PayoutRequest, error) {
	return nil, nil
}

func (f *fakeLedger) ListPayouts(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, error) {
	return nil, nil
}

type fakeShopsRepo struct {
	shops map[uuid.UUID]*models.Shop
}

func (f *fakeShopsRepo) WithTx(tx *gorm.DB) shops.Repository               { return f }
func (f *fakeShopsRepo) Create(ctx context.Context, sh *models.Shop) error { return nil }
func (f *fakeShopsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	if sh, ok := f.shops[id]; ok {
		cp := *sh
		return &cp, nil
	}
	return nil, nil
}
func (f *fakeShopsRepo) GetByOwnerID(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error) {
	return nil, nil
}
func (f *fakeShopsRepo) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status enums.KYCStatus) error {
	return nil
}
func (f *fakeShopsRepo) UpdatePerformanceScore(ctx context.Context, id uuid.UUID, score float64) error {
	return nil
}

type fakeListingsRepo struct {
	restocked map[uuid.UUID]int
}

func (f *fakeListingsRepo) WithTx(tx *gorm.DB) listings.Repository              { return f }
func (f *fakeListingsRepo) Create(ctx context.Context, l *models.Listing) error { return nil }
func (f *fakeListingsRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return nil, nil
}
func (f *fakeListingsRepo) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.Listing, error) {
	return nil, nil
}
func (f *fakeListingsRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Listing, error) {
	return nil, nil
}
func (f *fakeListingsRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return nil
}
func (f *fakeListingsRepo) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (bool, error) {
	return true, nil
}
func (f *fakeListingsRepo) IncrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	if f.restocked == nil {
		f.restocked = map[uuid.UUID]int{}
	}
	f.restocked[id] += quantity
	return nil
}
func (f *fakeListingsRepo) RecordAdjustment(ctx context.Context, adj *models.InventoryAdjustment) error {
	return nil
}

type fakeDisputesRepo struct {
	disputes map[uuid.UUID]*models.Dispute
	open     map[uuid.UUID]bool
}

func newFakeDisputesRepo() *fakeDisputesRepo {
	return &fakeDisputesRepo{
		disputes: map[uuid.UUID]*models.Dispute{},
		open:     map[uuid.UUID]bool{},
	}
}

func (f *fakeDisputesRepo) WithTx(tx *gorm.DB) disputes.Repository { return f }
func (f *fakeDisputesRepo) Create(ctx context.Context, d *models.Dispute) error {
	d.ID = uuid.New()
	f.disputes[d.ID] = d
	return nil
}
func (f *fakeDisputesRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	if d, ok := f.disputes[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, nil
}
func (f *fakeDisputesRepo) HasOpenForSubOrder(ctx context.Context, subOrderID uuid.UUID) (bool, error) {
	return f.open[subOrderID], nil
}
func (f *fakeDisputesRepo) ListBySubOrder(ctx context.Context, subOrderID uuid.UUID) ([]models.Dispute, error) {
	return nil, nil
}
func (f *fakeDisputesRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	d := f.disputes[id]
	if v, ok := updates["status"].(enums.DisputeStatus); ok {
		d.Status = v
	}
	if v, ok := updates["outcome"].(enums.DisputeOutcome); ok {
		d.Outcome = &v
	}
	if v, ok := updates["note"].(*string); ok {
		d.Note = v
	}
	if v, ok := updates["resolved_at"].(time.Time); ok {
		d.ResolvedAt = &v
	}
	return nil
}

type fakeIdemStore struct {
	keys map[string]string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{keys: map[string]string{}}
}

func (f *fakeIdemStore) Get(ctx context.Context, key string) (string, error) {
	return f.keys[key], nil
}

func (f *fakeIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = value.(string)
	return true, nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"bz", "idempotency", scope, id}, ":")
}

func (f *fakeIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

type settlementFixture struct {
	buyerID    uuid.UUID
	sellerX    uuid.UUID
	sellerY    uuid.UUID
	shopX      *models.Shop
	shopY      *models.Shop
	order      *models.Order
	subX       *models.SubOrder
	subY       *models.SubOrder
	platformID uuid.UUID

	orderRepo   *fakeOrdersRepo
	shopRepo    *fakeShopsRepo
	listingRepo *fakeListingsRepo
	disputeRepo *fakeDisputesRepo
	ledger      *fakeLedger
	idem        *fakeIdemStore
	conn        *gorm.DB
	cfg         config.SettlementConfig
}

// newSettlementFixture seeds one unpaid order with two sub-orders of 50000 and
// 30000 cents from two approved shops.
func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	outboxEvents := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	if err := conn.Exec(outboxEvents).Error; err != nil {
		t.Fatalf("create outbox table: %v", err)
	}

	f := &settlementFixture{
		buyerID:     uuid.New(),
		sellerX:     uuid.New(),
		sellerY:     uuid.New(),
		platformID:  uuid.New(),
		orderRepo:   newFakeOrdersRepo(),
		listingRepo: &fakeListingsRepo{},
		disputeRepo: newFakeDisputesRepo(),
		ledger:      newFakeLedger(),
		idem:        newFakeIdemStore(),
		conn:        conn,
	}

	f.shopX = &models.Shop{ID: uuid.New(), OwnerID: f.sellerX, KYCStatus: enums.KYCStatusApproved, Active: true}
	f.shopY = &models.Shop{ID: uuid.New(), OwnerID: f.sellerY, KYCStatus: enums.KYCStatusApproved, Active: true}
	f.shopRepo = &fakeShopsRepo{shops: map[uuid.UUID]*models.Shop{
		f.shopX.ID: f.shopX,
		f.shopY.ID: f.shopY,
	}}

	f.order = &models.Order{
		ID:              uuid.New(),
		BuyerID:         f.buyerID,
		TotalCents:      80000,
		TaxCents:        9600,
		GrandTotalCents: 89600,
		PaymentStatus:   enums.PaymentStatusPending,
		Status:          enums.OrderStatusPending,
		PaymentMethod:   "card",
	}
	f.orderRepo.orders[f.order.ID] = f.order

	listingID := uuid.New()
	f.subX = &models.SubOrder{
		ID:            uuid.New(),
		OrderID:       f.order.ID,
		ShopID:        f.shopX.ID,
		SubtotalCents: 50000,
		Status:        enums.SubOrderStatusPending,
		Items: []models.SubOrderItem{
			{ID: uuid.New(), ListingID: &listingID, Title: "Widget", UnitPriceCents: 25000, Quantity: 2, TotalCents: 50000},
		},
	}
	f.subY = &models.SubOrder{
		ID:            uuid.New(),
		OrderID:       f.order.ID,
		ShopID:        f.shopY.ID,
		SubtotalCents: 30000,
		Status:        enums.SubOrderStatusPending,
	}
	f.orderRepo.subOrders[f.subX.ID] = f.subX
	f.orderRepo.subOrders[f.subY.ID] = f.subY

	f.cfg = config.SettlementConfig{
		CommissionRateBPS: 1000,
		PlatformWalletID:  f.platformID.String(),
		HoldWindow:        168 * time.Hour,
		RefundOnCancel:    true,
		ReleaseBatchSize:  100,
		ConfirmTTL:        time.Hour,
	}
	return f
}

func (f *settlementFixture) buildService(t *testing.T) Service {
	t.Helper()
	events := outbox.NewService(outbox.NewRepository(f.conn), nil)
	svc, err := NewService(
		db.NewWithConn(f.conn),
		f.idem,
		f.orderRepo,
		f.listingRepo,
		f.shopRepo,
		f.disputeRepo,
		f.ledger,
		events,
		f.cfg,
		nil,
		nil,
	)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func (f *settlementFixture) eventCount(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := f.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error; err != nil {
		t.Fatalf("count outbox rows: %v", err)
	}
	return count
}

// markPaid puts the fixture order into the captured state with commissions
// recorded, as ConfirmPayment would leave it.
func (f *settlementFixture) markPaid(gatewayTxID string) {
	f.order.PaymentStatus = enums.PaymentStatusPaid
	f.order.Status = enums.OrderStatusProcessing
	f.order.GatewayTxID = &gatewayTxID
	for _, so := range []*models.SubOrder{f.subX, f.subY} {
		commission := so.SubtotalCents / 10
		rate := int64(1000)
		so.Status = enums.SubOrderStatusProcessing
		so.CommissionCents = &commission
		so.CommissionRateBPS = &rate
	}
}

func TestConfirmPaymentCreditsEachSubOrder(t *testing.T) {
	f := newSettlementFixture(t)
	svc := f.buildService(t)

	order, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123")
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", order.PaymentStatus)
	}
	if order.GatewayTxID == nil || *order.GatewayTxID != "gw-123" {
		t.Fatalf("expected gateway tx recorded")
	}

	if len(f.ledger.credits) != 2 {
		t.Fatalf("expected 2 escrow credits, got %d", len(f.ledger.credits))
	}
	bySubOrder := map[uuid.UUID]wallet.CreditSellerPendingInput{}
	for _, credit := range f.ledger.credits {
		bySubOrder[credit.SubOrderID] = credit
	}
	// 10% commission: 50000 -> 45000 net / 5000 fee, 30000 -> 27000 / 3000.
	creditX := bySubOrder[f.subX.ID]
	if creditX.NetCents != 45000 || creditX.CommissionCents != 5000 {
		t.Fatalf("unexpected shop X credit %+v", creditX)
	}
	creditY := bySubOrder[f.subY.ID]
	if creditY.NetCents != 27000 || creditY.CommissionCents != 3000 {
		t.Fatalf("unexpected shop Y credit %+v", creditY)
	}
	if creditX.PlatformWalletID != f.platformID {
		t.Fatalf("expected commission routed to configured platform wallet")
	}

	if f.subX.CommissionCents == nil || *f.subX.CommissionCents != 5000 {
		t.Fatalf("expected commission stored on sub-order")
	}
	if f.subX.Status != enums.SubOrderStatusProcessing {
		t.Fatalf("expected sub-order processing, got %s", f.subX.Status)
	}
	if got := f.eventCount(t, enums.EventOrderPaid, f.order.ID); got != 1 {
		t.Fatalf("expected 1 paid event, got %d", got)
	}
}

func TestConfirmPaymentSkipsCancelledSubOrder(t *testing.T) {
	f := newSettlementFixture(t)
	svc := f.buildService(t)

	cancelledAt := time.Now()
	f.subX.Status = enums.SubOrderStatusCancelled
	f.subX.CancelledAt = &cancelledAt

	order, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-"+uuid.NewString())
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", order.PaymentStatus)
	}

	// Only the live sub-order enters escrow; the cancelled one stays
	// cancelled and uncredited.
	if len(f.ledger.credits) != 1 {
		t.Fatalf("expected 1 escrow credit, got %d", len(f.ledger.credits))
	}
	if f.ledger.credits[0].SubOrderID != f.subY.ID {
		t.Fatalf("expected credit for shop Y sub-order, got %s", f.ledger.credits[0].SubOrderID)
	}
	if f.subX.Status != enums.SubOrderStatusCancelled {
		t.Fatalf("expected sub-order to stay cancelled, got %s", f.subX.Status)
	}
	if f.subX.CommissionCents != nil {
		t.Fatalf("expected no commission on cancelled sub-order, got %d", *f.subX.CommissionCents)
	}

	buyerWallet, ok := f.ledger.wallets[f.buyerID]
	if !ok {
		t.Fatalf("expected buyer wallet for reconciliation alert")
	}
	if got := f.eventCount(t, enums.EventReconciliationAlert, buyerWallet.ID); got != 1 {
		t.Fatalf("expected 1 reconciliation alert for the captured slice, got %d", got)
	}
}

func TestConfirmPaymentUsesShopCommissionOverride(t *testing.T) {
	f := newSettlementFixture(t)
	override := int64(2000)
	f.shopX.CommissionRateBPS = &override
	svc := f.buildService(t)

	if _, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123"); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	for _, credit := range f.ledger.credits {
		if credit.SubOrderID == f.subX.ID && credit.CommissionCents != 10000 {
			t.Fatalf("expected 20%% override commission 10000, got %d", credit.CommissionCents)
		}
		if credit.SubOrderID == f.subY.ID && credit.CommissionCents != 3000 {
			t.Fatalf("expected default commission 3000, got %d", credit.CommissionCents)
		}
	}
}

func TestConfirmPaymentReplayReturnsWithoutRecrediting(t *testing.T) {
	f := newSettlementFixture(t)
	svc := f.buildService(t)

	if _, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	order, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123")
	if err != nil {
		t.Fatalf("replay confirm: %v", err)
	}

	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected paid on replay, got %s", order.PaymentStatus)
	}
	if len(f.ledger.credits) != 2 {
		t.Fatalf("expected no extra credits on replay, got %d", len(f.ledger.credits))
	}
	if got := f.eventCount(t, enums.EventOrderPaid, f.order.ID); got != 1 {
		t.Fatalf("expected single paid event, got %d", got)
	}
}

func TestConfirmPaymentRejectsSecondCapture(t *testing.T) {
	f := newSettlementFixture(t)
	svc := f.buildService(t)

	if _, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	_, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-456")
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict for different capture, got %v", err)
	}
}

func TestConfirmPaymentGuardBlocksConcurrentReplay(t *testing.T) {
	f := newSettlementFixture(t)
	svc := f.buildService(t)

	// Simulate a confirmation already in flight for this capture.
	key := f.idem.IdempotencyKey(paymentIdempotencyScope, "gw-123")
	f.idem.keys[key] = f.order.ID.String()

	order, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123")
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected untouched order while guard held, got %s", order.PaymentStatus)
	}
	if len(f.ledger.credits) != 0 {
		t.Fatalf("expected no credits while guard held, got %d", len(f.ledger.credits))
	}
}

func TestConfirmPaymentFailureReleasesGuard(t *testing.T) {
	f := newSettlementFixture(t)
	f.ledger.creditErr = errors.New("wallet locked")
	svc := f.buildService(t)

	if _, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123"); err == nil {
		t.Fatalf("expected confirmation to fail")
	}

	// The guard must not leak; a retry after the transient failure succeeds.
	f.ledger.creditErr = nil
	order, err := svc.ConfirmPayment(context.Background(), f.order.ID, "gw-123")
	if err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("expected retry to capture, got %s", order.PaymentStatus)
	}
}

func TestReleaseDueSettlementsSweep(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	deliveredAt := time.Now().Add(-200 * time.Hour)
	for _, so := range []*models.SubOrder{f.subX, f.subY} {
		so.Status = enums.SubOrderStatusDelivered
		so.DeliveredAt = &deliveredAt
	}
	// An open dispute freezes shop Y's settlement.
	f.disputeRepo.open[f.subY.ID] = true
	svc := f.buildService(t)

	report, err := svc.ReleaseDueSettlements(context.Background())
	if err != nil {
		t.Fatalf("release sweep: %v", err)
	}

	if report.Examined != 2 || report.Settled != 1 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(f.ledger.releases) != 1 {
		t.Fatalf("expected 1 release, got %d", len(f.ledger.releases))
	}
	release := f.ledger.releases[0]
	if release.SubOrderID != f.subX.ID || release.NetCents != 45000 {
		t.Fatalf("unexpected release %+v", release)
	}
	if f.subX.SettledAt == nil {
		t.Fatalf("expected sub-order marked settled")
	}
	if f.subY.SettledAt != nil {
		t.Fatalf("expected disputed sub-order left unsettled")
	}
	if got := f.eventCount(t, enums.EventSubOrderSettled, f.subX.ID); got != 1 {
		t.Fatalf("expected settled event, got %d", got)
	}
}

func TestReleaseDueSettlementsReportsFailures(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	deliveredAt := time.Now().Add(-200 * time.Hour)
	f.subX.Status = enums.SubOrderStatusDelivered
	f.subX.DeliveredAt = &deliveredAt
	f.subX.CommissionCents = nil
	svc := f.buildService(t)

	report, err := svc.ReleaseDueSettlements(context.Background())
	if err == nil {
		t.Fatalf("expected sweep error for missing commission")
	}
	if report.Failed != 1 {
		t.Fatalf("expected 1 failure, got %+v", report)
	}
}

func TestCancelSubOrderRefundsAndRestocks(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	svc := f.buildService(t)

	subOrder, err := svc.CancelSubOrder(context.Background(), f.buyerID, f.subX.ID)
	if err != nil {
		t.Fatalf("cancel sub-order: %v", err)
	}

	if subOrder.Status != enums.SubOrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", subOrder.Status)
	}
	if len(f.ledger.refunds) != 1 {
		t.Fatalf("expected 1 refund, got %d", len(f.ledger.refunds))
	}
	refund := f.ledger.refunds[0]
	if refund.GrossCents != 50000 || refund.NetCents != 45000 || refund.CommissionCents != 5000 {
		t.Fatalf("unexpected refund amounts %+v", refund)
	}
	listingID := *f.subX.Items[0].ListingID
	if f.listingRepo.restocked[listingID] != 2 {
		t.Fatalf("expected restock of 2, got %d", f.listingRepo.restocked[listingID])
	}
	if got := f.eventCount(t, enums.EventSubOrderCancelled, f.subX.ID); got != 1 {
		t.Fatalf("expected cancelled event, got %d", got)
	}
	if got := f.eventCount(t, enums.EventRefundIssued, f.subX.ID); got != 1 {
		t.Fatalf("expected refund event, got %d", got)
	}
}

func TestCancelSubOrderRejectsForeignBuyer(t *testing.T) {
	f := newSettlementFixture(t)
	svc := f.buildService(t)

	_, err := svc.CancelSubOrder(context.Background(), uuid.New(), f.subX.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign buyer, got %v", err)
	}
}

func TestCancelSubOrderRejectsShipped(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	f.subX.Status = enums.SubOrderStatusShipped
	svc := f.buildService(t)

	_, err := svc.CancelSubOrder(context.Background(), f.buyerID, f.subX.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelPaidSubOrderBlockedByPolicy(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	f.cfg.RefundOnCancel = false
	svc := f.buildService(t)

	_, err := svc.CancelSubOrder(context.Background(), f.buyerID, f.subX.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected policy conflict, got %v", err)
	}
	if len(f.ledger.refunds) != 0 {
		t.Fatalf("expected no refund under policy, got %d", len(f.ledger.refunds))
	}
}

func TestDecideReturnApproveRefunds(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	requested := enums.ReturnStatusRequested
	f.subX.ReturnStatus = &requested
	svc := f.buildService(t)

	subOrder, err := svc.DecideReturn(context.Background(), DecideReturnInput{
		SubOrderID: f.subX.ID,
		AdminID:    uuid.New(),
		Approve:    true,
	})
	if err != nil {
		t.Fatalf("decide return: %v", err)
	}

	if subOrder.ReturnStatus == nil || *subOrder.ReturnStatus != enums.ReturnStatusRefunded {
		t.Fatalf("expected refunded return status, got %v", subOrder.ReturnStatus)
	}
	if subOrder.Status != enums.SubOrderStatusCancelled {
		t.Fatalf("expected cancelled sub-order, got %s", subOrder.Status)
	}
	if len(f.ledger.refunds) != 1 {
		t.Fatalf("expected 1 refund, got %d", len(f.ledger.refunds))
	}
}

func TestDecideReturnRejectKeepsFunds(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	requested := enums.ReturnStatusRequested
	f.subX.ReturnStatus = &requested
	svc := f.buildService(t)

	subOrder, err := svc.DecideReturn(context.Background(), DecideReturnInput{
		SubOrderID: f.subX.ID,
		AdminID:    uuid.New(),
		Approve:    false,
	})
	if err != nil {
		t.Fatalf("decide return: %v", err)
	}
	if subOrder.ReturnStatus == nil || *subOrder.ReturnStatus != enums.ReturnStatusRejected {
		t.Fatalf("expected rejected return, got %v", subOrder.ReturnStatus)
	}
	if len(f.ledger.refunds) != 0 {
		t.Fatalf("expected no refund on rejection, got %d", len(f.ledger.refunds))
	}
}

func TestDecideReturnWithoutRequest(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	svc := f.buildService(t)

	_, err := svc.DecideReturn(context.Background(), DecideReturnInput{
		SubOrderID: f.subX.ID,
		AdminID:    uuid.New(),
		Approve:    true,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestResolveDisputeRefundOutcome(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	dispute := &models.Dispute{
		SubOrderID: f.subX.ID,
		BuyerID:    f.buyerID,
		Reason:     "item arrived broken",
		Status:     enums.DisputeStatusOpen,
	}
	if err := f.disputeRepo.Create(context.Background(), dispute); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}
	svc := f.buildService(t)

	resolved, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		DisputeID: dispute.ID,
		AdminID:   uuid.New(),
		Outcome:   enums.DisputeOutcomeRefund,
	})
	if err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}

	if resolved.Status != enums.DisputeStatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if resolved.Outcome == nil || *resolved.Outcome != enums.DisputeOutcomeRefund {
		t.Fatalf("expected refund outcome, got %v", resolved.Outcome)
	}
	if len(f.ledger.refunds) != 1 {
		t.Fatalf("expected 1 refund, got %d", len(f.ledger.refunds))
	}
	if f.subX.Status != enums.SubOrderStatusCancelled {
		t.Fatalf("expected cancelled sub-order, got %s", f.subX.Status)
	}
	if got := f.eventCount(t, enums.EventDisputeResolved, dispute.ID); got != 1 {
		t.Fatalf("expected resolved event, got %d", got)
	}
}

func TestResolveDisputeReleaseOutcome(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	dispute := &models.Dispute{
		SubOrderID: f.subX.ID,
		BuyerID:    f.buyerID,
		Reason:     "claims non-delivery",
		Status:     enums.DisputeStatusOpen,
	}
	if err := f.disputeRepo.Create(context.Background(), dispute); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}
	svc := f.buildService(t)

	if _, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		DisputeID: dispute.ID,
		AdminID:   uuid.New(),
		Outcome:   enums.DisputeOutcomeRelease,
	}); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}

	// Release sides with the seller: delivery is recorded so the scheduled
	// sweep settles it after the hold window.
	if f.subX.Status != enums.SubOrderStatusDelivered {
		t.Fatalf("expected delivered sub-order, got %s", f.subX.Status)
	}
	if f.subX.DeliveredAt == nil {
		t.Fatalf("expected delivered timestamp")
	}
	if len(f.ledger.refunds) != 0 {
		t.Fatalf("expected no refund on release, got %d", len(f.ledger.refunds))
	}
}

func TestResolveDisputeAlreadyResolved(t *testing.T) {
	f := newSettlementFixture(t)
	dispute := &models.Dispute{
		SubOrderID: f.subX.ID,
		BuyerID:    f.buyerID,
		Reason:     "duplicate",
		Status:     enums.DisputeStatusResolved,
	}
	if err := f.disputeRepo.Create(context.Background(), dispute); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}
	svc := f.buildService(t)

	_, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		DisputeID: dispute.ID,
		AdminID:   uuid.New(),
		Outcome:   enums.DisputeOutcomeRefund,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRefundSkippedClawbackEmitsReconciliationAlert(t *testing.T) {
	f := newSettlementFixture(t)
	f.markPaid("gw-123")
	requested := enums.ReturnStatusRequested
	f.subX.ReturnStatus = &requested
	f.ledger.refundResult = wallet.RefundResult{SellerClawbackSkipped: true}
	svc := f.buildService(t)

	if _, err := svc.DecideReturn(context.Background(), DecideReturnInput{
		SubOrderID: f.subX.ID,
		AdminID:    uuid.New(),
		Approve:    true,
	}); err != nil {
		t.Fatalf("decide return: %v", err)
	}

	sellerWallet := f.ledger.wallets[f.sellerX]
	if sellerWallet == nil {
		t.Fatalf("expected seller wallet resolved")
	}
	if got := f.eventCount(t, enums.EventReconciliationAlert, sellerWallet.ID); got != 1 {
		t.Fatalf("expected reconciliation alert, got %d", got)
	}
}
