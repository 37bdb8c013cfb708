package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
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
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/metrics"
	"github.com/bazario/bazario-backend/pkg/money"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/redis"
)

const paymentIdempotencyScope = "payment-confirm"

// Service orchestrates every money movement after checkout: payment capture,
// escrow release, refunds, cancellations, and dispute resolution. It owns no
// state of its own; it drives the ledger and the order tree inside shared
// transactions.
type Service interface {
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayTxID string) (*models.Order, error)
	DecideReturn(ctx context.Context, input DecideReturnInput) (*models.SubOrder, error)
	CancelSubOrder(ctx context.Context, buyerID, subOrderID uuid.UUID) (*models.SubOrder, error)
	ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Dispute, error)
	ReleaseDueSettlements(ctx context.Context) (ReleaseReport, error)
}

// DecideReturnInput captures an admin decision on a requested return.
type DecideReturnInput struct {
	SubOrderID uuid.UUID
	AdminID    uuid.UUID
	Approve    bool
}

// ResolveDisputeInput captures an admin dispute resolution.
type ResolveDisputeInput struct {
	DisputeID uuid.UUID
	AdminID   uuid.UUID
	Outcome   enums.DisputeOutcome
	Note      *string
}

// ReleaseReport summarizes one settlement sweep.
type ReleaseReport struct {
	Examined int
	Settled  int
	Failed   int
}

type service struct {
	client      *db.Client
	idempotency redis.IdempotencyStore
	orderRepo   orders.Repository
	listingRepo listings.Repository
	shopRepo    shops.Repository
	disputeRepo disputes.Repository
	ledger      wallet.Service
	events      *outbox.Service
	cfg         config.SettlementConfig
	platformID  uuid.UUID
	jobs        *metrics.JobMetrics
	logg        *logger.Logger
}

// NewService wires the settlement orchestrator.
func NewService(
	client *db.Client,
	idempotency redis.IdempotencyStore,
	orderRepo orders.Repository,
	listingRepo listings.Repository,
	shopRepo shops.Repository,
	disputeRepo disputes.Repository,
	ledger wallet.Service,
	events *outbox.Service,
	cfg config.SettlementConfig,
	jobs *metrics.JobMetrics,
	logg *logger.Logger,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if idempotency == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if listingRepo == nil {
		return nil, fmt.Errorf("listing repository required")
	}
	if shopRepo == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	if disputeRepo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	platformID, err := uuid.Parse(cfg.PlatformWalletID)
	if err != nil {
		return nil, fmt.Errorf("invalid platform wallet id: %w", err)
	}
	return &service{
		client:      client,
		idempotency: idempotency,
		orderRepo:   orderRepo,
		listingRepo: listingRepo,
		shopRepo:    shopRepo,
		disputeRepo: disputeRepo,
		ledger:      ledger,
		events:      events,
		cfg:         cfg,
		platformID:  platformID,
		jobs:        jobs,
		logg:        logg,
	}, nil
}

// ConfirmPayment records a gateway capture exactly once. Replays, whether
// caught by the redis guard or the paid-order check, return the order without
// touching any balance again.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, gatewayTxID string) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if gatewayTxID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway transaction id is required")
	}

	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		if order.GatewayTxID != nil && *order.GatewayTxID == gatewayTxID {
			return order, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already paid with a different capture")
	}

	existing, err := s.orderRepo.GetOrderByGatewayTxID(ctx, gatewayTxID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking gateway transaction")
	}
	if existing != nil && existing.ID != order.ID {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "gateway transaction already recorded for another order")
	}

	key := s.idempotency.IdempotencyKey(paymentIdempotencyScope, gatewayTxID)
	acquired, err := s.idempotency.SetNX(ctx, key, order.ID.String(), s.cfg.ConfirmTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency guard unavailable")
	}
	if !acquired {
		// Another replay is in flight or already done; report current state.
		return order, nil
	}

	subOrders, err := s.orderRepo.ListSubOrdersByOrder(ctx, order.ID)
	if err != nil {
		return nil, s.releaseGuard(ctx, key, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sub-orders"))
	}

	type creditPlan struct {
		subOrder        models.SubOrder
		sellerWalletID  uuid.UUID
		commissionCents int
		rateBPS         int64
	}
	plans := make([]creditPlan, 0, len(subOrders))
	var cancelled []models.SubOrder
	for _, subOrder := range subOrders {
		if subOrder.Status == enums.SubOrderStatusCancelled {
			// Cancelled before capture: the seller earns nothing and the
			// status stays cancelled. The captured slice is flagged for
			// manual refund instead of entering escrow.
			cancelled = append(cancelled, subOrder)
			continue
		}
		shop, err := s.shopRepo.GetByID(ctx, subOrder.ShopID)
		if err != nil {
			return nil, s.releaseGuard(ctx, key, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading shop"))
		}
		if shop == nil {
			return nil, s.releaseGuard(ctx, key, pkgerrors.New(pkgerrors.CodeIntegrity, "sub-order references missing shop"))
		}
		sellerWallet, err := s.ledger.GetOrCreateWallet(ctx, shop.OwnerID)
		if err != nil {
			return nil, s.releaseGuard(ctx, key, err)
		}
		rate := s.cfg.CommissionRateBPS
		if shop.CommissionRateBPS != nil {
			rate = *shop.CommissionRateBPS
		}
		plans = append(plans, creditPlan{
			subOrder:        subOrder,
			sellerWalletID:  sellerWallet.ID,
			commissionCents: money.ApplyBPS(subOrder.SubtotalCents, rate),
			rateBPS:         rate,
		})
	}

	var buyerWallet *models.Wallet
	if len(cancelled) > 0 {
		buyerWallet, err = s.ledger.GetOrCreateWallet(ctx, order.BuyerID)
		if err != nil {
			return nil, s.releaseGuard(ctx, key, err)
		}
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.orderRepo.WithTx(tx)
		for _, plan := range plans {
			if err := s.ledger.CreditSellerPending(ctx, tx, wallet.CreditSellerPendingInput{
				SellerWalletID:   plan.sellerWalletID,
				PlatformWalletID: s.platformID,
				SubOrderID:       plan.subOrder.ID,
				NetCents:         plan.subOrder.SubtotalCents - plan.commissionCents,
				CommissionCents:  plan.commissionCents,
			}); err != nil {
				return err
			}
			if err := txOrders.UpdateSubOrder(ctx, plan.subOrder.ID, map[string]any{
				"status":              enums.SubOrderStatusProcessing,
				"commission_cents":    plan.commissionCents,
				"commission_rate_bps": plan.rateBPS,
			}); err != nil {
				return err
			}
		}

		for _, subOrder := range cancelled {
			if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventReconciliationAlert,
				AggregateType: enums.AggregateWallet,
				AggregateID:   buyerWallet.ID,
				Data: outbox.ReconciliationAlertData{
					SubOrderID:  subOrder.ID,
					WalletID:    buyerWallet.ID,
					AmountCents: subOrder.SubtotalCents,
					Detail:      "capture includes a sub-order cancelled before payment",
				},
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := txOrders.UpdateOrder(ctx, order.ID, map[string]any{
			"payment_status": enums.PaymentStatusPaid,
			"status":         enums.OrderStatusProcessing,
			"gateway_tx_id":  gatewayTxID,
			"paid_at":        now,
		}); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: outbox.OrderPaidData{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				GatewayTxID: gatewayTxID,
				AmountCents: order.GrandTotalCents,
			},
		})
	})
	if err != nil {
		return nil, s.releaseGuard(ctx, key, err)
	}

	return s.orderRepo.GetOrder(ctx, order.ID)
}

// releaseGuard drops the idempotency key so a failed confirmation can be
// retried, then passes the original error through.
func (s *service) releaseGuard(ctx context.Context, key string, cause error) error {
	if err := s.idempotency.Del(ctx, key); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "key", key), "failed to release idempotency key")
	}
	if typed := pkgerrors.As(cause); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "confirming payment")
}

// DecideReturn applies an admin decision on a requested return. Approval
// refunds the buyer and cancels the sub-order in one transaction.
func (s *service) DecideReturn(ctx context.Context, input DecideReturnInput) (*models.SubOrder, error) {
	if input.SubOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-order id is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}

	subOrder, err := s.orderRepo.GetSubOrder(ctx, input.SubOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sub-order")
	}
	if subOrder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	if subOrder.ReturnStatus == nil || *subOrder.ReturnStatus != enums.ReturnStatusRequested {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no return awaiting decision")
	}

	if !input.Approve {
		if err := s.orderRepo.UpdateSubOrder(ctx, subOrder.ID, map[string]any{
			"return_status": enums.ReturnStatusRejected,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rejecting return")
		}
		return s.orderRepo.GetSubOrder(ctx, subOrder.ID)
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.refundSubOrder(ctx, tx, subOrder, "return approved"); err != nil {
			return err
		}
		now := time.Now()
		return s.orderRepo.WithTx(tx).UpdateSubOrder(ctx, subOrder.ID, map[string]any{
			"return_status": enums.ReturnStatusRefunded,
			"status":        enums.SubOrderStatusCancelled,
			"cancelled_at":  now,
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "approving return")
	}
	return s.orderRepo.GetSubOrder(ctx, subOrder.ID)
}

// CancelSubOrder cancels a buyer's sub-order while it is still pending or
// processing. Captured payments are refunded when the policy flag allows;
// stock always goes back.
func (s *service) CancelSubOrder(ctx context.Context, buyerID, subOrderID uuid.UUID) (*models.SubOrder, error) {
	if subOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sub-order id is required")
	}

	subOrder, err := s.orderRepo.GetSubOrder(ctx, subOrderID)
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
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "sub-order references missing order")
	}
	if buyerID != uuid.Nil && order.BuyerID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sub-order not found")
	}
	if !subOrder.Status.CanTransitionTo(enums.SubOrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot cancel sub-order in status %s", subOrder.Status))
	}

	captured := order.PaymentStatus == enums.PaymentStatusPaid
	refunding := captured && s.cfg.RefundOnCancel
	if captured && !s.cfg.RefundOnCancel {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "paid sub-orders cannot be cancelled")
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.orderRepo.WithTx(tx)
		txListings := s.listingRepo.WithTx(tx)

		if refunding {
			if err := s.refundSubOrder(ctx, tx, subOrder, "buyer cancellation"); err != nil {
				return err
			}
		}

		for _, item := range subOrder.Items {
			if item.ListingID == nil {
				continue
			}
			if err := txListings.IncrementStock(ctx, *item.ListingID, item.Quantity); err != nil {
				return err
			}
			subID := subOrder.ID
			if err := txListings.RecordAdjustment(ctx, &models.InventoryAdjustment{
				ListingID:  *item.ListingID,
				Delta:      item.Quantity,
				Reason:     "cancellation restock",
				SubOrderID: &subID,
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := txOrders.UpdateSubOrder(ctx, subOrder.ID, map[string]any{
			"status":       enums.SubOrderStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubOrderCancelled,
			AggregateType: enums.AggregateSubOrder,
			AggregateID:   subOrder.ID,
			Actor:         &outbox.ActorRef{UserID: order.BuyerID, Role: "buyer"},
			Data: outbox.SubOrderCancelledData{
				SubOrderID:  subOrder.ID,
				OrderID:     order.ID,
				ShopID:      subOrder.ShopID,
				Refunded:    refunding,
				AmountCents: subOrder.SubtotalCents,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancelling sub-order")
	}
	return s.orderRepo.GetSubOrder(ctx, subOrder.ID)
}

// ResolveDispute closes an open dispute. A refund outcome shares the return
// refund path; a release outcome marks delivery so the scheduled sweep
// settles it after the hold window.
func (s *service) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Dispute, error) {
	if input.DisputeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute id is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}
	if !input.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid dispute outcome %q", input.Outcome))
	}

	dispute, err := s.disputeRepo.GetByID(ctx, input.DisputeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading dispute")
	}
	if dispute == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
	}
	if dispute.Status != enums.DisputeStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "dispute already resolved")
	}

	subOrder, err := s.orderRepo.GetSubOrder(ctx, dispute.SubOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading sub-order")
	}
	if subOrder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "dispute references missing sub-order")
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		txOrders := s.orderRepo.WithTx(tx)
		now := time.Now()

		if input.Outcome == enums.DisputeOutcomeRefund {
			if err := s.refundSubOrder(ctx, tx, subOrder, "dispute refund"); err != nil {
				return err
			}
			if err := txOrders.UpdateSubOrder(ctx, subOrder.ID, map[string]any{
				"status":       enums.SubOrderStatusCancelled,
				"cancelled_at": now,
			}); err != nil {
				return err
			}
		} else if subOrder.Status != enums.SubOrderStatusDelivered {
			if err := txOrders.UpdateSubOrder(ctx, subOrder.ID, map[string]any{
				"status":       enums.SubOrderStatusDelivered,
				"delivered_at": now,
			}); err != nil {
				return err
			}
		}

		if err := s.disputeRepo.WithTx(tx).Update(ctx, dispute.ID, map[string]any{
			"status":      enums.DisputeStatusResolved,
			"outcome":     input.Outcome,
			"note":        input.Note,
			"resolved_at": now,
		}); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: "admin"},
			Data: outbox.DisputeResolvedData{
				DisputeID:  dispute.ID,
				SubOrderID: subOrder.ID,
				Outcome:    string(input.Outcome),
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving dispute")
	}
	return s.disputeRepo.GetByID(ctx, dispute.ID)
}

// ReleaseDueSettlements sweeps delivered sub-orders past the hold window and
// releases their escrow. Each sub-order settles in its own transaction; one
// failure never blocks the rest of the batch.
func (s *service) ReleaseDueSettlements(ctx context.Context) (ReleaseReport, error) {
	started := time.Now()
	report := ReleaseReport{}
	cutoff := started.Add(-s.cfg.HoldWindow)

	subOrders, err := s.orderRepo.ListReleasable(ctx, cutoff, s.cfg.ReleaseBatchSize)
	if err != nil {
		s.observeJob("settlement_release", started, false)
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing releasable sub-orders")
	}
	report.Examined = len(subOrders)

	var sweepErr error
	for _, subOrder := range subOrders {
		if err := s.settleOne(ctx, subOrder); err != nil {
			report.Failed++
			sweepErr = multierr.Append(sweepErr, fmt.Errorf("sub-order %s: %w", subOrder.ID, err))
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "sub_order_id", subOrder.ID.String()), "settlement release failed", err)
			}
			continue
		}
		report.Settled++
	}

	s.observeJob("settlement_release", started, sweepErr == nil)
	return report, sweepErr
}

func (s *service) settleOne(ctx context.Context, subOrder models.SubOrder) error {
	open, err := s.disputeRepo.HasOpenForSubOrder(ctx, subOrder.ID)
	if err != nil {
		return err
	}
	if open {
		return nil
	}
	if subOrder.CommissionCents == nil {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "sub-order has no recorded commission")
	}

	shop, err := s.shopRepo.GetByID(ctx, subOrder.ShopID)
	if err != nil {
		return err
	}
	if shop == nil {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "sub-order references missing shop")
	}
	sellerWallet, err := s.ledger.GetOrCreateWallet(ctx, shop.OwnerID)
	if err != nil {
		return err
	}

	netCents := subOrder.SubtotalCents - *subOrder.CommissionCents
	return s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ledger.ReleaseSettlement(ctx, tx, wallet.ReleaseSettlementInput{
			SellerWalletID: sellerWallet.ID,
			SubOrderID:     subOrder.ID,
			NetCents:       netCents,
		}); err != nil {
			return err
		}
		now := time.Now()
		if err := s.orderRepo.WithTx(tx).UpdateSubOrder(ctx, subOrder.ID, map[string]any{
			"settled_at": now,
		}); err != nil {
			return err
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubOrderSettled,
			AggregateType: enums.AggregateSubOrder,
			AggregateID:   subOrder.ID,
			Data: outbox.SubOrderSettledData{
				SubOrderID:      subOrder.ID,
				ShopID:          subOrder.ShopID,
				GrossCents:      subOrder.SubtotalCents,
				CommissionCents: *subOrder.CommissionCents,
				NetCents:        netCents,
			},
		})
	})
}

// refundSubOrder reverses one captured sub-order inside the caller's
// transaction: buyer made whole, escrow and commission clawed back when they
// still cover it, alerts emitted when they do not.
func (s *service) refundSubOrder(ctx context.Context, tx *gorm.DB, subOrder *models.SubOrder, reason string) error {
	order, err := s.orderRepo.GetOrder(ctx, subOrder.OrderID)
	if err != nil {
		return err
	}
	if order == nil {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "sub-order references missing order")
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order payment was never captured")
	}
	if subOrder.CommissionCents == nil {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "sub-order has no recorded commission")
	}

	buyerWallet, err := s.ledger.GetOrCreateWallet(ctx, order.BuyerID)
	if err != nil {
		return err
	}
	shop, err := s.shopRepo.GetByID(ctx, subOrder.ShopID)
	if err != nil {
		return err
	}
	if shop == nil {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "sub-order references missing shop")
	}
	sellerWallet, err := s.ledger.GetOrCreateWallet(ctx, shop.OwnerID)
	if err != nil {
		return err
	}

	commission := *subOrder.CommissionCents
	net := subOrder.SubtotalCents - commission
	result, err := s.ledger.RefundToBuyer(ctx, tx, wallet.RefundInput{
		BuyerWalletID:    buyerWallet.ID,
		SellerWalletID:   sellerWallet.ID,
		PlatformWalletID: s.platformID,
		SubOrderID:       subOrder.ID,
		GrossCents:       subOrder.SubtotalCents,
		NetCents:         net,
		CommissionCents:  commission,
	})
	if err != nil {
		return err
	}

	if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundIssued,
		AggregateType: enums.AggregateSubOrder,
		AggregateID:   subOrder.ID,
		Data: outbox.RefundIssuedData{
			SubOrderID:  subOrder.ID,
			BuyerID:     order.BuyerID,
			ShopID:      subOrder.ShopID,
			AmountCents: subOrder.SubtotalCents,
			Reason:      reason,
		},
	}); err != nil {
		return err
	}

	if result.SellerClawbackSkipped {
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReconciliationAlert,
			AggregateType: enums.AggregateWallet,
			AggregateID:   sellerWallet.ID,
			Data: outbox.ReconciliationAlertData{
				SubOrderID:  subOrder.ID,
				WalletID:    sellerWallet.ID,
				AmountCents: net,
				Detail:      "seller escrow no longer covers refund clawback",
			},
		}); err != nil {
			return err
		}
	}
	if result.PlatformClawbackSkipped {
		if err := s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReconciliationAlert,
			AggregateType: enums.AggregateWallet,
			AggregateID:   s.platformID,
			Data: outbox.ReconciliationAlertData{
				SubOrderID:  subOrder.ID,
				WalletID:    s.platformID,
				AmountCents: commission,
				Detail:      "platform balance no longer covers commission reversal",
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) observeJob(job string, started time.Time, ok bool) {
	if s.jobs == nil {
		return
	}
	s.jobs.ObserveDuration(job, time.Since(started))
	if ok {
		s.jobs.IncSuccess(job)
	} else {
		s.jobs.IncFailure(job)
	}
}
