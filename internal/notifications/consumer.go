package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bazario/bazario-backend/internal/shops"
	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/outbox"
)

// Consumer translates published domain events into stored notifications.
// Events it does not care about are acknowledged without action.
type Consumer struct {
	svc        Service
	shopRepo   shops.Repository
	walletRepo wallet.Repository
	logg       *logger.Logger
}

// NewConsumer wires the notification event consumer.
func NewConsumer(svc Service, shopRepo shops.Repository, walletRepo wallet.Repository, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("notification service required")
	}
	if shopRepo == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	if walletRepo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &Consumer{svc: svc, shopRepo: shopRepo, walletRepo: walletRepo, logg: logg}, nil
}

// Handle processes one published outbox envelope.
func (c *Consumer) Handle(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error {
	switch eventType {
	case enums.EventShopKYCDecided:
		return c.handleKYCDecided(ctx, envelope.Data)
	case enums.EventPayoutDecided:
		return c.handlePayoutDecided(ctx, envelope.Data)
	case enums.EventRefundIssued:
		return c.handleRefundIssued(ctx, envelope.Data)
	case enums.EventSubOrderSettled:
		return c.handleSubOrderSettled(ctx, envelope.Data)
	case enums.EventReconciliationAlert:
		return c.handleReconciliationAlert(ctx, envelope.Data)
	default:
		return nil
	}
}

func (c *Consumer) handleKYCDecided(ctx context.Context, raw json.RawMessage) error {
	var data outbox.ShopKYCDecidedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding kyc payload: %w", err)
	}
	shop, err := c.shopRepo.GetByID(ctx, data.ShopID)
	if err != nil {
		return err
	}
	if shop == nil {
		return nil
	}
	_, err = c.svc.Notify(ctx, NotifyInput{
		UserID: shop.OwnerID,
		Type:   enums.NotificationTypeKYCDecision,
		Title:  "Verification decision",
		Body:   fmt.Sprintf("Your shop %q was %s.", shop.Name, data.Decision),
	})
	return err
}

func (c *Consumer) handlePayoutDecided(ctx context.Context, raw json.RawMessage) error {
	var data outbox.PayoutDecidedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding payout payload: %w", err)
	}
	wlt, err := c.walletRepo.GetByID(ctx, data.WalletID)
	if err != nil {
		return err
	}
	if wlt == nil {
		return nil
	}
	_, err = c.svc.Notify(ctx, NotifyInput{
		UserID: wlt.UserID,
		Type:   enums.NotificationTypePayoutDecision,
		Title:  "Payout decision",
		Body:   fmt.Sprintf("Your payout of %d cents was %s.", data.AmountCents, data.Decision),
	})
	return err
}

func (c *Consumer) handleRefundIssued(ctx context.Context, raw json.RawMessage) error {
	var data outbox.RefundIssuedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding refund payload: %w", err)
	}
	_, err := c.svc.Notify(ctx, NotifyInput{
		UserID: data.BuyerID,
		Type:   enums.NotificationTypeReturnDecision,
		Title:  "Refund issued",
		Body:   fmt.Sprintf("A refund of %d cents was issued (%s).", data.AmountCents, data.Reason),
	})
	return err
}

func (c *Consumer) handleSubOrderSettled(ctx context.Context, raw json.RawMessage) error {
	var data outbox.SubOrderSettledData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding settlement payload: %w", err)
	}
	shop, err := c.shopRepo.GetByID(ctx, data.ShopID)
	if err != nil {
		return err
	}
	if shop == nil {
		return nil
	}
	_, err = c.svc.Notify(ctx, NotifyInput{
		UserID: shop.OwnerID,
		Type:   enums.NotificationTypeSettlementReleased,
		Title:  "Settlement released",
		Body:   fmt.Sprintf("%d cents are now available in your wallet.", data.NetCents),
	})
	return err
}

func (c *Consumer) handleReconciliationAlert(ctx context.Context, raw json.RawMessage) error {
	var data outbox.ReconciliationAlertData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decoding alert payload: %w", err)
	}
	wlt, err := c.walletRepo.GetByID(ctx, data.WalletID)
	if err != nil {
		return err
	}
	if wlt == nil {
		return nil
	}
	if c.logg != nil {
		fields := map[string]any{
			"wallet_id":    data.WalletID.String(),
			"sub_order_id": data.SubOrderID.String(),
			"amount_cents": data.AmountCents,
		}
		c.logg.Warn(c.logg.WithFields(ctx, fields), "reconciliation alert")
	}
	_, err = c.svc.Notify(ctx, NotifyInput{
		UserID: wlt.UserID,
		Type:   enums.NotificationTypeReconciliationAlert,
		Title:  "Reconciliation required",
		Body:   data.Detail,
	})
	return err
}
