package outbox

import (
	"github.com/google/uuid"
)

// OrderPlacedData is the payload for order.placed events.
type OrderPlacedData struct {
	OrderID        uuid.UUID   `json:"orderId"`
	BuyerID        uuid.UUID   `json:"buyerId"`
	SubOrderIDs    []uuid.UUID `json:"subOrderIds"`
	GrandTotal     int         `json:"grandTotalCents"`
	Currency       string      `json:"currency"`
	SubOrderShops  []uuid.UUID `json:"subOrderShopIds"`
	CouponCode     *string     `json:"couponCode,omitempty"`
	DiscountCents  int         `json:"discountCents"`
	TaxCents       int         `json:"taxCents"`
	SubtotalCents  int         `json:"subtotalCents"`
	LineItemsCount int         `json:"lineItemsCount"`
}

// OrderPaidData is the payload for order.paid events.
type OrderPaidData struct {
	OrderID     uuid.UUID `json:"orderId"`
	BuyerID     uuid.UUID `json:"buyerId"`
	GatewayTxID string    `json:"gatewayTxId"`
	AmountCents int       `json:"amountCents"`
}

// SubOrderCancelledData is the payload for sub_order.cancelled events.
type SubOrderCancelledData struct {
	SubOrderID  uuid.UUID `json:"subOrderId"`
	OrderID     uuid.UUID `json:"orderId"`
	ShopID      uuid.UUID `json:"shopId"`
	Refunded    bool      `json:"refunded"`
	AmountCents int       `json:"amountCents"`
}

// SubOrderSettledData is the payload for sub_order.settled events.
type SubOrderSettledData struct {
	SubOrderID      uuid.UUID `json:"subOrderId"`
	ShopID          uuid.UUID `json:"shopId"`
	GrossCents      int       `json:"grossCents"`
	CommissionCents int       `json:"commissionCents"`
	NetCents        int       `json:"netCents"`
}

// RefundIssuedData is the payload for refund.issued events.
type RefundIssuedData struct {
	SubOrderID  uuid.UUID `json:"subOrderId"`
	BuyerID     uuid.UUID `json:"buyerId"`
	ShopID      uuid.UUID `json:"shopId"`
	AmountCents int       `json:"amountCents"`
	Reason      string    `json:"reason"`
}

// ReconciliationAlertData is the payload for ledger.reconciliation_alert events.
type ReconciliationAlertData struct {
	SubOrderID  uuid.UUID `json:"subOrderId"`
	WalletID    uuid.UUID `json:"walletId"`
	AmountCents int       `json:"amountCents"`
	Detail      string    `json:"detail"`
}

// ShopKYCDecidedData is the payload for shop.kyc_decided events.
type ShopKYCDecidedData struct {
	ShopID   uuid.UUID `json:"shopId"`
	Decision string    `json:"decision"`
	Reason   *string   `json:"reason,omitempty"`
}

// PayoutDecidedData is the payload for payout.decided events.
type PayoutDecidedData struct {
	PayoutID    uuid.UUID `json:"payoutId"`
	WalletID    uuid.UUID `json:"walletId"`
	Decision    string    `json:"decision"`
	AmountCents int       `json:"amountCents"`
}

// DisputeResolvedData is the payload for dispute.resolved events.
type DisputeResolvedData struct {
	DisputeID  uuid.UUID `json:"disputeId"`
	SubOrderID uuid.UUID `json:"subOrderId"`
	Outcome    string    `json:"outcome"`
}

// NotificationEnqueuedData is the payload for notification.enqueued events.
type NotificationEnqueuedData struct {
	NotificationID uuid.UUID `json:"notificationId"`
	UserID         uuid.UUID `json:"userId"`
	Type           string    `json:"type"`
}
