package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Order is one checkout transaction for one buyer. Money fields satisfy
// grand_total = total + tax - discount; total equals the sum of the child
// sub-order subtotals.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	TotalCents      int                 `gorm:"column:total_cents;not null"`
	TaxCents        int                 `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents   int                 `gorm:"column:discount_cents;not null;default:0"`
	GrandTotalCents int                 `gorm:"column:grand_total_cents;not null"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentMethod   string              `gorm:"column:payment_method;not null"`
	CouponCode      *string             `gorm:"column:coupon_code"`
	// GatewayTxID is the external payment-gateway transaction id recorded at
	// capture time; it backs the webhook replay de-duplication.
	GatewayTxID     *string         `gorm:"column:gateway_tx_id;uniqueIndex"`
	ShippingAddress AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	SubOrders       []SubOrder      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt          *time.Time      `gorm:"column:paid_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
