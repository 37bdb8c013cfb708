package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// SubOrder is one shop's slice of a parent order. It owns the reference to the
// parent; the parent never reaches into sub-order internals beyond queries.
type SubOrder struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	ShopID        uuid.UUID            `gorm:"column:shop_id;type:uuid;not null"`
	SubtotalCents int                  `gorm:"column:subtotal_cents;not null"`
	Status        enums.SubOrderStatus `gorm:"column:status;type:sub_order_status;not null;default:'pending'"`
	ReturnStatus  *enums.ReturnStatus  `gorm:"column:return_status;type:return_status"`
	// CommissionCents and CommissionRateBPS are written once at payment
	// capture and reused verbatim on any later reversal, so a platform rate
	// change between order and refund cannot skew the clawback.
	CommissionCents   *int            `gorm:"column:commission_cents"`
	CommissionRateBPS *int64          `gorm:"column:commission_rate_bps"`
	Items             []SubOrderItem  `gorm:"foreignKey:SubOrderID;constraint:OnDelete:CASCADE"`
	DeliveredAt       *time.Time      `gorm:"column:delivered_at"`
	SettledAt         *time.Time      `gorm:"column:settled_at"`
	CancelledAt       *time.Time      `gorm:"column:cancelled_at"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// SubOrderItem snapshots one cart line at order time. Product edits after
// checkout never alter these rows.
type SubOrderItem struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubOrderID     uuid.UUID  `gorm:"column:sub_order_id;type:uuid;not null"`
	ListingID      *uuid.UUID `gorm:"column:listing_id;type:uuid"`
	ProductID      *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Title          string     `gorm:"column:title;not null"`
	ImageURL       *string    `gorm:"column:image_url"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null"`
	Quantity       int        `gorm:"column:quantity;not null"`
	TotalCents     int        `gorm:"column:total_cents;not null"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
