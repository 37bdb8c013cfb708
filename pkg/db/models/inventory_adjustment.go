package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryAdjustment records every stock movement on a listing, including
// the checkout decrements, so stock history stays auditable.
type InventoryAdjustment struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ListingID  uuid.UUID  `gorm:"column:listing_id;type:uuid;not null;index"`
	Delta      int        `gorm:"column:delta;not null"`
	Reason     string     `gorm:"column:reason;not null"`
	SubOrderID *uuid.UUID `gorm:"column:sub_order_id;type:uuid"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
