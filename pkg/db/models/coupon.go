package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a promo code applied at checkout. Either FlatCents or PercentBPS
// is set; a percentage discount may be capped by MaxDiscountCents.
type Coupon struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string     `gorm:"column:code;not null;uniqueIndex"`
	FlatCents        *int       `gorm:"column:flat_cents"`
	PercentBPS       *int64     `gorm:"column:percent_bps"`
	MaxDiscountCents *int       `gorm:"column:max_discount_cents"`
	MinOrderCents    int        `gorm:"column:min_order_cents;not null;default:0"`
	UsageLimit       *int       `gorm:"column:usage_limit"`
	UsedCount        int        `gorm:"column:used_count;not null;default:0"`
	Active           bool       `gorm:"column:active;not null;default:true"`
	ExpiresAt        *time.Time `gorm:"column:expires_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// UsableAt reports whether the coupon can discount an order of the given
// pre-tax subtotal at the given time.
func (c Coupon) UsableAt(now time.Time, subtotalCents int) bool {
	if !c.Active {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return false
	}
	return subtotalCents >= c.MinOrderCents
}
