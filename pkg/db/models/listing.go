package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Listing is one shop's sellable offer for one product. A product carries at
// most one listing per shop, and at most one active listing per product holds
// the winner flag.
type Listing struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID      uuid.UUID           `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_listings_product_shop"`
	ShopID         uuid.UUID           `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:ux_listings_product_shop"`
	SKU            string              `gorm:"column:sku;not null"`
	PriceCents     int                 `gorm:"column:price_cents;not null"`
	SalePriceCents *int                `gorm:"column:sale_price_cents"`
	Stock          int                 `gorm:"column:stock;not null;default:0"`
	StockStatus    enums.StockStatus   `gorm:"column:stock_status;type:stock_status;not null;default:'in_stock'"`
	ShippingSpeed  enums.ShippingSpeed `gorm:"column:shipping_speed;type:shipping_speed;not null;default:'standard'"`
	TrackQuantity  bool                `gorm:"column:track_quantity;not null;default:true"`
	AllowBackorder bool                `gorm:"column:allow_backorder;not null;default:false"`
	Active         bool                `gorm:"column:active;not null;default:true"`
	BuyBoxWinner   bool                `gorm:"column:buy_box_winner;not null;default:false"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePriceCents returns the sale price when set and lower than the list
// price.
func (l Listing) EffectivePriceCents() int {
	if l.SalePriceCents != nil && *l.SalePriceCents > 0 && *l.SalePriceCents < l.PriceCents {
		return *l.SalePriceCents
	}
	return l.PriceCents
}
