package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Shop represents one seller's storefront.
type Shop struct {
	ID   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name string    `gorm:"column:name;not null"`
	// OwnerID is the seller identity; exactly one seller owns a shop.
	OwnerID   uuid.UUID       `gorm:"column:owner_id;type:uuid;not null"`
	KYCStatus enums.KYCStatus `gorm:"column:kyc_status;type:kyc_status;not null;default:'pending'"`
	// PerformanceScore feeds the reputation component of offer ranking,
	// clamped to [0,100] at read time.
	PerformanceScore float64 `gorm:"column:performance_score;not null;default:0"`
	// CommissionRateBPS overrides the platform default commission when set.
	CommissionRateBPS *int64         `gorm:"column:commission_rate_bps"`
	Categories        pq.StringArray `gorm:"column:categories;type:text[]"`
	Active            bool           `gorm:"column:active;not null;default:true"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
