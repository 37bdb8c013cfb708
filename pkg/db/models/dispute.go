package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// Dispute is a buyer complaint against a sub-order. Resolution routes money
// through the settlement orchestrator.
type Dispute struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubOrderID uuid.UUID             `gorm:"column:sub_order_id;type:uuid;not null;index"`
	BuyerID    uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	Reason     string                `gorm:"column:reason;not null"`
	Status     enums.DisputeStatus   `gorm:"column:status;type:dispute_status;not null;default:'open'"`
	Outcome    *enums.DisputeOutcome `gorm:"column:outcome;type:dispute_outcome"`
	Note       *string               `gorm:"column:note"`
	ResolvedAt *time.Time            `gorm:"column:resolved_at"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
