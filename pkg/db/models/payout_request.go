package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// PayoutRequest is a seller withdrawal awaiting an admin decision. The wallet
// debit happens at request time; approval finalizes the pending transaction
// and rejection compensates it back.
type PayoutRequest struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	WalletID      uuid.UUID          `gorm:"column:wallet_id;type:uuid;not null"`
	AmountCents   int                `gorm:"column:amount_cents;not null"`
	Status        enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'pending'"`
	TransactionID uuid.UUID          `gorm:"column:transaction_id;type:uuid;not null"`
	Note          *string            `gorm:"column:note"`
	DecidedAt     *time.Time         `gorm:"column:decided_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
