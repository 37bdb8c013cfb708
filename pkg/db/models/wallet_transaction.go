package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/enums"
)

// WalletTransaction is an immutable ledger entry. Amounts are positive
// magnitudes; direction carries the sign. Rows are appended or
// status-transitioned, never edited, so replaying the log from zero
// reconstructs the wallet balances exactly.
type WalletTransaction struct {
	ID          uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID    uuid.UUID                  `gorm:"column:wallet_id;type:uuid;not null;index"`
	AmountCents int                        `gorm:"column:amount_cents;not null"`
	Direction   enums.TransactionDirection `gorm:"column:direction;type:transaction_direction;not null"`
	Status      enums.TransactionStatus    `gorm:"column:status;type:transaction_status;not null;default:'completed'"`
	// Pending marks escrow entries: the amount sits in the wallet's pending
	// balance rather than the withdrawable balance. Transaction status stays
	// completed for escrow credits; pending status is reserved for payout
	// debits awaiting an admin decision.
	Pending     bool       `gorm:"column:pending;not null;default:false"`
	Description string     `gorm:"column:description;not null"`
	SubOrderID  *uuid.UUID `gorm:"column:sub_order_id;type:uuid;index"`
	PayoutID    *uuid.UUID `gorm:"column:payout_id;type:uuid"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
