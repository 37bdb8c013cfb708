package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is one balance holder per user (buyer, seller, or the platform
// commission account). Balances change only through the ledger service so
// every mutation stays paired with a transaction row.
type Wallet struct {
	ID      uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID  uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	// BalanceCents is withdrawable; PendingCents is escrow held back until
	// settlement. Both stay non-negative.
	BalanceCents int       `gorm:"column:balance_cents;not null;default:0"`
	PendingCents int       `gorm:"column:pending_cents;not null;default:0"`
	Currency     string    `gorm:"column:currency;not null;default:'USD'"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
