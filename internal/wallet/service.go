package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
	"github.com/bazario/bazario-backend/pkg/outbox"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Service is the ledger: the only path that mutates wallet balances. Every
// mutation locks the wallet row and appends transaction rows in the same
// database transaction, so replaying the log reconstructs the balances.
type Service interface {
	GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error)
	ReplayBalances(ctx context.Context, walletID uuid.UUID) (balanceCents, pendingCents int, err error)

	CreditSellerPending(ctx context.Context, tx *gorm.DB, input CreditSellerPendingInput) error
	ReleaseSettlement(ctx context.Context, tx *gorm.DB, input ReleaseSettlementInput) error
	RefundToBuyer(ctx context.Context, tx *gorm.DB, input RefundInput) (*RefundResult, error)

	RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.PayoutRequest, error)
	ResolvePayout(ctx context.Context, input ResolvePayoutInput) (*models.PayoutRequest, error)
	ListPayouts(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, error)
}

// CreditSellerPendingInput records a captured payment for one sub-order: the
// net lands in the seller's escrow, the commission lands in the platform
// wallet.
type CreditSellerPendingInput struct {
	SellerWalletID   uuid.UUID
	PlatformWalletID uuid.UUID
	SubOrderID       uuid.UUID
	NetCents         int
	CommissionCents  int
}

// ReleaseSettlementInput moves a sub-order's escrowed net into the seller's
// available balance.
type ReleaseSettlementInput struct {
	SellerWalletID uuid.UUID
	SubOrderID     uuid.UUID
	NetCents       int
}

// RefundInput reverses a captured sub-order payment.
type RefundInput struct {
	BuyerWalletID    uuid.UUID
	SellerWalletID   uuid.UUID
	PlatformWalletID uuid.UUID
	SubOrderID       uuid.UUID
	GrossCents       int
	NetCents         int
	CommissionCents  int
}

// RefundResult reports which reversals actually ran. The buyer credit always
// runs; clawbacks are skipped when the target wallet cannot cover them.
type RefundResult struct {
	SellerClawbackSkipped   bool
	PlatformClawbackSkipped bool
}

// RequestPayoutInput is a seller withdrawal request.
type RequestPayoutInput struct {
	SellerID    uuid.UUID
	AmountCents int
}

// ResolvePayoutInput is an admin decision on a pending payout.
type ResolvePayoutInput struct {
	PayoutID uuid.UUID
	AdminID  uuid.UUID
	Approve  bool
	Note     *string
}

type service struct {
	client *db.Client
	repo   Repository
	events *outbox.Service
	cfg    config.PayoutConfig
	logg   *logger.Logger
}

// NewService wires the ledger service.
func NewService(client *db.Client, repo Repository, events *outbox.Service, cfg config.PayoutConfig, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &service{client: client, repo: repo, events: events, cfg: cfg, logg: logg}, nil
}

func (s *service) GetOrCreateWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading wallet")
	}
	if wallet != nil {
		return wallet, nil
	}
	wallet = &models.Wallet{UserID: userID, Currency: "USD"}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating wallet")
	}
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	wallet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error) {
	if walletID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet id is required")
	}
	rows, err := s.repo.ListTransactions(ctx, walletID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}
	return rows, nil
}

// ReplayBalances folds the full transaction log into balances. Pending rows
// move the escrow bucket, others the available bucket; direction carries the
// sign. Used by reconciliation checks and tests.
func (s *service) ReplayBalances(ctx context.Context, walletID uuid.UUID) (int, int, error) {
	rows, err := s.repo.ListAllTransactions(ctx, walletID)
	if err != nil {
		return 0, 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}
	balance, pending := 0, 0
	for _, row := range rows {
		amount := row.AmountCents
		if row.Direction == enums.TransactionDirectionDebit {
			amount = -amount
		}
		if row.Pending {
			pending += amount
		} else {
			balance += amount
		}
	}
	return balance, pending, nil
}

func (s *service) CreditSellerPending(ctx context.Context, tx *gorm.DB, input CreditSellerPendingInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if input.NetCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "net amount must be positive")
	}
	repo := s.repo.WithTx(tx)

	seller, err := repo.LockByID(ctx, input.SellerWalletID)
	if err != nil {
		return err
	}
	if seller == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "seller wallet not found")
	}
	if err := repo.UpdateBalances(ctx, seller.ID, seller.BalanceCents, seller.PendingCents+input.NetCents); err != nil {
		return err
	}
	subOrderID := input.SubOrderID
	if err := repo.CreateTransaction(ctx, &models.WalletTransaction{
		WalletID:    seller.ID,
		AmountCents: input.NetCents,
		Direction:   enums.TransactionDirectionCredit,
		Status:      enums.TransactionStatusCompleted,
		Pending:     true,
		Description: "escrow credit for captured sub-order",
		SubOrderID:  &subOrderID,
	}); err != nil {
		return err
	}

	if input.CommissionCents <= 0 {
		return nil
	}
	platform, err := repo.LockByID(ctx, input.PlatformWalletID)
	if err != nil {
		return err
	}
	if platform == nil {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "platform wallet not found")
	}
	if err := repo.UpdateBalances(ctx, platform.ID, platform.BalanceCents+input.CommissionCents, platform.PendingCents); err != nil {
		return err
	}
	return repo.CreateTransaction(ctx, &models.WalletTransaction{
		WalletID:    platform.ID,
		AmountCents: input.CommissionCents,
		Direction:   enums.TransactionDirectionCredit,
		Status:      enums.TransactionStatusCompleted,
		Description: "commission for captured sub-order",
		SubOrderID:  &subOrderID,
	})
}

func (s *service) ReleaseSettlement(ctx context.Context, tx *gorm.DB, input ReleaseSettlementInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if input.NetCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "net amount must be positive")
	}
	repo := s.repo.WithTx(tx)

	seller, err := repo.LockByID(ctx, input.SellerWalletID)
	if err != nil {
		return err
	}
	if seller == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "seller wallet not found")
	}
	if seller.PendingCents < input.NetCents {
		return pkgerrors.New(pkgerrors.CodeIntegrity, "escrow does not cover settlement")
	}
	if err := repo.UpdateBalances(ctx, seller.ID,
		seller.BalanceCents+input.NetCents,
		seller.PendingCents-input.NetCents); err != nil {
		return err
	}

	subOrderID := input.SubOrderID
	if err := repo.CreateTransaction(ctx, &models.WalletTransaction{
		WalletID:    seller.ID,
		AmountCents: input.NetCents,
		Direction:   enums.TransactionDirectionDebit,
		Status:      enums.TransactionStatusCompleted,
		Pending:     true,
		Description: "escrow release at settlement",
		SubOrderID:  &subOrderID,
	}); err != nil {
		return err
	}
	return repo.CreateTransaction(ctx, &models.WalletTransaction{
		WalletID:    seller.ID,
		AmountCents: input.NetCents,
		Direction:   enums.TransactionDirectionCredit,
		Status:      enums.TransactionStatusCompleted,
		Description: "settlement payout",
		SubOrderID:  &subOrderID,
	})
}

// RefundToBuyer credits the buyer in full and claws back the seller escrow
// and platform commission when they still cover the captured amounts. A
// clawback that cannot run is skipped, not forced negative; the caller emits
// the reconciliation alert.
func (s *service) RefundToBuyer(ctx context.Context, tx *gorm.DB, input RefundInput) (*RefundResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	if input.GrossCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gross amount must be positive")
	}
	repo := s.repo.WithTx(tx)
	subOrderID := input.SubOrderID
	result := &RefundResult{}

	buyer, err := repo.LockByID(ctx, input.BuyerWalletID)
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "buyer wallet not found")
	}
	if err := repo.UpdateBalances(ctx, buyer.ID, buyer.BalanceCents+input.GrossCents, buyer.PendingCents); err != nil {
		return nil, err
	}
	if err := repo.CreateTransaction(ctx, &models.WalletTransaction{
		WalletID:    buyer.ID,
		AmountCents: input.GrossCents,
		Direction:   enums.TransactionDirectionCredit,
		Status:      enums.TransactionStatusCompleted,
		Description: "refund for sub-order",
		SubOrderID:  &subOrderID,
	}); err != nil {
		return nil, err
	}

	if input.NetCents > 0 {
		seller, err := repo.LockByID(ctx, input.SellerWalletID)
		if err != nil {
			return nil, err
		}
		if seller == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller wallet not found")
		}
		if seller.PendingCents >= input.NetCents {
			if err := repo.UpdateBalances(ctx, seller.ID, seller.BalanceCents, seller.PendingCents-input.NetCents); err != nil {
				return nil, err
			}
			if err := repo.CreateTransaction(ctx, &models.WalletTransaction{
				WalletID:    seller.ID,
				AmountCents: input.NetCents,
				Direction:   enums.TransactionDirectionDebit,
				Status:      enums.TransactionStatusCompleted,
				Pending:     true,
				Description: "escrow clawback for refund",
				SubOrderID:  &subOrderID,
			}); err != nil {
				return nil, err
			}
		} else {
			result.SellerClawbackSkipped = true
		}
	}

	if input.CommissionCents > 0 {
		platform, err := repo.LockByID(ctx, input.PlatformWalletID)
		if err != nil {
			return nil, err
		}
		if platform == nil {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "platform wallet not found")
		}
		if platform.BalanceCents >= input.CommissionCents {
			if err := repo.UpdateBalances(ctx, platform.ID, platform.BalanceCents-input.CommissionCents, platform.PendingCents); err != nil {
				return nil, err
			}
			if err := repo.CreateTransaction(ctx, &models.WalletTransaction{
				WalletID:    platform.ID,
				AmountCents: input.CommissionCents,
				Direction:   enums.TransactionDirectionDebit,
				Status:      enums.TransactionStatusCompleted,
				Description: "commission reversal for refund",
				SubOrderID:  &subOrderID,
			}); err != nil {
				return nil, err
			}
		} else {
			result.PlatformClawbackSkipped = true
		}
	}

	return result, nil
}

// RequestPayout debits the seller balance immediately and opens a pending
// payout. Validation failures leave no rows behind.
func (s *service) RequestPayout(ctx context.Context, input RequestPayoutInput) (*models.PayoutRequest, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	if input.AmountCents < s.cfg.MinimumCents {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("payout below minimum of %d cents", s.cfg.MinimumCents))
	}

	wallet, err := s.repo.GetByUserID(ctx, input.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading wallet")
	}
	if wallet == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
	}

	var payout *models.PayoutRequest
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, wallet.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		if locked.BalanceCents < input.AmountCents {
			return pkgerrors.New(pkgerrors.CodeConflict, "insufficient available balance")
		}
		if err := repo.UpdateBalances(ctx, locked.ID, locked.BalanceCents-input.AmountCents, locked.PendingCents); err != nil {
			return err
		}

		txRow := &models.WalletTransaction{
			WalletID:    locked.ID,
			AmountCents: input.AmountCents,
			Direction:   enums.TransactionDirectionDebit,
			Status:      enums.TransactionStatusPending,
			Description: "payout request",
		}
		if err := repo.CreateTransaction(ctx, txRow); err != nil {
			return err
		}

		payout = &models.PayoutRequest{
			SellerID:      input.SellerID,
			WalletID:      locked.ID,
			AmountCents:   input.AmountCents,
			Status:        enums.PayoutStatusPending,
			TransactionID: txRow.ID,
		}
		if err := repo.CreatePayout(ctx, payout); err != nil {
			return err
		}
		return repo.LinkTransactionPayout(ctx, txRow.ID, payout.ID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "requesting payout")
	}
	return payout, nil
}

// ResolvePayout finalizes an admin decision. Approval completes the pending
// debit; rejection appends a compensating credit so the log still replays to
// the restored balance.
func (s *service) ResolvePayout(ctx context.Context, input ResolvePayoutInput) (*models.PayoutRequest, error) {
	if input.PayoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin id is required")
	}

	payout, err := s.repo.GetPayout(ctx, input.PayoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading payout")
	}
	if payout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	if payout.Status != enums.PayoutStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payout already decided: %s", payout.Status))
	}

	status := enums.PayoutStatusRejected
	if input.Approve {
		status = enums.PayoutStatusApproved
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if input.Approve {
			if err := repo.UpdateTransactionStatus(ctx, payout.TransactionID, enums.TransactionStatusCompleted); err != nil {
				return err
			}
		} else {
			locked, err := repo.LockByID(ctx, payout.WalletID)
			if err != nil {
				return err
			}
			if locked == nil {
				return pkgerrors.New(pkgerrors.CodeIntegrity, "payout wallet not found")
			}
			if err := repo.UpdateBalances(ctx, locked.ID, locked.BalanceCents+payout.AmountCents, locked.PendingCents); err != nil {
				return err
			}
			if err := repo.UpdateTransactionStatus(ctx, payout.TransactionID, enums.TransactionStatusFailed); err != nil {
				return err
			}
			payoutID := payout.ID
			if err := repo.CreateTransaction(ctx, &models.WalletTransaction{
				WalletID:    locked.ID,
				AmountCents: payout.AmountCents,
				Direction:   enums.TransactionDirectionCredit,
				Status:      enums.TransactionStatusCompleted,
				Description: "payout rejection reversal",
				PayoutID:    &payoutID,
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := repo.UpdatePayout(ctx, payout.ID, map[string]any{
			"status":     status,
			"note":       input.Note,
			"decided_at": now,
		}); err != nil {
			return err
		}

		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutDecided,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: "admin"},
			Data: outbox.PayoutDecidedData{
				PayoutID:    payout.ID,
				WalletID:    payout.WalletID,
				Decision:    status.String(),
				AmountCents: payout.AmountCents,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolving payout")
	}
	return s.repo.GetPayout(ctx, payout.ID)
}

func (s *service) ListPayouts(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id is required")
	}
	rows, err := s.repo.ListPayoutsBySeller(ctx, sellerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing payouts")
	}
	return rows, nil
}
