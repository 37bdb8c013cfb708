package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Repository manages persistence for wallets, their transactions, and payout
// requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	// LockByID loads the wallet row with FOR UPDATE. Must run inside a
	// transaction; every balance write starts here.
	LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	UpdateBalances(ctx context.Context, id uuid.UUID, balanceCents, pendingCents int) error
	CreateTransaction(ctx context.Context, txRow *models.WalletTransaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
	LinkTransactionPayout(ctx context.Context, id, payoutID uuid.UUID) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error)
	ListAllTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error)
	CreatePayout(ctx context.Context, payout *models.PayoutRequest) error
	GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	UpdatePayout(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListPayoutsBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, wallet *models.Wallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateBalances(ctx context.Context, id uuid.UUID, balanceCents, pendingCents int) error {
	return r.db.WithContext(ctx).Model(&models.Wallet{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"balance_cents": balanceCents,
			"pending_cents": pendingCents,
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, txRow *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txRow).Error
}

func (r *repository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	var row models.WalletTransaction
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	return r.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *repository) LinkTransactionPayout(ctx context.Context, id, payoutID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("id = ?", id).
		Update("payout_id", payoutID).Error
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, params pagination.Params) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.WalletTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAllTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	var rows []models.WalletTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreatePayout(ctx context.Context, payout *models.PayoutRequest) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var payout models.PayoutRequest
	if err := r.db.WithContext(ctx).First(&payout, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payout, nil
}

func (r *repository) UpdatePayout(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.PayoutRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListPayoutsBySeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.PayoutRequest, error) {
	query := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PayoutRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
