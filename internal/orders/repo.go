package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazario/bazario-backend/pkg/db/models"
	"github.com/bazario/bazario-backend/pkg/enums"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// Repository manages persistence for orders and sub-orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderByGatewayTxID(ctx context.Context, gatewayTxID string) (*models.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	GetSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error)
	ListSubOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error)
	ListSubOrdersByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.SubOrder, error)
	ListReleasable(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.SubOrder, error)
	UpdateSubOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("SubOrders").
		Preload("SubOrders.Items").
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) GetOrderByGatewayTxID(ctx context.Context, gatewayTxID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		First(&order, "gateway_tx_id = ?", gatewayTxID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) GetSubOrder(ctx context.Context, id uuid.UUID) (*models.SubOrder, error) {
	var subOrder models.SubOrder
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&subOrder, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subOrder, nil
}

func (r *repository) ListSubOrdersByOrder(ctx context.Context, orderID uuid.UUID) ([]models.SubOrder, error) {
	var rows []models.SubOrder
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListSubOrdersByShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) ([]models.SubOrder, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.SubOrder
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListReleasable returns delivered, unsettled sub-orders whose hold window has
// elapsed.
func (r *repository) ListReleasable(ctx context.Context, deliveredBefore time.Time, limit int) ([]models.SubOrder, error) {
	var rows []models.SubOrder
	if err := r.db.WithContext(ctx).
		Where("status = ?", enums.SubOrderStatusDelivered).
		Where("settled_at IS NULL").
		Where("return_status IS NULL OR return_status IN ?", []enums.ReturnStatus{enums.ReturnStatusRejected}).
		Where("delivered_at IS NOT NULL AND delivered_at < ?", deliveredBefore).
		Order("delivered_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateSubOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.SubOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}
