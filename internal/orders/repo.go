package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jmab/shop-backend/pkg/db/models"
	"github.com/jmab/shop-backend/pkg/enums"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

// ListParams bound offset-paginated order listings.
type ListParams struct {
	Limit             int
	Offset            int
	FulfillmentStatus *enums.FulfillmentStatus
}

const defaultListLimit = 50

// Repository defines persistence operations for orders and their item snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByGatewayPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	FindByGatewaySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	FindLatestProcessingGcash(ctx context.Context) (*models.Order, error)
	FindByReferenceNumber(ctx context.Context, reference string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Order, error)
	ListAll(ctx context.Context, params ListParams) ([]models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, r.db, "id = ?", orderID)
}

// FindByIDForUpdate locks the order row for the duration of the enclosing
// transaction. Reconciliation and status transitions go through this so
// concurrent webhooks serialize on the row.
func (r *repository) FindByIDForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", orderID)
}

func (r *repository) FindByGatewayPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return r.findOptional(ctx, "gateway_payment_id = ?", paymentID)
}

func (r *repository) FindByGatewaySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	return r.findOptional(ctx, "gateway_session_id = ?", sessionID)
}

// FindLatestProcessingGcash is the last-resort lookup for webhook events that
// carry neither a known payment id nor session id. Returns nil when no
// candidate exists.
func (r *repository) FindLatestProcessingGcash(ctx context.Context) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("payment_method = ? AND fulfillment_status = ?",
			enums.PaymentMethodGcash, enums.FulfillmentStatusProcessing).
		Order("created_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByReferenceNumber(ctx context.Context, reference string) (*models.Order, error) {
	return r.findOne(ctx, r.db, "reference_number = ?", reference)
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params ListParams) ([]models.Order, error) {
	return r.list(ctx, params, "user_id = ?", userID)
}

func (r *repository) ListAll(ctx context.Context, params ListParams) ([]models.Order, error) {
	return r.list(ctx, params)
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *repository) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where(query, args...).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// findOptional returns (nil, nil) on no match so callers can fall through the
// webhook lookup precedence without error juggling.
func (r *repository) findOptional(ctx context.Context, query string, args ...any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where(query, args...).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) list(ctx context.Context, params ListParams, conds ...any) ([]models.Order, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Offset(params.Offset)
	if len(conds) > 0 {
		query = query.Where(conds[0], conds[1:]...)
	}
	if params.FulfillmentStatus != nil {
		query = query.Where("fulfillment_status = ?", *params.FulfillmentStatus)
	}
	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
