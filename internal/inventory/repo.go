package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmab/shop-backend/pkg/db/models"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

// Repository adjusts variant stock levels with concurrency-safe guards.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Decrement(ctx context.Context, variantID uuid.UUID, qty int) error
	Restore(ctx context.Context, variantID uuid.UUID, qty int) error
	FindVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the inventory repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Decrement reduces stock for a variant. The guard in the WHERE clause makes
// oversell impossible even under concurrent checkouts: zero affected rows
// means the remaining stock cannot cover the requested quantity.
func (r *repository) Decrement(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "decrementing stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"variant_id": variantID.String()})
	}
	return nil
}

// Restore returns previously deducted stock to a variant.
func (r *repository) Restore(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, res.Error, "restoring stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	return nil
}

func (r *repository) FindVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Where("id = ?", variantID).First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}
