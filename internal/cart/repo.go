package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmab/shop-backend/pkg/db/models"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

// CheckoutLine is a point-in-time snapshot of a cart row joined with its
// variant and product. Prices and names are captured here so later catalog
// edits cannot change what the order records.
type CheckoutLine struct {
	CartItemID  uuid.UUID
	VariantID   uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Size        *string
	Quantity    int
	PriceCents  int
	Stock       int
}

// Repository reads and clears persistent cart rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindForCheckout(ctx context.Context, userID uuid.UUID, cartItemIDs []uuid.UUID) ([]CheckoutLine, error)
	DeleteByIDs(ctx context.Context, cartItemIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the cart repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindForCheckout loads the requested cart rows scoped to the owner. Rows the
// user does not own are simply absent from the result; the caller compares
// counts to reject the checkout.
func (r *repository) FindForCheckout(ctx context.Context, userID uuid.UUID, cartItemIDs []uuid.UUID) ([]CheckoutLine, error) {
	if len(cartItemIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "missing cart item ids")
	}
	var lines []CheckoutLine
	err := r.db.WithContext(ctx).
		Table("cart_items").
		Select(`cart_items.id AS cart_item_id,
cart_items.variant_id AS variant_id,
product_variants.product_id AS product_id,
products.name AS product_name,
product_variants.size AS size,
cart_items.quantity AS quantity,
product_variants.price_cents AS price_cents,
product_variants.stock AS stock`).
		Joins("JOIN product_variants ON product_variants.id = cart_items.variant_id").
		Joins("JOIN products ON products.id = product_variants.product_id").
		Where("cart_items.id IN ? AND cart_items.user_id = ?", cartItemIDs, userID).
		Order("cart_items.created_at ASC").
		Scan(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart snapshot")
	}
	return lines, nil
}

// DeleteByIDs removes the consumed cart rows after an order is placed.
func (r *repository) DeleteByIDs(ctx context.Context, cartItemIDs []uuid.UUID) error {
	if len(cartItemIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", cartItemIDs).
		Delete(&models.CartItem{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing cart items")
	}
	return nil
}
