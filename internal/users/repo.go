package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jmab/shop-backend/pkg/db/models"
	pkgerrors "github.com/jmab/shop-backend/pkg/errors"
)

// Repository exposes the user and address lookups needed by checkout and order views.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	FindAddressForUser(ctx context.Context, addressID, userID uuid.UUID) (*models.UserAddress, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the users repository to the provided DB handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return &user, nil
}

// FindAddressForUser loads an address only when it belongs to the given user,
// so a checkout cannot ship to somebody else's saved address.
func (r *repository) FindAddressForUser(ctx context.Context, addressID, userID uuid.UUID) (*models.UserAddress, error) {
	var address models.UserAddress
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&address).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found for user")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading address")
	}
	return &address, nil
}
