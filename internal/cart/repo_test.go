package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/jmab/shop-backend/pkg/db/models"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT,
  brand TEXT,
  category TEXT,
  image_url TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  size TEXT,
  price_cents INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedCatalog(t *testing.T, db *gorm.DB, name string, priceCents, stock int) models.ProductVariant {
	t.Helper()
	product := models.Product{ID: uuid.New(), Name: name, IsActive: true}
	require.NoError(t, db.Create(&product).Error)
	variant := models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  product.ID,
		PriceCents: priceCents,
		Stock:      stock,
	}
	require.NoError(t, db.Create(&variant).Error)
	return variant
}

func seedCartItem(t *testing.T, db *gorm.DB, userID uuid.UUID, variantID uuid.UUID, qty int) models.CartItem {
	t.Helper()
	item := models.CartItem{ID: uuid.New(), UserID: userID, VariantID: variantID, Quantity: qty}
	require.NoError(t, db.Create(&item).Error)
	return item
}

func TestFindForCheckoutJoinsCatalog(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)

	userID := uuid.New()
	variant := seedCatalog(t, db, "Brake Pad Set", 10000, 12)
	item := seedCartItem(t, db, userID, variant.ID, 2)

	lines, err := repo.FindForCheckout(context.Background(), userID, []uuid.UUID{item.ID})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	assert.Equal(t, item.ID, lines[0].CartItemID)
	assert.Equal(t, variant.ID, lines[0].VariantID)
	assert.Equal(t, "Brake Pad Set", lines[0].ProductName)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 10000, lines[0].PriceCents)
	assert.Equal(t, 12, lines[0].Stock)
}

func TestFindForCheckoutExcludesOtherUsersRows(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)

	owner := uuid.New()
	stranger := uuid.New()
	variant := seedCatalog(t, db, "Oil Filter", 5000, 8)
	item := seedCartItem(t, db, owner, variant.ID, 1)

	lines, err := repo.FindForCheckout(context.Background(), stranger, []uuid.UUID{item.ID})
	require.NoError(t, err)
	assert.Empty(t, lines, "rows owned by another user must not be returned")
}

func TestFindForCheckoutRequiresIDs(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindForCheckout(context.Background(), uuid.New(), nil)
	require.Error(t, err)
}

func TestDeleteByIDsRemovesOnlyTargets(t *testing.T) {
	db := setupCartTestDB(t)
	repo := NewRepository(db)

	userID := uuid.New()
	variant := seedCatalog(t, db, "Spark Plug", 2500, 20)
	consumed := seedCartItem(t, db, userID, variant.ID, 1)
	kept := seedCartItem(t, db, userID, variant.ID, 3)

	require.NoError(t, repo.DeleteByIDs(context.Background(), []uuid.UUID{consumed.ID}))

	var remaining []models.CartItem
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)
}
