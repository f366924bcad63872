package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductVariant carries the sellable unit: its price in centavos and the
// stock counter the inventory ledger mutates. Stock is never negative;
// checkout decrements are guarded at the SQL level.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Size       *string   `gorm:"column:size"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	Stock      int       `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
