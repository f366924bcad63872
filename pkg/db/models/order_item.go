package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots one checked-out line. Name, size, and unit price are
// copies taken at checkout so later catalog edits never alter history.
type OrderItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID      uuid.UUID `gorm:"column:variant_id;type:uuid;not null"`
	ProductName    string    `gorm:"column:product_name;not null"`
	Size           *string   `gorm:"column:size"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceCents int       `gorm:"column:unit_price_cents;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
