package models

import (
	"time"

	"github.com/google/uuid"
)

// UserAddress is a saved delivery address. Checkout copies its fields onto
// the order row; later edits never touch historical orders.
type UserAddress struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	HomeAddress string    `gorm:"column:home_address;not null"`
	Barangay    string    `gorm:"column:barangay;not null"`
	City        string    `gorm:"column:city;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
