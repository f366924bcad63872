package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmab/shop-backend/pkg/enums"
)

// Order is the durable record produced by checkout. TotalCents is fixed at
// creation and never mutated afterward; refunds and cancellations only move
// the two status tracks. Orders are never deleted.
type Order struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID               `gorm:"column:user_id;type:uuid;not null;index"`
	TotalCents        int                     `gorm:"column:total_cents;not null"`
	PaymentMethod     enums.PaymentMethod     `gorm:"column:payment_method;type:text;not null"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:text;not null;default:'pending'"`
	PaymentStatus     *enums.PaymentStatus    `gorm:"column:payment_status;type:text"`
	ReferenceNumber   string                  `gorm:"column:reference_number;not null;uniqueIndex"`
	GatewaySessionID  *string                 `gorm:"column:gateway_session_id;index"`
	GatewayPaymentID  *string                 `gorm:"column:gateway_payment_id;index"`
	GatewayRefundID   *string                 `gorm:"column:gateway_refund_id"`
	HomeAddress       string                  `gorm:"column:home_address;not null"`
	Barangay          string                  `gorm:"column:barangay;not null"`
	City              string                  `gorm:"column:city;not null"`
	Items             []OrderItem             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
