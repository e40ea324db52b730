package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// Order represents one customer purchase from one restaurant branch.
//
// Status mutations flow through two paths only: payment reconciliation
// (pending -> placed) and staff/driver transitions (placed and later).
// Orders are never deleted; rejection and cancellation are terminal
// statuses, not deletions.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64               `gorm:"column:order_number;not null;default:nextval('order_number_seq')"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	BranchID        uuid.UUID           `gorm:"column:branch_id;type:uuid;not null"`
	AddressID       uuid.UUID           `gorm:"column:address_id;type:uuid;not null"`
	DriverID        *uuid.UUID          `gorm:"column:driver_id;type:uuid"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DeliveryFee     decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(12,2);not null"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null"`
	Currency        string              `gorm:"column:currency;type:text;not null;default:'ARS'"`
	RejectionReason *string             `gorm:"column:rejection_reason"`
	PlacedAt        *time.Time          `gorm:"column:placed_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	RejectedAt      *time.Time          `gorm:"column:rejected_at"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment         *Payment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
