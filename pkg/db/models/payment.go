package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// Payment tracks gateway payment progress for an order (one-to-one).
//
// ProviderPaymentID is the reconciliation join key: it is fixed at checkout
// when the gateway preference is created and is never overwritten
// afterwards. The numeric payment id the gateway reports later lives in
// GatewayPaymentRef and is informational only.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	ProviderPaymentID string              `gorm:"column:provider_payment_id;not null;uniqueIndex"`
	GatewayPaymentRef *string             `gorm:"column:gateway_payment_ref"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	RefundID          *string             `gorm:"column:refund_id"`
	RefundedAt        *time.Time          `gorm:"column:refunded_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
