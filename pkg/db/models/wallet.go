package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// Wallet holds the derived balance for a restaurant or driver account.
// The balance always equals the sum of signed WalletEntry amounts.
type Wallet struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerKind enums.WalletOwnerKind `gorm:"column:owner_kind;type:text;not null"`
	OwnerID   uuid.UUID             `gorm:"column:owner_id;type:uuid;not null"`
	Balance   decimal.Decimal       `gorm:"column:balance;type:numeric(12,2);not null"`
	Currency  string                `gorm:"column:currency;type:text;not null;default:'ARS'"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
