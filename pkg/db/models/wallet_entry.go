package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// WalletEntry records an immutable ledger line against a wallet. Amount is
// always positive; Direction carries the sign. BalanceAfter snapshots the
// wallet balance at write time and is computed in the same transaction
// that appends the entry. Entries are never mutated or deleted.
type WalletEntry struct {
	ID           uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WalletID     uuid.UUID                  `gorm:"column:wallet_id;type:uuid;not null;index"`
	OrderID      *uuid.UUID                 `gorm:"column:order_id;type:uuid"`
	Type         enums.WalletEntryType      `gorm:"column:type;type:text;not null"`
	Direction    enums.WalletEntryDirection `gorm:"column:direction;type:text;not null"`
	Amount       decimal.Decimal            `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceAfter decimal.Decimal            `gorm:"column:balance_after;type:numeric(12,2);not null"`
	Metadata     json.RawMessage            `gorm:"column:metadata;type:jsonb"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
