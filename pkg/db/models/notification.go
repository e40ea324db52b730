package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// Notification persists an event published to a customer or branch channel
// so audiences that were offline can still list what happened.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Channel   string                 `gorm:"column:channel;not null;index"`
	Type      enums.NotificationType `gorm:"column:type;type:text;not null"`
	Payload   json.RawMessage        `gorm:"column:payload;type:jsonb"`
	ReadAt    *time.Time             `gorm:"column:read_at"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
