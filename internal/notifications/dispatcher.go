package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

// CustomerChannel names the per-customer notification audience.
func CustomerChannel(customerID uuid.UUID) string {
	return fmt.Sprintf("customer:%s", customerID)
}

// BranchChannel names the per-branch notification audience.
func BranchChannel(branchID uuid.UUID) string {
	return fmt.Sprintf("branch:%s", branchID)
}

// Event is the payload published to a notification channel. The refund
// fields are only set on rejection events.
type Event struct {
	Type         enums.NotificationType `json:"type"`
	OrderID      uuid.UUID              `json:"order_id"`
	OrderNumber  int64                  `json:"order_number,omitempty"`
	Status       enums.OrderStatus      `json:"status,omitempty"`
	Reason       *string                `json:"reason,omitempty"`
	RefundAmount *decimal.Decimal       `json:"refund_amount,omitempty"`
	RefundID     *string                `json:"refund_id,omitempty"`
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Dispatcher publishes order-state events to subscriber channels and keeps
// a persisted copy for audiences that were offline.
type Dispatcher interface {
	Publish(ctx context.Context, channel string, event Event)
	List(ctx context.Context, channel string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, channel string, notificationID uuid.UUID) error
}

type dispatcher struct {
	repo   Repository
	pub    redisPublisher
	logger *logger.Logger
}

// NewDispatcher wires the notification dispatcher.
func NewDispatcher(repo Repository, pub redisPublisher, logg *logger.Logger) (Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if pub == nil {
		return nil, fmt.Errorf("redis publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &dispatcher{repo: repo, pub: pub, logger: logg}, nil
}

// Publish is fire-and-forget: persistence and pub/sub failures are logged,
// never surfaced, so order mutations that already committed stay committed.
func (d *dispatcher) Publish(ctx context.Context, channel string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error(ctx, "encoding notification payload", err)
		return
	}

	var errs error
	if err := d.repo.Create(ctx, &models.Notification{
		Channel: channel,
		Type:    event.Type,
		Payload: payload,
	}); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("persist notification: %w", err))
	}
	if err := d.pub.Publish(ctx, channel, payload); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("publish notification: %w", err))
	}

	if errs != nil {
		ctx = d.logger.WithFields(ctx, map[string]any{
			"channel": channel,
			"type":    event.Type,
		})
		d.logger.Error(ctx, "notification dispatch incomplete", errs)
	}
}

func (d *dispatcher) List(ctx context.Context, channel string, unreadOnly bool, limit int) ([]models.Notification, error) {
	rows, err := d.repo.ListByChannel(ctx, channel, unreadOnly, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing notifications")
	}
	return rows, nil
}

func (d *dispatcher) MarkRead(ctx context.Context, channel string, notificationID uuid.UUID) error {
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	found, err := d.repo.MarkRead(ctx, channel, notificationID, nowUTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marking notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
