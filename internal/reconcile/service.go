package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/internal/notifications"
	"github.com/davidbarrios/platerush-backend/internal/orders"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
	"github.com/davidbarrios/platerush-backend/pkg/mercadopago"
	"github.com/davidbarrios/platerush-backend/pkg/metrics"
)

const (
	eventTypePayment = "payment"

	outcomeIgnored     = "ignored"
	outcomeUnmatched   = "unmatched"
	outcomeDuplicate   = "duplicate"
	outcomeNotApproved = "not_approved"
	outcomePlaced      = "placed"
	outcomeError       = "error"
)

// mapGatewayStatus translates the gateway's payment status vocabulary into
// the internal PaymentStatus enum. Unknown values default to pending so a
// new gateway status never breaks intake.
func mapGatewayStatus(external string) enums.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "pending":
		return enums.PaymentStatusPending
	case "in_process", "in_mediation":
		return enums.PaymentStatusProcessing
	case "approved", "authorized":
		return enums.PaymentStatusCompleted
	case "rejected", "charged_back":
		return enums.PaymentStatusFailed
	case "cancelled":
		return enums.PaymentStatusCancelled
	case "refunded":
		return enums.PaymentStatusRefunded
	default:
		return enums.PaymentStatusPending
	}
}

// WebhookEvent is the normalized inbound gateway notification. The payload
// only carries identifiers; the full payment detail requires a second
// round trip.
type WebhookEvent struct {
	ID        string
	Type      string
	Action    string
	PaymentID string
}

type gatewayClient interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.PaymentDetail, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartCleaner interface {
	ClearForBranch(ctx context.Context, customerID, branchID uuid.UUID) (int64, error)
}

type notifier interface {
	Publish(ctx context.Context, channel string, event notifications.Event)
}

// Service reconciles inbound payment webhooks with order state.
type Service struct {
	repo     orders.Repository
	tx       txRunner
	gateway  gatewayClient
	cart     cartCleaner
	notifier notifier
	metrics  *metrics.PaymentMetrics
	logger   *logger.Logger
}

// ServiceParams collects the reconciliation dependencies.
type ServiceParams struct {
	Repo     orders.Repository
	Tx       txRunner
	Gateway  gatewayClient
	Cart     cartCleaner
	Notifier notifier
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
}

// NewService builds the reconciliation service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:     params.Repo,
		tx:       params.Tx,
		gateway:  params.Gateway,
		cart:     params.Cart,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logger:   params.Logger,
	}, nil
}

// HandleEvent turns one gateway notification into at most one order-state
// change. Redelivery after a committed reconciliation is a no-op; events
// for unrelated transactions are swallowed; a returned error tells the
// caller to release the idempotency guard so redelivery retries.
func (s *Service) HandleEvent(ctx context.Context, event WebhookEvent) error {
	start := time.Now()
	outcome, err := s.handle(ctx, event)
	s.metrics.ObserveReconcile(outcome, time.Since(start))
	return err
}

func (s *Service) handle(ctx context.Context, event WebhookEvent) (string, error) {
	if !strings.EqualFold(event.Type, eventTypePayment) {
		return outcomeIgnored, nil
	}
	if strings.TrimSpace(event.PaymentID) == "" {
		return outcomeError, pkgerrors.New(pkgerrors.CodeValidation, "payment id missing from event")
	}

	detail, err := s.gateway.GetPayment(ctx, event.PaymentID)
	if err != nil {
		return outcomeError, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetching payment detail")
	}

	// The join key is the external reference fixed at checkout, never the
	// numeric payment id the gateway assigns later.
	if strings.TrimSpace(detail.ExternalReference) == "" {
		ctx = s.logger.WithField(ctx, "gateway_payment_id", detail.ID)
		s.logger.Warn(ctx, "payment detail carries no external reference, skipping")
		return outcomeUnmatched, nil
	}

	mapped := mapGatewayStatus(detail.Status)
	if mapped != enums.PaymentStatusCompleted {
		return outcomeNotApproved, nil
	}

	var reconciled *reconciledOrder
	outcome := outcomePlaced
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByProviderPaymentID(ctx, detail.ExternalReference, true)
		if err != nil {
			if err == orders.ErrNotFound {
				logCtx := s.logger.WithField(ctx, "external_reference", detail.ExternalReference)
				s.logger.Info(logCtx, "webhook matched no order, ignoring")
				outcome = outcomeUnmatched
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
		}

		// Only a pending order can be placed by reconciliation. Anything
		// else already left this stage: a redelivered approval after the
		// redis guard key expired must not re-place a placed order, and
		// must never resurrect a rejected, refunded one.
		if order.Status != enums.OrderStatusPending {
			outcome = outcomeDuplicate
			return nil
		}

		now := time.Now().UTC()
		completed := enums.PaymentStatusCompleted
		gatewayRef := fmt.Sprintf("%d", detail.ID)

		if err := repo.UpdateStatusFields(ctx, order.ID, orders.StatusUpdate{
			Status:        enums.OrderStatusPlaced,
			PaymentStatus: &completed,
			PlacedAt:      &now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting reconciled order")
		}
		if err := repo.UpdatePaymentFields(ctx, order.ID, orders.PaymentUpdate{
			Status:            &completed,
			GatewayPaymentRef: &gatewayRef,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting reconciled payment")
		}

		reconciled = &reconciledOrder{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			BranchID:    order.BranchID,
		}
		return nil
	})
	if err != nil {
		return outcomeError, err
	}
	if reconciled == nil {
		return outcome, nil
	}

	s.afterCommit(ctx, reconciled)
	return outcome, nil
}

type reconciledOrder struct {
	ID          uuid.UUID
	OrderNumber int64
	CustomerID  uuid.UUID
	BranchID    uuid.UUID
}

// afterCommit runs the best-effort side effects: clearing the customer's
// cart for the branch and announcing the new order. Failures here are
// logged and never unwind the committed state change.
func (s *Service) afterCommit(ctx context.Context, order *reconciledOrder) {
	var errs error
	if _, err := s.cart.ClearForBranch(ctx, order.CustomerID, order.BranchID); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("clear cart: %w", err))
	}

	s.notifier.Publish(ctx, notifications.BranchChannel(order.BranchID), notifications.Event{
		Type:        enums.NotificationOrderPlaced,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      enums.OrderStatusPlaced,
	})

	if errs != nil {
		logCtx := s.logger.WithOrderID(ctx, order.ID.String())
		s.logger.Error(logCtx, "post-reconcile side effects incomplete", errs)
	}
}
