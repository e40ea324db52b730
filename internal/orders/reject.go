package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/internal/notifications"
	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
)

const (
	refundOutcomeSuccess        = "success"
	refundOutcomeGatewayError   = "gateway_error"
	refundOutcomePartialFailure = "partial_failure"
	refundOutcomeSimulated      = "simulated"
)

// RejectInput captures an operator's request to reject a confirmed order.
type RejectInput struct {
	OrderID       uuid.UUID
	Reason        string
	ActorID       uuid.UUID
	ActorRole     enums.ActorRole
	ActorBranchID *uuid.UUID
}

// Reject refuses a confirmed, paid order and refunds the customer.
//
// The gateway refund runs before any local write, inside the transaction
// that holds the order row lock. Holding the lock across the call is the
// point: it serializes competing rejects so the refund can never be issued
// twice, and a second attempt observes the terminal status and is denied
// before reaching the gateway. The deliberate failure ordering is
// "refunded at gateway but not yet reflected locally" (recoverable, logged
// loudly) over "marked refunded locally but never refunded at gateway"
// (loses money).
func (s *service) Reject(ctx context.Context, input RejectInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if strings.TrimSpace(input.Reason) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID, true)
		if err != nil {
			if err == ErrNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
		}

		if err := s.checkActorScope(order, StaffTransitionInput{
			OrderID:       input.OrderID,
			ActorID:       input.ActorID,
			ActorRole:     input.ActorRole,
			ActorBranchID: input.ActorBranchID,
		}); err != nil {
			return err
		}

		decision := Transition(order.Status, enums.OrderStatusRejected, input.ActorRole, order.PaymentStatus)
		if !decision.Allowed {
			return denialError(order.Status, enums.OrderStatusRejected, decision.Reason)
		}
		if order.Payment == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no payment record")
		}
		if order.Payment.GatewayPaymentRef == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment has no gateway reference to refund")
		}

		refundID, err := s.issueRefund(ctx, order)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		refunded := enums.PaymentStatusRefunded
		reason := strings.TrimSpace(input.Reason)

		if err := repo.UpdateStatusFields(ctx, order.ID, StatusUpdate{
			Status:          enums.OrderStatusRejected,
			PaymentStatus:   &refunded,
			RejectionReason: &reason,
			RejectedAt:      &now,
		}); err != nil {
			return s.partialRefundFailure(ctx, order, refundID, err)
		}
		if err := repo.UpdatePaymentFields(ctx, order.ID, PaymentUpdate{
			Status:     &refunded,
			RefundID:   &refundID,
			RefundedAt: &now,
		}); err != nil {
			return s.partialRefundFailure(ctx, order, refundID, err)
		}

		order.Status = enums.OrderStatusRejected
		order.PaymentStatus = enums.PaymentStatusRefunded
		order.RejectionReason = &reason
		order.RejectedAt = &now
		order.Payment.Status = enums.PaymentStatusRefunded
		order.Payment.RefundID = &refundID
		order.Payment.RefundedAt = &now

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncRefund(refundOutcomeSuccess)
	refundAmount := updated.Payment.Amount
	s.notifier.Publish(ctx, notifications.CustomerChannel(updated.CustomerID), notifications.Event{
		Type:         enums.NotificationOrderRejected,
		OrderID:      updated.ID,
		OrderNumber:  updated.OrderNumber,
		Status:       updated.Status,
		Reason:       updated.RejectionReason,
		RefundAmount: &refundAmount,
		RefundID:     updated.Payment.RefundID,
	})
	return updated, nil
}

// issueRefund calls the gateway for the full payment amount. A failure is
// surfaced unless simulated refunds are enabled, in which case a fabricated
// refund id is returned and the fallback is audited.
func (s *service) issueRefund(ctx context.Context, order *models.Order) (string, error) {
	result, err := s.gateway.Refund(ctx, *order.Payment.GatewayPaymentRef, order.Payment.Amount)
	if err == nil {
		return fmt.Sprintf("%d", result.ID), nil
	}

	if !s.simulateRefunds {
		s.metrics.IncRefund(refundOutcomeGatewayError)
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "gateway refund failed")
	}

	simulated := "SIM-" + uuid.NewString()
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"order_id":  order.ID,
		"refund_id": simulated,
	})
	s.logger.Warn(logCtx, "gateway unreachable, recording SIMULATED refund")
	s.metrics.IncRefund(refundOutcomeSimulated)
	s.metrics.IncSimulatedRefund()
	return simulated, nil
}

// partialRefundFailure handles the worst case: money moved at the gateway
// but the local commit is about to roll back. Manual reconciliation picks
// these up from the log line.
func (s *service) partialRefundFailure(ctx context.Context, order *models.Order, refundID string, cause error) error {
	logCtx := s.logger.WithFields(ctx, map[string]any{
		"order_id":            order.ID,
		"refund_id":           refundID,
		"provider_payment_id": order.Payment.ProviderPaymentID,
	})
	s.logger.Error(logCtx, "REFUND ISSUED AT GATEWAY BUT LOCAL COMMIT FAILED, manual reconciliation required", cause)
	s.metrics.IncRefund(refundOutcomePartialFailure)
	return pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "persisting rejection after gateway refund")
}
