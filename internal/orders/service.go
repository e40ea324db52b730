package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/internal/notifications"
	"github.com/davidbarrios/platerush-backend/internal/wallet"
	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
	"github.com/davidbarrios/platerush-backend/pkg/mercadopago"
	"github.com/davidbarrios/platerush-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type payoutLedger interface {
	Credit(ctx context.Context, tx *gorm.DB, input wallet.EntryInput) (*models.WalletEntry, error)
}

type notifier interface {
	Publish(ctx context.Context, channel string, event notifications.Event)
}

type refundGateway interface {
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*mercadopago.RefundResult, error)
}

// Service defines the actor-driven order operations.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error)
	ListForBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.OrderStatus, limit int) ([]models.Order, error)
	StaffTransition(ctx context.Context, input StaffTransitionInput) (*models.Order, error)
	Reject(ctx context.Context, input RejectInput) (*models.Order, error)
}

// ServiceParams collects the dependencies of the order service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Payouts  payoutLedger
	Notifier notifier
	Gateway  refundGateway
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger

	// SimulateRefunds fabricates refunds when the gateway is down. Only
	// honored off production; NewService refuses the combination outright.
	SimulateRefunds bool
	Production      bool
}

type service struct {
	repo            Repository
	tx              txRunner
	payouts         payoutLedger
	notifier        notifier
	gateway         refundGateway
	metrics         *metrics.PaymentMetrics
	logger          *logger.Logger
	simulateRefunds bool
}

// NewService builds the order service and validates its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout ledger required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("refund gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.SimulateRefunds && params.Production {
		return nil, fmt.Errorf("simulated refunds must not be enabled in production")
	}
	return &service{
		repo:            params.Repo,
		tx:              params.Tx,
		payouts:         params.Payouts,
		notifier:        params.Notifier,
		gateway:         params.Gateway,
		metrics:         params.Metrics,
		logger:          params.Logger,
		simulateRefunds: params.SimulateRefunds,
	}, nil
}

// StaffTransitionInput captures a staff or driver request to move an order.
type StaffTransitionInput struct {
	OrderID       uuid.UUID
	Requested     enums.OrderStatus
	ActorID       uuid.UUID
	ActorRole     enums.ActorRole
	ActorBranchID *uuid.UUID
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID, false)
	if err != nil {
		if err == ErrNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	return order, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error) {
	if customerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	results, err := s.repo.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing customer orders")
	}
	return results, nil
}

func (s *service) ListForBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.OrderStatus, limit int) ([]models.Order, error) {
	if branchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	results, err := s.repo.ListByBranch(ctx, branchID, statuses, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing branch orders")
	}
	return results, nil
}

// StaffTransition applies one actor-driven lifecycle edge. The order row is
// locked for the duration of the transaction so concurrent staff actions
// and webhook reconciliation serialize per order. Delivered orders write
// their payout wallet credits in the same transaction; the customer
// notification fires after commit.
func (s *service) StaffTransition(ctx context.Context, input StaffTransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Requested.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown requested status")
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

		if err := s.checkActorScope(order, input); err != nil {
			return err
		}

		decision := Transition(order.Status, input.Requested, input.ActorRole, order.PaymentStatus)
		if !decision.Allowed {
			return denialError(order.Status, input.Requested, decision.Reason)
		}

		update := StatusUpdate{Status: input.Requested}
		now := time.Now().UTC()
		switch input.Requested {
		case enums.OrderStatusOutForDelivery:
			if order.DriverID == nil {
				driverID := input.ActorID
				update.DriverID = &driverID
				order.DriverID = &driverID
			}
		case enums.OrderStatusDelivered:
			update.DeliveredAt = &now
			order.DeliveredAt = &now
		}

		if err := repo.UpdateStatusFields(ctx, order.ID, update); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting order status")
		}
		order.Status = input.Requested

		if input.Requested == enums.OrderStatusDelivered {
			if err := s.writeDeliveryPayouts(ctx, tx, order); err != nil {
				return err
			}
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notifications.CustomerChannel(updated.CustomerID), notifications.Event{
		Type:        enums.NotificationOrderStatus,
		OrderID:     updated.ID,
		OrderNumber: updated.OrderNumber,
		Status:      updated.Status,
	})
	return updated, nil
}

// checkActorScope binds restaurant roles to their own branch and the
// delivered edge to the assigned driver.
func (s *service) checkActorScope(order *models.Order, input StaffTransitionInput) error {
	switch input.ActorRole {
	case enums.ActorRoleOwner, enums.ActorRoleManager, enums.ActorRoleStaff:
		if input.ActorBranchID == nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
		}
		if *input.ActorBranchID != order.BranchID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another branch")
		}
	case enums.ActorRoleDriver:
		if order.DriverID != nil && *order.DriverID != input.ActorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another driver")
		}
	}
	return nil
}

// writeDeliveryPayouts credits the restaurant with the food subtotal and
// the driver with the delivery fee. Only delivered orders ever feed these
// wallets; refunds never claw them back because nothing was credited yet.
func (s *service) writeDeliveryPayouts(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	orderID := order.ID
	if order.Subtotal.GreaterThan(decimal.Zero) {
		if _, err := s.payouts.Credit(ctx, tx, wallet.EntryInput{
			OwnerKind: enums.WalletOwnerRestaurant,
			OwnerID:   order.BranchID,
			OrderID:   &orderID,
			Amount:    order.Subtotal,
			Currency:  order.Currency,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "crediting restaurant payout")
		}
	}
	if order.DriverID != nil && order.DeliveryFee.GreaterThan(decimal.Zero) {
		if _, err := s.payouts.Credit(ctx, tx, wallet.EntryInput{
			OwnerKind: enums.WalletOwnerDriver,
			OwnerID:   *order.DriverID,
			OrderID:   &orderID,
			Amount:    order.DeliveryFee,
			Currency:  order.Currency,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "crediting driver payout")
		}
	}
	return nil
}

func denialError(current, requested enums.OrderStatus, reason DenialReason) error {
	details := map[string]any{
		"current":   current,
		"requested": requested,
		"reason":    reason,
	}
	switch reason {
	case DenialInsufficientRole:
		return pkgerrors.New(pkgerrors.CodeForbidden, "role may not perform this transition").WithDetails(details)
	case DenialPaymentNotCompleted:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed").WithDetails(details)
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed").WithDetails(details)
	}
}
