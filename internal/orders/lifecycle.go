package orders

import (
	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// DenialReason explains why a requested transition was not allowed.
type DenialReason string

const (
	DenialInvalidTransition   DenialReason = "invalid_transition"
	DenialInsufficientRole    DenialReason = "insufficient_role"
	DenialPaymentNotCompleted DenialReason = "payment_not_completed"
)

// Decision is the outcome of evaluating a requested status change. It is a
// value, not an error: callers translate denials into API responses.
type Decision struct {
	Allowed bool
	Reason  DenialReason
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason DenialReason) Decision {
	return Decision{Reason: reason}
}

type transitionRule struct {
	capability enums.Capability

	// requiresCompletedPayment gates the edge on the order's payment having
	// settled. Only confirmed -> rejected uses it today: rejecting before
	// money moved has nothing to refund and is treated as a distinct denial.
	requiresCompletedPayment bool
}

type edge struct {
	from enums.OrderStatus
	to   enums.OrderStatus
}

// transitionRules holds every actor-driven edge of the order lifecycle.
// pending -> placed is deliberately absent: that edge belongs to payment
// reconciliation alone and no staff or driver request may take it.
var transitionRules = map[edge]transitionRule{
	{enums.OrderStatusPlaced, enums.OrderStatusConfirmed}: {
		capability: enums.CapabilityManageOrders,
	},
	{enums.OrderStatusConfirmed, enums.OrderStatusRejected}: {
		capability:               enums.CapabilityManageOrders,
		requiresCompletedPayment: true,
	},
	{enums.OrderStatusConfirmed, enums.OrderStatusPreparing}: {
		capability: enums.CapabilityPrepareOrders,
	},
	{enums.OrderStatusPreparing, enums.OrderStatusReadyForPickup}: {
		capability: enums.CapabilityPrepareOrders,
	},
	{enums.OrderStatusReadyForPickup, enums.OrderStatusOutForDelivery}: {
		capability: enums.CapabilityDeliverOrders,
	},
	{enums.OrderStatusOutForDelivery, enums.OrderStatusDelivered}: {
		capability: enums.CapabilityDeliverOrders,
	},
}

// Transition evaluates whether the actor may move an order from current to
// requested given the order's payment status. The structural check runs
// first, then the role check, then payment preconditions, so each denial
// reports the most specific reason.
func Transition(current, requested enums.OrderStatus, role enums.ActorRole, payment enums.PaymentStatus) Decision {
	rule, ok := transitionRules[edge{current, requested}]
	if !ok {
		return deny(DenialInvalidTransition)
	}
	if !role.HasCapability(rule.capability) {
		return deny(DenialInsufficientRole)
	}
	if rule.requiresCompletedPayment && payment != enums.PaymentStatusCompleted {
		return deny(DenialPaymentNotCompleted)
	}
	return allow()
}
