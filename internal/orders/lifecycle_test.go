package orders

import (
	"testing"

	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name      string
		current   enums.OrderStatus
		requested enums.OrderStatus
		role      enums.ActorRole
		payment   enums.PaymentStatus
		allowed   bool
		reason    DenialReason
	}{
		{
			name:      "manager confirms placed order",
			current:   enums.OrderStatusPlaced,
			requested: enums.OrderStatusConfirmed,
			role:      enums.ActorRoleManager,
			payment:   enums.PaymentStatusCompleted,
			allowed:   true,
		},
		{
			name:      "owner confirms placed order",
			current:   enums.OrderStatusPlaced,
			requested: enums.OrderStatusConfirmed,
			role:      enums.ActorRoleOwner,
			payment:   enums.PaymentStatusCompleted,
			allowed:   true,
		},
		{
			name:      "staff cannot confirm",
			current:   enums.OrderStatusPlaced,
			requested: enums.OrderStatusConfirmed,
			role:      enums.ActorRoleStaff,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInsufficientRole,
		},
		{
			name:      "staff starts preparation",
			current:   enums.OrderStatusConfirmed,
			requested: enums.OrderStatusPreparing,
			role:      enums.ActorRoleStaff,
			payment:   enums.PaymentStatusCompleted,
			allowed:   true,
		},
		{
			name:      "staff marks ready for pickup",
			current:   enums.OrderStatusPreparing,
			requested: enums.OrderStatusReadyForPickup,
			role:      enums.ActorRoleStaff,
			payment:   enums.PaymentStatusCompleted,
			allowed:   true,
		},
		{
			name:      "driver picks up",
			current:   enums.OrderStatusReadyForPickup,
			requested: enums.OrderStatusOutForDelivery,
			role:      enums.ActorRoleDriver,
			payment:   enums.PaymentStatusCompleted,
			allowed:   true,
		},
		{
			name:      "driver delivers",
			current:   enums.OrderStatusOutForDelivery,
			requested: enums.OrderStatusDelivered,
			role:      enums.ActorRoleDriver,
			payment:   enums.PaymentStatusCompleted,
			allowed:   true,
		},
		{
			name:      "staff cannot deliver",
			current:   enums.OrderStatusOutForDelivery,
			requested: enums.OrderStatusDelivered,
			role:      enums.ActorRoleStaff,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInsufficientRole,
		},
		{
			name:      "driver cannot confirm",
			current:   enums.OrderStatusPlaced,
			requested: enums.OrderStatusConfirmed,
			role:      enums.ActorRoleDriver,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInsufficientRole,
		},
		{
			name:      "manager rejects confirmed order",
			current:   enums.OrderStatusConfirmed,
			requested: enums.OrderStatusRejected,
			role:      enums.ActorRoleManager,
			payment:   enums.PaymentStatusCompleted,
			allowed:   true,
		},
		{
			name:      "reject requires settled payment",
			current:   enums.OrderStatusConfirmed,
			requested: enums.OrderStatusRejected,
			role:      enums.ActorRoleManager,
			payment:   enums.PaymentStatusProcessing,
			reason:    DenialPaymentNotCompleted,
		},
		{
			name:      "no actor may place a pending order",
			current:   enums.OrderStatusPending,
			requested: enums.OrderStatusPlaced,
			role:      enums.ActorRoleOwner,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInvalidTransition,
		},
		{
			name:      "cannot skip ahead",
			current:   enums.OrderStatusPlaced,
			requested: enums.OrderStatusPreparing,
			role:      enums.ActorRoleManager,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInvalidTransition,
		},
		{
			name:      "cannot move backwards",
			current:   enums.OrderStatusPreparing,
			requested: enums.OrderStatusConfirmed,
			role:      enums.ActorRoleManager,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInvalidTransition,
		},
		{
			name:      "delivered is terminal",
			current:   enums.OrderStatusDelivered,
			requested: enums.OrderStatusOutForDelivery,
			role:      enums.ActorRoleDriver,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInvalidTransition,
		},
		{
			name:      "rejected is terminal",
			current:   enums.OrderStatusRejected,
			requested: enums.OrderStatusConfirmed,
			role:      enums.ActorRoleOwner,
			payment:   enums.PaymentStatusRefunded,
			reason:    DenialInvalidTransition,
		},
		{
			name:      "customer may not drive transitions",
			current:   enums.OrderStatusPlaced,
			requested: enums.OrderStatusConfirmed,
			role:      enums.ActorRoleCustomer,
			payment:   enums.PaymentStatusCompleted,
			reason:    DenialInsufficientRole,
		},
		{
			name:      "structural check precedes role check",
			current:   enums.OrderStatusPending,
			requested: enums.OrderStatusDelivered,
			role:      enums.ActorRoleCustomer,
			payment:   enums.PaymentStatusPending,
			reason:    DenialInvalidTransition,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Transition(tc.current, tc.requested, tc.role, tc.payment)
			if decision.Allowed != tc.allowed {
				t.Fatalf("allowed = %v, want %v", decision.Allowed, tc.allowed)
			}
			if !tc.allowed && decision.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", decision.Reason, tc.reason)
			}
			if tc.allowed && decision.Reason != "" {
				t.Fatalf("allowed decision carries reason %q", decision.Reason)
			}
		})
	}
}
