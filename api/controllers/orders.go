package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davidbarrios/platerush-backend/api/middleware"
	"github.com/davidbarrios/platerush-backend/api/responses"
	"github.com/davidbarrios/platerush-backend/api/validators"
	"github.com/davidbarrios/platerush-backend/internal/orders"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

// OrderDetail returns one order after checking the actor may see it.
// Customers see their own orders, restaurant roles their branch's, drivers
// their assigned deliveries.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		role, _ := middleware.RoleFromContext(r.Context())
		branchID, hasBranch := middleware.BranchIDFromContext(r.Context())

		allowed := false
		switch role {
		case enums.ActorRoleCustomer:
			allowed = order.CustomerID == userID
		case enums.ActorRoleOwner, enums.ActorRoleManager, enums.ActorRoleStaff:
			allowed = hasBranch && order.BranchID == branchID
		case enums.ActorRoleDriver:
			allowed = order.DriverID != nil && *order.DriverID == userID
		}
		if !allowed {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you"))
			return
		}

		responses.WriteSuccess(w, order)
	}
}

// ListMyOrders returns the authenticated customer's orders, newest first.
func ListMyOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListForCustomer(r.Context(), customerID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ListBranchOrders returns the active branch's orders, optionally filtered
// by a comma-separated status query.
func ListBranchOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		branchID, ok := middleware.BranchIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var statuses []enums.OrderStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				status, err := enums.ParseOrderStatus(strings.TrimSpace(part))
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
					return
				}
				statuses = append(statuses, status)
			}
		}

		list, err := svc.ListForBranch(r.Context(), branchID, statuses, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateOrderStatus applies one lifecycle edge on behalf of staff or a
// driver. The service decides whether the edge, role and payment state
// allow it.
func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requested, err := enums.ParseOrderStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		role, _ := middleware.RoleFromContext(r.Context())
		input := orders.StaffTransitionInput{
			OrderID:   orderID,
			Requested: requested,
			ActorID:   userID,
			ActorRole: role,
		}
		if branchID, ok := middleware.BranchIDFromContext(r.Context()); ok {
			input.ActorBranchID = &branchID
		}

		order, err := svc.StaffTransition(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// RejectOrder refuses a confirmed order and refunds the customer.
func RejectOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req rejectRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, _ := middleware.UserIDFromContext(r.Context())
		role, _ := middleware.RoleFromContext(r.Context())
		input := orders.RejectInput{
			OrderID:   orderID,
			Reason:    strings.TrimSpace(req.Reason),
			ActorID:   userID,
			ActorRole: role,
		}
		if branchID, ok := middleware.BranchIDFromContext(r.Context()); ok {
			input.ActorBranchID = &branchID
		}

		order, err := svc.Reject(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
