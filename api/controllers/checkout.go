package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/davidbarrios/platerush-backend/api/middleware"
	"github.com/davidbarrios/platerush-backend/api/responses"
	"github.com/davidbarrios/platerush-backend/api/validators"
	"github.com/davidbarrios/platerush-backend/internal/checkout"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

type checkoutRequest struct {
	BranchID  string `json:"branch_id" validate:"required,uuid"`
	AddressID string `json:"address_id" validate:"required,uuid"`
}

// Checkout converts the authenticated customer's cart for one branch into a
// pending order and returns the gateway payment link.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid branch id"))
			return
		}
		addressID, err := uuid.Parse(req.AddressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address id"))
			return
		}

		result, err := svc.Checkout(r.Context(), checkout.Input{
			CustomerID: customerID,
			BranchID:   branchID,
			AddressID:  addressID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"order":       result.Order,
			"payment_url": result.PaymentURL,
		})
	}
}
