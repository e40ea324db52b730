package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davidbarrios/platerush-backend/api/middleware"
	"github.com/davidbarrios/platerush-backend/api/responses"
	"github.com/davidbarrios/platerush-backend/api/validators"
	"github.com/davidbarrios/platerush-backend/internal/wallet"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

// walletOwner resolves which wallet the authenticated actor owns.
// Restaurant roles share the branch wallet; drivers hold a personal one.
func walletOwner(r *http.Request) (enums.WalletOwnerKind, uuid.UUID, error) {
	role, _ := middleware.RoleFromContext(r.Context())
	switch role {
	case enums.ActorRoleOwner, enums.ActorRoleManager, enums.ActorRoleStaff:
		branchID, ok := middleware.BranchIDFromContext(r.Context())
		if !ok {
			return "", uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
		}
		return enums.WalletOwnerRestaurant, branchID, nil
	case enums.ActorRoleDriver:
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			return "", uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
		}
		return enums.WalletOwnerDriver, userID, nil
	}
	return "", uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "no wallet for this role")
}

// MyWallet returns the actor's wallet with its current balance.
func MyWallet(repo wallet.Repository, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet repository unavailable"))
			return
		}

		kind, ownerID, err := walletOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wlt, err := repo.FindOrCreateForOwner(r.Context(), kind, ownerID, currency, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet"))
			return
		}
		responses.WriteSuccess(w, wlt)
	}
}

// WalletEntries returns the ledger entries of one wallet by id, after
// checking the wallet belongs to the requesting actor.
func WalletEntries(repo wallet.Repository, svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "walletId"))
		walletID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid wallet id"))
			return
		}

		kind, ownerID, err := walletOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wlt, err := repo.FindByID(r.Context(), walletID, false)
		if err != nil {
			if errors.Is(err, wallet.ErrNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet"))
			return
		}
		if wlt.OwnerKind != kind || wlt.OwnerID != ownerID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "wallet does not belong to you"))
			return
		}

		entries, err := svc.Entries(r.Context(), wlt.ID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"wallet_id": wlt.ID,
			"balance":   wlt.Balance,
			"entries":   entries,
		})
	}
}

// MyWalletEntries returns the actor's ledger entries, newest first.
func MyWalletEntries(repo wallet.Repository, svc wallet.Service, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil || svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "wallet service unavailable"))
			return
		}

		kind, ownerID, err := walletOwner(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wlt, err := repo.FindOrCreateForOwner(r.Context(), kind, ownerID, currency, false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet"))
			return
		}

		entries, err := svc.Entries(r.Context(), wlt.ID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"wallet_id": wlt.ID,
			"balance":   wlt.Balance,
			"entries":   entries,
		})
	}
}
