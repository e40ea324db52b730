package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/davidbarrios/platerush-backend/api/middleware"
	"github.com/davidbarrios/platerush-backend/api/responses"
	"github.com/davidbarrios/platerush-backend/api/validators"
	"github.com/davidbarrios/platerush-backend/internal/notifications"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

// notificationChannel resolves the inbox channel for the authenticated
// actor. Customers read their own channel, restaurant roles the branch
// channel. Drivers have no inbox today.
func notificationChannel(r *http.Request) (string, error) {
	role, _ := middleware.RoleFromContext(r.Context())
	switch role {
	case enums.ActorRoleCustomer:
		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
		}
		return notifications.CustomerChannel(userID), nil
	case enums.ActorRoleOwner, enums.ActorRoleManager, enums.ActorRoleStaff:
		branchID, ok := middleware.BranchIDFromContext(r.Context())
		if !ok {
			return "", pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing")
		}
		return notifications.BranchChannel(branchID), nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "no notification inbox for this role")
}

// ListNotifications returns the actor's notifications, newest first.
func ListNotifications(dispatcher notifications.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications unavailable"))
			return
		}

		channel, err := notificationChannel(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultListLimit, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		unreadOnly, err := validators.ParseQueryBool(r, "unread", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := dispatcher.List(r.Context(), channel, unreadOnly, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// MarkNotificationRead marks one of the actor's notifications as read.
func MarkNotificationRead(dispatcher notifications.Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications unavailable"))
			return
		}

		channel, err := notificationChannel(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		raw := strings.TrimSpace(chi.URLParam(r, "notificationId"))
		notificationID, err := uuid.Parse(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}

		if err := dispatcher.MarkRead(r.Context(), channel, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}
