package controllers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davidbarrios/platerush-backend/api/responses"
	"github.com/davidbarrios/platerush-backend/internal/notifications"
	pkgauth "github.com/davidbarrios/platerush-backend/pkg/auth"
	"github.com/davidbarrios/platerush-backend/pkg/config"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var notifyUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NotificationsWS streams the actor's notification channel over a
// WebSocket. Browsers cannot set an Authorization header on the upgrade
// request, so the token travels as a query parameter.
func NotificationsWS(cfg config.JWTConfig, hub *notifications.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification hub unavailable"))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token required"))
			return
		}
		claims, err := pkgauth.ParseAccessToken(cfg, token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
			return
		}

		var channel string
		switch claims.Role {
		case enums.ActorRoleCustomer:
			channel = notifications.CustomerChannel(claims.UserID)
		case enums.ActorRoleOwner, enums.ActorRoleManager, enums.ActorRoleStaff:
			if claims.BranchID == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "branch context missing"))
				return
			}
			channel = notifications.BranchChannel(*claims.BranchID)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "no notification stream for this role"))
			return
		}

		conn, err := notifyUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub := hub.Subscribe(channel)
		defer sub.Close()

		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(wsPongWait))
			return nil
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(wsPingPeriod)
			defer ticker.Stop()
			for {
				select {
				case payload, ok := <-sub.Receive():
					if !ok {
						conn.WriteMessage(websocket.CloseMessage, nil)
						return
					}
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
						return
					}
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		// The read loop only services pings and detects disconnects;
		// clients never send application messages.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		sub.Close()
		<-done
	}
}
