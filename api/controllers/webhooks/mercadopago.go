package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/davidbarrios/platerush-backend/api/responses"
	"github.com/davidbarrios/platerush-backend/internal/reconcile"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

type ReconcileService interface {
	HandleEvent(ctx context.Context, event reconcile.WebhookEvent) error
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type gatewaySigner interface {
	SigningSecret() string
}

type mercadoPagoPayload struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// MercadoPagoWebhook ingests payment notifications. Deliveries are
// deduplicated by event id before the reconciliation service runs; the
// idempotency key is released when handling fails so the gateway's retry
// gets another attempt.
func MercadoPagoWebhook(svc ReconcileService, client gatewaySigner, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		var payload mercadoPagoPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload"))
			return
		}

		if secret := client.SigningSecret(); secret != "" {
			if err := verifySignature(r, secret, payload.Data.ID); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		eventID := payload.ID.String()
		if eventID == "" {
			eventID = fmt.Sprintf("%s:%s", payload.Action, payload.Data.ID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		event := reconcile.WebhookEvent{
			ID:        eventID,
			Type:      payload.Type,
			Action:    payload.Action,
			PaymentID: payload.Data.ID,
		}

		// Ack before processing: the gateway's delivery window is short
		// and reconciliation does its own detail fetch plus a transaction.
		// A failure releases the guard so the gateway's scheduled
		// redelivery retries the work.
		responses.WriteSuccess(w, nil)

		go func() {
			ctx := context.WithoutCancel(ctx)
			if err := svc.HandleEvent(ctx, event); err != nil {
				_ = guard.Delete(ctx, eventID)
				if logg != nil {
					logg.Error(ctx, fmt.Sprintf("mercadopago event %s failed, idempotency key released", eventID), err)
				}
				return
			}
			if logg != nil {
				logg.Info(ctx, fmt.Sprintf("mercadopago event %s processed", eventID))
			}
		}()
	}
}

// verifySignature checks the x-signature header against the documented
// manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func verifySignature(r *http.Request, secret, dataID string) error {
	header := r.Header.Get("x-signature")
	if header == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature missing")
	}

	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed webhook signature")
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", strings.ToLower(dataID), r.Header.Get("x-request-id"), ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature mismatch")
	}
	return nil
}
