package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidbarrios/platerush-backend/pkg/config"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	defaultBaseURL             = "https://api.mercadopago.com"
	responseBodyReadLimit      = 1 << 20
	defaultRequestTimeout      = 10 * time.Second
	defaultRefundTimeout       = 15 * time.Second
	idempotencyKeyHeader       = "X-Idempotency-Key"
	authorizationHeaderPattern = "Bearer %s"
)

var (
	errAccessTokenRequired = errors.New("mercadopago access token is required")
	errInvalidGatewayEnv   = fmt.Errorf("mercadopago environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("mercadopago logger is required")
)

// Client wraps the MercadoPago payment APIs with centralized auth, bounded
// timeouts, logging and error mapping. Construct it once at startup and
// pass it by reference; there is no lazy initialization.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	environment   string
	webhookSecret string
	refundTimeout time.Duration
	logger        *logger.Logger
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway base URL (used by tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient initializes the gateway wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MercadoPagoConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Env())
	if err != nil {
		return nil, err
	}

	accessToken := strings.TrimSpace(cfg.AccessToken)
	if accessToken == "" {
		return nil, errAccessTokenRequired
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	refundTimeout := cfg.RefundTimeout
	if refundTimeout <= 0 {
		refundTimeout = defaultRefundTimeout
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: requestTimeout},
		baseURL:       defaultBaseURL,
		accessToken:   accessToken,
		environment:   env,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		refundTimeout: refundTimeout,
		logger:        logg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	logg.Info(ctx, fmt.Sprintf("mercadopago client initialized (%s)", env))
	return c, nil
}

// Environment reports the normalized gateway environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.webhookSecret
}

// PreferenceItem is one purchasable line sent when creating a preference.
type PreferenceItem struct {
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// PreferenceParams describes the checkout session to open at the gateway.
type PreferenceParams struct {
	ExternalReference string           `json:"external_reference"`
	Items             []PreferenceItem `json:"items"`
	NotificationURL   string           `json:"notification_url,omitempty"`
}

// Preference is the created checkout session.
type Preference struct {
	ID                string `json:"id"`
	ExternalReference string `json:"external_reference"`
	InitPoint         string `json:"init_point"`
}

// PaymentDetail is the full payment record fetched by id.
type PaymentDetail struct {
	ID                int64           `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
}

// RefundResult is the gateway's answer to a refund request.
type RefundResult struct {
	ID     int64           `json:"id"`
	Status string          `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}

// CreatePreference opens a checkout session keyed by the external reference.
func (c *Client) CreatePreference(ctx context.Context, params PreferenceParams) (*Preference, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago client not configured")
	}
	if strings.TrimSpace(params.ExternalReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "external reference is required")
	}
	if len(params.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference items are required")
	}

	var pref Preference
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", params, &pref, true); err != nil {
		return nil, err
	}
	return &pref, nil
}

// GetPayment fetches the full payment detail for a gateway payment id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentDetail, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago client not configured")
	}
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	var detail PaymentDetail
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+id, nil, &detail, false); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Refund issues a refund for the given amount against a gateway payment.
// The call carries its own bounded timeout; a timeout surfaces as an error
// and is never assumed to have succeeded.
func (c *Client) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*RefundResult, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago client not configured")
	}
	id := strings.TrimSpace(paymentID)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	refundCtx, cancel := context.WithTimeout(ctx, c.refundTimeout)
	defer cancel()

	body := map[string]any{"amount": amount}
	var result RefundResult
	if err := c.do(refundCtx, http.MethodPost, "/v1/payments/"+id+"/refunds", body, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, idempotent bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode gateway request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build gateway request")
	}
	req.Header.Set("Authorization", fmt.Sprintf(authorizationHeaderPattern, c.accessToken))
	req.Header.Set("Content-Type", "application/json")
	if idempotent {
		req.Header.Set(idempotencyKeyHeader, uuid.NewString())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "read gateway response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return gatewayError(resp.StatusCode, payload)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode gateway response")
	}
	return nil
}

func gatewayError(status int, payload []byte) error {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(payload, &apiErr)

	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("gateway returned status %d", status)
	}

	if status == http.StatusNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, msg)
	}
	return pkgerrors.New(pkgerrors.CodeGateway, msg).WithDetails(map[string]any{"status": status})
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidGatewayEnv
	}
}
