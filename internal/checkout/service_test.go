package checkout

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/internal/cart"
	"github.com/davidbarrios/platerush-backend/internal/orders"
	"github.com/davidbarrios/platerush-backend/pkg/config"
	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
	"github.com/davidbarrios/platerush-backend/pkg/mercadopago"
)

type fakeCartRepo struct {
	items []models.CartItem
}

func (f *fakeCartRepo) WithTx(tx *gorm.DB) cart.Repository { return f }

func (f *fakeCartRepo) ListForBranch(ctx context.Context, customerID, branchID uuid.UUID) ([]models.CartItem, error) {
	return f.items, nil
}

func (f *fakeCartRepo) ClearForBranch(ctx context.Context, customerID, branchID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeOrderRepo struct {
	created   *models.Order
	createErr error
}

func (f *fakeOrderRepo) WithTx(tx *gorm.DB) orders.Repository { return f }

func (f *fakeOrderRepo) CreateWithItems(ctx context.Context, order *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = order
	return nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	return nil, orders.ErrNotFound
}

func (f *fakeOrderRepo) FindByProviderPaymentID(ctx context.Context, providerPaymentID string, forUpdate bool) (*models.Order, error) {
	return nil, orders.ErrNotFound
}

func (f *fakeOrderRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) ListByBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.OrderStatus, limit int) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) UpdateStatusFields(ctx context.Context, orderID uuid.UUID, update orders.StatusUpdate) error {
	return nil
}

func (f *fakeOrderRepo) UpdatePaymentFields(ctx context.Context, orderID uuid.UUID, update orders.PaymentUpdate) error {
	return nil
}

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakePreferenceGateway struct {
	params mercadopago.PreferenceParams
	err    error
	calls  int
}

func (f *fakePreferenceGateway) CreatePreference(ctx context.Context, params mercadopago.PreferenceParams) (*mercadopago.Preference, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &mercadopago.Preference{
		ID:                "pref_1",
		ExternalReference: params.ExternalReference,
		InitPoint:         "https://pay.test/pref_1",
	}, nil
}

func newCheckoutService(t *testing.T, carts *fakeCartRepo, repo *fakeOrderRepo, gateway *fakePreferenceGateway) Service {
	t.Helper()
	svc, err := NewService(carts, repo, &fakeTxRunner{}, gateway, config.CheckoutConfig{
		DefaultDeliveryFee: "20.00",
		Currency:           "ARS",
	}, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func cartItems(branchID uuid.UUID) []models.CartItem {
	return []models.CartItem{
		{
			ID:        uuid.New(),
			BranchID:  branchID,
			ProductID: uuid.New(),
			Name:      "Milanesa napolitana",
			UnitPrice: decimal.RequireFromString("30.00"),
			Qty:       3,
		},
		{
			ID:        uuid.New(),
			BranchID:  branchID,
			ProductID: uuid.New(),
			Name:      "Flan casero",
			UnitPrice: decimal.RequireFromString("10.00"),
			Qty:       1,
		},
	}
}

func TestCheckout_ComputesTotals(t *testing.T) {
	branchID := uuid.New()
	carts := &fakeCartRepo{items: cartItems(branchID)}
	repo := &fakeOrderRepo{}
	gateway := &fakePreferenceGateway{}
	svc := newCheckoutService(t, carts, repo, gateway)

	result, err := svc.Checkout(context.Background(), Input{
		CustomerID: uuid.New(),
		BranchID:   branchID,
		AddressID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	order := result.Order
	if !order.Subtotal.Equal(decimal.RequireFromString("100.00")) {
		t.Fatalf("subtotal = %s, want 100.00", order.Subtotal)
	}
	if !order.DeliveryFee.Equal(decimal.RequireFromString("20.00")) {
		t.Fatalf("delivery fee = %s, want 20.00", order.DeliveryFee)
	}
	if !order.Total.Equal(decimal.RequireFromString("120.00")) {
		t.Fatalf("total = %s, want 120.00", order.Total)
	}
	if !order.Total.Equal(order.Subtotal.Add(order.DeliveryFee)) {
		t.Fatal("total must equal subtotal + delivery fee")
	}
	if order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("new order state %s/%s, want pending/pending", order.Status, order.PaymentStatus)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}
	if !order.Items[0].LineTotal.Equal(decimal.RequireFromString("90.00")) {
		t.Fatalf("line total = %s, want 90.00", order.Items[0].LineTotal)
	}
	if result.PaymentURL != "https://pay.test/pref_1" {
		t.Fatalf("payment url = %s", result.PaymentURL)
	}
}

func TestCheckout_PaymentKeyedByExternalReference(t *testing.T) {
	branchID := uuid.New()
	carts := &fakeCartRepo{items: cartItems(branchID)}
	repo := &fakeOrderRepo{}
	gateway := &fakePreferenceGateway{}
	svc := newCheckoutService(t, carts, repo, gateway)

	result, err := svc.Checkout(context.Background(), Input{
		CustomerID: uuid.New(),
		BranchID:   branchID,
		AddressID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	payment := result.Order.Payment
	if payment == nil {
		t.Fatal("payment row missing")
	}
	if payment.ProviderPaymentID != gateway.params.ExternalReference {
		t.Fatalf("provider payment id %q does not match preference reference %q",
			payment.ProviderPaymentID, gateway.params.ExternalReference)
	}
	if !payment.Amount.Equal(result.Order.Total) {
		t.Fatalf("payment amount %s, want %s", payment.Amount, result.Order.Total)
	}
	if repo.created == nil {
		t.Fatal("order not persisted")
	}
}

func TestCheckout_EmptyCartRejected(t *testing.T) {
	carts := &fakeCartRepo{}
	repo := &fakeOrderRepo{}
	gateway := &fakePreferenceGateway{}
	svc := newCheckoutService(t, carts, repo, gateway)

	_, err := svc.Checkout(context.Background(), Input{
		CustomerID: uuid.New(),
		BranchID:   uuid.New(),
		AddressID:  uuid.New(),
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error %v", err)
	}
	if gateway.calls != 0 {
		t.Fatal("empty cart must not open a gateway session")
	}
}

func TestCheckout_GatewayFailureCreatesNothing(t *testing.T) {
	branchID := uuid.New()
	carts := &fakeCartRepo{items: cartItems(branchID)}
	repo := &fakeOrderRepo{}
	gateway := &fakePreferenceGateway{err: errors.New("gateway down")}
	svc := newCheckoutService(t, carts, repo, gateway)

	_, err := svc.Checkout(context.Background(), Input{
		CustomerID: uuid.New(),
		BranchID:   branchID,
		AddressID:  uuid.New(),
	})
	if err == nil {
		t.Fatal("expected gateway error")
	}
	if repo.created != nil {
		t.Fatal("no order may be created when the gateway session fails")
	}
}
