package orders

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/internal/notifications"
	"github.com/davidbarrios/platerush-backend/internal/wallet"
	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
	"github.com/davidbarrios/platerush-backend/pkg/mercadopago"
	"github.com/davidbarrios/platerush-backend/pkg/metrics"
)

type fakeOrderRepo struct {
	order            *models.Order
	statusUpdates    []StatusUpdate
	paymentUpdates   []PaymentUpdate
	statusUpdateErr  error
	paymentUpdateErr error
	lockRequested    bool
}

func (f *fakeOrderRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeOrderRepo) CreateWithItems(ctx context.Context, order *models.Order) error {
	f.order = order
	return nil
}

func (f *fakeOrderRepo) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	f.lockRequested = forUpdate
	if f.order == nil || f.order.ID != id {
		return nil, ErrNotFound
	}
	return f.order, nil
}

func (f *fakeOrderRepo) FindByProviderPaymentID(ctx context.Context, providerPaymentID string, forUpdate bool) (*models.Order, error) {
	if f.order == nil || f.order.Payment == nil || f.order.Payment.ProviderPaymentID != providerPaymentID {
		return nil, ErrNotFound
	}
	f.lockRequested = forUpdate
	return f.order, nil
}

func (f *fakeOrderRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) ListByBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.OrderStatus, limit int) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) UpdateStatusFields(ctx context.Context, orderID uuid.UUID, update StatusUpdate) error {
	if f.statusUpdateErr != nil {
		return f.statusUpdateErr
	}
	f.statusUpdates = append(f.statusUpdates, update)
	return nil
}

func (f *fakeOrderRepo) UpdatePaymentFields(ctx context.Context, orderID uuid.UUID, update PaymentUpdate) error {
	if f.paymentUpdateErr != nil {
		return f.paymentUpdateErr
	}
	f.paymentUpdates = append(f.paymentUpdates, update)
	return nil
}

type fakeTxRunner struct {
	calls int
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(&gorm.DB{})
}

type fakePayouts struct {
	credits []wallet.EntryInput
	err     error
}

func (f *fakePayouts) Credit(ctx context.Context, tx *gorm.DB, input wallet.EntryInput) (*models.WalletEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.credits = append(f.credits, input)
	return &models.WalletEntry{WalletID: uuid.New(), Amount: input.Amount}, nil
}

type fakeNotifier struct {
	events   []notifications.Event
	channels []string
}

func (f *fakeNotifier) Publish(ctx context.Context, channel string, event notifications.Event) {
	f.channels = append(f.channels, channel)
	f.events = append(f.events, event)
}

type fakeGateway struct {
	refunds    int
	refundErr  error
	lastID     string
	lastAmount decimal.Decimal
	result     *mercadopago.RefundResult
}

func (f *fakeGateway) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) (*mercadopago.RefundResult, error) {
	f.refunds++
	f.lastID = paymentID
	f.lastAmount = amount
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	if f.result != nil {
		return f.result, nil
	}
	return &mercadopago.RefundResult{ID: 900, Status: "approved", Amount: amount}, nil
}

type serviceFixture struct {
	repo     *fakeOrderRepo
	tx       *fakeTxRunner
	payouts  *fakePayouts
	notifier *fakeNotifier
	gateway  *fakeGateway
	svc      Service
}

func newServiceFixture(t *testing.T, opts ...func(*ServiceParams)) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:     &fakeOrderRepo{},
		tx:       &fakeTxRunner{},
		payouts:  &fakePayouts{},
		notifier: &fakeNotifier{},
		gateway:  &fakeGateway{},
	}
	params := ServiceParams{
		Repo:     f.repo,
		Tx:       f.tx,
		Payouts:  f.payouts,
		Notifier: f.notifier,
		Gateway:  f.gateway,
		Metrics:  metrics.NewPaymentMetrics(nil),
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func confirmedOrder(branchID uuid.UUID) *models.Order {
	ref := "7001"
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   1042,
		CustomerID:    uuid.New(),
		BranchID:      branchID,
		AddressID:     uuid.New(),
		Status:        enums.OrderStatusConfirmed,
		PaymentStatus: enums.PaymentStatusCompleted,
		Subtotal:      decimal.RequireFromString("100.00"),
		DeliveryFee:   decimal.RequireFromString("20.00"),
		Total:         decimal.RequireFromString("120.00"),
		Currency:      "ARS",
		Payment: &models.Payment{
			ID:                uuid.New(),
			ProviderPaymentID: "order-1042",
			GatewayPaymentRef: &ref,
			Status:            enums.PaymentStatusCompleted,
			Amount:            decimal.RequireFromString("120.00"),
		},
	}
}

func TestStaffTransition_ConfirmPublishesNotification(t *testing.T) {
	branchID := uuid.New()
	f := newServiceFixture(t)
	order := confirmedOrder(branchID)
	order.Status = enums.OrderStatusPlaced
	f.repo.order = order

	updated, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:       order.ID,
		Requested:     enums.OrderStatusConfirmed,
		ActorID:       uuid.New(),
		ActorRole:     enums.ActorRoleManager,
		ActorBranchID: &branchID,
	})
	if err != nil {
		t.Fatalf("staff transition: %v", err)
	}
	if updated.Status != enums.OrderStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", updated.Status)
	}
	if !f.repo.lockRequested {
		t.Fatal("expected order row lock")
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].Type != enums.NotificationOrderStatus {
		t.Fatalf("unexpected notifications %+v", f.notifier.events)
	}
	if f.notifier.channels[0] != notifications.CustomerChannel(order.CustomerID) {
		t.Fatalf("notification sent to %s", f.notifier.channels[0])
	}
}

func TestStaffTransition_DeniedRoleIsForbidden(t *testing.T) {
	branchID := uuid.New()
	f := newServiceFixture(t)
	order := confirmedOrder(branchID)
	order.Status = enums.OrderStatusPlaced
	f.repo.order = order

	_, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:       order.ID,
		Requested:     enums.OrderStatusConfirmed,
		ActorID:       uuid.New(),
		ActorRole:     enums.ActorRoleStaff,
		ActorBranchID: &branchID,
	})
	if err == nil {
		t.Fatal("expected denial")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
	if len(f.repo.statusUpdates) != 0 {
		t.Fatal("denied transition must not persist")
	}
	if len(f.notifier.events) != 0 {
		t.Fatal("denied transition must not notify")
	}
}

func TestStaffTransition_InvalidEdgeIsStateConflict(t *testing.T) {
	branchID := uuid.New()
	f := newServiceFixture(t)
	order := confirmedOrder(branchID)
	order.Status = enums.OrderStatusPlaced
	f.repo.order = order

	_, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:       order.ID,
		Requested:     enums.OrderStatusPreparing,
		ActorID:       uuid.New(),
		ActorRole:     enums.ActorRoleManager,
		ActorBranchID: &branchID,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStaffTransition_WrongBranchForbidden(t *testing.T) {
	f := newServiceFixture(t)
	order := confirmedOrder(uuid.New())
	order.Status = enums.OrderStatusPlaced
	f.repo.order = order

	otherBranch := uuid.New()
	_, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:       order.ID,
		Requested:     enums.OrderStatusConfirmed,
		ActorID:       uuid.New(),
		ActorRole:     enums.ActorRoleOwner,
		ActorBranchID: &otherBranch,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStaffTransition_PickupAssignsDriver(t *testing.T) {
	branchID := uuid.New()
	f := newServiceFixture(t)
	order := confirmedOrder(branchID)
	order.Status = enums.OrderStatusReadyForPickup
	f.repo.order = order

	driverID := uuid.New()
	updated, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:   order.ID,
		Requested: enums.OrderStatusOutForDelivery,
		ActorID:   driverID,
		ActorRole: enums.ActorRoleDriver,
	})
	if err != nil {
		t.Fatalf("staff transition: %v", err)
	}
	if updated.DriverID == nil || *updated.DriverID != driverID {
		t.Fatalf("driver not assigned: %+v", updated.DriverID)
	}
	if len(f.repo.statusUpdates) != 1 || f.repo.statusUpdates[0].DriverID == nil {
		t.Fatal("driver assignment not persisted")
	}
}

func TestStaffTransition_DeliveredWritesPayouts(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()
	f := newServiceFixture(t)
	order := confirmedOrder(branchID)
	order.Status = enums.OrderStatusOutForDelivery
	order.DriverID = &driverID
	f.repo.order = order

	updated, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:   order.ID,
		Requested: enums.OrderStatusDelivered,
		ActorID:   driverID,
		ActorRole: enums.ActorRoleDriver,
	})
	if err != nil {
		t.Fatalf("staff transition: %v", err)
	}
	if updated.DeliveredAt == nil {
		t.Fatal("delivered_at not set")
	}
	if len(f.payouts.credits) != 2 {
		t.Fatalf("expected 2 payout credits, got %d", len(f.payouts.credits))
	}
	restaurant, driver := f.payouts.credits[0], f.payouts.credits[1]
	if restaurant.OwnerKind != enums.WalletOwnerRestaurant || !restaurant.Amount.Equal(order.Subtotal) {
		t.Fatalf("unexpected restaurant credit %+v", restaurant)
	}
	if driver.OwnerKind != enums.WalletOwnerDriver || !driver.Amount.Equal(order.DeliveryFee) {
		t.Fatalf("unexpected driver credit %+v", driver)
	}
}

func TestStaffTransition_OtherDriverForbidden(t *testing.T) {
	branchID := uuid.New()
	assigned := uuid.New()
	f := newServiceFixture(t)
	order := confirmedOrder(branchID)
	order.Status = enums.OrderStatusOutForDelivery
	order.DriverID = &assigned
	f.repo.order = order

	_, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:   order.ID,
		Requested: enums.OrderStatusDelivered,
		ActorID:   uuid.New(),
		ActorRole: enums.ActorRoleDriver,
	})
	appErr := pkgerrors.As(err)
	if appErr == nil || appErr.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestStaffTransition_PayoutFailureRollsBack(t *testing.T) {
	branchID := uuid.New()
	driverID := uuid.New()
	f := newServiceFixture(t)
	f.payouts.err = errors.New("wallet locked")
	order := confirmedOrder(branchID)
	order.Status = enums.OrderStatusOutForDelivery
	order.DriverID = &driverID
	f.repo.order = order

	_, err := f.svc.StaffTransition(context.Background(), StaffTransitionInput{
		OrderID:   order.ID,
		Requested: enums.OrderStatusDelivered,
		ActorID:   driverID,
		ActorRole: enums.ActorRoleDriver,
	})
	if err == nil {
		t.Fatal("expected payout failure to surface")
	}
	if len(f.notifier.events) != 0 {
		t.Fatal("failed transition must not notify")
	}
}

func TestNewService_RefusesSimulatedRefundsInProduction(t *testing.T) {
	_, err := NewService(ServiceParams{
		Repo:            &fakeOrderRepo{},
		Tx:              &fakeTxRunner{},
		Payouts:         &fakePayouts{},
		Notifier:        &fakeNotifier{},
		Gateway:         &fakeGateway{},
		Metrics:         metrics.NewPaymentMetrics(nil),
		Logger:          logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		SimulateRefunds: true,
		Production:      true,
	})
	if err == nil {
		t.Fatal("expected constructor refusal")
	}
}
