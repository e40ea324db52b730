package checkout

import (
	"context"
	"fmt"

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

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type preferenceGateway interface {
	CreatePreference(ctx context.Context, params mercadopago.PreferenceParams) (*mercadopago.Preference, error)
}

// Input identifies the customer cart being converted into an order.
type Input struct {
	CustomerID uuid.UUID
	BranchID   uuid.UUID
	AddressID  uuid.UUID
}

// Result carries the created order and the gateway payment link.
type Result struct {
	Order      *models.Order
	PaymentURL string
}

// Service converts a customer's cart into a pending order plus a gateway
// checkout session.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	carts       cart.Repository
	ordersRepo  orders.Repository
	tx          txRunner
	gateway     preferenceGateway
	deliveryFee decimal.Decimal
	currency    string
	logger      *logger.Logger
}

// NewService builds the checkout service. The default delivery fee comes
// from configuration and is parsed once at startup.
func NewService(carts cart.Repository, ordersRepo orders.Repository, tx txRunner, gateway preferenceGateway, cfg config.CheckoutConfig, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	fee, err := decimal.NewFromString(cfg.DefaultDeliveryFee)
	if err != nil {
		return nil, fmt.Errorf("invalid default delivery fee %q: %w", cfg.DefaultDeliveryFee, err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("default delivery fee must not be negative")
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "ARS"
	}
	return &service{
		carts:       carts,
		ordersRepo:  ordersRepo,
		tx:          tx,
		gateway:     gateway,
		deliveryFee: fee,
		currency:    currency,
		logger:      logg,
	}, nil
}

// Checkout creates the order in pending/pending with its items snapshotted
// from the cart and a payment row keyed by the gateway external reference.
// The gateway session is opened first; an orphaned session whose order was
// never persisted is harmless because reconciliation swallows unmatched
// references. The cart is intentionally left alone until the payment is
// reconciled.
func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if input.BranchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "branch id required")
	}
	if input.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}

	items, err := s.carts.ListForBranch(ctx, input.CustomerID, input.BranchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading cart")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty for this branch")
	}

	subtotal := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	prefItems := make([]mercadopago.PreferenceItem, 0, len(items))
	for _, item := range items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
		subtotal = subtotal.Add(lineTotal)
		productID := item.ProductID
		orderItems = append(orderItems, models.OrderItem{
			ProductID: &productID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Qty:       item.Qty,
			LineTotal: lineTotal,
		})
		prefItems = append(prefItems, mercadopago.PreferenceItem{
			Title:     item.Name,
			Quantity:  item.Qty,
			UnitPrice: item.UnitPrice,
		})
	}
	total := subtotal.Add(s.deliveryFee)

	externalReference := fmt.Sprintf("order-%s", uuid.NewString())
	if s.deliveryFee.GreaterThan(decimal.Zero) {
		prefItems = append(prefItems, mercadopago.PreferenceItem{
			Title:     "Delivery",
			Quantity:  1,
			UnitPrice: s.deliveryFee,
		})
	}

	pref, err := s.gateway.CreatePreference(ctx, mercadopago.PreferenceParams{
		ExternalReference: externalReference,
		Items:             prefItems,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "opening gateway checkout session")
	}

	order := &models.Order{
		CustomerID:    input.CustomerID,
		BranchID:      input.BranchID,
		AddressID:     input.AddressID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPending,
		Subtotal:      subtotal,
		DeliveryFee:   s.deliveryFee,
		Total:         total,
		Currency:      s.currency,
		Items:         orderItems,
		Payment: &models.Payment{
			ProviderPaymentID: externalReference,
			Status:            enums.PaymentStatusPending,
			Amount:            total,
		},
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ordersRepo.WithTx(tx).CreateWithItems(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting order")
		}
		return nil
	})
	if err != nil {
		logCtx := s.logger.WithField(ctx, "external_reference", externalReference)
		s.logger.Error(logCtx, "gateway session opened but order was not persisted", err)
		return nil, err
	}

	return &Result{Order: order, PaymentURL: pref.InitPoint}, nil
}
