package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// ErrNotFound is returned when no order matches the lookup.
var ErrNotFound = errors.New("order not found")

// StatusUpdate carries the columns touched by one lifecycle mutation. The
// payment fields are optional so pure status moves leave payment rows alone.
type StatusUpdate struct {
	Status          enums.OrderStatus
	PaymentStatus   *enums.PaymentStatus
	DriverID        *uuid.UUID
	RejectionReason *string
	PlacedAt        *time.Time
	DeliveredAt     *time.Time
	RejectedAt      *time.Time
}

// PaymentUpdate mutates the payment row joined to an order.
type PaymentUpdate struct {
	Status            *enums.PaymentStatus
	GatewayPaymentRef *string
	RefundID          *string
	RefundedAt        *time.Time
}

// Repository manages persistence for orders and their payment rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWithItems(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error)
	FindByProviderPaymentID(ctx context.Context, providerPaymentID string, forUpdate bool) (*models.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error)
	ListByBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.OrderStatus, limit int) ([]models.Order, error)
	UpdateStatusFields(ctx context.Context, orderID uuid.UUID, update StatusUpdate) error
	UpdatePaymentFields(ctx context.Context, orderID uuid.UUID, update PaymentUpdate) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWithItems(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment")
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}

	var order models.Order
	if err := query.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByProviderPaymentID(ctx context.Context, providerPaymentID string, forUpdate bool) (*models.Order, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		First(&payment, "provider_payment_id = ?", providerPaymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r.FindByID(ctx, payment.OrderID, forUpdate)
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit int) ([]models.Order, error) {
	var results []models.Order
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("customer_id = ?", customerID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repository) ListByBranch(ctx context.Context, branchID uuid.UUID, statuses []enums.OrderStatus, limit int) ([]models.Order, error) {
	var results []models.Order
	query := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payment").
		Where("branch_id = ?", branchID).
		Order("created_at DESC")
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repository) UpdateStatusFields(ctx context.Context, orderID uuid.UUID, update StatusUpdate) error {
	fields := map[string]any{"status": update.Status}
	if update.PaymentStatus != nil {
		fields["payment_status"] = *update.PaymentStatus
	}
	if update.DriverID != nil {
		fields["driver_id"] = *update.DriverID
	}
	if update.RejectionReason != nil {
		fields["rejection_reason"] = *update.RejectionReason
	}
	if update.PlacedAt != nil {
		fields["placed_at"] = *update.PlacedAt
	}
	if update.DeliveredAt != nil {
		fields["delivered_at"] = *update.DeliveredAt
	}
	if update.RejectedAt != nil {
		fields["rejected_at"] = *update.RejectedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) UpdatePaymentFields(ctx context.Context, orderID uuid.UUID, update PaymentUpdate) error {
	fields := map[string]any{}
	if update.Status != nil {
		fields["status"] = *update.Status
	}
	if update.GatewayPaymentRef != nil {
		fields["gateway_payment_ref"] = *update.GatewayPaymentRef
	}
	if update.RefundID != nil {
		fields["refund_id"] = *update.RefundID
	}
	if update.RefundedAt != nil {
		fields["refunded_at"] = *update.RefundedAt
	}
	if len(fields) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("order_id = ?", orderID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
