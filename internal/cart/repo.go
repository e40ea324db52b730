package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/pkg/db/models"
)

// Repository exposes persistence helpers for customer carts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListForBranch(ctx context.Context, customerID, branchID uuid.UUID) ([]models.CartItem, error)
	ClearForBranch(ctx context.Context, customerID, branchID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a cart repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListForBranch(ctx context.Context, customerID, branchID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND branch_id = ?", customerID, branchID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ClearForBranch(ctx context.Context, customerID, branchID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("customer_id = ? AND branch_id = ?", customerID, branchID).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
