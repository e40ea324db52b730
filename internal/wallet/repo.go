package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

// ErrNotFound is returned when no wallet matches the lookup.
var ErrNotFound = errors.New("wallet not found")

// Repository manages persistence for wallets and their ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Wallet, error)
	FindOrCreateForOwner(ctx context.Context, kind enums.WalletOwnerKind, ownerID uuid.UUID, currency string, forUpdate bool) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error
	AppendEntry(ctx context.Context, entry *models.WalletEntry) error
	ListEntries(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.Wallet, error) {
	query := r.db.WithContext(ctx)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
	}

	var wallet models.Wallet
	if err := query.First(&wallet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) FindOrCreateForOwner(ctx context.Context, kind enums.WalletOwnerKind, ownerID uuid.UUID, currency string, forUpdate bool) (*models.Wallet, error) {
	lookup := func() (*models.Wallet, error) {
		query := r.db.WithContext(ctx)
		if forUpdate {
			query = query.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
		}
		var wallet models.Wallet
		if err := query.First(&wallet, "owner_kind = ? AND owner_id = ?", kind, ownerID).Error; err != nil {
			return nil, err
		}
		return &wallet, nil
	}

	found, err := lookup()
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Two first-ever payouts can race through the not-found branch. The
	// insert yields to the unique (owner_kind, owner_id) index instead of
	// failing the caller's transaction; the loser re-reads the winner's row.
	wallet := models.Wallet{
		ID:        uuid.New(),
		OwnerKind: kind,
		OwnerID:   ownerID,
		Balance:   decimal.Zero,
		Currency:  currency,
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_kind"}, {Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(&wallet)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return lookup()
	}
	return &wallet, nil
}

func (r *repository) UpdateBalance(ctx context.Context, walletID uuid.UUID, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) AppendEntry(ctx context.Context, entry *models.WalletEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletEntry, error) {
	var entries []models.WalletEntry
	query := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
