package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	pkgerrors "github.com/davidbarrios/platerush-backend/pkg/errors"
)

// EntryInput describes one ledger write against an owner's wallet.
type EntryInput struct {
	OwnerKind enums.WalletOwnerKind
	OwnerID   uuid.UUID
	OrderID   *uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Metadata  json.RawMessage
}

// AdjustInput is an operator correction; unlike credit/debit the direction
// is chosen by the caller.
type AdjustInput struct {
	EntryInput
	Direction enums.WalletEntryDirection
}

// Service appends ledger entries and reads balances. The write methods run
// inside the caller's transaction so entries commit or roll back together
// with the order/payment mutation that caused them.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletEntry, error)
	Debit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletEntry, error)
	Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.WalletEntry, error)
	Balance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	Entries(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletEntry, error)
}

type service struct {
	repo Repository
}

// NewService builds the wallet ledger service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletEntry, error) {
	return s.append(ctx, tx, input, enums.WalletEntryCredit, enums.WalletDirectionIn)
}

func (s *service) Debit(ctx context.Context, tx *gorm.DB, input EntryInput) (*models.WalletEntry, error) {
	return s.append(ctx, tx, input, enums.WalletEntryDebit, enums.WalletDirectionOut)
}

func (s *service) Adjust(ctx context.Context, tx *gorm.DB, input AdjustInput) (*models.WalletEntry, error) {
	if !input.Direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment direction required")
	}
	return s.append(ctx, tx, input.EntryInput, enums.WalletEntryAdjustment, input.Direction)
}

// append locks the owner's wallet row, computes the post-write balance and
// persists the entry plus the balance update atomically. The entry stores
// balance_after so the ledger audits without replaying history.
func (s *service) append(ctx context.Context, tx *gorm.DB, input EntryInput, entryType enums.WalletEntryType, direction enums.WalletEntryDirection) (*models.WalletEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet writes require a transaction")
	}
	if !input.OwnerKind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet owner kind required")
	}
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet owner id required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entry amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindOrCreateForOwner(ctx, input.OwnerKind, input.OwnerID, input.Currency, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading wallet")
	}

	var balanceAfter decimal.Decimal
	switch direction {
	case enums.WalletDirectionIn:
		balanceAfter = wallet.Balance.Add(input.Amount)
	default:
		balanceAfter = wallet.Balance.Sub(input.Amount)
		if balanceAfter.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient wallet balance").
				WithDetails(map[string]any{
					"wallet_id": wallet.ID,
					"balance":   wallet.Balance.String(),
					"amount":    input.Amount.String(),
				})
		}
	}

	entry := &models.WalletEntry{
		WalletID:     wallet.ID,
		OrderID:      input.OrderID,
		Type:         entryType,
		Direction:    direction,
		Amount:       input.Amount,
		BalanceAfter: balanceAfter,
		Metadata:     input.Metadata,
	}
	if err := repo.AppendEntry(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "appending wallet entry")
	}
	if err := repo.UpdateBalance(ctx, wallet.ID, balanceAfter); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating wallet balance")
	}
	return entry, nil
}

func (s *service) Balance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	wallet, err := s.repo.FindByID(ctx, walletID, false)
	if err != nil {
		if err == ErrNotFound {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "wallet not found")
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading wallet")
	}
	return wallet.Balance, nil
}

func (s *service) Entries(ctx context.Context, walletID uuid.UUID, limit int) ([]models.WalletEntry, error) {
	entries, err := s.repo.ListEntries(ctx, walletID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing wallet entries")
	}
	return entries, nil
}
