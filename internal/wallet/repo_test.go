package wallet

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidbarrios/platerush-backend/pkg/db/models"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	wallets := `
CREATE TABLE IF NOT EXISTS wallets (
  id TEXT PRIMARY KEY,
  owner_kind TEXT NOT NULL,
  owner_id TEXT NOT NULL,
  balance NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'ARS',
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_wallets_owner ON wallets (owner_kind, owner_id);`
	entries := `
CREATE TABLE IF NOT EXISTS wallet_entries (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL,
  order_id TEXT,
  type TEXT NOT NULL,
  direction TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  balance_after NUMERIC NOT NULL,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(wallets).Error)
	require.NoError(t, db.Exec(entries).Error)

	t.Cleanup(func() {
		db.Exec("DELETE FROM wallet_entries")
		db.Exec("DELETE FROM wallets")
	})
	return db
}

func TestFindOrCreateForOwner_CreatesThenReuses(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	created, err := repo.FindOrCreateForOwner(ctx, enums.WalletOwnerRestaurant, ownerID, "ARS", false)
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)
	assert.True(t, created.Balance.IsZero())
	assert.Equal(t, "ARS", created.Currency)

	again, err := repo.FindOrCreateForOwner(ctx, enums.WalletOwnerRestaurant, ownerID, "ARS", false)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)
}

func TestFindOrCreateForOwner_ConcurrentFirstPayout(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ownerID := uuid.New()

	const callers = 8
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []uuid.UUID
	)
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			w, err := repo.FindOrCreateForOwner(context.Background(), enums.WalletOwnerDriver, ownerID, "ARS", false)
			if err != nil {
				errs[i] = err
				return
			}
			mu.Lock()
			ids = append(ids, w.ID)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "caller %d must not fail when losing the insert race", i)
	}
	require.Len(t, ids, callers)
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id, "every caller must land on the same wallet")
	}

	var count int64
	require.NoError(t, db.Model(&models.Wallet{}).Where("owner_kind = ? AND owner_id = ?", enums.WalletOwnerDriver, ownerID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFindOrCreateForOwner_DistinctOwnersGetDistinctWallets(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	ownerID := uuid.New()

	branch, err := repo.FindOrCreateForOwner(ctx, enums.WalletOwnerRestaurant, ownerID, "ARS", false)
	require.NoError(t, err)
	driver, err := repo.FindOrCreateForOwner(ctx, enums.WalletOwnerDriver, ownerID, "ARS", false)
	require.NoError(t, err)
	assert.NotEqual(t, branch.ID, driver.ID)
}

func TestUpdateBalance_UnknownWallet(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)

	err := repo.UpdateBalance(context.Background(), uuid.New(), decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrNotFound)
}
