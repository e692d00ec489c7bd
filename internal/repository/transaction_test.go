package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"loyalty-rewards-system/internal/models"
)

const testWallet = "GCUSTOMER0000000000000000000000000000000000000000000000A"

func newTestRepo(t *testing.T) *TransactionRepository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Transaction{}))

	return NewTransactionRepository(db)
}

func seedTx(id string, wallet string, txType models.TxType, amount int64, ts time.Time) *models.Transaction {
	return &models.Transaction{
		ID:            id,
		WalletAddress: wallet,
		Type:          txType,
		Amount:        amount,
		TokenSymbol:   "COFFEE",
		BusinessName:  "Stellar Coffee Co.",
		Timestamp:     ts,
		Status:        models.TxStatusCompleted,
	}
}

func TestCreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)

	require.NoError(t, repo.Create(ctx, seedTx("a", testWallet, models.TxTypeEarn, 10, base.Add(-2*time.Hour))))
	require.NoError(t, repo.Create(ctx, seedTx("b", testWallet, models.TxTypeEarn, 20, base)))
	require.NoError(t, repo.Create(ctx, seedTx("c", testWallet, models.TxTypeRedeem, 5, base.Add(-time.Hour))))
	require.NoError(t, repo.Create(ctx, seedTx("other", "GOTHER", models.TxTypeEarn, 99, base)))

	txs, err := repo.ListByWallet(ctx, testWallet, 0)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// Newest first.
	assert.Equal(t, "b", txs[0].ID)
	assert.Equal(t, "c", txs[1].ID)
	assert.Equal(t, "a", txs[2].ID)
}

func TestListByWalletLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("tx_%d", i)
		require.NoError(t, repo.Create(ctx, seedTx(id, testWallet, models.TxTypeEarn, 1, base.Add(time.Duration(i)*time.Minute))))
	}

	txs, err := repo.ListByWallet(ctx, testWallet, 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx_4", txs[0].ID)
}

func TestReplaceForWallet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, repo.Create(ctx, seedTx("stale_1", testWallet, models.TxTypeEarn, 10, base)))
	require.NoError(t, repo.Create(ctx, seedTx("stale_2", testWallet, models.TxTypeEarn, 20, base)))
	require.NoError(t, repo.Create(ctx, seedTx("other", "GOTHER", models.TxTypeEarn, 99, base)))

	fresh := []models.Transaction{
		*seedTx("fresh_1", testWallet, models.TxTypeEarn, 30, base),
	}
	require.NoError(t, repo.ReplaceForWallet(ctx, testWallet, fresh))

	txs, err := repo.ListByWallet(ctx, testWallet, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "fresh_1", txs[0].ID)

	// Other wallets untouched.
	count, err := repo.CountByWallet(ctx, "GOTHER")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReplaceForWalletEmpty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, seedTx("stale", testWallet, models.TxTypeEarn, 10, time.Now())))
	require.NoError(t, repo.ReplaceForWallet(ctx, testWallet, nil))

	count, err := repo.CountByWallet(ctx, testWallet)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCountByWallet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, repo.Create(ctx, seedTx("a", testWallet, models.TxTypeEarn, 1, base)))
	require.NoError(t, repo.Create(ctx, seedTx("b", testWallet, models.TxTypeRedeem, 2, base)))
	require.NoError(t, repo.Create(ctx, seedTx("other", "GOTHER", models.TxTypeEarn, 3, base)))

	count, err := repo.CountByWallet(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
