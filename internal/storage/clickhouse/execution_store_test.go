package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/idhash"
	"solana-burn-hook/internal/storage"
	"solana-burn-hook/internal/storage/clickhouse"
)

func execution(sig string, idx int, slot int64, amount uint64) *domain.HookExecution {
	return &domain.HookExecution{
		ExecutionID: idhash.ComputeExecutionID(sig, idx),
		Signature:   sig,
		LogIndex:    idx,
		Slot:        slot,
		Mint:        "AFdCxpRdJjwrUpUBGC9qSHU7yf9qCkdmh6xdELq7XXVK",
		Source:      "Bsp6fcEkP433o27ZAjuWWdZVCsLLXsKNCDtYJH75hVXW",
		Destination: "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U",
		Amount:      amount,
		Burned:      amount / 10_000,
		ObservedAt:  1704067200000,
	}
}

func TestExecutionStore_InsertAndGetByMint(t *testing.T) {
	conn := newTestConn(t)

	ctx := context.Background()
	store := clickhouse.NewExecutionStore(conn)

	e := execution("sig1", 3, 500, 100_000_000_000)
	require.NoError(t, store.Insert(ctx, e))

	got, err := store.GetByMint(ctx, e.Mint)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
}

func TestExecutionStore_Duplicates(t *testing.T) {
	conn := newTestConn(t)

	ctx := context.Background()
	store := clickhouse.NewExecutionStore(conn)

	e := execution("sig1", 0, 500, 10_000)
	require.NoError(t, store.Insert(ctx, e))
	assert.ErrorIs(t, store.Insert(ctx, e), storage.ErrDuplicateKey)

	err := store.InsertBulk(ctx, []*domain.HookExecution{
		execution("sig2", 0, 501, 10_000),
		execution("sig2", 0, 501, 10_000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByMint(ctx, e.Mint)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestExecutionStore_RangeAndTotal(t *testing.T) {
	conn := newTestConn(t)

	ctx := context.Background()
	store := clickhouse.NewExecutionStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.HookExecution{
		execution("c", 0, 300, 30_000),
		execution("a", 0, 100, 10_000),
		execution("b", 1, 200, 25_000),
		execution("b", 0, 200, 20_000),
	}))

	mint := "AFdCxpRdJjwrUpUBGC9qSHU7yf9qCkdmh6xdELq7XXVK"
	ranged, err := store.GetBySlotRange(ctx, mint, 150, 300)
	require.NoError(t, err)
	require.Len(t, ranged, 3)
	assert.Equal(t, int64(200), ranged[0].Slot)
	assert.Equal(t, 0, ranged[0].LogIndex)
	assert.Equal(t, 1, ranged[1].LogIndex)

	_, err = store.GetBySlotRange(ctx, mint, 300, 100)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	total, err := store.TotalBurned(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(3+1+2+2), total)
}
