package persist

import (
	"context"
	"sync"
	"testing"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_DemandHistoryWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(4)
	for day, d := range []int64{3, 5, 7, 9, 11} {
		require.NoError(t, repo.AppendSale(ctx, sim.SaleRecord{Day: day, StoreID: "s1", ProductID: "p1", Demanded: d, Sold: d}))
	}

	got, err := repo.ReadDemandHistory(ctx, "s1", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{9, 11}, got)

	got, err = repo.ReadDemandHistory(ctx, "s1", "p1", 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 7, 9, 11}, got, "retention limit")

	got, err = repo.ReadDemandHistory(ctx, "s2", "p1", 7)
	require.NoError(t, err)
	assert.Empty(t, got, "unknown pair is a cold start")
	assert.Len(t, repo.Sales(), 5)
}

func TestMemoryRepository_RejectsNegativeDemand(t *testing.T) {
	repo := NewMemoryRepository(0)
	err := repo.AppendSale(context.Background(), sim.SaleRecord{StoreID: "s1", ProductID: "p1", Demanded: -1})
	assert.ErrorIs(t, err, sim.ErrInputViolation)
	assert.Empty(t, repo.Sales())
}

func TestMemoryRepository_LastSaleDay(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)

	_, ok, err := repo.LastSaleDay(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty repository")

	// GIVEN warm-start days followed by out-of-order simulated days
	for _, day := range []int{-3, -2, -1, 4, 2} {
		require.NoError(t, repo.AppendSale(ctx, sim.SaleRecord{Day: day, StoreID: "s1", ProductID: "p1", Demanded: 1, Sold: 1}))
	}

	// THEN the latest day wins
	day, ok, err := repo.LastSaleDay(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, day)

	warm := NewMemoryRepository(0)
	require.NoError(t, warm.AppendSale(ctx, sim.SaleRecord{Day: -1, StoreID: "s1", ProductID: "p1"}))
	day, ok, err = warm.LastSaleDay(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, -1, day, "warm start only")
}

func TestMemoryRepository_InventoryRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)

	_, ok, err := repo.ReadInventoryRecord(ctx, "s1", "p1")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := sim.InventoryRecord{StoreID: "s1", ProductID: "p1", OnHand: 12, ReorderPoint: 20, Outstanding: 30}
	require.NoError(t, repo.WriteInventoryRecord(ctx, rec))
	got, ok, err := repo.ReadInventoryRecord(ctx, "s1", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestMemoryRepository_PriceChanges(t *testing.T) {
	repo := NewMemoryRepository(0)
	change := sim.PriceChange{Day: 2, StoreID: "s1", ProductID: "p1", NewPrice: decimal.RequireFromString("9.50")}
	require.NoError(t, repo.AppendPriceChange(context.Background(), change))
	assert.Equal(t, []sim.PriceChange{change}, repo.PriceChanges())
}

func TestMemoryRepository_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(0)
	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		wg.Add(1)
		go func(store sim.StoreID) {
			defer wg.Done()
			for d := 0; d < 50; d++ {
				_ = repo.AppendSale(ctx, sim.SaleRecord{Day: d, StoreID: store, ProductID: "p1", Demanded: int64(d)})
				_, _ = repo.ReadDemandHistory(ctx, store, "p1", 7)
			}
		}(sim.StoreID(rune('a' + s)))
	}
	wg.Wait()
	assert.Len(t, repo.Sales(), 400)
}
