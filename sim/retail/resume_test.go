package retail

import (
	"context"
	"slices"
	"sync"
	"testing"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/retail-sim/retail-sim/sim/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saleKey struct {
	day     int
	store   sim.StoreID
	product sim.ProductID
}

// dayKeyedRepo behaves like a SQL-backed repository: sales are keyed by
// (day, store, product) and upserted, and history is read newest day first
// with a limit, then reversed.
type dayKeyedRepo struct {
	mu          sync.Mutex
	sales       map[saleKey]sim.SaleRecord
	overwritten int
	inventory   map[pairKey]sim.InventoryRecord
}

type pairKey struct {
	store   sim.StoreID
	product sim.ProductID
}

func newDayKeyedRepo() *dayKeyedRepo {
	return &dayKeyedRepo{
		sales:     make(map[saleKey]sim.SaleRecord),
		inventory: make(map[pairKey]sim.InventoryRecord),
	}
}

func (r *dayKeyedRepo) AppendSale(_ context.Context, sale sim.SaleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := saleKey{sale.Day, sale.StoreID, sale.ProductID}
	if _, ok := r.sales[key]; ok {
		r.overwritten++
	}
	r.sales[key] = sale
	return nil
}

func (r *dayKeyedRepo) AppendPriceChange(context.Context, sim.PriceChange) error { return nil }

func (r *dayKeyedRepo) ReadDemandHistory(_ context.Context, store sim.StoreID, product sim.ProductID, window int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var days []int
	for k := range r.sales {
		if k.store == store && k.product == product {
			days = append(days, k.day)
		}
	}
	slices.Sort(days)
	slices.Reverse(days)
	if window > 0 && len(days) > window {
		days = days[:window]
	}
	out := make([]int64, len(days))
	for i, d := range days {
		out[i] = r.sales[saleKey{d, store, product}].Demanded
	}
	slices.Reverse(out)
	return out, nil
}

func (r *dayKeyedRepo) LastSaleDay(context.Context) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := 0, false
	for k := range r.sales {
		if !ok || k.day > last {
			last, ok = k.day, true
		}
	}
	return last, ok, nil
}

func (r *dayKeyedRepo) ReadInventoryRecord(_ context.Context, store sim.StoreID, product sim.ProductID) (sim.InventoryRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.inventory[pairKey{store, product}]
	return rec, ok, nil
}

func (r *dayKeyedRepo) WriteInventoryRecord(_ context.Context, rec sim.InventoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inventory[pairKey{rec.StoreID, rec.ProductID}] = rec
	return nil
}

func (r *dayKeyedRepo) salesOn(day int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.sales {
		if k.day == day {
			n++
		}
	}
	return n
}

func TestSimulator_Run_ResumeContinuesDayNumbering(t *testing.T) {
	sc := testScenario(t)
	pairs := len(sc.Stores) * len(sc.Products)
	repo := newDayKeyedRepo()
	cfg := testConfig(5, 2)

	// GIVEN a first run of days 0..4 against the repository
	first := New(cfg, sc, Collaborators{Repository: repo})
	require.NoError(t, first.Run(context.Background()))
	assert.Equal(t, 0, first.StartDay())
	require.Len(t, repo.sales, pairs*(cfg.HistoryDays+5))

	// WHEN a second run of three days resumes from it
	second := New(testConfig(3, 2), sc, Collaborators{Repository: repo})
	require.NoError(t, second.Run(context.Background()))

	// THEN it simulates days 5..7 without rewriting or re-warming anything
	assert.Equal(t, 5, second.StartDay())
	assert.Equal(t, 3, second.Day())
	snaps := second.Snapshots()
	require.Len(t, snaps, 3)
	for i, snap := range snaps {
		assert.Equal(t, 5+i, snap.Day)
	}
	assert.Zero(t, repo.overwritten, "no sale row may be overwritten")
	assert.Len(t, repo.sales, pairs*(cfg.HistoryDays+8))
	for d := -cfg.HistoryDays; d < 8; d++ {
		assert.Equal(t, pairs, repo.salesOn(d), "day %d", d)
	}
	last, ok, err := repo.LastSaleDay(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, last)

	// AND the history window ends at the latest day
	got, err := repo.ReadDemandHistory(context.Background(), "S1", "P1", 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{repo.sales[saleKey{6, "S1", "P1"}].Demanded, repo.sales[saleKey{7, "S1", "P1"}].Demanded}, got)
}

func TestSimulator_Run_ResumeAfterWarmStartOnly(t *testing.T) {
	sc := testScenario(t)
	repo := newDayKeyedRepo()

	// GIVEN a zero-day run that only warm-started history
	require.NoError(t, New(testConfig(0, 1), sc, Collaborators{Repository: repo}).Run(context.Background()))
	warm := len(repo.sales)

	// WHEN a one-day run follows
	s := New(testConfig(1, 1), sc, Collaborators{Repository: repo})
	require.NoError(t, s.Run(context.Background()))

	// THEN it starts at day 0 and adds exactly one day of sales
	assert.Equal(t, 0, s.StartDay())
	assert.Zero(t, repo.overwritten)
	assert.Len(t, repo.sales, warm+len(sc.Stores)*len(sc.Products))
}

func TestSimulator_Run_ResumeRestoresInTransitUnits(t *testing.T) {
	ctx := context.Background()
	sc := testScenario(t)
	repo := newDayKeyedRepo()

	// GIVEN a stored run that ended on day 9 with (S3, P2) empty and 30 units in transit
	for _, st := range sc.Stores {
		for _, p := range sc.Products {
			require.NoError(t, repo.AppendSale(ctx, sim.SaleRecord{Day: 9, StoreID: st.ID, ProductID: p.ID, Demanded: 5, Sold: 5}))
		}
	}
	require.NoError(t, repo.WriteInventoryRecord(ctx, sim.InventoryRecord{
		StoreID: "S3", ProductID: "P2", OnHand: 0, LeadTimeDays: 2, Outstanding: 30,
	}))
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})

	// WHEN one more day runs
	s := New(testConfig(1, 1), sc, Collaborators{Repository: repo, Trace: st})
	require.NoError(t, s.Run(ctx))

	// THEN the in-transit units arrived on day 10 and were sold from or kept on the shelf
	require.Equal(t, 10, s.StartDay())
	sale, ok := repo.sales[saleKey{10, "S3", "P2"}]
	require.True(t, ok)
	var granted int64
	for _, a := range st.Allocations {
		if a.StoreID == "S3" && a.ProductID == "P2" {
			granted += a.Granted
		}
	}
	for _, rec := range s.Inventory() {
		if rec.StoreID == "S3" && rec.ProductID == "P2" {
			assert.Equal(t, int64(30), rec.OnHand+sale.Sold)
			assert.Equal(t, granted, rec.Outstanding, "only today's grant is still in transit")
		}
	}
	assert.Zero(t, repo.overwritten)
}
