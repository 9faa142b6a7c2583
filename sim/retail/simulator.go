package retail

import (
	"context"
	"fmt"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/retail-sim/retail-sim/sim/persist"
	"github.com/retail-sim/retail-sim/sim/trace"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var minPrice = decimal.New(1, -2)

// Simulator runs a scenario for cfg.Days days. Days are strictly sequential;
// within a day the store phase and the sales phase run one work unit per
// store on a bounded worker pool.
type Simulator struct {
	cfg      sim.Config
	scenario *sim.Scenario
	rng      *sim.PartitionedRNG

	repo       sim.Repository
	scorer     sim.SentimentScorer
	warehouse  *sim.Warehouse
	coord      *sim.Coordinator
	forecaster *sim.Forecaster
	pricing    *sim.PricingAgent
	demand     DemandSampler
	kpis       *sim.KPIAggregator
	tally      *sim.AllocationTally
	trace      *trace.SimulationTrace

	stores     []*storeUnit
	competitor map[sim.ProductID]decimal.Decimal
	startDay   int // first simulated day; non-zero when resuming
	day        int // completed days
	hasRun     bool
}

// New creates a Simulator. Panics if scenario is nil or cfg is invalid.
// Nil collaborators fall back to an in-memory repository, an in-memory
// warehouse ledger seeded from the scenario and neutral sentiment.
func New(cfg sim.Config, scenario *sim.Scenario, collab Collaborators) *Simulator {
	if scenario == nil {
		panic("retail.New: scenario is nil")
	}
	if err := cfg.Validate(); err != nil {
		panic("retail.New: " + err.Error())
	}
	repo := collab.Repository
	if repo == nil {
		repo = persist.NewMemoryRepository(max(cfg.HistoryDays+cfg.Days, cfg.Forecast.WindowDays))
	}
	ledger := collab.Ledger
	if ledger == nil {
		ledger = sim.NewMemoryLedger(scenario.WarehouseStock)
	}
	warehouse := sim.NewWarehouse(ledger, cfg.Allocation, cfg.Warehouse)
	warehouse.SetSuppliers(scenario.Suppliers)

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed))
	s := &Simulator{
		cfg:        cfg,
		scenario:   scenario,
		rng:        rng,
		repo:       repo,
		scorer:     sim.NewResilientScorer(collab.Scorer),
		warehouse:  warehouse,
		coord:      sim.NewCoordinator(warehouse, cfg.Workers),
		forecaster: sim.NewForecaster(cfg.Forecast),
		pricing:    sim.NewPricingAgent(cfg.Pricing),
		demand:     NewDemandSampler(cfg.Demand),
		kpis:       sim.NewKPIAggregator(),
		tally:      sim.NewAllocationTally(),
		trace:      collab.Trace,
		competitor: make(map[sim.ProductID]decimal.Decimal, len(scenario.Products)),
	}
	for _, p := range scenario.Products {
		s.competitor[p.ID] = p.CompetitorPrice
	}
	// Every stream is created up front so parallel phases never write
	// the partitioned RNG's map.
	streams := []string{sim.SubsystemWarmup, sim.SubsystemCompetitor}
	for _, st := range scenario.Stores {
		streams = append(streams, sim.SubsystemStore(st.ID))
	}
	rng.Preload(streams...)
	for _, st := range scenario.Stores {
		u := newStoreUnit(st, scenario.Products, rng.ForSubsystem(sim.SubsystemStore(st.ID)))
		for _, l := range u.listings {
			l.policy = sim.NewReorderPolicy(cfg.Optimizer.Policy, cfg.Optimizer.QLearning)
		}
		s.stores = append(s.stores, u)
	}
	return s
}

// Run simulates cfg.Days days. A fresh repository is warm-started first; a
// repository that already holds sales resumes on the day after its latest
// sale, so earlier rows are never rewritten.
// Returns sim.ErrContentionViolation if an allocation pass breaks its
// post-condition, or the context error on cancellation.
// Panics if called more than once.
func (s *Simulator) Run(ctx context.Context) error {
	if s.hasRun {
		panic("Simulator.Run() called more than once")
	}
	s.hasRun = true

	resumed, err := s.resume(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		s.warmStart(ctx)
	}
	for s.day = 0; s.day < s.cfg.Days; s.day++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		day := s.startDay + s.day
		if err := s.runDay(ctx, DayContext{Day: day, Config: &s.cfg}); err != nil {
			return fmt.Errorf("day %d: %w", day, err)
		}
	}
	logrus.Infof("[retail] simulated days %d..%d for %d stores and %d products",
		s.startDay, s.startDay+s.cfg.Days-1, len(s.stores), len(s.scenario.Products))
	return nil
}

// resume continues a previous run found in the repository. The first day
// becomes the day after the latest stored sale and every persisted
// inventory record is restored; units that were in transit arrive on that
// first day. Reports whether earlier sales were found.
func (s *Simulator) resume(ctx context.Context) (bool, error) {
	last, found, err := s.repo.LastSaleDay(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		logrus.Warnf("[retail] last sale day unavailable, starting at day 0: %v", err)
		found = false
	}
	if found {
		s.startDay = max(last+1, 0)
		logrus.Infof("[retail] resuming after day %d", last)
	}

	for _, u := range s.stores {
		for _, l := range u.listings {
			rec, ok, err := s.repo.ReadInventoryRecord(ctx, u.store.ID, l.product.ID)
			if err != nil {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				logrus.Warnf("[retail] store %s product %s: inventory record unavailable: %v",
					u.store.ID, l.product.ID, err)
				continue
			}
			if !ok {
				continue
			}
			l.record.OnHand = max(rec.OnHand, 0)
			l.record.ReorderPoint = rec.ReorderPoint
			l.record.EOQ = rec.EOQ
			l.record.SafetyStock = rec.SafetyStock
			if rec.Outstanding > 0 {
				l.record.Outstanding = rec.Outstanding
				l.inbound = append(l.inbound, sim.Shipment{
					ProductID:  l.product.ID,
					Quantity:   rec.Outstanding,
					ArrivalDay: s.startDay,
				})
			}
			logrus.Debugf("[retail] resumed %s", l.record)
		}
	}
	return found, nil
}

// warmStart samples cfg.HistoryDays days of demand at base price into each
// pair's history, on days -HistoryDays..-1.
func (s *Simulator) warmStart(ctx context.Context) {
	if s.cfg.HistoryDays <= 0 {
		return
	}
	r := s.rng.ForSubsystem(sim.SubsystemWarmup)
	failed := 0
	for _, u := range s.stores {
		for _, l := range u.listings {
			mean := ExpectedDemand(l.product, u.store.DemandFactor, l.product.BasePrice, s.cfg.Demand, sim.NeutralSentiment)
			for d := -s.cfg.HistoryDays; d < 0; d++ {
				demand := s.demand.Sample(r, mean)
				err := s.repo.AppendSale(ctx, sim.SaleRecord{
					Day:       d,
					StoreID:   u.store.ID,
					ProductID: l.product.ID,
					Demanded:  demand,
					Sold:      demand,
					UnitPrice: l.product.BasePrice,
					Revenue:   l.product.BasePrice.Mul(decimal.NewFromInt(demand)),
				})
				if err != nil {
					failed++
				}
			}
		}
	}
	if failed > 0 {
		logrus.Warnf("[retail] warm start: %d history records could not be persisted", failed)
	}
}

func (s *Simulator) runDay(ctx context.Context, dc DayContext) error {
	// 1. Supplier deliveries and competitor moves.
	if arrived, err := s.warehouse.ReceiveShipments(ctx, dc.Day); err != nil {
		logrus.Warnf("[day %d] warehouse deliveries delayed: %v", dc.Day, err)
	} else {
		for _, sh := range arrived {
			logrus.Debugf("[day %d] warehouse received %d units of %s", dc.Day, sh.Quantity, sh.ProductID)
		}
	}
	if dc.Day > 0 {
		s.driftCompetitors(dc)
	}

	// 2. Store phase.
	decisions := make([]StoreDecision, len(s.stores))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dc.Config.Workers)
	for i, u := range s.stores {
		g.Go(func() error {
			d, err := s.decide(gctx, dc, u)
			decisions[i] = d
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for _, d := range decisions {
		if n := d.Skipped(); n > 0 {
			logrus.Warnf("[day %d] store %s: %d of %d listings skipped", dc.Day, d.StoreID, n, len(d.Listings))
		}
	}

	// 3. Allocation and store shipments.
	results, err := s.coord.Dispatch(ctx)
	if err != nil {
		return err
	}
	s.tally.Add(results)
	for _, r := range results {
		s.stores[r.Request.StoreIndex].ship(dc.Day, r)
		if s.trace.Enabled() {
			s.trace.RecordAllocation(trace.AllocationRecord{
				Day:       dc.Day,
				RequestID: r.Request.ID.String(),
				StoreID:   string(r.Request.StoreID),
				ProductID: string(r.Request.ProductID),
				Requested: r.Request.Quantity,
				Granted:   r.Granted,
				Status:    r.Status.String(),
			})
		}
	}
	if planned, err := s.warehouse.PlanReplenishment(ctx, dc.Day); err != nil {
		logrus.Warnf("[day %d] replenishment planning failed: %v", dc.Day, err)
	} else {
		for _, sh := range planned {
			if sh.SupplierID == "" {
				logrus.Debugf("[day %d] warehouse ordered %d units of %s for day %d",
					dc.Day, sh.Quantity, sh.ProductID, sh.ArrivalDay)
				continue
			}
			logrus.Debugf("[day %d] warehouse ordered %d units of %s from %s at %s for day %d",
				dc.Day, sh.Quantity, sh.ProductID, sh.SupplierID, sh.Cost.StringFixed(2), sh.ArrivalDay)
		}
	}

	// 4. Sales phase.
	outcomes := make([][]sim.PairOutcome, len(s.stores))
	sales := make([][]sim.SaleRecord, len(s.stores))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(dc.Config.Workers)
	for i, u := range s.stores {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o, sr, err := s.sell(dc, u)
			outcomes[i], sales[i] = o, sr
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 5. Persistence and KPIs, in canonical store order.
	var pairs []sim.PairOutcome
	var changes []sim.PriceChange
	for i, u := range s.stores {
		pairs = append(pairs, outcomes[i]...)
		for _, ld := range decisions[i].Listings {
			s.recordPrice(dc, u, ld)
			if ld.Change != nil {
				changes = append(changes, *ld.Change)
			}
		}
	}
	s.persist(ctx, dc, sales, changes)
	snap := s.kpis.Record(dc.Day, pairs, results, changes)
	logrus.Infof("[day %d] sold %d/%d units, fill rate %.2f%%, %d stockouts, restock %d/%d granted, %d price changes",
		dc.Day, snap.UnitsSold, snap.UnitsDemanded, snap.FillRate, snap.StockoutCount,
		snap.RestockGranted, snap.RestockRequested, len(snap.PriceChanges))
	return nil
}

func (s *Simulator) recordPrice(dc DayContext, u *storeUnit, ld ListingDecision) {
	if !s.trace.Enabled() || ld.Err != nil {
		return
	}
	old := ld.Price.NewPrice.Sub(ld.Price.Delta)
	var response float64
	if ld.Response != nil {
		response = ld.Response.DemandChangePct
	}
	s.trace.RecordPrice(trace.PriceRecord{
		Day:       dc.Day,
		StoreID:   string(u.store.ID),
		ProductID: string(ld.ProductID),
		OldPrice:  old.StringFixed(2),
		NewPrice:  ld.Price.NewPrice.StringFixed(2),
		ChangePct: ld.Price.ChangePct,
		Changed:   ld.Price.Changed,
		Reason:    ld.Price.Reason,

		ExpectedDemandChangePct: response,
	})
}

// persist writes the day's sales, price changes and inventory records.
// Failures are logged; the run continues.
func (s *Simulator) persist(ctx context.Context, dc DayContext, sales [][]sim.SaleRecord, changes []sim.PriceChange) {
	failed := 0
	for _, storeSales := range sales {
		for _, sr := range storeSales {
			if err := s.repo.AppendSale(ctx, sr); err != nil {
				failed++
				logrus.Debugf("[day %d] append sale: %v", dc.Day, err)
			}
		}
	}
	for _, pc := range changes {
		if err := s.repo.AppendPriceChange(ctx, pc); err != nil {
			failed++
			logrus.Debugf("[day %d] append price change: %v", dc.Day, err)
		}
	}
	for _, u := range s.stores {
		for _, l := range u.listings {
			if err := s.repo.WriteInventoryRecord(ctx, l.record); err != nil {
				failed++
				logrus.Debugf("[day %d] write inventory record: %v", dc.Day, err)
			}
		}
	}
	if failed > 0 {
		logrus.Warnf("[day %d] %d repository writes failed", dc.Day, failed)
	}
}

// driftCompetitors moves every known competitor price by a bounded random
// step of at most drift_pct percent, rounded to cents.
func (s *Simulator) driftCompetitors(dc DayContext) {
	drift := dc.Config.Competitor.DriftPct
	if drift <= 0 {
		return
	}
	r := s.rng.ForSubsystem(sim.SubsystemCompetitor)
	for _, p := range s.scenario.Products {
		price := s.competitor[p.ID]
		if !price.IsPositive() {
			continue
		}
		step := (2*r.Float64() - 1) * drift / 100
		next := price.Mul(decimal.NewFromFloat(1 + step)).Round(2)
		if next.LessThan(minPrice) {
			next = minPrice
		}
		s.competitor[p.ID] = next
	}
}

// Day returns the number of completed days.
func (s *Simulator) Day() int {
	return s.day
}

// StartDay returns the first simulated day: 0 for a fresh run, the day after
// the latest stored sale for a resumed one.
func (s *Simulator) StartDay() int {
	return s.startDay
}

// Snapshots returns a copy of the recorded daily KPI snapshots.
func (s *Simulator) Snapshots() []sim.DailyKpiSnapshot {
	return s.kpis.Snapshots()
}

// Recommendations regenerates recommendations from the snapshot history.
func (s *Simulator) Recommendations() []sim.Recommendation {
	return sim.Recommend(s.kpis.Snapshots(), s.cfg.Recommendations)
}

// Warehouse returns the simulator's warehouse.
func (s *Simulator) Warehouse() *sim.Warehouse {
	return s.warehouse
}

// Inventory returns the current inventory record of every (store, product)
// in store then catalog order.
func (s *Simulator) Inventory() []sim.InventoryRecord {
	var out []sim.InventoryRecord
	for _, u := range s.stores {
		for _, l := range u.listings {
			out = append(out, l.record)
		}
	}
	return out
}

// Prices returns the current prices of a store's listings, or nil for an
// unknown store.
func (s *Simulator) Prices(store sim.StoreID) map[sim.ProductID]decimal.Decimal {
	for _, u := range s.stores {
		if u.store.ID != store {
			continue
		}
		out := make(map[sim.ProductID]decimal.Decimal, len(u.listings))
		for _, l := range u.listings {
			out[l.product.ID] = l.price
		}
		return out
	}
	return nil
}

// Report assembles the run's report. Panics if called before Run().
func (s *Simulator) Report() *sim.Report {
	if !s.hasRun {
		panic("Simulator.Report() called before Run()")
	}
	return sim.NewReport(sim.ScenarioSummary{
		Name:     s.scenario.Name,
		Stores:   len(s.scenario.Stores),
		Products: len(s.scenario.Products),
		Days:     s.kpis.Len(),
		Seed:     s.cfg.Seed,
	}, s.kpis.Snapshots(), s.cfg.Recommendations, s.tally.Products(), s.trace)
}
