package retail

import (
	"context"
	"errors"
	"math/rand"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// listing is a store's state for one catalog product.
type listing struct {
	product   sim.Product
	price     decimal.Decimal
	record    sim.InventoryRecord
	inbound   []sim.Shipment
	sentiment float64

	// Reorder policy feedback: the state acted on at the last decision and
	// the reward its sales phase earned.
	policy     sim.ReorderPolicy
	acted      bool
	actedState sim.ReorderState
	actedOrder bool
	reward     float64
}

// storeUnit is one store's independent unit of work. During a parallel
// phase only its own goroutine touches it.
type storeUnit struct {
	store    sim.Store
	rng      *rand.Rand
	listings []*listing
	index    map[sim.ProductID]*listing
}

func newStoreUnit(store sim.Store, catalog []sim.Product, rng *rand.Rand) *storeUnit {
	u := &storeUnit{
		store:    store,
		rng:      rng,
		listings: make([]*listing, 0, len(catalog)),
		index:    make(map[sim.ProductID]*listing, len(catalog)),
	}
	for _, p := range catalog {
		l := &listing{
			product: p,
			price:   p.CurrentPrice,
			record: sim.InventoryRecord{
				StoreID:      store.ID,
				ProductID:    p.ID,
				OnHand:       store.InitialStock[p.ID],
				LeadTimeDays: p.LeadTimeDays,
			},
			policy: sim.EOQPolicy{},
		}
		u.listings = append(u.listings, l)
		u.index[p.ID] = l
	}
	return u
}

// decide runs forecast, optimizer, pricing, the reorder policy and restock
// submission for every listing. Input violations skip the listing; only cancellation aborts.
func (s *Simulator) decide(ctx context.Context, dc DayContext, u *storeUnit) (StoreDecision, error) {
	d := StoreDecision{StoreID: u.store.ID, Listings: make([]ListingDecision, 0, len(u.listings))}
	for _, l := range u.listings {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		ld := s.decideListing(ctx, dc, u, l)
		if ld.Err != nil {
			if !errors.Is(ld.Err, sim.ErrInputViolation) {
				return d, ld.Err
			}
			logrus.Warnf("[day %d] store %s product %s skipped: %v", dc.Day, u.store.ID, l.product.ID, ld.Err)
		}
		d.Listings = append(d.Listings, ld)
	}
	return d, nil
}

func (s *Simulator) decideListing(ctx context.Context, dc DayContext, u *storeUnit, l *listing) ListingDecision {
	cfg := dc.Config
	ld := ListingDecision{ProductID: l.product.ID}

	history, err := s.repo.ReadDemandHistory(ctx, u.store.ID, l.product.ID, s.forecaster.WindowDays())
	if err != nil {
		logrus.Warnf("[day %d] store %s product %s: demand history unavailable, cold start: %v",
			dc.Day, u.store.ID, l.product.ID, err)
		history = nil
	}

	// ResilientScorer never fails.
	l.sentiment, _ = s.scorer.Score(ctx, u.store.ID, l.product.ID)
	ld.Sentiment = l.sentiment

	state := l.reorderState(history, cfg.Forecast.DefaultDemand)
	if l.acted {
		l.policy.Learn(l.actedState, l.actedOrder, l.reward, state)
		l.acted = false
	}

	forecast, err := s.forecaster.Forecast(history, l.sentiment, cfg.Forecast.HorizonDays)
	if err != nil {
		ld.Err = err
		return ld
	}
	ld.Forecast = forecast

	sigma := s.forecaster.ColdStartSigma()
	if len(history) > 0 {
		_, sigma = sim.DemandStats(history)
	}
	opt, err := sim.Optimize(sim.OptimizerInput{
		Demand:       sim.MeanFloat(forecast),
		Sigma:        sigma,
		OrderingCost: cfg.Optimizer.OrderingCost,
		HoldingCost:  cfg.Optimizer.HoldingCost,
		LeadTimeDays: float64(l.record.LeadTimeDays),
		Z:            cfg.Optimizer.ServiceLevelZ,
		Stock:        l.record.Position(),
	})
	if err != nil {
		ld.Err = err
		return ld
	}
	ld.Optimizer = opt
	l.record.ReorderPoint = opt.ReorderPoint
	l.record.EOQ = opt.EOQ
	l.record.SafetyStock = opt.SafetyStock

	decision, err := s.pricing.Decide(sim.PricingInput{
		CurrentPrice:    l.price,
		CompetitorPrice: s.competitor[l.product.ID],
		Stock:           l.record.OnHand,
		ReorderPoint:    opt.ReorderPoint,
		Forecast:        forecast,
		Sentiment:       l.sentiment,
	})
	if err != nil {
		ld.Err = err
		return ld
	}

	qty := opt.OrderQty
	switch {
	case !l.policy.Decide(state, qty > 0, u.rng):
		qty = 0
	case qty == 0 && l.record.Outstanding == 0:
		// The policy orders ahead of the reorder point, one order in transit at a time.
		qty = max(opt.EOQ, 1)
	}

	if decision.Changed {
		resp, err := s.pricing.PredictResponse(sim.PriceResponseInput{
			CurrentPrice:    l.price,
			CompetitorPrice: s.competitor[l.product.ID],
			AvgDailySales:   sim.MeanFloat(forecast),
			Sentiment:       l.sentiment,
			ChangePct:       decision.ChangePct,
			Elasticity:      cfg.Demand.PriceElasticity,
		})
		if err != nil {
			logrus.Debugf("[day %d] store %s product %s: no price response: %v", dc.Day, u.store.ID, l.product.ID, err)
		} else {
			ld.Response = &resp
		}
	}

	// Submitted last so a skipped listing leaves no pending request.
	if qty > 0 {
		req, err := sim.NewRestockRequest(u.store.ID, u.store.Index, l.product.ID, qty, dc.Day)
		if err != nil {
			ld.Err = err
			return ld
		}
		if err := s.coord.Submit(req); err != nil {
			ld.Err = err
			return ld
		}
		ld.Request = &req
	}
	l.acted, l.actedState, l.actedOrder = true, state, qty > 0

	ld.Price = decision
	if decision.Changed {
		ld.Change = &sim.PriceChange{
			Day:       dc.Day,
			StoreID:   u.store.ID,
			ProductID: l.product.ID,
			OldPrice:  l.price,
			NewPrice:  decision.NewPrice,
			Delta:     decision.Delta,
			ChangePct: decision.ChangePct,
			Reason:    decision.Reason,
		}
		l.price = decision.NewPrice
	}
	return ld
}

// reorderState is the policy's view of the listing: on-hand stock, the
// latest demand against the window mean, and the price-to-cost margin.
func (l *listing) reorderState(history []int64, fallback float64) sim.ReorderState {
	demand, mean := fallback, fallback
	if n := len(history); n > 0 {
		demand = float64(history[n-1])
		mean, _ = sim.DemandStats(history)
	}
	return sim.ReorderState{
		Stock:      l.record.OnHand,
		Demand:     demand,
		MeanDemand: mean,
		Price:      l.price,
		UnitCost:   l.product.UnitCost,
	}
}

// ship records a granted restock as in transit, arriving after the
// product's lead time.
func (u *storeUnit) ship(day int, r sim.RestockResult) {
	l, ok := u.index[r.Request.ProductID]
	if !ok || r.Granted <= 0 {
		return
	}
	l.record.Outstanding += r.Granted
	l.inbound = append(l.inbound, sim.Shipment{
		ProductID:  l.product.ID,
		Quantity:   r.Granted,
		ArrivalDay: day + l.record.LeadTimeDays,
	})
}

// receive moves every shipment due on or before day onto the shelf.
func (u *storeUnit) receive(day int) error {
	for _, l := range u.listings {
		kept := l.inbound[:0]
		for _, sh := range l.inbound {
			if sh.ArrivalDay > day {
				kept = append(kept, sh)
				continue
			}
			if err := l.record.Receive(sh.Quantity); err != nil {
				return err
			}
		}
		l.inbound = kept
	}
	return nil
}

// sell receives due shipments, then draws and serves one day of customer
// demand per listing. Each store draws from its own RNG stream.
func (s *Simulator) sell(dc DayContext, u *storeUnit) ([]sim.PairOutcome, []sim.SaleRecord, error) {
	if err := u.receive(dc.Day); err != nil {
		return nil, nil, err
	}
	outcomes := make([]sim.PairOutcome, 0, len(u.listings))
	sales := make([]sim.SaleRecord, 0, len(u.listings))
	for _, l := range u.listings {
		mean := ExpectedDemand(l.product, u.store.DemandFactor, l.price, dc.Config.Demand, l.sentiment)
		demand := s.demand.Sample(u.rng, mean)
		sold, err := l.record.Consume(demand)
		if err != nil {
			return nil, nil, err
		}
		revenue := l.price.Mul(decimal.NewFromInt(sold))
		if l.acted {
			l.reward = sim.DailyReward(sim.RewardInput{
				Price:           l.price,
				UnitCost:        l.product.UnitCost,
				Sold:            sold,
				Missed:          demand - sold,
				OnHand:          l.record.OnHand,
				Ordered:         l.actedOrder,
				HoldingCost:     dc.Config.Optimizer.HoldingCost,
				OrderingCost:    dc.Config.Optimizer.OrderingCost,
				StockoutPenalty: dc.Config.Optimizer.QLearning.StockoutPenalty,
			})
		}
		outcomes = append(outcomes, sim.PairOutcome{
			StoreID:   u.store.ID,
			ProductID: l.product.ID,
			Demanded:  demand,
			Sold:      sold,
			Stockout:  demand > sold,
			OnHand:    l.record.OnHand,
			Revenue:   revenue,
			LowStock:  s.pricing.IsLowStock(l.record.OnHand, l.record.ReorderPoint),
			Overstock: s.pricing.IsOverstocked(l.record.OnHand, l.record.ReorderPoint),
		})
		sales = append(sales, sim.SaleRecord{
			Day:       dc.Day,
			StoreID:   u.store.ID,
			ProductID: l.product.ID,
			Demanded:  demand,
			Sold:      sold,
			UnitPrice: l.price,
			Revenue:   revenue,
		})
	}
	return outcomes, sales, nil
}
