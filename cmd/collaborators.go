package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/retail-sim/retail-sim/sim/persist"
	"github.com/retail-sim/retail-sim/sim/retail"
	"github.com/retail-sim/retail-sim/sim/sentiment"
)

// buildCollaborators wires the external services selected by flags and
// config. The returned close function releases every opened connection.
func buildCollaborators(ctx context.Context, cfg sim.Config, scenario *sim.Scenario, runID string) (retail.Collaborators, func(), error) {
	var collab retail.Collaborators
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	collab.Scorer = newScorer(cfg)

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			closeAll()
			return collab, nil, fmt.Errorf("connecting to redis at %s: %w", redisAddr, err)
		}
		ledger := persist.NewRedisLedger(client, runID)
		if err := ledger.Seed(ctx, scenario.WarehouseStock); err != nil {
			closeAll()
			return collab, nil, err
		}
		collab.Ledger = ledger
		logrus.Infof("Warehouse ledger: redis %s (run %s)", redisAddr, runID)
	}

	if pgDSN != "" {
		pool, err := persist.NewPool(ctx, pgDSN)
		if err != nil {
			closeAll()
			return collab, nil, err
		}
		repo, err := persist.NewPostgresRepository(ctx, pool, runID)
		if err != nil {
			pool.Close()
			closeAll()
			return collab, nil, err
		}
		closers = append(closers, repo.Close)
		collab.Repository = repo
		logrus.Infof("Repository: postgres (run %s)", runID)
	}

	return collab, closeAll, nil
}

// newScorer builds the configured sentiment scorer.
func newScorer(cfg sim.Config) sim.SentimentScorer {
	switch cfg.Sentiment.Source {
	case sim.SentimentSourceSeeded:
		return sim.SeededScorer{Seed: cfg.Seed, Spread: cfg.Sentiment.Spread}
	case sim.SentimentSourceOllama:
		timeout := time.Duration(cfg.Sentiment.TimeoutSeconds * float64(time.Second))
		return sim.UnitIntervalScorer{Inner: sentiment.NewOllamaScorer(cfg.Sentiment.URL, cfg.Sentiment.Model, timeout)}
	default:
		return nil
	}
}
