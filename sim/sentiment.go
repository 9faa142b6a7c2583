package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// NeutralSentiment is substituted whenever a scorer fails.
const NeutralSentiment = 0.0

// SentimentScorer rates customer sentiment for a product at a store.
// Scores are in [-1, 1] with 0 neutral.
type SentimentScorer interface {
	Score(ctx context.Context, store StoreID, product ProductID) (float64, error)
}

// FixedScorer returns the same score for every pair.
type FixedScorer float64

func (f FixedScorer) Score(_ context.Context, _ StoreID, _ ProductID) (float64, error) {
	return float64(f), nil
}

// SeededScorer returns a reproducible pseudo-random score per (store, product),
// derived from a hash of the seed and both IDs. Scores are scaled by Spread
// and lie in [-Spread, Spread].
type SeededScorer struct {
	Seed   int64
	Spread float64
}

func (s SeededScorer) Score(_ context.Context, store StoreID, product ProductID) (float64, error) {
	h := uint64(fnv1a64(fmt.Sprintf("%d/%s/%s", s.Seed, store, product)))
	u := float64(h>>11) / float64(1<<53) // [0, 1)
	return (2*u - 1) * s.Spread, nil
}

// UnitIntervalScorer adapts a scorer that reports in [0, 1] to [-1, 1].
type UnitIntervalScorer struct {
	Inner SentimentScorer
}

func (u UnitIntervalScorer) Score(ctx context.Context, store StoreID, product ProductID) (float64, error) {
	v, err := u.Inner.Score(ctx, store, product)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("unit-interval score %v out of range", v)
	}
	return 2*v - 1, nil
}

// ResilientScorer wraps a scorer and substitutes NeutralSentiment when the
// inner scorer fails or returns a value outside [-1, 1]. It never returns an error.
type ResilientScorer struct {
	Inner SentimentScorer
}

// NewResilientScorer wraps inner. A nil inner scorer always yields neutral sentiment.
func NewResilientScorer(inner SentimentScorer) *ResilientScorer {
	return &ResilientScorer{Inner: inner}
}

func (r *ResilientScorer) Score(ctx context.Context, store StoreID, product ProductID) (float64, error) {
	if r.Inner == nil {
		return NeutralSentiment, nil
	}
	v, err := r.Inner.Score(ctx, store, product)
	if err != nil {
		logrus.Warnf("[sentiment] store %s product %s: %v, using neutral score",
			store, product, CollaboratorError("sentiment scorer", err))
		return NeutralSentiment, nil
	}
	if math.IsNaN(v) || v < -1 || v > 1 {
		logrus.Warnf("[sentiment] store %s product %s: score %v out of range, using neutral score", store, product, v)
		return NeutralSentiment, nil
	}
	return v, nil
}
