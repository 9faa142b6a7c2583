package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errScorer struct{}

func (errScorer) Score(context.Context, StoreID, ProductID) (float64, error) {
	return 0, errors.New("model offline")
}

func TestResilientScorer_SubstitutesNeutral(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name  string
		inner SentimentScorer
		want  float64
	}{
		{"healthy scorer passes through", FixedScorer(0.6), 0.6},
		{"failing scorer", errScorer{}, NeutralSentiment},
		{"out of range", FixedScorer(3), NeutralSentiment},
		{"NaN", FixedScorer(math.NaN()), NeutralSentiment},
		{"nil inner", nil, NeutralSentiment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewResilientScorer(tt.inner).Score(ctx, "s1", "p1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnitIntervalScorer_MapsOntoSignedRange(t *testing.T) {
	ctx := context.Background()
	for _, tt := range []struct{ in, want float64 }{{0, -1}, {0.5, 0}, {1, 1}, {0.85, 0.7}} {
		got, err := UnitIntervalScorer{Inner: FixedScorer(tt.in)}.Score(ctx, "s", "p")
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12)
	}

	_, err := UnitIntervalScorer{Inner: FixedScorer(-0.2)}.Score(ctx, "s", "p")
	assert.Error(t, err)
	_, err = UnitIntervalScorer{Inner: errScorer{}}.Score(ctx, "s", "p")
	assert.Error(t, err)
}

func TestSeededScorer_DeterministicAndBounded(t *testing.T) {
	ctx := context.Background()
	s := SeededScorer{Seed: 42, Spread: 0.8}

	a, err := s.Score(ctx, "s1", "p1")
	require.NoError(t, err)
	b, _ := s.Score(ctx, "s1", "p1")
	assert.Equal(t, a, b)

	other, _ := SeededScorer{Seed: 43, Spread: 0.8}.Score(ctx, "s1", "p1")
	assert.NotEqual(t, a, other)

	for _, store := range []StoreID{"a", "b", "c", "d"} {
		for _, product := range []ProductID{"x", "y", "z"} {
			v, _ := s.Score(ctx, store, product)
			assert.GreaterOrEqual(t, v, -0.8)
			assert.LessOrEqual(t, v, 0.8)
		}
	}
}
