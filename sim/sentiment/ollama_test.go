package sentiment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, reply string, status int, calls *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		assert.False(t, req.Stream)

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: reply}})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOllamaScorer_ParsesAndCaches(t *testing.T) {
	var calls int32
	server := chatServer(t, "Sentiment: 0.8 (mostly positive)", http.StatusOK, &calls)
	scorer := NewOllamaScorer(server.URL+"/", "llama3", time.Second)

	v, err := scorer.Score(context.Background(), "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, v)

	_, err = scorer.Score(context.Background(), "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "second call is cached")
}

func TestOllamaScorer_UnitIntervalMapping(t *testing.T) {
	server := chatServer(t, "0.25", http.StatusOK, nil)
	scorer := sim.UnitIntervalScorer{Inner: NewOllamaScorer(server.URL, "llama3", time.Second)}

	v, err := scorer.Score(context.Background(), "s1", "p1")
	require.NoError(t, err)
	assert.Equal(t, -0.5, v)
}

func TestOllamaScorer_FailuresBecomeNeutral(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		status int
	}{
		{"server error", "", http.StatusInternalServerError},
		{"no number", "I cannot say", http.StatusOK},
		{"out of range", "7", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := chatServer(t, tt.reply, tt.status, nil)
			raw := NewOllamaScorer(server.URL, "llama3", time.Second)
			_, err := raw.Score(context.Background(), "s1", "p1")
			assert.Error(t, err)

			v, err := sim.NewResilientScorer(sim.UnitIntervalScorer{Inner: raw}).Score(context.Background(), "s1", "p1")
			require.NoError(t, err)
			assert.Equal(t, sim.NeutralSentiment, v)
		})
	}
}

func TestOllamaScorer_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	scorer := NewOllamaScorer(server.URL, "llama3", 20*time.Millisecond)
	_, err := scorer.Score(context.Background(), "s1", "p1")
	assert.Error(t, err)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		reply   string
		want    float64
		wantErr bool
	}{
		{"0.5", 0.5, false},
		{"score is 1", 1, false},
		{"0", 0, false},
		{"1.5", 0, true},
		{"-0.2", 0, true},
		{"none", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseScore(tt.reply)
		if tt.wantErr {
			assert.Error(t, err, tt.reply)
			continue
		}
		require.NoError(t, err, tt.reply)
		assert.Equal(t, tt.want, got)
	}
}
