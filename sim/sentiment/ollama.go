// Package sentiment provides sentiment scorers backed by external services.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/retail-sim/retail-sim/sim"
	"github.com/sirupsen/logrus"
)

var _ sim.SentimentScorer = (*OllamaScorer)(nil)

const defaultPrompt = `You estimate customer sentiment for retail products.
Product %s sold at store %s.
Reply with a single number between 0 and 1, where 0 is very negative, 0.5 is neutral and 1 is very positive.`

// numberRe matches the first decimal number in a model reply.
var numberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// OllamaScorer asks an Ollama-compatible chat endpoint for a score in [0, 1].
// Wrap it in sim.UnitIntervalScorer to obtain [-1, 1] scores.
// Replies are cached per (store, product) for the lifetime of the scorer.
type OllamaScorer struct {
	baseURL    string
	model      string
	prompt     string
	httpClient *http.Client

	mu    sync.Mutex
	cache map[string]float64
}

// NewOllamaScorer creates a scorer calling baseURL/api/chat with the given
// model. timeout bounds each HTTP call.
func NewOllamaScorer(baseURL, model string, timeout time.Duration) *OllamaScorer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OllamaScorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		prompt:     defaultPrompt,
		httpClient: &http.Client{Timeout: timeout},
		cache:      make(map[string]float64),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

// Score returns the model's [0, 1] rating for the pair.
func (s *OllamaScorer) Score(ctx context.Context, store sim.StoreID, product sim.ProductID) (float64, error) {
	key := string(store) + "/" + string(product)
	s.mu.Lock()
	v, ok := s.cache[key]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	content, err := s.chat(ctx, fmt.Sprintf(s.prompt, product, store))
	if err != nil {
		return 0, err
	}
	v, err = ParseScore(content)
	if err != nil {
		return 0, err
	}
	logrus.Debugf("[sentiment] store %s product %s: model score %.3f", store, product, v)

	s.mu.Lock()
	s.cache[key] = v
	s.mu.Unlock()
	return v, nil
}

func (s *OllamaScorer) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    s.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat endpoint returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse chat response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("chat endpoint: %s", out.Error)
	}
	return out.Message.Content, nil
}

// ParseScore extracts the first number of a model reply and checks it lies in [0, 1].
func ParseScore(reply string) (float64, error) {
	m := numberRe.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("no score in reply %q", reply)
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", m, err)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("score %v outside [0, 1]", v)
	}
	return v, nil
}
