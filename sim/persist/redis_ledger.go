package persist

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/retail-sim/retail-sim/sim"
)

var _ sim.StockLedger = (*RedisLedger)(nil)

// compareAndDecrementScript decrements KEYS[1] by ARGV[2] only when its
// current value equals ARGV[1] and covers the amount. Returns 1 on success.
var compareAndDecrementScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local expected = tonumber(ARGV[1])
local amount = tonumber(ARGV[2])

if current ~= expected or amount > current then
	return 0
end

redis.call('DECRBY', KEYS[1], amount)
return 1
`)

// RedisLedger keeps warehouse stock in redis so several simulator
// processes can share one warehouse. Keys are namespaced by run ID.
type RedisLedger struct {
	client *redis.Client
	prefix string
}

// NewRedisLedger creates a ledger under the "retail-sim:<runID>:" namespace.
func NewRedisLedger(client *redis.Client, runID string) *RedisLedger {
	return &RedisLedger{client: client, prefix: "retail-sim:" + runID + ":"}
}

func (l *RedisLedger) stockKey(product sim.ProductID) string {
	return l.prefix + "stock:" + string(product)
}

func (l *RedisLedger) productsKey() string {
	return l.prefix + "products"
}

// Seed overwrites the stock of every product in initial.
func (l *RedisLedger) Seed(ctx context.Context, initial map[sim.ProductID]int64) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for p, q := range initial {
			pipe.Set(ctx, l.stockKey(p), q, 0)
			pipe.SAdd(ctx, l.productsKey(), string(p))
		}
		return nil
	})
	if err != nil {
		return sim.CollaboratorError("redis", fmt.Errorf("seed stock: %w", err))
	}
	return nil
}

func (l *RedisLedger) Available(ctx context.Context, product sim.ProductID) (int64, error) {
	v, err := l.client.Get(ctx, l.stockKey(product)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, sim.CollaboratorError("redis", err)
	}
	return v, nil
}

func (l *RedisLedger) CompareAndDecrement(ctx context.Context, product sim.ProductID, expected, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("%w: decrement amount %d is negative", sim.ErrInputViolation, amount)
	}
	result, err := compareAndDecrementScript.Run(ctx, l.client, []string{l.stockKey(product)}, expected, amount).Int()
	if err != nil {
		return false, sim.CollaboratorError("redis", err)
	}
	return result == 1, nil
}

func (l *RedisLedger) Add(ctx context.Context, product sim.ProductID, qty int64) (int64, error) {
	if qty < 0 {
		return 0, fmt.Errorf("%w: added quantity %d is negative", sim.ErrInputViolation, qty)
	}
	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, l.stockKey(product), qty)
		pipe.SAdd(ctx, l.productsKey(), string(product))
		return nil
	})
	if err != nil {
		return 0, sim.CollaboratorError("redis", err)
	}
	return incr.Val(), nil
}

func (l *RedisLedger) Snapshot(ctx context.Context) (map[sim.ProductID]int64, error) {
	products, err := l.client.SMembers(ctx, l.productsKey()).Result()
	if err != nil {
		return nil, sim.CollaboratorError("redis", err)
	}
	out := make(map[sim.ProductID]int64, len(products))
	if len(products) == 0 {
		return out, nil
	}
	keys := make([]string, len(products))
	for i, p := range products {
		keys[i] = l.stockKey(sim.ProductID(p))
	}
	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, sim.CollaboratorError("redis", err)
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		q, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, sim.CollaboratorError("redis", fmt.Errorf("stock of %s: %w", products[i], err))
		}
		out[sim.ProductID(products[i])] = q
	}
	return out, nil
}

// Clear deletes every key of the run.
func (l *RedisLedger) Clear(ctx context.Context) error {
	products, err := l.client.SMembers(ctx, l.productsKey()).Result()
	if err != nil {
		return sim.CollaboratorError("redis", err)
	}
	keys := []string{l.productsKey()}
	for _, p := range products {
		keys = append(keys, l.stockKey(sim.ProductID(p)))
	}
	if err := l.client.Del(ctx, keys...).Err(); err != nil {
		return sim.CollaboratorError("redis", err)
	}
	return nil
}
