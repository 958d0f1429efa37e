package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-service/internal/domain"
)

const poolKey = "trivia:questions:pool"

// QuestionLoader fetches the question pool from a backing store (database, generator, file).
type QuestionLoader interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache caches the question pool in Redis as one JSON value and falls back to a loader on
// cache miss. Instances sharing the Redis serve the same pool until it expires.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if pool, ok := c.cached(ctx); ok {
		return pool, nil
	}

	result, err, _ := c.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := c.cached(ctx); ok {
			return pool, nil
		}

		pool, err := c.loader.Questions(ctx)
		if err != nil {
			return nil, err
		}

		// A failed cache write only costs a reload later.
		if raw, err := json.Marshal(pool); err == nil {
			_ = c.client.Set(ctx, poolKey, raw, c.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, poolKey).Bytes()
	if err != nil {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil || len(pool) == 0 {
		return nil, false
	}
	return pool, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
