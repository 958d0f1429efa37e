package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-service/internal/domain"
)

// QuestionLoader fetches the question pool from a backing store (database, generator, file).
type QuestionLoader interface {
	Questions(ctx context.Context) ([]domain.Question, error)
}

// QuestionCache caches the question pool with TTL to avoid repeated loads.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	pool      []domain.Question
	expiresAt time.Time
	loaded    bool
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if pool, ok := c.cached(c.clock()); ok {
		return pool, nil
	}

	result, err, _ := c.sf.Do("pool", func() (interface{}, error) {
		now := c.clock()
		if pool, ok := c.cached(now); ok {
			return pool, nil
		}

		pool, err := c.loader.Questions(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.pool = clonePool(pool)
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.loaded = true
		c.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return clonePool(result.([]domain.Question)), nil
}

// Invalidate drops the cached pool so the next call reloads it.
func (c *QuestionCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.pool = nil
	c.mu.Unlock()
}

func (c *QuestionCache) cached(now time.Time) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || !c.expiresAt.After(now) {
		return nil, false
	}
	return clonePool(c.pool), true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticSource serves a fixed question pool (useful for tests/demos).
type StaticSource struct {
	questions []domain.Question
}

func NewStaticSource(questions []domain.Question) *StaticSource {
	return &StaticSource{questions: clonePool(questions)}
}

func (s *StaticSource) Questions(_ context.Context) ([]domain.Question, error) {
	return clonePool(s.questions), nil
}

func clonePool(pool []domain.Question) []domain.Question {
	out := make([]domain.Question, len(pool))
	for i, q := range pool {
		out[i] = q
		out[i].Options = append([]string(nil), q.Options...)
	}
	return out
}
