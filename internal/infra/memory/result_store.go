package memory

import (
	"context"
	"sync"

	"trivia-service/internal/domain"
)

// ResultStore keeps results in process memory. Saving an id twice keeps the first write.
type ResultStore struct {
	mu      sync.RWMutex
	order   []string
	results map[string]domain.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]domain.Result)}
}

func (s *ResultStore) Save(_ context.Context, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[result.ID]; ok {
		return nil
	}
	s.results[result.ID] = copyResult(result)
	s.order = append(s.order, result.ID)
	return nil
}

func (s *ResultStore) All(ctx context.Context) ([]domain.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyResult(s.results[id]))
	}
	return out, nil
}

func copyResult(r domain.Result) domain.Result {
	out := r
	out.QuestionIDs = append([]string(nil), r.QuestionIDs...)
	out.SelectedAnswers = append([]int(nil), r.SelectedAnswers...)
	return out
}
