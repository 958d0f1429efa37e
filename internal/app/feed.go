package app

import (
	"sync"

	"trivia-service/internal/domain"
)

// ResultFeed fans newly recorded results out to subscribers (websocket leaderboard viewers).
type ResultFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.Result]struct{}
}

func NewResultFeed() *ResultFeed {
	return &ResultFeed{subscribers: make(map[chan domain.Result]struct{})}
}

// Subscribe returns a channel of recorded results. The caller must invoke cancel to avoid leaks.
func (f *ResultFeed) Subscribe() (<-chan domain.Result, func()) {
	ch := make(chan domain.Result, 8)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers r to every subscriber without blocking; a full subscriber loses its oldest update.
func (f *ResultFeed) Publish(r domain.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- r:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- r
		}
	}
}

// Len reports the number of active subscribers.
func (f *ResultFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
