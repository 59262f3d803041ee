package location

import (
	"context"
	"sync"
	"time"

	"github.com/i474232898/tempwidget/internal/weather"
)

// PassiveSource is the passive tier: it never locates by itself and only
// sees fixes other sources obtained.
type PassiveSource struct {
	cache *fixCache

	mu   sync.Mutex
	subs map[int]chan weather.Coordinate
	next int
}

func NewPassiveSource(maxAge time.Duration) *PassiveSource {
	return &PassiveSource{
		cache: newFixCache(maxAge),
		subs:  make(map[int]chan weather.Coordinate),
	}
}

func (s *PassiveSource) Name() string {
	return "passive"
}

// Publish records a fix and hands it to every waiting request.
func (s *PassiveSource) Publish(c weather.Coordinate) {
	s.cache.store(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (s *PassiveSource) LastKnown(context.Context) (weather.Coordinate, bool, error) {
	c, ok := s.cache.load()
	return c, ok, nil
}

func (s *PassiveSource) RequestUpdate(ctx context.Context) (weather.Coordinate, error) {
	ch, unsubscribe := s.subscribe()
	defer unsubscribe()

	select {
	case c := <-ch:
		return c, nil
	case <-ctx.Done():
		return weather.Coordinate{}, ctx.Err()
	}
}

func (s *PassiveSource) subscribe() (<-chan weather.Coordinate, func()) {
	ch := make(chan weather.Coordinate, 1)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Subscribers reports how many requests are waiting for a fix.
func (s *PassiveSource) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
