package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/tempwidget/internal/widget"
)

var (
	// ErrNotFound is returned when no frame has been committed for an instance.
	ErrNotFound = errors.New("no frames for instance")
)

// Frame is one committed widget update.
type Frame struct {
	InstanceID  string        `json:"instanceId"`
	CommittedAt time.Time     `json:"committedAt"`
	Fields      widget.Fields `json:"fields"`
}

// frameHistory holds the time-ordered frames of an instance.
type frameHistory struct {
	frames []Frame
}

// MemoryStore is the in-process widget surface. It keeps recent frames per
// instance and serves them to the HTTP API.
type MemoryStore struct {
	mu sync.RWMutex

	// key: instance id
	data map[string]*frameHistory
	// ids passed to Forget; instance ids are never reused
	forgotten map[string]struct{}

	maxHistory int           // frames kept per instance, <= 0 unlimited
	maxAge     time.Duration // 0 keeps frames regardless of age

	now func() time.Time
}

// NewMemoryStore creates a MemoryStore with optional retention limits.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*frameHistory),
		forgotten:  make(map[string]struct{}),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Commit appends a frame for the instance and enforces retention. Frames for
// a forgotten instance are dropped, so a refresh still in flight when the
// instance is deleted cannot bring its history back.
func (s *MemoryStore) Commit(ctx context.Context, id string, f widget.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, gone := s.forgotten[id]; gone {
		return nil
	}

	history, ok := s.data[id]
	if !ok {
		history = &frameHistory{}
		s.data[id] = history
	}

	now := s.now().UTC()
	history.frames = append(history.frames, Frame{InstanceID: id, CommittedAt: now, Fields: f.Clone()})

	if s.maxHistory > 0 && len(history.frames) > s.maxHistory {
		over := len(history.frames) - s.maxHistory
		history.frames = history.frames[over:]
	}

	// The newest frame always survives so the surface is never blank.
	if s.maxAge > 0 {
		cutoff := now.Add(-s.maxAge)
		i := 0
		for ; i < len(history.frames)-1; i++ {
			if !history.frames[i].CommittedAt.Before(cutoff) {
				break
			}
		}
		history.frames = history.frames[i:]
	}
	return nil
}

// Latest returns the most recent frame for an instance.
func (s *MemoryStore) Latest(id string) (Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[id]
	if !ok || len(history.frames) == 0 {
		return Frame{}, ErrNotFound
	}
	return history.frames[len(history.frames)-1], nil
}

// History returns the frames committed between from and to (inclusive).
func (s *MemoryStore) History(id string, from, to time.Time) ([]Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[id]
	if !ok || len(history.frames) == 0 {
		return nil, ErrNotFound
	}

	var result []Frame
	for _, fr := range history.frames {
		if !fr.CommittedAt.Before(from) && !fr.CommittedAt.After(to) {
			result = append(result, fr)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Forget drops every frame of an instance and ignores its later commits.
func (s *MemoryStore) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	s.forgotten[id] = struct{}{}
}
