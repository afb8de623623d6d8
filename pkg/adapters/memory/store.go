package memory

import (
	"context"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Store implements ports.ProgressStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.Progress
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.Progress),
	}
}

// Save persists the progress in memory. The record is stored by value so the
// caller cannot mutate it afterwards.
func (s *Store) Save(ctx context.Context, sessionID string, progress *domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = *progress
	return nil
}

// Load retrieves a copy of the progress.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrProgressNotFound
	}
	return &p, nil
}

// Delete removes the progress.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns sessions with saved progress.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}

// Recorder implements ports.CompletionRecorder in memory.
type Recorder struct {
	mu   sync.RWMutex
	done map[string]bool
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{done: make(map[string]bool)}
}

func recorderKey(userID, tourID string) string {
	return userID + "\x00" + tourID
}

// MarkCompleted implements ports.CompletionRecorder.
func (r *Recorder) MarkCompleted(ctx context.Context, userID, tourID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[recorderKey(userID, tourID)] = true
	return nil
}

// IsCompleted implements ports.CompletionRecorder.
func (r *Recorder) IsCompleted(ctx context.Context, userID, tourID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done[recorderKey(userID, tourID)], nil
}

// Reset implements ports.CompletionRecorder.
func (r *Recorder) Reset(ctx context.Context, userID, tourID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.done, recorderKey(userID, tourID))
	return nil
}
