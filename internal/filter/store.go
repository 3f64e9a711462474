package filter

import (
	"context"
	"sync"
)

// UserID identifies the owner of a filter configuration.
type UserID int64

// Store keeps one Spec per user. Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the user's spec and whether anything is stored.
	Get(ctx context.Context, user UserID) (Spec, bool)
	// Set validates raw for axis and stores it. Invalid text is rejected and
	// leaves the stored spec untouched.
	Set(ctx context.Context, user UserID, axis Axis, raw string) error
	// Clear drops everything stored for the user and reports whether there was anything.
	Clear(ctx context.Context, user UserID) bool
}

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	specs map[UserID]Spec
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{specs: make(map[UserID]Spec)}
}

func (s *MemoryStore) Get(_ context.Context, user UserID) (Spec, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spec, ok := s.specs[user]
	return spec, ok && !spec.IsZero()
}

func (s *MemoryStore) Set(_ context.Context, user UserID, axis Axis, raw string) error {
	if _, err := ParseAxis(axis, raw); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spec, err := s.specs[user].With(axis, raw)
	if err != nil {
		return err
	}
	s.specs[user] = spec
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, user UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec, ok := s.specs[user]
	delete(s.specs, user)
	return ok && !spec.IsZero()
}
