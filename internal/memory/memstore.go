package memory

import (
	"context"
	"sync"
	"time"
)

// MemStore is the process-local Store implementation. It is the default
// backend and the one tests run against.
type MemStore struct {
	mu              sync.RWMutex
	conversations   map[string][]Turn
	maxTurns        int
	maxContextChars int
}

func NewMemStore(maxTurns, maxContextChars int) *MemStore {
	return &MemStore{
		conversations:   make(map[string][]Turn),
		maxTurns:        maxTurns,
		maxContextChars: maxContextChars,
	}
}

func (s *MemStore) Append(ctx context.Context, conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.conversations[conversationID], Turn{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	s.conversations[conversationID] = trimTurns(turns, s.maxTurns, s.maxContextChars)

	return nil
}

func (s *MemStore) Read(ctx context.Context, conversationID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[conversationID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemStore) Clear(ctx context.Context, conversationID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, conversationID)
	return true, nil
}

func (s *MemStore) Stats(ctx context.Context, conversationID string) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return statsFor(s.conversations[conversationID]), nil
}
