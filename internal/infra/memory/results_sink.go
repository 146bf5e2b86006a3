package memory

import (
	"context"
	"sync"

	"quiz-battle-service/internal/domain"
)

// ResultsSink keeps finished-match results in memory; used when no durable
// sink is configured, and by tests.
type ResultsSink struct {
	mu      sync.RWMutex
	results map[string][]domain.MatchResult
}

func NewResultsSink() *ResultsSink {
	return &ResultsSink{results: make(map[string][]domain.MatchResult)}
}

func (s *ResultsSink) RecordMatch(_ context.Context, result domain.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.RoomID] = append(s.results[result.RoomID], result)
	return nil
}

// Results returns the recorded results for a room.
func (s *ResultsSink) Results(roomID string) []domain.MatchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.MatchResult, len(s.results[roomID]))
	copy(out, s.results[roomID])
	return out
}
