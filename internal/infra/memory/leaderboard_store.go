package memory

import (
	"context"
	"sync"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/leaderboard"
)

// LeaderboardStore keeps leaderboard entries in memory. Upserts are
// serialised by a single lock, so the mutate callback always sees the
// committed entry.
type LeaderboardStore struct {
	mu      sync.Mutex
	entries map[leaderboard.Key]domain.LeaderboardEntry
	order   []leaderboard.Key
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{entries: make(map[leaderboard.Key]domain.LeaderboardEntry)}
}

func (s *LeaderboardStore) Entries(_ context.Context, subject, grade string) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.LeaderboardEntry
	for _, key := range s.order {
		if key.Subject == subject && key.GradeLevel == grade {
			out = append(out, s.entries[key])
		}
	}
	return out, nil
}

func (s *LeaderboardStore) Upsert(_ context.Context, key leaderboard.Key, mutate func(*domain.LeaderboardEntry) domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[key]
	var next domain.LeaderboardEntry
	if ok {
		next = mutate(&current)
	} else {
		next = mutate(nil)
		s.order = append(s.order, key)
	}
	s.entries[key] = next
	return nil
}
