package leaderboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-assessment-service/internal/domain"
)

type fakeStore struct {
	mu        sync.Mutex
	order     []Key
	entries   map[Key]domain.LeaderboardEntry
	reads     int
	conflicts int
	onRead    func()
	afterRead func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[Key]domain.LeaderboardEntry)}
}

func (s *fakeStore) Entries(_ context.Context, subject, grade string) ([]domain.LeaderboardEntry, error) {
	if s.onRead != nil {
		s.onRead()
	}
	s.mu.Lock()
	s.reads++
	var out []domain.LeaderboardEntry
	for _, k := range s.order {
		if k.Subject == subject && k.GradeLevel == grade {
			out = append(out, s.entries[k])
		}
	}
	s.mu.Unlock()
	if s.afterRead != nil {
		s.afterRead()
	}
	return out, nil
}

func (s *fakeStore) Upsert(_ context.Context, key Key, mutate func(*domain.LeaderboardEntry) domain.LeaderboardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrConflict
	}
	var current *domain.LeaderboardEntry
	if e, ok := s.entries[key]; ok {
		current = &e
	} else {
		s.order = append(s.order, key)
	}
	s.entries[key] = mutate(current)
	return nil
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newAggregator(store Store, cache Cache) *Aggregator {
	return NewAggregator(store, cache, WithClock(func() time.Time { return now }))
}

func submit(t *testing.T, a *Aggregator, user string, score, pct float64, answered, correct int) domain.LeaderboardEntry {
	t.Helper()
	entry, err := a.UpdateOnSubmission(context.Background(), Update{
		UserID:      user,
		DisplayName: "User " + user,
		Subject:     "math",
		GradeLevel:  "5",
		Evaluation: domain.Evaluation{
			TotalScore:        score,
			Percentage:        pct,
			AnsweredQuestions: answered,
			CorrectAnswers:    correct,
		},
		At: now,
	})
	require.NoError(t, err)
	return entry
}

func TestUpdateSeedsAndAccumulates(t *testing.T) {
	a := newAggregator(newFakeStore(), newFakeCache())

	first := submit(t, a, "u1", 8, 80, 10, 8)
	assert.Equal(t, 1, first.TotalQuizzes)
	assert.Equal(t, 8.0, first.BestScore)
	assert.Equal(t, 80.0, first.BestPercentage)
	assert.Equal(t, 8.0, first.AverageScore)
	assert.Equal(t, now, first.FirstQuizAt)

	second := submit(t, a, "u1", 5, 50, 10, 5)
	assert.Equal(t, 2, second.TotalQuizzes)
	assert.Equal(t, 20, second.TotalQuestionsAnswered)
	assert.Equal(t, 13, second.TotalCorrectAnswers)
	assert.Equal(t, 8.0, second.BestScore, "best only moves on a strictly greater score")
	assert.Equal(t, 80.0, second.BestPercentage)
	assert.Equal(t, 6.5, second.AverageScore)

	third := submit(t, a, "u1", 9, 90, 10, 9)
	assert.Equal(t, 9.0, third.BestScore)
	assert.Equal(t, 90.0, third.BestPercentage)
	assert.Equal(t, 7.33, third.AverageScore)
}

func TestUpdateRetriesConflicts(t *testing.T) {
	store := newFakeStore()
	store.conflicts = 2
	a := newAggregator(store, newFakeCache())

	entry := submit(t, a, "u1", 4, 40, 10, 4)
	assert.Equal(t, 1, entry.TotalQuizzes)
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	store := newFakeStore()
	a := newAggregator(store, newFakeCache())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.UpdateOnSubmission(context.Background(), Update{
				UserID: "u1", Subject: "math", GradeLevel: "5",
				Evaluation: domain.Evaluation{TotalScore: 1, Percentage: 10, AnsweredQuestions: 1},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entry := store.entries[Key{UserID: "u1", Subject: "math", GradeLevel: "5"}]
	assert.Equal(t, 50, entry.TotalQuizzes)
	assert.Equal(t, 50, entry.TotalQuestionsAnswered)
}

func TestGetLeaderboardRanksByType(t *testing.T) {
	a := newAggregator(newFakeStore(), newFakeCache())
	submit(t, a, "u1", 9, 90, 10, 9)
	submit(t, a, "u2", 6, 60, 10, 6)
	submit(t, a, "u2", 7, 70, 10, 7)
	submit(t, a, "u3", 9.5, 95, 10, 9)

	ctx := context.Background()
	board, err := a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5"})
	require.NoError(t, err)
	assert.Equal(t, domain.RankByBestPercentage, board.Ranking)
	assert.Equal(t, []string{"u3", "u1", "u2"}, userIDs(board.Entries))
	assert.Equal(t, []int{1, 2, 3}, ranks(board.Entries))

	board, err = a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5", Ranking: domain.RankByTotalQuizzes})
	require.NoError(t, err)
	assert.Equal(t, []string{"u2", "u1", "u3"}, userIDs(board.Entries), "ties keep store order")

	board, err = a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5", Ranking: "bogus", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.RankByBestPercentage, board.Ranking)
	assert.Equal(t, []string{"u3"}, userIDs(board.Entries))

	board, err = a.GetLeaderboard(ctx, Query{Subject: "science", GradeLevel: "5"})
	require.NoError(t, err)
	assert.Empty(t, board.Entries)
}

func TestGetLeaderboardServesFromCacheUntilInvalidated(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	a := newAggregator(store, cache)
	submit(t, a, "u1", 5, 50, 10, 5)
	ctx := context.Background()

	_, err := a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5"})
	require.NoError(t, err)
	_, err = a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5", Ranking: domain.RankByActivity})
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads, "second ranking is computed from the cached snapshot")

	submit(t, a, "u2", 9, 90, 10, 9)
	board, err := a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.reads)
	assert.Equal(t, []string{"u2", "u1"}, userIDs(board.Entries))
}

func TestStaleSnapshotIsNotCached(t *testing.T) {
	store := newFakeStore()
	cache := newFakeCache()
	a := newAggregator(store, cache)
	submit(t, a, "u1", 5, 50, 10, 5)

	store.onRead = func() {
		store.onRead = nil
		require.NoError(t, a.Invalidate(context.Background(), "math", "5"))
	}
	_, err := a.GetLeaderboard(context.Background(), Query{Subject: "math", GradeLevel: "5"})
	require.NoError(t, err)

	_, ok, _ := cache.Get(context.Background(), CacheKey("math", "5"))
	assert.False(t, ok, "snapshot built across an invalidation must not be cached")
}

func TestReadAfterUpdateDoesNotJoinEarlierLoad(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	a := newAggregator(store, newFakeCache())
	submit(t, a, "u1", 5, 50, 10, 5)

	started := make(chan struct{})
	release := make(chan struct{})
	var blockOnce, releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	defer unblock()
	store.afterRead = func() {
		blockOnce.Do(func() {
			close(started)
			<-release
		})
	}

	first := make(chan domain.Leaderboard, 1)
	go func() {
		board, _ := a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5"})
		first <- board
	}()
	<-started

	submit(t, a, "u2", 9, 90, 10, 9)

	second := make(chan domain.Leaderboard, 1)
	go func() {
		board, _ := a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5"})
		second <- board
	}()

	var board domain.Leaderboard
	select {
	case board = <-second:
	case <-time.After(time.Second):
		unblock()
		board = <-second
	}
	unblock()
	<-first

	assert.Equal(t, []string{"u2", "u1"}, userIDs(board.Entries), "read issued after the update must see it")
}

func TestActivityScoreDecaysOnCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	clock := now
	a := NewAggregator(store, newFakeCache(), WithClock(func() time.Time { return clock }))
	submit(t, a, "u1", 5, 50, 10, 5)

	board, err := a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5", Ranking: domain.RankByActivity})
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 10.0, board.Entries[0].ActivityScore)

	clock = now.Add(15 * 24 * time.Hour)
	board, err = a.GetLeaderboard(ctx, Query{Subject: "math", GradeLevel: "5", Ranking: domain.RankByActivity})
	require.NoError(t, err)
	assert.Equal(t, 1, store.reads, "second read must come from the cache")
	assert.Equal(t, 5.0, board.Entries[0].ActivityScore)
}

func TestGetUserRank(t *testing.T) {
	a := newAggregator(newFakeStore(), newFakeCache())
	submit(t, a, "u1", 9, 90, 10, 9)
	submit(t, a, "u2", 6, 60, 10, 6)
	submit(t, a, "u3", 7.5, 75, 10, 7)
	submit(t, a, "u4", 3, 30, 10, 3)
	ctx := context.Background()

	leader, err := a.GetUserRank(ctx, "u1", "math", "5")
	require.NoError(t, err)
	assert.Equal(t, 1, leader.Rank)
	assert.Equal(t, 4, leader.TotalParticipants)
	assert.Equal(t, 100.0, leader.Percentile)
	assert.Nil(t, leader.ScoreGapToLeader)

	third, err := a.GetUserRank(ctx, "u2", "math", "5")
	require.NoError(t, err)
	assert.Equal(t, 3, third.Rank)
	assert.Equal(t, 50.0, third.Percentile)
	require.NotNil(t, third.ScoreGapToLeader)
	assert.Equal(t, 30.0, *third.ScoreGapToLeader)

	_, err = a.GetUserRank(ctx, "ghost", "math", "5")
	assert.ErrorIs(t, err, domain.ErrNotRanked)
}

func TestDeriveActivityScore(t *testing.T) {
	cases := []struct {
		quizzes int
		ago     time.Duration
		want    float64
	}{
		{quizzes: 3, ago: 0, want: 30},
		{quizzes: 3, ago: 15 * 24 * time.Hour, want: 15},
		{quizzes: 3, ago: 60 * 24 * time.Hour, want: 15},
		{quizzes: 12, ago: 3 * 24 * time.Hour, want: 90},
		{quizzes: 12, ago: 36 * time.Hour, want: 96.67},
	}
	for _, tc := range cases {
		got := derive(domain.LeaderboardEntry{TotalQuizzes: tc.quizzes, LastQuizAt: now.Add(-tc.ago)}, now)
		assert.Equal(t, tc.want, got.ActivityScore, "quizzes=%d ago=%s", tc.quizzes, tc.ago)
	}

	got := derive(domain.LeaderboardEntry{TotalQuestionsAnswered: 3, TotalCorrectAnswers: 2}, now)
	assert.Equal(t, 66.67, got.Accuracy)
	assert.Equal(t, 0.0, derive(domain.LeaderboardEntry{}, now).Accuracy)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, normalizeLimit(0))
	assert.Equal(t, MaxLimit, normalizeLimit(500))
	assert.Equal(t, 25, normalizeLimit(25))
}

func userIDs(entries []domain.Standing) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func ranks(entries []domain.Standing) []int {
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Rank)
	}
	return out
}
