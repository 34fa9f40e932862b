// Package leaderboard maintains per (subject, grade level) rankings with an
// incrementally updated store and a read-through snapshot cache.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/metrics"
	"quiz-assessment-service/internal/scoring"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	DefaultTTL   = time.Hour

	rankLimit     = 100
	updateRetries = 3
)

// Key identifies one leaderboard entry.
type Key struct {
	UserID     string
	Subject    string
	GradeLevel string
}

// Store persists entries. Upsert must serialise concurrent calls for the same
// key: mutate sees the committed state (nil when absent) and its result is
// written atomically. Entries returns a partition in a stable order.
type Store interface {
	Entries(ctx context.Context, subject, grade string) ([]domain.LeaderboardEntry, error)
	Upsert(ctx context.Context, key Key, mutate func(current *domain.LeaderboardEntry) domain.LeaderboardEntry) error
}

// Cache stores opaque snapshots with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Query selects a ranked view.
type Query struct {
	Subject    string
	GradeLevel string
	Ranking    domain.RankingType
	Limit      int
}

// Update is the result of one completed submission.
type Update struct {
	UserID      string
	DisplayName string
	Subject     string
	GradeLevel  string
	Evaluation  domain.Evaluation
	At          time.Time
}

// snapshot is the cached form of a partition: raw entries, unranked and in
// store order. Derived metrics depend on the read time and are not cached.
type snapshot struct {
	Entries     []domain.LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time         `json:"generatedAt"`
}

// Aggregator implements leaderboard reads and incremental updates.
type Aggregator struct {
	store   Store
	cache   Cache
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	sf      singleflight.Group

	mu          sync.Mutex
	generations map[string]uint64
}

type Option func(*Aggregator)

func WithTTL(ttl time.Duration) Option {
	return func(a *Aggregator) { a.ttl = ttl }
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(store Store, cache Cache, opts ...Option) *Aggregator {
	a := &Aggregator{
		store:       store,
		cache:       cache,
		ttl:         DefaultTTL,
		logger:      zap.NewNop(),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CacheKey names the snapshot of a partition.
func CacheKey(subject, grade string) string {
	return "leaderboard:" + subject + ":" + grade
}

// GetLeaderboard returns the partition ranked by q.Ranking, truncated to q.Limit.
func (a *Aggregator) GetLeaderboard(ctx context.Context, q Query) (domain.Leaderboard, error) {
	snap, err := a.load(ctx, q.Subject, q.GradeLevel)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	now := a.now()
	standings := make([]domain.Standing, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		standings = append(standings, derive(e, now))
	}
	ranking := domain.ParseRankingType(string(q.Ranking))
	return domain.Leaderboard{
		Subject:    q.Subject,
		GradeLevel: q.GradeLevel,
		Ranking:    ranking,
		Entries:    rank(standings, ranking, normalizeLimit(q.Limit)),
		UpdatedAt:  snap.GeneratedAt,
	}, nil
}

// GetUserRank places a user within the top entries of the partition by best percentage.
func (a *Aggregator) GetUserRank(ctx context.Context, userID, subject, grade string) (domain.UserRank, error) {
	board, err := a.GetLeaderboard(ctx, Query{Subject: subject, GradeLevel: grade, Ranking: domain.RankByBestPercentage, Limit: rankLimit})
	if err != nil {
		return domain.UserRank{}, err
	}
	total := len(board.Entries)
	for _, standing := range board.Entries {
		if standing.UserID != userID {
			continue
		}
		result := domain.UserRank{
			UserID:            userID,
			Subject:           subject,
			GradeLevel:        grade,
			Rank:              standing.Rank,
			TotalParticipants: total,
			Percentile:        scoring.Round(float64(total-standing.Rank+1)/float64(total)*100, 2),
			Standing:          standing,
		}
		if standing.Rank > 1 {
			gap := scoring.Round(board.Entries[0].BestPercentage-standing.BestPercentage, 2)
			result.ScoreGapToLeader = &gap
		}
		return result, nil
	}
	return domain.UserRank{}, domain.ErrNotRanked
}

// UpdateOnSubmission folds one evaluation into the user's entry and
// invalidates the partition snapshot before returning.
func (a *Aggregator) UpdateOnSubmission(ctx context.Context, u Update) (domain.LeaderboardEntry, error) {
	at := u.At
	if at.IsZero() {
		at = a.now()
	}
	key := Key{UserID: u.UserID, Subject: u.Subject, GradeLevel: u.GradeLevel}

	var (
		written domain.LeaderboardEntry
		err     error
	)
	for attempt := 0; attempt < updateRetries; attempt++ {
		err = a.store.Upsert(ctx, key, func(current *domain.LeaderboardEntry) domain.LeaderboardEntry {
			written = apply(current, key, u, at)
			return written
		})
		if !errors.Is(err, domain.ErrConflict) {
			break
		}
		a.logger.Debug("leaderboard upsert conflict, retrying",
			zap.String("user_id", u.UserID),
			zap.Int("attempt", attempt+1),
		)
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("update leaderboard entry: %w", err)
	}

	if err := a.Invalidate(ctx, u.Subject, u.GradeLevel); err != nil {
		return written, err
	}
	return written, nil
}

// Invalidate drops the cached snapshot. Snapshots computed before the call
// are never written back.
func (a *Aggregator) Invalidate(ctx context.Context, subject, grade string) error {
	key := CacheKey(subject, grade)
	a.mu.Lock()
	a.generations[key]++
	a.mu.Unlock()
	if err := a.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

func apply(current *domain.LeaderboardEntry, key Key, u Update, at time.Time) domain.LeaderboardEntry {
	eval := u.Evaluation
	if current == nil {
		return domain.LeaderboardEntry{
			UserID:                 key.UserID,
			DisplayName:            u.DisplayName,
			Subject:                key.Subject,
			GradeLevel:             key.GradeLevel,
			TotalQuizzes:           1,
			TotalQuestionsAnswered: eval.AnsweredQuestions,
			TotalCorrectAnswers:    eval.CorrectAnswers,
			BestScore:              eval.TotalScore,
			BestPercentage:         eval.Percentage,
			AverageScore:           eval.TotalScore,
			FirstQuizAt:            at,
			LastQuizAt:             at,
		}
	}

	next := *current
	if u.DisplayName != "" {
		next.DisplayName = u.DisplayName
	}
	next.TotalQuizzes++
	next.TotalQuestionsAnswered += eval.AnsweredQuestions
	next.TotalCorrectAnswers += eval.CorrectAnswers
	if eval.TotalScore > next.BestScore {
		next.BestScore = eval.TotalScore
	}
	if eval.Percentage > next.BestPercentage {
		next.BestPercentage = eval.Percentage
	}
	n := float64(next.TotalQuizzes)
	next.AverageScore = scoring.Round((current.AverageScore*(n-1)+eval.TotalScore)/n, 2)
	if next.FirstQuizAt.IsZero() {
		next.FirstQuizAt = at
	}
	next.LastQuizAt = at
	return next
}

func (a *Aggregator) load(ctx context.Context, subject, grade string) (snapshot, error) {
	key := CacheKey(subject, grade)

	if snap, ok := a.cached(ctx, key); ok {
		a.metrics.LeaderboardCache(true)
		return snap, nil
	}
	a.metrics.LeaderboardCache(false)

	// Loads are shared per generation so that a read issued after an
	// invalidation never joins a load that started before it.
	a.mu.Lock()
	generation := a.generations[key]
	a.mu.Unlock()

	result, err, _ := a.sf.Do(fmt.Sprintf("%s#%d", key, generation), func() (interface{}, error) {
		entries, err := a.store.Entries(ctx, subject, grade)
		if err != nil {
			return snapshot{}, fmt.Errorf("load leaderboard entries: %w", err)
		}
		snap := snapshot{Entries: entries, GeneratedAt: a.now()}
		a.metrics.LeaderboardSize(subject, grade, len(entries))

		raw, err := json.Marshal(snap)
		if err != nil {
			return snap, nil
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generations[key] != generation {
			return snap, nil
		}
		if err := a.cache.Set(ctx, key, raw, a.ttl); err != nil {
			a.logger.Warn("leaderboard cache write failed", zap.String("key", key), zap.Error(err))
		}
		return snap, nil
	})
	if err != nil {
		return snapshot{}, err
	}
	return result.(snapshot), nil
}

func (a *Aggregator) cached(ctx context.Context, key string) (snapshot, bool) {
	raw, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("leaderboard cache read failed", zap.String("key", key), zap.Error(err))
		return snapshot{}, false
	}
	if !ok {
		return snapshot{}, false
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		a.logger.Warn("discarding unreadable leaderboard snapshot", zap.String("key", key), zap.Error(err))
		return snapshot{}, false
	}
	return snap, true
}

// derive computes accuracy and the recency weighted activity score.
func derive(e domain.LeaderboardEntry, now time.Time) domain.Standing {
	s := domain.Standing{LeaderboardEntry: e}
	if e.TotalQuestionsAnswered > 0 {
		s.Accuracy = scoring.Round(float64(e.TotalCorrectAnswers)/float64(e.TotalQuestionsAnswered)*100, 2)
	}
	volume := math.Min(float64(e.TotalQuizzes)*10, 100)
	days := 0.0
	if !e.LastQuizAt.IsZero() && now.After(e.LastQuizAt) {
		days = math.Floor(now.Sub(e.LastQuizAt).Hours() / 24)
	}
	recency := math.Max(0.5, 1-days/30)
	s.ActivityScore = scoring.Round(volume*recency, 2)
	return s
}

// rank orders standings by the ranking metric, descending. The sort is
// stable so ties keep store order.
func rank(entries []domain.Standing, ranking domain.RankingType, limit int) []domain.Standing {
	out := append([]domain.Standing(nil), entries...)
	metric := func(s domain.Standing) float64 {
		switch ranking {
		case domain.RankByAverageScore:
			return s.AverageScore
		case domain.RankByActivity:
			return s.ActivityScore
		case domain.RankByTotalQuizzes:
			return float64(s.TotalQuizzes)
		default:
			return s.BestPercentage
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return metric(out[i]) > metric(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
