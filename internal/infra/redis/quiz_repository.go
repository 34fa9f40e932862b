package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-assessment-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quizzes in Redis and falls back to a loader on cache miss.
// Quiz metadata is stored as:  HSET quiz:{quizID}:meta title|subject|grade|adaptive
// Questions are stored as:     HSET quiz:{quizID}:questions {questionID} {question JSON}
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := r.cached(ctx, quizID); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.cached(ctx, quizID); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		// best-effort: a failed write only costs another load
		_ = r.store(ctx, quiz)
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

// Evict removes both cache hashes of a quiz.
func (r *QuizRepository) Evict(ctx context.Context, quizID string) error {
	r.sf.Forget(quizID)
	if err := r.client.Del(ctx, r.metaKey(quizID), r.questionsKey(quizID)).Err(); err != nil {
		return fmt.Errorf("evict quiz %s: %w", quizID, err)
	}
	return nil
}

func (r *QuizRepository) cached(ctx context.Context, quizID string) (domain.Quiz, bool) {
	pipe := r.client.Pipeline()
	metaCmd := pipe.HGetAll(ctx, r.metaKey(quizID))
	questionsCmd := pipe.HGetAll(ctx, r.questionsKey(quizID))
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Quiz{}, false
	}
	meta := metaCmd.Val()
	if len(meta) == 0 {
		return domain.Quiz{}, false
	}
	quiz, err := buildQuizFromCache(quizID, meta, questionsCmd.Val())
	if err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) store(ctx context.Context, quiz domain.Quiz) error {
	metaKey := r.metaKey(quiz.ID)
	questionsKey := r.questionsKey(quiz.ID)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, metaKey, questionsKey)
	pipe.HSet(ctx, metaKey,
		"title", quiz.Title,
		"subject", quiz.Subject,
		"grade", quiz.GradeLevel,
		"adaptive", strconv.FormatBool(quiz.Adaptive),
	)
	for _, q := range quiz.Questions {
		raw, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		pipe.HSet(ctx, questionsKey, q.ID, raw)
	}
	if ttl := r.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, metaKey, ttl)
		pipe.Expire(ctx, questionsKey, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *QuizRepository) metaKey(quizID string) string {
	return "quiz:" + quizID + ":meta"
}

func (r *QuizRepository) questionsKey(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func buildQuizFromCache(quizID string, meta, questions map[string]string) (domain.Quiz, error) {
	adaptive, _ := strconv.ParseBool(meta["adaptive"])
	quiz := domain.Quiz{
		ID:         quizID,
		Title:      meta["title"],
		Subject:    meta["subject"],
		GradeLevel: meta["grade"],
		Adaptive:   adaptive,
		Questions:  make([]domain.Question, 0, len(questions)),
	}
	for _, raw := range questions {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.Quiz{}, err
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	// Hash fields come back unordered.
	sort.SliceStable(quiz.Questions, func(i, j int) bool {
		if quiz.Questions[i].Order != quiz.Questions[j].Order {
			return quiz.Questions[i].Order < quiz.Questions[j].Order
		}
		return quiz.Questions[i].ID < quiz.Questions[j].ID
	})
	return quiz, nil
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
