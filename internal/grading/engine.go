package grading

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/metrics"
	"quiz-assessment-service/internal/scoring"
)

// Engine grades answers and aggregates submissions into evaluations.
// Collaborator failures never surface as errors; they degrade to fallbacks.
type Engine struct {
	grader  ShortAnswerGrader
	advisor Advisor
	policy  Policy
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine wires the engine. grader and advisor may be nil, in which case
// every AI-dependent step takes its fallback path.
func NewEngine(grader ShortAnswerGrader, advisor Advisor, policy Policy, opts ...Option) *Engine {
	e := &Engine{
		grader:  grader,
		advisor: advisor,
		policy:  policy,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GradeAnswer returns a copy of answer with its grading fields populated.
func (e *Engine) GradeAnswer(ctx context.Context, answer domain.Answer, question domain.Question) domain.Answer {
	maxPoints := question.Points

	var (
		points     float64
		correct    bool
		feedback   string
		confidence float64
	)
	if question.Type.Objective() {
		correct = question.CorrectAnswer != "" && scoring.Equivalent(answer.Response(), question.CorrectAnswer)
		if correct {
			points = maxPoints
		}
		confidence = 1.0
	} else {
		points, correct, feedback, confidence = e.gradeSubjective(ctx, answer, question)
	}

	if answer.HintsUsed > 0 {
		points = math.Max(0, points-float64(answer.HintsUsed)*e.policy.HintPenalty*maxPoints)
	}

	answer.PointsEarned = scoring.Round(points, 2)
	answer.MaxPoints = maxPoints
	answer.IsCorrect = &correct
	answer.Feedback = feedback
	answer.Confidence = confidence
	return answer
}

func (e *Engine) gradeSubjective(ctx context.Context, answer domain.Answer, question domain.Question) (float64, bool, string, float64) {
	maxPoints := question.Points
	response := answer.AnswerText
	if scoring.Blank(response) {
		response = answer.SelectedOption
	}
	if scoring.Blank(response) {
		return 0, false, feedbackNoAnswer, 1.0
	}

	if e.policy.ShortCircuit && question.CorrectAnswer != "" {
		if scoring.Equivalent(response, question.CorrectAnswer) ||
			scoring.NumericEqual(response, question.CorrectAnswer, e.policy.NumericTolerance) {
			e.metrics.ShortCircuit()
			return maxPoints, true, "", 1.0
		}
	}

	fallback := func(err error) (float64, bool, string, float64) {
		e.logger.Warn("short answer grading fell back",
			zap.String("question_id", question.ID),
			zap.Error(err),
		)
		e.metrics.GradingFallback(string(question.Type))
		return e.policy.FallbackCredit * maxPoints, false, feedbackUnavailable, fallbackConfidence
	}
	if e.grader == nil {
		return fallback(fmt.Errorf("no short answer grader configured"))
	}

	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	started := time.Now()
	result, err := e.grader.GradeShortAnswer(callCtx, ShortAnswerRequest{
		Question:        question.Text,
		Type:            question.Type,
		ReferenceAnswer: question.CorrectAnswer,
		StudentAnswer:   response,
		MaxPoints:       maxPoints,
	})
	e.metrics.ObserveAI("grade_short_answer", started, err)
	if err != nil {
		return fallback(err)
	}

	score := scoring.Clamp(result.Score, 0, maxPoints)
	correct := score >= e.policy.PassRatio*maxPoints
	return score, correct, result.Feedback, scoring.Clamp(result.Confidence, 0, 1)
}

// Validate rejects submissions that reference unknown questions, answer a
// question twice, carry empty answers or negative hint counts.
func Validate(questions []domain.Question, answers []domain.Answer) error {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		if _, ok := known[a.QuestionID]; !ok {
			return fmt.Errorf("%w: %w: %s", domain.ErrInvalidSubmission, domain.ErrQuestionNotFound, a.QuestionID)
		}
		if _, dup := seen[a.QuestionID]; dup {
			return fmt.Errorf("%w: %w: %s", domain.ErrInvalidSubmission, domain.ErrDuplicateAnswer, a.QuestionID)
		}
		seen[a.QuestionID] = struct{}{}
		if a.AnswerText == "" && a.SelectedOption == "" {
			return fmt.Errorf("%w: %w: %s", domain.ErrInvalidSubmission, domain.ErrEmptyAnswer, a.QuestionID)
		}
		if a.HintsUsed < 0 {
			return fmt.Errorf("%w: %w: %s", domain.ErrInvalidSubmission, domain.ErrNegativeHints, a.QuestionID)
		}
	}
	return nil
}

// GradeSubmission grades every answer in submitted order and aggregates the
// result. The whole submission is rejected when any answer is invalid.
func (e *Engine) GradeSubmission(ctx context.Context, sub domain.Submission, questions []domain.Question) (domain.Evaluation, error) {
	if err := Validate(questions, sub.Answers); err != nil {
		return domain.Evaluation{}, err
	}
	index := indexQuestions(questions)
	graded := make([]domain.Answer, 0, len(sub.Answers))
	for _, a := range sub.Answers {
		graded = append(graded, e.GradeAnswer(ctx, a, index[a.QuestionID]))
	}
	sub.Answers = graded
	return e.aggregate(ctx, sub, questions, index), nil
}

// Evaluate aggregates a submission whose answers were graded individually.
func (e *Engine) Evaluate(ctx context.Context, sub domain.Submission, questions []domain.Question) (domain.Evaluation, error) {
	if err := Validate(questions, sub.Answers); err != nil {
		return domain.Evaluation{}, err
	}
	return e.aggregate(ctx, sub, questions, indexQuestions(questions)), nil
}

func (e *Engine) aggregate(ctx context.Context, sub domain.Submission, questions []domain.Question, index map[string]domain.Question) domain.Evaluation {
	earned := make([]float64, 0, len(sub.Answers))
	possible := make([]float64, 0, len(sub.Answers))
	byType := newBuckets[domain.QuestionType]()
	byDifficulty := newBuckets[domain.Difficulty]()
	byTopic := newBuckets[string]()
	correct := 0

	for _, a := range sub.Answers {
		q := index[a.QuestionID]
		earned = append(earned, a.PointsEarned)
		possible = append(possible, q.Points)
		if a.Correct() {
			correct++
		}
		if q.Points <= 0 {
			continue
		}
		ratio := a.PointsEarned / q.Points
		byType.add(q.Type, ratio)
		byDifficulty.add(q.Difficulty, ratio)
		if q.Topic != "" {
			byTopic.add(q.Topic, ratio)
		}
	}

	total := scoring.Sum(earned...)
	maxPossible := scoring.Sum(possible...)
	percentage := 0.0
	if maxPossible > 0 {
		percentage = scoring.Round(scoring.Clamp(total/maxPossible*100, 0, 100), 2)
	}

	eval := domain.Evaluation{
		ID:                  uuid.NewString(),
		SubmissionID:        sub.ID,
		TotalScore:          total,
		MaxPossibleScore:    maxPossible,
		Percentage:          percentage,
		CorrectAnswers:      correct,
		TotalQuestions:      len(questions),
		AnsweredQuestions:   len(sub.Answers),
		MultipleChoiceScore: byType.percentage(domain.QuestionMultipleChoice),
		TrueFalseScore:      byType.percentage(domain.QuestionTrueFalse),
		ShortAnswerScore:    byType.percentage(domain.QuestionShortAnswer),
		EssayScore:          byType.percentage(domain.QuestionEssay),
		EasyScore:           byDifficulty.percentage(domain.DifficultyEasy),
		MediumScore:         byDifficulty.percentage(domain.DifficultyMedium),
		HardScore:           byDifficulty.percentage(domain.DifficultyHard),
		PerformanceLevel:    Level(percentage),
		Answers:             sub.Answers,
		CreatedAt:           e.now(),
	}
	if !sub.StartedAt.IsZero() && sub.SubmittedAt.After(sub.StartedAt) {
		eval.TimeTaken = sub.SubmittedAt.Sub(sub.StartedAt)
	}

	var weakTopics []string
	for _, topic := range byTopic.order {
		pct := *byTopic.percentage(topic)
		eval.TopicScores = append(eval.TopicScores, domain.TopicScore{Topic: topic, Percentage: pct})
		if pct < weakTopic {
			weakTopics = append(weakTopics, topic)
		}
	}

	eval.Strengths, eval.Weaknesses = findings(byType, byDifficulty)

	typeScores := make(map[domain.QuestionType]float64)
	for _, t := range byType.order {
		typeScores[t] = *byType.percentage(t)
	}
	eval.Suggestions = e.suggest(ctx, PerformanceSummary{
		Percentage:     percentage,
		CorrectAnswers: correct,
		TotalQuestions: len(questions),
		Strengths:      eval.Strengths,
		Weaknesses:     eval.Weaknesses,
		WeakTopics:     weakTopics,
		TypeScores:     typeScores,
	})
	return eval
}

// Level maps a percentage onto a performance band.
func Level(percentage float64) domain.PerformanceLevel {
	switch {
	case percentage >= 90:
		return domain.PerformanceExcellent
	case percentage >= 75:
		return domain.PerformanceGood
	case percentage >= 60:
		return domain.PerformanceFair
	default:
		return domain.PerformancePoor
	}
}

func findings(byType *buckets[domain.QuestionType], byDifficulty *buckets[domain.Difficulty]) ([]string, []string) {
	var strengths, weaknesses []string
	for _, t := range domain.QuestionTypes {
		avg, ok := byType.average(t)
		if !ok {
			continue
		}
		if avg >= strongRatio {
			strengths = append(strengths, fmt.Sprintf("Strong performance on %s questions", t.Label()))
		} else if avg < weakRatio {
			weaknesses = append(weaknesses, fmt.Sprintf("Needs improvement on %s questions", t.Label()))
		}
	}
	for _, d := range domain.Difficulties {
		avg, ok := byDifficulty.average(d)
		if !ok {
			continue
		}
		if avg >= strongRatio {
			strengths = append(strengths, fmt.Sprintf("Excellent handling of %s questions", d))
		} else if avg < weakRatio {
			weaknesses = append(weaknesses, fmt.Sprintf("Struggles with %s questions", d))
		}
	}
	return capOrDefault(strengths, defaultStrength), capOrDefault(weaknesses, defaultWeakness)
}

func capOrDefault(items []string, fallback string) []string {
	if len(items) == 0 {
		return []string{fallback}
	}
	if len(items) > maxFindings {
		return items[:maxFindings]
	}
	return items
}

func (e *Engine) suggest(ctx context.Context, summary PerformanceSummary) []string {
	if e.advisor == nil {
		return append([]string(nil), genericSuggestions...)
	}
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()
	started := time.Now()
	raw, err := e.advisor.SuggestImprovements(callCtx, summary)
	e.metrics.ObserveAI("suggest_improvements", started, err)
	if err != nil {
		e.logger.Warn("suggestions fell back", zap.Error(err))
		e.metrics.GradingFallback("suggestions")
		return append([]string(nil), genericSuggestions...)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), genericSuggestions...)
	}
	for len(out) < minAdvice {
		out = append(out, paddingSuggestion)
	}
	return out
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.policy.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.policy.Timeout)
}

func indexQuestions(questions []domain.Question) map[string]domain.Question {
	index := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		index[q.ID] = q
	}
	return index
}
