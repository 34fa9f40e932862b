package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quiz-assessment-service/internal/adaptive"
	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/grading"
	"quiz-assessment-service/internal/leaderboard"
	"quiz-assessment-service/internal/tutor"
)

const DefaultHintLimit = 3

// Dependencies are the collaborators of AssessmentService. Hinter may be nil,
// in which case only questions with stored hint text can be hinted.
type Dependencies struct {
	Quizzes     QuizRepository
	Catalog     QuizDeleter
	Submissions SubmissionRepository
	Hints       HintCounter
	Hinter      Hinter
	Engine      *grading.Engine
	Leaderboard *leaderboard.Aggregator
}

// AssessmentService contains the assessment use cases.
type AssessmentService struct {
	deps      Dependencies
	adaptive  adaptive.Policy
	hintLimit int
	hintReset bool
	logger    *zap.Logger
	now       func() time.Time
	feed      *feed
}

type Option func(*AssessmentService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *AssessmentService) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *AssessmentService) { s.now = now }
}

func WithAdaptivePolicy(p adaptive.Policy) Option {
	return func(s *AssessmentService) { s.adaptive = p }
}

func WithHintLimit(limit int) Option {
	return func(s *AssessmentService) { s.hintLimit = limit }
}

// WithHintReset enables ResetHints. Keep it off in production.
func WithHintReset(enabled bool) Option {
	return func(s *AssessmentService) { s.hintReset = enabled }
}

func NewAssessmentService(deps Dependencies, opts ...Option) *AssessmentService {
	s := &AssessmentService{
		deps:      deps,
		adaptive:  adaptive.DefaultPolicy(),
		hintLimit: DefaultHintLimit,
		logger:    zap.NewNop(),
		now:       time.Now,
		feed:      newFeed(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnswerInput is one answer as sent by a client.
type AnswerInput struct {
	QuestionID     string `json:"questionId"`
	AnswerText     string `json:"answerText,omitempty"`
	SelectedOption string `json:"selectedOption,omitempty"`
	HintsUsed      int    `json:"hintsUsed"`
}

// SubmitRequest is a complete, non-adaptive attempt.
type SubmitRequest struct {
	UserID      string
	DisplayName string
	QuizID      string
	StartedAt   time.Time
	Answers     []AnswerInput
}

// SubmitQuiz grades a whole attempt, stores it with its evaluation and then
// folds the result into the leaderboard.
func (s *AssessmentService) SubmitQuiz(ctx context.Context, req SubmitRequest) (domain.Evaluation, error) {
	quiz, err := s.deps.Quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		return domain.Evaluation{}, err
	}

	now := s.now()
	sub := domain.Submission{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		DisplayName: req.DisplayName,
		QuizID:      quiz.ID,
		StartedAt:   req.StartedAt,
		SubmittedAt: now,
		Answers:     make([]domain.Answer, 0, len(req.Answers)),
	}
	if sub.StartedAt.IsZero() {
		sub.StartedAt = now
	}
	for _, in := range req.Answers {
		answer, err := s.newAnswer(ctx, sub, in, now)
		if err != nil {
			return domain.Evaluation{}, err
		}
		sub.Answers = append(sub.Answers, answer)
	}

	eval, err := s.deps.Engine.GradeSubmission(ctx, sub, quiz.Questions)
	if err != nil {
		return domain.Evaluation{}, err
	}
	sub.Answers = eval.Answers
	sub.Completed = true
	sub.Evaluation = &eval
	if err := s.deps.Submissions.Create(ctx, sub); err != nil {
		return domain.Evaluation{}, fmt.Errorf("store submission: %w", err)
	}

	s.releaseHints(ctx, sub.UserID, quiz)
	s.logger.Info("submission graded",
		zap.String("quiz_id", quiz.ID),
		zap.String("submission_id", sub.ID),
		zap.String("user_id", sub.UserID),
		zap.Float64("percentage", eval.Percentage),
	)
	s.recordResult(ctx, quiz, sub, eval)
	return eval, nil
}

// NextResult is the outcome of an adaptive next-question request.
type NextResult struct {
	SubmissionID string            `json:"submissionId"`
	Question     *domain.Question  `json:"question,omitempty"`
	Complete     bool              `json:"complete"`
	Target       domain.Difficulty `json:"targetDifficulty"`
	Progress     domain.Progress   `json:"progress"`
}

// NextQuestion picks the next question of an adaptive quiz, opening a
// submission on first use.
func (s *AssessmentService) NextQuestion(ctx context.Context, userID, displayName, quizID string) (NextResult, error) {
	quiz, err := s.adaptiveQuiz(ctx, quizID)
	if err != nil {
		return NextResult{}, err
	}
	sub, err := s.deps.Submissions.FindActive(ctx, userID, quizID)
	if errors.Is(err, domain.ErrSubmissionNotFound) {
		sub = domain.Submission{
			ID:          uuid.NewString(),
			UserID:      userID,
			DisplayName: displayName,
			QuizID:      quizID,
			StartedAt:   s.now(),
		}
		err = s.deps.Submissions.Create(ctx, sub)
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent request opened the submission first.
			sub, err = s.deps.Submissions.FindActive(ctx, userID, quizID)
		}
	}
	if err != nil {
		return NextResult{}, err
	}

	decision := s.adaptive.Next(quiz.Questions, sub.Answers)
	result := NextResult{
		SubmissionID: sub.ID,
		Complete:     decision.Complete,
		Target:       decision.Target,
		Progress:     decision.Progress,
	}
	if decision.Question != nil {
		q := decision.Question.Public()
		result.Question = &q
	}
	return result, nil
}

// AnswerResult is the immediate feedback for one adaptive answer.
type AnswerResult struct {
	Answer      domain.Answer   `json:"answer"`
	Explanation string          `json:"explanation,omitempty"`
	Progress    domain.Progress `json:"progress"`
}

// AnswerAdaptive grades one answer of the open adaptive submission.
func (s *AssessmentService) AnswerAdaptive(ctx context.Context, userID, quizID string, in AnswerInput) (AnswerResult, error) {
	quiz, err := s.adaptiveQuiz(ctx, quizID)
	if err != nil {
		return AnswerResult{}, err
	}
	sub, err := s.deps.Submissions.FindActive(ctx, userID, quizID)
	if err != nil {
		return AnswerResult{}, err
	}
	question, ok := quiz.Question(in.QuestionID)
	if !ok {
		return AnswerResult{}, fmt.Errorf("%w: %w: %s", domain.ErrInvalidSubmission, domain.ErrQuestionNotFound, in.QuestionID)
	}
	if sub.Answered(question.ID) {
		return AnswerResult{}, fmt.Errorf("%w: %w: %s", domain.ErrInvalidSubmission, domain.ErrDuplicateAnswer, question.ID)
	}

	answer, err := s.newAnswer(ctx, sub, in, s.now())
	if err != nil {
		return AnswerResult{}, err
	}
	if err := grading.Validate(quiz.Questions, []domain.Answer{answer}); err != nil {
		return AnswerResult{}, err
	}
	graded := s.deps.Engine.GradeAnswer(ctx, answer, question)
	if err := s.deps.Submissions.AddAnswer(ctx, sub.ID, graded); err != nil {
		return AnswerResult{}, err
	}

	history := append(sub.Answers, graded)
	return AnswerResult{
		Answer:      graded,
		Explanation: question.Explanation,
		Progress:    adaptive.Progress(quiz.Questions, history),
	}, nil
}

// FinishAdaptive closes the open adaptive submission and evaluates it.
func (s *AssessmentService) FinishAdaptive(ctx context.Context, userID, quizID string) (domain.Evaluation, error) {
	quiz, err := s.adaptiveQuiz(ctx, quizID)
	if err != nil {
		return domain.Evaluation{}, err
	}
	sub, err := s.deps.Submissions.FindActive(ctx, userID, quizID)
	if err != nil {
		return domain.Evaluation{}, err
	}
	sub.SubmittedAt = s.now()

	eval, err := s.deps.Engine.Evaluate(ctx, sub, quiz.Questions)
	if err != nil {
		return domain.Evaluation{}, err
	}
	if err := s.deps.Submissions.Complete(ctx, sub.ID, eval, sub.SubmittedAt); err != nil {
		return domain.Evaluation{}, err
	}
	sub.Completed = true
	sub.Evaluation = &eval
	s.releaseHints(ctx, userID, quiz)

	s.logger.Info("adaptive submission finished",
		zap.String("quiz_id", quiz.ID),
		zap.String("submission_id", sub.ID),
		zap.String("user_id", userID),
		zap.Int("answered", eval.AnsweredQuestions),
	)
	s.recordResult(ctx, quiz, sub, eval)
	return eval, nil
}

// Status describes an open adaptive submission.
type Status struct {
	SubmissionID string            `json:"submissionId"`
	Target       domain.Difficulty `json:"targetDifficulty"`
	Progress     domain.Progress   `json:"progress"`
	Answers      []domain.Answer   `json:"answers"`
}

func (s *AssessmentService) AdaptiveStatus(ctx context.Context, userID, quizID string) (Status, error) {
	quiz, err := s.adaptiveQuiz(ctx, quizID)
	if err != nil {
		return Status{}, err
	}
	sub, err := s.deps.Submissions.FindActive(ctx, userID, quizID)
	if err != nil {
		return Status{}, err
	}
	return Status{
		SubmissionID: sub.ID,
		Target:       s.adaptive.Target(quiz.Questions, sub.Answers),
		Progress:     adaptive.Progress(quiz.Questions, sub.Answers),
		Answers:      sub.Answers,
	}, nil
}

// RequestHint grants one hint for a question, up to the configured limit
// per user and question within one attempt. Usage only counts when a hint
// is produced. A question already answered in the open adaptive submission
// cannot be hinted any more.
func (s *AssessmentService) RequestHint(ctx context.Context, userID, quizID, questionID string) (domain.HintResult, error) {
	quiz, err := s.deps.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.HintResult{}, err
	}
	question, ok := quiz.Question(questionID)
	if !ok {
		return domain.HintResult{}, domain.ErrQuestionNotFound
	}
	if err := s.checkUnanswered(ctx, userID, quizID, questionID); err != nil {
		return domain.HintResult{}, err
	}

	used, ok, err := s.deps.Hints.Acquire(ctx, userID, questionID, s.hintLimit)
	if err != nil {
		return domain.HintResult{}, fmt.Errorf("acquire hint: %w", err)
	}
	if !ok {
		return domain.HintResult{}, domain.ErrHintLimitReached
	}

	hint, err := s.hintFor(ctx, question)
	if err == nil {
		// The answer may have been graded while the hint was generated.
		err = s.checkUnanswered(ctx, userID, quizID, questionID)
	}
	if err != nil {
		if rerr := s.deps.Hints.Release(ctx, userID, questionID); rerr != nil {
			s.logger.Error("release hint reservation failed", zap.String("user_id", userID), zap.Error(rerr))
		}
		return domain.HintResult{}, err
	}

	return domain.HintResult{
		QuestionID: questionID,
		Hint:       hint,
		HintsUsed:  used,
		Remaining:  max(s.hintLimit-used, 0),
	}, nil
}

func (s *AssessmentService) checkUnanswered(ctx context.Context, userID, quizID, questionID string) error {
	sub, err := s.deps.Submissions.FindActive(ctx, userID, quizID)
	if errors.Is(err, domain.ErrSubmissionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if sub.Answered(questionID) {
		return domain.ErrQuestionAnswered
	}
	return nil
}

// releaseHints clears the attempt's hint counters once its evaluation is
// stored, so the next attempt starts from zero.
func (s *AssessmentService) releaseHints(ctx context.Context, userID string, quiz domain.Quiz) {
	for _, q := range quiz.Questions {
		if err := s.deps.Hints.Reset(ctx, userID, q.ID); err != nil {
			s.logger.Warn("reset hint counter failed",
				zap.String("user_id", userID),
				zap.String("question_id", q.ID),
				zap.Error(err),
			)
		}
	}
}

func (s *AssessmentService) hintFor(ctx context.Context, q domain.Question) (string, error) {
	if text := strings.TrimSpace(q.HintText); text != "" {
		return text, nil
	}
	if s.deps.Hinter == nil {
		return "", domain.ErrHintUnavailable
	}
	hint, err := s.deps.Hinter.Hint(ctx, tutor.HintRequest{
		Question:   q.Text,
		Type:       q.Type,
		Difficulty: q.Difficulty,
		Topic:      q.Topic,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrHintUnavailable, err)
	}
	if strings.TrimSpace(hint) == "" {
		return "", domain.ErrHintUnavailable
	}
	return hint, nil
}

// ResetHints clears the hint counter of one (user, question).
func (s *AssessmentService) ResetHints(ctx context.Context, userID, questionID string) error {
	if !s.hintReset {
		return domain.ErrHintResetDisabled
	}
	return s.deps.Hints.Reset(ctx, userID, questionID)
}

// DeleteQuiz removes a quiz and drops every cache that may still hold it.
func (s *AssessmentService) DeleteQuiz(ctx context.Context, quizID string) error {
	quiz, err := s.deps.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if err := s.deps.Catalog.DeleteQuiz(ctx, quizID); err != nil {
		return fmt.Errorf("delete quiz: %w", err)
	}
	if err := s.deps.Quizzes.Evict(ctx, quizID); err != nil {
		s.logger.Warn("evict quiz failed", zap.String("quiz_id", quizID), zap.Error(err))
	}
	if err := s.deps.Leaderboard.Invalidate(ctx, quiz.Subject, quiz.GradeLevel); err != nil {
		s.logger.Warn("invalidate leaderboard failed", zap.String("quiz_id", quizID), zap.Error(err))
	}
	s.publish(ctx, partition{subject: quiz.Subject, grade: quiz.GradeLevel})
	s.logger.Info("quiz deleted", zap.String("quiz_id", quizID))
	return nil
}

func (s *AssessmentService) GetLeaderboard(ctx context.Context, q leaderboard.Query) (domain.Leaderboard, error) {
	return s.deps.Leaderboard.GetLeaderboard(ctx, q)
}

func (s *AssessmentService) GetUserRank(ctx context.Context, userID, subject, grade string) (domain.UserRank, error) {
	return s.deps.Leaderboard.GetUserRank(ctx, userID, subject, grade)
}

// History lists a user's evaluations, newest first.
func (s *AssessmentService) History(ctx context.Context, userID string) ([]domain.Evaluation, error) {
	subs, err := s.deps.Submissions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Evaluation, 0, len(subs))
	for _, sub := range subs {
		if sub.Evaluation != nil {
			out = append(out, *sub.Evaluation)
		}
	}
	return out, nil
}

// SubscribeLeaderboard returns a channel that receives the default ranked
// view of a partition after every change. The caller must invoke the
// returned cancel function to avoid leaks.
func (s *AssessmentService) SubscribeLeaderboard(ctx context.Context, subject, grade string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := s.deps.Leaderboard.GetLeaderboard(ctx, leaderboard.Query{Subject: subject, GradeLevel: grade})
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.subscribe(partition{subject: subject, grade: grade}, initial)
	return ch, cancel, nil
}

func (s *AssessmentService) newAnswer(ctx context.Context, sub domain.Submission, in AnswerInput, at time.Time) (domain.Answer, error) {
	hints := in.HintsUsed
	if hints >= 0 {
		counted, err := s.deps.Hints.Count(ctx, sub.UserID, in.QuestionID)
		if err != nil {
			return domain.Answer{}, fmt.Errorf("count hints: %w", err)
		}
		hints = max(hints, counted)
	}
	return domain.Answer{
		ID:             uuid.NewString(),
		SubmissionID:   sub.ID,
		QuestionID:     in.QuestionID,
		AnswerText:     in.AnswerText,
		SelectedOption: in.SelectedOption,
		HintsUsed:      hints,
		CreatedAt:      at,
	}, nil
}

func (s *AssessmentService) adaptiveQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.deps.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if !quiz.Adaptive {
		return domain.Quiz{}, domain.ErrQuizNotAdaptive
	}
	if len(quiz.Questions) == 0 {
		return domain.Quiz{}, domain.ErrQuizEmpty
	}
	return quiz, nil
}

// recordResult updates the leaderboard after the evaluation is committed.
// Failures are logged; the submission itself has already succeeded.
func (s *AssessmentService) recordResult(ctx context.Context, quiz domain.Quiz, sub domain.Submission, eval domain.Evaluation) {
	_, err := s.deps.Leaderboard.UpdateOnSubmission(ctx, leaderboard.Update{
		UserID:      sub.UserID,
		DisplayName: sub.DisplayName,
		Subject:     quiz.Subject,
		GradeLevel:  quiz.GradeLevel,
		Evaluation:  eval,
		At:          sub.SubmittedAt,
	})
	if err != nil {
		s.logger.Error("leaderboard update failed",
			zap.String("submission_id", sub.ID),
			zap.String("user_id", sub.UserID),
			zap.String("subject", quiz.Subject),
			zap.String("grade", quiz.GradeLevel),
			zap.Error(err),
		)
	}
	s.publish(ctx, partition{subject: quiz.Subject, grade: quiz.GradeLevel})
}

func (s *AssessmentService) publish(ctx context.Context, p partition) {
	if !s.feed.watched(p) {
		return
	}
	lb, err := s.deps.Leaderboard.GetLeaderboard(ctx, leaderboard.Query{Subject: p.subject, GradeLevel: p.grade})
	if err != nil {
		s.logger.Warn("leaderboard refresh for subscribers failed",
			zap.String("subject", p.subject),
			zap.String("grade", p.grade),
			zap.Error(err),
		)
		return
	}
	s.feed.broadcast(p, lb)
}
