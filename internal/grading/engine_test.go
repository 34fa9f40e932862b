package grading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/scoring"
)

type stubGrader struct {
	mu     sync.Mutex
	scores map[string]float64
	err    error
	calls  int
}

func (g *stubGrader) GradeShortAnswer(_ context.Context, req ShortAnswerRequest) (ShortAnswerResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return ShortAnswerResult{}, g.err
	}
	return ShortAnswerResult{Score: g.scores[req.Question], Feedback: "graded", Confidence: 0.9}, nil
}

type blockingGrader struct{}

func (blockingGrader) GradeShortAnswer(ctx context.Context, _ ShortAnswerRequest) (ShortAnswerResult, error) {
	<-ctx.Done()
	return ShortAnswerResult{}, ctx.Err()
}

type stubAdvisor struct {
	suggestions []string
	err         error
	seen        PerformanceSummary
}

func (a *stubAdvisor) SuggestImprovements(_ context.Context, summary PerformanceSummary) ([]string, error) {
	a.seen = summary
	return a.suggestions, a.err
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "Pick B", Type: domain.QuestionMultipleChoice, Difficulty: domain.DifficultyEasy, Topic: "fractions", Order: 1, Points: 1, Options: []string{"A", "B"}, CorrectAnswer: "B"},
		{ID: "q2", Text: "Half is 0.5", Type: domain.QuestionTrueFalse, Difficulty: domain.DifficultyEasy, Topic: "fractions", Order: 2, Points: 1, Options: []string{"True", "False"}, CorrectAnswer: "True"},
		{ID: "q3", Text: "Name a three sided shape", Type: domain.QuestionShortAnswer, Difficulty: domain.DifficultyMedium, Topic: "geometry", Order: 3, Points: 2, CorrectAnswer: "triangle"},
		{ID: "q4", Text: "Explain the Pythagorean theorem", Type: domain.QuestionEssay, Difficulty: domain.DifficultyHard, Topic: "geometry", Order: 4, Points: 4, CorrectAnswer: "a^2 + b^2 = c^2 for right triangles"},
	}
}

func newEngine(grader ShortAnswerGrader, advisor Advisor) *Engine {
	return NewEngine(grader, advisor, DefaultPolicy())
}

func TestGradeAnswerObjective(t *testing.T) {
	e := newEngine(nil, nil)
	qs := sampleQuestions()

	got := e.GradeAnswer(context.Background(), domain.Answer{QuestionID: "q1", SelectedOption: " b "}, qs[0])
	assert.True(t, got.Correct())
	assert.Equal(t, 1.0, got.PointsEarned)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Empty(t, got.Feedback)

	got = e.GradeAnswer(context.Background(), domain.Answer{QuestionID: "q2", AnswerText: "yes"}, qs[1])
	assert.True(t, got.Correct(), "boolean synonym should match")

	got = e.GradeAnswer(context.Background(), domain.Answer{QuestionID: "q1", SelectedOption: "A"}, qs[0])
	assert.False(t, got.Correct())
	assert.Equal(t, 0.0, got.PointsEarned)
}

func TestGradeAnswerHintPenalty(t *testing.T) {
	e := newEngine(nil, nil)
	q := sampleQuestions()[0]

	got := e.GradeAnswer(context.Background(), domain.Answer{SelectedOption: "B", HintsUsed: 2}, q)
	assert.Equal(t, 0.8, got.PointsEarned)
	assert.True(t, got.Correct(), "penalty does not change correctness")

	got = e.GradeAnswer(context.Background(), domain.Answer{SelectedOption: "B", HintsUsed: 11}, q)
	assert.Equal(t, 0.0, got.PointsEarned, "penalty is floored at zero")
}

func TestGradeAnswerBlankSubjective(t *testing.T) {
	grader := &stubGrader{}
	e := newEngine(grader, nil)

	got := e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "   "}, sampleQuestions()[2])
	assert.False(t, got.Correct())
	assert.Equal(t, 0.0, got.PointsEarned)
	assert.Equal(t, "No answer provided", got.Feedback)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Zero(t, grader.calls)
}

func TestGradeAnswerShortCircuit(t *testing.T) {
	grader := &stubGrader{}
	e := newEngine(grader, nil)
	q := domain.Question{ID: "n", Text: "6 times 7", Type: domain.QuestionShortAnswer, Points: 2, CorrectAnswer: "42"}

	got := e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "The answer is 42.0"}, q)
	assert.True(t, got.Correct())
	assert.Equal(t, 2.0, got.PointsEarned)
	assert.Zero(t, grader.calls)

	got = e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "  TRIANGLE "}, sampleQuestions()[2])
	assert.True(t, got.Correct())
	assert.Zero(t, grader.calls)
}

func TestGradeAnswerShortCircuitDisabled(t *testing.T) {
	grader := &stubGrader{scores: map[string]float64{"Name a three sided shape": 2}}
	policy := DefaultPolicy()
	policy.ShortCircuit = false
	e := NewEngine(grader, nil, policy)

	got := e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "triangle"}, sampleQuestions()[2])
	assert.True(t, got.Correct())
	assert.Equal(t, 1, grader.calls)
}

func TestGradeAnswerClampsAIScore(t *testing.T) {
	q := sampleQuestions()[2]
	cases := []struct {
		score   float64
		points  float64
		correct bool
	}{
		{score: 5, points: 2, correct: true},
		{score: -1, points: 0, correct: false},
		{score: 1.1, points: 1.1, correct: false},
		{score: 1.2, points: 1.2, correct: true},
	}
	for _, tc := range cases {
		e := newEngine(&stubGrader{scores: map[string]float64{q.Text: tc.score}}, nil)
		got := e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "a polygon"}, q)
		assert.Equal(t, tc.points, got.PointsEarned, "score %v", tc.score)
		assert.Equal(t, tc.correct, got.Correct(), "score %v", tc.score)
	}
}

func TestGradeAnswerFallsBackOnError(t *testing.T) {
	e := newEngine(&stubGrader{err: errors.New("provider down")}, nil)

	got := e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "a polygon"}, sampleQuestions()[3])
	assert.False(t, got.Correct())
	assert.Equal(t, 2.0, got.PointsEarned)
	assert.Equal(t, "Automatic grading unavailable. Manual review may be needed.", got.Feedback)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestGradeAnswerFallsBackOnTimeout(t *testing.T) {
	policy := DefaultPolicy()
	policy.Timeout = 10 * time.Millisecond
	e := NewEngine(blockingGrader{}, nil, policy)

	got := e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "a polygon"}, sampleQuestions()[2])
	assert.Equal(t, 1.0, got.PointsEarned)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestGradeAnswerWithoutGrader(t *testing.T) {
	e := newEngine(nil, nil)
	got := e.GradeAnswer(context.Background(), domain.Answer{AnswerText: "a polygon"}, sampleQuestions()[2])
	assert.Equal(t, 1.0, got.PointsEarned)
	assert.False(t, got.Correct())
}

func TestGradeSubmissionRejectsInvalidInput(t *testing.T) {
	grader := &stubGrader{}
	e := newEngine(grader, nil)
	qs := sampleQuestions()

	_, err := e.GradeSubmission(context.Background(), domain.Submission{Answers: []domain.Answer{
		{QuestionID: "q3", AnswerText: "shape"},
		{QuestionID: "missing", AnswerText: "x"},
	}}, qs)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidSubmission)
	assert.ErrorIs(t, err, domain.ErrQuestionNotFound)
	assert.Zero(t, grader.calls, "nothing is graded when the submission is rejected")

	_, err = e.GradeSubmission(context.Background(), domain.Submission{Answers: []domain.Answer{
		{QuestionID: "q1", SelectedOption: "A"},
		{QuestionID: "q1", SelectedOption: "B"},
	}}, qs)
	assert.ErrorIs(t, err, domain.ErrDuplicateAnswer)

	_, err = e.GradeSubmission(context.Background(), domain.Submission{Answers: []domain.Answer{
		{QuestionID: "q1", SelectedOption: "A", HintsUsed: -1},
	}}, qs)
	assert.ErrorIs(t, err, domain.ErrNegativeHints)

	_, err = e.GradeSubmission(context.Background(), domain.Submission{Answers: []domain.Answer{
		{QuestionID: "q1"},
	}}, qs)
	assert.ErrorIs(t, err, domain.ErrEmptyAnswer)
}

func TestGradeSubmissionAggregates(t *testing.T) {
	qs := sampleQuestions()
	grader := &stubGrader{scores: map[string]float64{
		qs[2].Text: 0.5,
		qs[3].Text: 3.4,
	}}
	advisor := &stubAdvisor{suggestions: []string{"Practice geometry proofs"}}
	e := newEngine(grader, advisor)

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	eval, err := e.GradeSubmission(context.Background(), domain.Submission{
		ID:          "sub-1",
		StartedAt:   started,
		SubmittedAt: started.Add(7 * time.Minute),
		Answers: []domain.Answer{
			{QuestionID: "q1", SelectedOption: "B"},
			{QuestionID: "q2", AnswerText: "false"},
			{QuestionID: "q3", AnswerText: "a shape"},
			{QuestionID: "q4", AnswerText: "sides of right triangles relate"},
		},
	}, qs)
	require.NoError(t, err)

	points := make([]float64, 0, len(eval.Answers))
	for _, a := range eval.Answers {
		points = append(points, a.PointsEarned)
	}
	assert.Equal(t, scoring.Sum(points...), eval.TotalScore)
	assert.Equal(t, 4.9, eval.TotalScore)
	assert.Equal(t, 8.0, eval.MaxPossibleScore)
	assert.Equal(t, 61.25, eval.Percentage)
	assert.Equal(t, domain.PerformanceFair, eval.PerformanceLevel)
	assert.Equal(t, 2, eval.CorrectAnswers)
	assert.Equal(t, 4, eval.TotalQuestions)
	assert.Equal(t, 4, eval.AnsweredQuestions)
	assert.Equal(t, 7*time.Minute, eval.TimeTaken)

	require.NotNil(t, eval.MultipleChoiceScore)
	assert.Equal(t, 100.0, *eval.MultipleChoiceScore)
	assert.Equal(t, 0.0, *eval.TrueFalseScore)
	assert.Equal(t, 25.0, *eval.ShortAnswerScore)
	assert.Equal(t, 85.0, *eval.EssayScore)
	assert.Equal(t, 50.0, *eval.EasyScore)
	assert.Equal(t, 25.0, *eval.MediumScore)
	assert.Equal(t, 85.0, *eval.HardScore)

	assert.Equal(t, []domain.TopicScore{
		{Topic: "fractions", Percentage: 50},
		{Topic: "geometry", Percentage: 55},
	}, eval.TopicScores)

	assert.Equal(t, []string{
		"Strong performance on multiple choice questions",
		"Strong performance on essay questions",
		"Excellent handling of hard questions",
	}, eval.Strengths)
	assert.Equal(t, []string{
		"Needs improvement on true/false questions",
		"Needs improvement on short answer questions",
		"Struggles with easy questions",
	}, eval.Weaknesses)

	assert.Equal(t, []string{"fractions", "geometry"}, advisor.seen.WeakTopics)
	assert.Equal(t, []string{
		"Practice geometry proofs",
		"Continue practicing regularly to maintain and improve your skills.",
	}, eval.Suggestions)
}

func TestGradeSubmissionEmptyBucketsAreNil(t *testing.T) {
	e := newEngine(nil, nil)
	eval, err := e.GradeSubmission(context.Background(), domain.Submission{Answers: []domain.Answer{
		{QuestionID: "q1", SelectedOption: "B"},
	}}, sampleQuestions())
	require.NoError(t, err)

	assert.Nil(t, eval.TrueFalseScore)
	assert.Nil(t, eval.ShortAnswerScore)
	assert.Nil(t, eval.EssayScore)
	assert.Nil(t, eval.MediumScore)
	assert.Nil(t, eval.HardScore)
	assert.Equal(t, 100.0, eval.Percentage)
	assert.Equal(t, domain.PerformanceExcellent, eval.PerformanceLevel)
	assert.Equal(t, []string{"Overall performance is good with room for minor improvements"}, eval.Weaknesses)
	assert.Len(t, eval.Suggestions, 2)
}

func TestGradeSubmissionWithNoAnswers(t *testing.T) {
	e := newEngine(nil, nil)
	eval, err := e.GradeSubmission(context.Background(), domain.Submission{}, sampleQuestions())
	require.NoError(t, err)

	assert.Equal(t, 0.0, eval.Percentage)
	assert.Equal(t, domain.PerformancePoor, eval.PerformanceLevel)
	assert.Equal(t, []string{"Shows effort and engagement with the material"}, eval.Strengths)
	assert.Equal(t, 4, eval.TotalQuestions)
	assert.Zero(t, eval.AnsweredQuestions)
}

func TestSuggestionsFallBackOnAdvisorError(t *testing.T) {
	e := newEngine(nil, &stubAdvisor{err: errors.New("quota exceeded")})
	eval, err := e.GradeSubmission(context.Background(), domain.Submission{Answers: []domain.Answer{
		{QuestionID: "q1", SelectedOption: "B"},
	}}, sampleQuestions())
	require.NoError(t, err)
	assert.Len(t, eval.Suggestions, 2)
	assert.Equal(t, "Continue practicing regularly to maintain and improve your skills.", eval.Suggestions[1])
}

func TestEvaluateKeepsPreGradedAnswers(t *testing.T) {
	grader := &stubGrader{}
	e := newEngine(grader, nil)
	correct := true
	eval, err := e.Evaluate(context.Background(), domain.Submission{Answers: []domain.Answer{
		{QuestionID: "q3", AnswerText: "shape", IsCorrect: &correct, PointsEarned: 1.5},
	}}, sampleQuestions())
	require.NoError(t, err)
	assert.Equal(t, 1.5, eval.TotalScore)
	assert.Equal(t, 1, eval.CorrectAnswers)
	assert.Zero(t, grader.calls)
}

func TestLevelBoundaries(t *testing.T) {
	assert.Equal(t, domain.PerformanceExcellent, Level(90))
	assert.Equal(t, domain.PerformanceGood, Level(89.99))
	assert.Equal(t, domain.PerformanceGood, Level(75))
	assert.Equal(t, domain.PerformanceFair, Level(60))
	assert.Equal(t, domain.PerformancePoor, Level(59.99))
}
