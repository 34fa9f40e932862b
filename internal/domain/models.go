package domain

import (
	"sort"
	"time"
)

// QuestionType enumerates the supported answer formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
)

// QuestionTypes lists every type in reporting order.
var QuestionTypes = []QuestionType{QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay}

// Objective reports whether answers of this type are graded by exact comparison.
func (t QuestionType) Objective() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer, QuestionEssay:
		return true
	}
	return false
}

// Label is the human readable name used in feedback text.
func (t QuestionType) Label() string {
	switch t {
	case QuestionMultipleChoice:
		return "multiple choice"
	case QuestionTrueFalse:
		return "true/false"
	case QuestionShortAnswer:
		return "short answer"
	case QuestionEssay:
		return "essay"
	}
	return string(t)
}

// Difficulty is the ordered difficulty scale easy < medium < hard.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the scale in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Harder returns the next step up, saturating at hard.
func (d Difficulty) Harder() Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	default:
		return DifficultyHard
	}
}

// Easier returns the next step down, saturating at easy.
func (d Difficulty) Easier() Difficulty {
	switch d {
	case DifficultyHard:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

// Question is a single gradable item of a quiz.
type Question struct {
	ID            string       `json:"id"`
	QuizID        string       `json:"quizId"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Difficulty    Difficulty   `json:"difficulty"`
	Topic         string       `json:"topic,omitempty"`
	Order         int          `json:"order"`
	Points        float64      `json:"points"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	HintText      string       `json:"hintText,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// Public strips grading material before a question is shown to a test-taker.
func (q Question) Public() Question {
	q.CorrectAnswer = ""
	q.Explanation = ""
	q.HintText = ""
	return q
}

// Quiz groups questions for one subject and grade level.
type Quiz struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Subject    string     `json:"subject"`
	GradeLevel string     `json:"gradeLevel"`
	Adaptive   bool       `json:"adaptive"`
	Questions  []Question `json:"questions"`
}

// Question looks up a question by id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// Ordered returns the questions sorted by their order field.
func (q Quiz) Ordered() []Question {
	out := append([]Question(nil), q.Questions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Answer is one response to one question. The grading fields are populated
// by the grading engine.
type Answer struct {
	ID             string    `json:"id"`
	SubmissionID   string    `json:"submissionId"`
	QuestionID     string    `json:"questionId"`
	AnswerText     string    `json:"answerText,omitempty"`
	SelectedOption string    `json:"selectedOption,omitempty"`
	HintsUsed      int       `json:"hintsUsed"`
	CreatedAt      time.Time `json:"createdAt"`

	IsCorrect    *bool   `json:"isCorrect,omitempty"`
	PointsEarned float64 `json:"pointsEarned"`
	MaxPoints    float64 `json:"maxPoints"`
	Feedback     string  `json:"feedback,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// Response returns the selected option when present, otherwise the free text.
func (a Answer) Response() string {
	if a.SelectedOption != "" {
		return a.SelectedOption
	}
	return a.AnswerText
}

// Correct treats unknown correctness as incorrect.
func (a Answer) Correct() bool {
	return a.IsCorrect != nil && *a.IsCorrect
}

// Submission is one attempt of a user at a quiz.
type Submission struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	DisplayName string      `json:"displayName"`
	QuizID      string      `json:"quizId"`
	Completed   bool        `json:"isCompleted"`
	StartedAt   time.Time   `json:"startedAt"`
	SubmittedAt time.Time   `json:"submittedAt,omitempty"`
	Answers     []Answer    `json:"answers"`
	Evaluation  *Evaluation `json:"evaluation,omitempty"`
}

// Answered reports whether the submission already holds an answer for the question.
func (s Submission) Answered(questionID string) bool {
	for _, a := range s.Answers {
		if a.QuestionID == questionID {
			return true
		}
	}
	return false
}

// PerformanceLevel buckets a percentage into a coarse band.
type PerformanceLevel string

const (
	PerformanceExcellent PerformanceLevel = "excellent"
	PerformanceGood      PerformanceLevel = "good"
	PerformanceFair      PerformanceLevel = "fair"
	PerformancePoor      PerformanceLevel = "poor"
)

// TopicScore is the average percentage achieved on one topic.
type TopicScore struct {
	Topic      string  `json:"topic"`
	Percentage float64 `json:"percentage"`
}

// Evaluation is the immutable grading result of a submission. Bucket scores
// are nil when no answered question fell into the bucket.
type Evaluation struct {
	ID                string  `json:"id"`
	SubmissionID      string  `json:"submissionId"`
	TotalScore        float64 `json:"totalScore"`
	MaxPossibleScore  float64 `json:"maxPossibleScore"`
	Percentage        float64 `json:"percentage"`
	CorrectAnswers    int     `json:"correctAnswers"`
	TotalQuestions    int     `json:"totalQuestions"`
	AnsweredQuestions int     `json:"answeredQuestions"`

	MultipleChoiceScore *float64 `json:"multipleChoiceScore"`
	TrueFalseScore      *float64 `json:"trueFalseScore"`
	ShortAnswerScore    *float64 `json:"shortAnswerScore"`
	EssayScore          *float64 `json:"essayScore"`
	EasyScore           *float64 `json:"easyScore"`
	MediumScore         *float64 `json:"mediumScore"`
	HardScore           *float64 `json:"hardScore"`

	TopicScores      []TopicScore     `json:"topicScores"`
	Strengths        []string         `json:"strengths"`
	Weaknesses       []string         `json:"weaknesses"`
	Suggestions      []string         `json:"suggestions"`
	PerformanceLevel PerformanceLevel `json:"performanceLevel"`
	Answers          []Answer         `json:"answers"`
	TimeTaken        time.Duration    `json:"timeTaken"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// Progress summarises how far a test-taker is through a quiz.
type Progress struct {
	Total              int     `json:"total"`
	Answered           int     `json:"answered"`
	Remaining          int     `json:"remaining"`
	Correct            int     `json:"correct"`
	Incorrect          int     `json:"incorrect"`
	PercentageComplete float64 `json:"percentageComplete"`
}

// HintResult is returned when a hint is granted.
type HintResult struct {
	QuestionID string `json:"questionId"`
	Hint       string `json:"hint"`
	HintsUsed  int    `json:"hintsUsed"`
	Remaining  int    `json:"remainingHints"`
}
