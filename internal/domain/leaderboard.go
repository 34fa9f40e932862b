package domain

import "time"

// RankingType selects the metric a leaderboard is ordered by.
type RankingType string

const (
	RankByBestPercentage RankingType = "best_percentage"
	RankByAverageScore   RankingType = "average_score"
	RankByActivity       RankingType = "activity_score"
	RankByTotalQuizzes   RankingType = "total_quizzes"
)

// ParseRankingType falls back to best percentage for unknown values.
func ParseRankingType(raw string) RankingType {
	switch RankingType(raw) {
	case RankByAverageScore, RankByActivity, RankByTotalQuizzes:
		return RankingType(raw)
	}
	return RankByBestPercentage
}

// LeaderboardEntry is the persisted aggregate of one user's results within a
// (subject, grade level) partition.
type LeaderboardEntry struct {
	UserID                 string    `json:"userId"`
	DisplayName            string    `json:"displayName"`
	Subject                string    `json:"subject"`
	GradeLevel             string    `json:"gradeLevel"`
	TotalQuizzes           int       `json:"totalQuizzes"`
	TotalQuestionsAnswered int       `json:"totalQuestionsAnswered"`
	TotalCorrectAnswers    int       `json:"totalCorrectAnswers"`
	BestScore              float64   `json:"bestScore"`
	BestPercentage         float64   `json:"bestPercentage"`
	AverageScore           float64   `json:"averageScore"`
	FirstQuizAt            time.Time `json:"firstQuizAt"`
	LastQuizAt             time.Time `json:"lastQuizAt"`
}

// Standing is an entry with its derived metrics and, once ranked, its position.
type Standing struct {
	LeaderboardEntry
	Rank          int     `json:"rank"`
	Accuracy      float64 `json:"accuracy"`
	ActivityScore float64 `json:"activityScore"`
}

// Leaderboard is a ranked view of one partition.
type Leaderboard struct {
	Subject    string      `json:"subject"`
	GradeLevel string      `json:"gradeLevel"`
	Ranking    RankingType `json:"ranking"`
	Entries    []Standing  `json:"entries"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// UserRank places one user within a partition.
type UserRank struct {
	UserID            string   `json:"userId"`
	Subject           string   `json:"subject"`
	GradeLevel        string   `json:"gradeLevel"`
	Rank              int      `json:"rank"`
	TotalParticipants int      `json:"totalParticipants"`
	Percentile        float64  `json:"percentile"`
	Standing          Standing `json:"standing"`
	ScoreGapToLeader  *float64 `json:"scoreGapToLeader,omitempty"`
}
