// Package adaptive selects the next question of an adaptive quiz from the
// test-taker's rolling performance.
package adaptive

import (
	"sort"

	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/scoring"
)

// Policy holds the rolling window parameters.
type Policy struct {
	WindowSize int
	StepUp     float64
	StepDown   float64
}

func DefaultPolicy() Policy {
	return Policy{WindowSize: 3, StepUp: 0.8, StepDown: 0.4}
}

// Decision is the outcome of one next-question request.
type Decision struct {
	Question *domain.Question
	Complete bool
	Target   domain.Difficulty
	Progress domain.Progress
}

var fallbacks = map[domain.Difficulty][]domain.Difficulty{
	domain.DifficultyEasy:   {domain.DifficultyMedium, domain.DifficultyHard},
	domain.DifficultyMedium: {domain.DifficultyEasy, domain.DifficultyHard},
	domain.DifficultyHard:   {domain.DifficultyMedium, domain.DifficultyEasy},
}

// Next picks the next unanswered question. It is deterministic for a given
// question set and history.
func (p Policy) Next(questions []domain.Question, history []domain.Answer) Decision {
	progress := Progress(questions, history)
	target := p.Target(questions, history)

	answered := make(map[string]struct{}, len(history))
	for _, a := range history {
		answered[a.QuestionID] = struct{}{}
	}
	var unanswered []domain.Question
	for _, q := range questions {
		if _, ok := answered[q.ID]; !ok {
			unanswered = append(unanswered, q)
		}
	}
	if len(unanswered) == 0 {
		return Decision{Complete: true, Target: target, Progress: progress}
	}
	sort.SliceStable(unanswered, func(i, j int) bool { return unanswered[i].Order < unanswered[j].Order })

	pick := func(d domain.Difficulty) *domain.Question {
		for i := range unanswered {
			if unanswered[i].Difficulty == d {
				return &unanswered[i]
			}
		}
		return nil
	}

	next := pick(target)
	for _, d := range fallbacks[target] {
		if next != nil {
			break
		}
		next = pick(d)
	}
	if next == nil {
		next = &unanswered[0]
	}
	return Decision{Question: next, Target: target, Progress: progress}
}

// Target computes the difficulty to aim for from the most recent window of answers.
func (p Policy) Target(questions []domain.Question, history []domain.Answer) domain.Difficulty {
	window := p.WindowSize
	if window <= 0 {
		window = DefaultPolicy().WindowSize
	}
	if len(history) < window {
		return domain.DifficultyEasy
	}

	ordered := append([]domain.Answer(nil), history...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].CreatedAt.Before(ordered[j].CreatedAt) })
	recent := ordered[len(ordered)-window:]

	difficulty := make(map[string]domain.Difficulty, len(questions))
	for _, q := range questions {
		difficulty[q.ID] = q.Difficulty
	}

	correct := 0
	var seen []domain.Difficulty
	for _, a := range recent {
		if a.Correct() {
			correct++
		}
		if d, ok := difficulty[a.QuestionID]; ok && d.Valid() {
			seen = append(seen, d)
		}
	}

	current := mode(seen)
	ratio := float64(correct) / float64(window)
	switch {
	case ratio >= p.StepUp:
		return current.Harder()
	case ratio <= p.StepDown:
		return current.Easier()
	default:
		return current
	}
}

// mode returns the most frequent difficulty, ties going to the one seen first.
func mode(values []domain.Difficulty) domain.Difficulty {
	if len(values) == 0 {
		return domain.DifficultyEasy
	}
	counts := make(map[domain.Difficulty]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best := values[0]
	for _, v := range values {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

// Progress counts answers against the quiz. Unknown correctness counts as incorrect.
func Progress(questions []domain.Question, history []domain.Answer) domain.Progress {
	known := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		known[q.ID] = struct{}{}
	}
	p := domain.Progress{Total: len(questions)}
	counted := make(map[string]struct{}, len(history))
	for _, a := range history {
		if _, ok := known[a.QuestionID]; !ok {
			continue
		}
		if _, dup := counted[a.QuestionID]; dup {
			continue
		}
		counted[a.QuestionID] = struct{}{}
		p.Answered++
		if a.Correct() {
			p.Correct++
		}
	}
	p.Incorrect = p.Answered - p.Correct
	p.Remaining = p.Total - p.Answered
	if p.Total > 0 {
		p.PercentageComplete = scoring.Round(float64(p.Answered)/float64(p.Total)*100, 1)
	}
	return p
}
