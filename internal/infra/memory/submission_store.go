package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-assessment-service/internal/domain"
)

// SubmissionStore is an in-memory implementation of app.SubmissionRepository.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions map[string]*domain.Submission
	// active maps user+quiz to the open submission id.
	active map[activeKey]string
}

type activeKey struct {
	userID string
	quizID string
}

func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		submissions: make(map[string]*domain.Submission),
		active:      make(map[activeKey]string),
	}
}

func (s *SubmissionStore) Create(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.ID]; exists {
		return domain.ErrConflict
	}
	key := activeKey{userID: sub.UserID, quizID: sub.QuizID}
	if !sub.Completed {
		if _, open := s.active[key]; open {
			return domain.ErrConflict
		}
		s.active[key] = sub.ID
	}
	stored := cloneSubmission(sub)
	s.submissions[sub.ID] = &stored
	return nil
}

func (s *SubmissionStore) Get(_ context.Context, id string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(*sub), nil
}

func (s *SubmissionStore) FindActive(_ context.Context, userID, quizID string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[activeKey{userID: userID, quizID: quizID}]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return cloneSubmission(*s.submissions[id]), nil
}

func (s *SubmissionStore) AddAnswer(_ context.Context, submissionID string, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, err := s.openLocked(submissionID)
	if err != nil {
		return err
	}
	if sub.Answered(answer.QuestionID) {
		return domain.ErrDuplicateAnswer
	}
	answer.SubmissionID = submissionID
	sub.Answers = append(sub.Answers, answer)
	return nil
}

func (s *SubmissionStore) Complete(_ context.Context, submissionID string, eval domain.Evaluation, submittedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, err := s.openLocked(submissionID)
	if err != nil {
		return err
	}
	sub.Completed = true
	sub.SubmittedAt = submittedAt
	sub.Evaluation = &eval
	delete(s.active, activeKey{userID: sub.UserID, quizID: sub.QuizID})
	return nil
}

func (s *SubmissionStore) ListByUser(_ context.Context, userID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Submission
	for _, sub := range s.submissions {
		if sub.UserID == userID && sub.Completed {
			out = append(out, cloneSubmission(*sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *SubmissionStore) openLocked(id string) (*domain.Submission, error) {
	sub, ok := s.submissions[id]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	if sub.Completed {
		return nil, domain.ErrSubmissionCompleted
	}
	return sub, nil
}

func cloneSubmission(sub domain.Submission) domain.Submission {
	sub.Answers = append([]domain.Answer(nil), sub.Answers...)
	if sub.Evaluation != nil {
		eval := *sub.Evaluation
		sub.Evaluation = &eval
	}
	return sub
}
