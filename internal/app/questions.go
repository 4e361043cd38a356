package app

import (
	"context"
	"fmt"

	"live-quiz-service/internal/domain"
)

// QuestionRepository loads question sets by reference (file path, database
// id) from a cache or backing store.
type QuestionRepository interface {
	GetQuestionSet(ctx context.Context, ref string) (domain.QuestionSet, error)
}

// QuizService wires question storage to the running session.
type QuizService struct {
	session   *Session
	questions QuestionRepository
}

func NewQuizService(session *Session, questions QuestionRepository) *QuizService {
	return &QuizService{session: session, questions: questions}
}

func (s *QuizService) Session() *Session { return s.session }

// LoadQuestions fetches the set named by ref and installs it on the session.
func (s *QuizService) LoadQuestions(ctx context.Context, ref string) (domain.QuestionSet, error) {
	set, err := s.questions.GetQuestionSet(ctx, ref)
	if err != nil {
		return domain.QuestionSet{}, fmt.Errorf("load question set %q: %w", ref, err)
	}
	if err := s.session.LoadQuestions(ctx, set); err != nil {
		return domain.QuestionSet{}, err
	}
	return set, nil
}
