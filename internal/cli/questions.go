package cli

import (
	"context"
	"fmt"
	"strings"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/importer"
)

// postgresRef marks a question reference stored in Postgres, e.g. "pg:geo-1".
const postgresRef = "pg:"

type setLoader interface {
	LoadQuestionSet(ctx context.Context, ref string) (domain.QuestionSet, error)
}

// questionSource resolves a reference to a database set or a question file.
// Files are read on every load so edits show up on the next reload; only
// database sets go through the TTL cache.
type questionSource struct {
	files    setLoader
	database app.QuestionRepository // nil without postgres
}

func (s questionSource) GetQuestionSet(ctx context.Context, ref string) (domain.QuestionSet, error) {
	if id, ok := strings.CutPrefix(ref, postgresRef); ok {
		if s.database == nil {
			return domain.QuestionSet{}, fmt.Errorf("%w: %s (postgres not configured)", domain.ErrQuestionSetNotFound, ref)
		}
		return s.database.GetQuestionSet(ctx, id)
	}
	return s.files.LoadQuestionSet(ctx, ref)
}

// shuffledQuestions reorders every set it hands out with a fixed seed.
type shuffledQuestions struct {
	next app.QuestionRepository
	seed int64
}

func (r shuffledQuestions) GetQuestionSet(ctx context.Context, ref string) (domain.QuestionSet, error) {
	set, err := r.next.GetQuestionSet(ctx, ref)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return domain.NewQuestionSet(set.ID(), importer.Shuffle(set.Questions(), r.seed)), nil
}
