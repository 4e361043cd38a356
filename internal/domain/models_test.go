package domain_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

func TestQuestionValidate(t *testing.T) {
	tests := map[string]struct {
		build   func() (domain.Question, error)
		wantErr bool
	}{
		"valid multiple choice": {
			build: func() (domain.Question, error) {
				return domain.NewMultipleChoice("2+2?", [4]string{"3", "4", "5", "6"}, 1, "")
			},
		},
		"correct index out of range": {
			build: func() (domain.Question, error) {
				return domain.NewMultipleChoice("2+2?", [4]string{"3", "4", "5", "6"}, 4, "")
			},
			wantErr: true,
		},
		"missing option": {
			build: func() (domain.Question, error) {
				return domain.NewMultipleChoice("2+2?", [4]string{"3", "", "5", "6"}, 0, "")
			},
			wantErr: true,
		},
		"valid short answer": {
			build: func() (domain.Question, error) {
				return domain.NewShortAnswer("Capital of France?", "Paris", "")
			},
		},
		"short answer without expected answer": {
			build: func() (domain.Question, error) {
				return domain.NewShortAnswer("Capital of France?", " ", "")
			},
			wantErr: true,
		},
		"empty text": {
			build: func() (domain.Question, error) {
				return domain.NewShortAnswer("", "Paris", "")
			},
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.build()
			if tt.wantErr {
				require.True(t, errors.Is(err, domain.ErrInvalidQuestion), "got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestQuestionSetIsImmutable(t *testing.T) {
	q, err := domain.NewShortAnswer("Capital of France?", "Paris", "")
	require.NoError(t, err)

	records := []domain.Question{q}
	set := domain.NewQuestionSet("geo", records)
	records[0].Text = "changed"

	got, ok := set.At(0)
	require.True(t, ok)
	require.Equal(t, "Capital of France?", got.Text)

	copied := set.Questions()
	copied[0].Text = "changed again"
	got, _ = set.At(0)
	require.Equal(t, "Capital of France?", got.Text)

	_, ok = set.At(1)
	require.False(t, ok)
}

func TestQuestionSetJSON(t *testing.T) {
	mc, err := domain.NewMultipleChoice("2+2?", [4]string{"3", "4", "5", "6"}, 1, "aW1n")
	require.NoError(t, err)
	sa, err := domain.NewShortAnswer("Capital of France?", "Paris", "")
	require.NoError(t, err)

	data, err := json.Marshal(domain.NewQuestionSet("mixed", []domain.Question{mc, sa}))
	require.NoError(t, err)

	var decoded domain.QuestionSet
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "mixed", decoded.ID())
	require.Equal(t, []domain.Question{mc, sa}, decoded.Questions())
}

func TestEmptyAnswer(t *testing.T) {
	require.Equal(t, -1, domain.EmptyAnswer(domain.KindMultipleChoice).Choice)
	require.Equal(t, "", domain.EmptyAnswer(domain.KindShortAnswer).Text)
}
