package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

// QuestionSetRow is the question_sets table.
type QuestionSetRow struct {
	bun.BaseModel `bun:"table:question_sets"`

	ID        string          `bun:"id,pk"`
	Title     string          `bun:"title"`
	Data      json.RawMessage `bun:"data,type:jsonb"`
	CreatedAt time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time       `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Store writes question sets for later loading by id.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// Save inserts or replaces the set under its id.
func (s *Store) Save(ctx context.Context, title string, set domain.QuestionSet) error {
	if set.ID() == "" {
		return fmt.Errorf("save question set: empty id")
	}
	data, err := json.Marshal(set.Questions())
	if err != nil {
		return fmt.Errorf("marshal question set: %w", err)
	}

	row := &QuestionSetRow{
		ID:        set.ID(),
		Title:     title,
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}
	_, err = s.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save question set %s: %w", set.ID(), err)
	}
	return nil
}
