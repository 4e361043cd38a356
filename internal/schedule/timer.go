// Package schedule expires questions when their time limit runs out.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/event"
)

// Expirer is told when a question's time is up. seq identifies the
// question start that armed the deadline. *app.Session satisfies it.
type Expirer interface {
	ExpireQuestion(ctx context.Context, seq uint64)
}

// QuestionTimer arms one deadline per timed question and cancels it when
// the question completes, the quiz ends or restarts.
type QuestionTimer struct {
	target Expirer
	unit   time.Duration

	mu       sync.Mutex
	seq      uint64
	question int
	timer    *time.Timer
}

// NewQuestionTimer returns a timer that counts time limits in unit
// (time.Second in production).
func NewQuestionTimer(target Expirer, unit time.Duration) *QuestionTimer {
	if unit <= 0 {
		unit = time.Second
	}
	return &QuestionTimer{target: target, unit: unit}
}

func (t *QuestionTimer) Register(bus *event.Bus) {
	bus.SubscribeMany([]string{
		domain.EventNameQuestionStarted,
		domain.EventNameAllAnswered,
		domain.EventNameQuizEnded,
		domain.EventNameQuizRestarted,
	}, t.handle)
}

func (t *QuestionTimer) handle(ctx context.Context, e event.Event) error {
	switch e.(type) {
	case domain.EventQuestionStarted:
		return t.onQuestionStarted(ctx, e)
	case domain.EventAllAnswered:
		return t.onAllAnswered(ctx, e)
	default:
		return t.onStop(ctx, e)
	}
}

func (t *QuestionTimer) onQuestionStarted(ctx context.Context, e event.Event) error {
	ev, ok := e.(domain.EventQuestionStarted)
	if !ok {
		return fmt.Errorf("schedule: unexpected event %T", e)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.advanceLocked(ev.Seq) {
		return nil
	}
	t.stopLocked()
	if !ev.TimerMode || ev.TimeLimit <= 0 {
		return nil
	}

	number, seq := ev.QuestionNumber, ev.Seq
	t.question = number
	t.timer = time.AfterFunc(time.Duration(ev.TimeLimit)*t.unit, func() {
		slog.Info("schedule: question time is up", "question", number, "seq", seq)
		t.target.ExpireQuestion(context.Background(), seq)
	})
	slog.DebugContext(ctx, "schedule: question timer armed", "question", number, "limit", ev.TimeLimit)
	return nil
}

func (t *QuestionTimer) onAllAnswered(_ context.Context, e event.Event) error {
	ev, ok := e.(domain.EventAllAnswered)
	if !ok {
		return fmt.Errorf("schedule: unexpected event %T", e)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Seq == t.seq && ev.QuestionNumber == t.question {
		t.stopLocked()
	}
	return nil
}

func (t *QuestionTimer) onStop(_ context.Context, e event.Event) error {
	var seq uint64
	switch ev := e.(type) {
	case domain.EventQuizEnded:
		seq = ev.Seq
	case domain.EventQuizRestarted:
		seq = ev.Seq
	default:
		return fmt.Errorf("schedule: unexpected event %T", e)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.advanceLocked(seq) {
		t.stopLocked()
	}
	return nil
}

// Stop cancels any armed deadline.
func (t *QuestionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

// advanceLocked records seq and reports whether it is not older than the
// last event seen.
func (t *QuestionTimer) advanceLocked(seq uint64) bool {
	if seq < t.seq {
		return false
	}
	t.seq = seq
	return true
}

func (t *QuestionTimer) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.question = 0
}
