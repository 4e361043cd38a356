package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// AnswerTracker records who answered the active question and queues
// short-answer submissions for grading in submission order. Not safe for
// concurrent use.
type AnswerTracker struct {
	answered map[string]struct{}
	pending  []domain.PendingGrading
}

func NewAnswerTracker() *AnswerTracker {
	return &AnswerTracker{answered: make(map[string]struct{})}
}

// BeginQuestion clears the answered set and the grading queue.
func (t *AnswerTracker) BeginQuestion() {
	clear(t.answered)
	t.pending = nil
}

// Reset is BeginQuestion for the end of a quiz or a restart.
func (t *AnswerTracker) Reset() { t.BeginQuestion() }

// MarkAnswered records identity and reports whether it had already answered.
func (t *AnswerTracker) MarkAnswered(identity string) (alreadyAnswered bool) {
	if _, ok := t.answered[identity]; ok {
		return true
	}
	t.answered[identity] = struct{}{}
	return false
}

func (t *AnswerTracker) HasAnswered(identity string) bool {
	_, ok := t.answered[identity]
	return ok
}

// Answered returns the marked identities in sorted order. Marks of players
// who disconnected after answering are kept.
func (t *AnswerTracker) Answered() []string {
	ids := make([]string, 0, len(t.answered))
	for id := range t.answered {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AllAnswered reports whether every currently connected identity has
// answered. The live list is passed in because players may leave mid-question.
func (t *AnswerTracker) AllAnswered(connected []string) bool {
	for _, id := range connected {
		if _, ok := t.answered[id]; !ok {
			return false
		}
	}
	return true
}

func (t *AnswerTracker) EnqueueGrading(e domain.PendingGrading) {
	t.pending = append(t.pending, e)
}

// PeekGrading returns the oldest pending entry.
func (t *AnswerTracker) PeekGrading() (domain.PendingGrading, bool) {
	if len(t.pending) == 0 {
		return domain.PendingGrading{}, false
	}
	return t.pending[0], true
}

// ResolveGrading removes and returns the oldest pending entry.
func (t *AnswerTracker) ResolveGrading() (domain.PendingGrading, error) {
	if len(t.pending) == 0 {
		return domain.PendingGrading{}, domain.ErrNoPendingGrading
	}
	e := t.pending[0]
	t.pending[0] = domain.PendingGrading{}
	t.pending = t.pending[1:]
	return e, nil
}

func (t *AnswerTracker) PendingCount() int { return len(t.pending) }
