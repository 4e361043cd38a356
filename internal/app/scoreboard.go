package app

import "live-quiz-service/internal/domain"

// ScoreBoard maps player identity to score. Scores may go negative through
// manual adjustment. Not safe for concurrent use.
type ScoreBoard struct {
	scores map[string]int
}

func NewScoreBoard() *ScoreBoard {
	return &ScoreBoard{scores: make(map[string]int)}
}

// Add starts tracking identity at 0; an existing entry is kept.
func (b *ScoreBoard) Add(identity string) {
	if _, ok := b.scores[identity]; !ok {
		b.scores[identity] = 0
	}
}

func (b *ScoreBoard) Has(identity string) bool {
	_, ok := b.scores[identity]
	return ok
}

// Credit adds delta and reports whether identity is tracked.
func (b *ScoreBoard) Credit(identity string, delta int) bool {
	if _, ok := b.scores[identity]; !ok {
		return false
	}
	b.scores[identity] += delta
	return true
}

// Set overwrites the score and reports whether identity is tracked.
func (b *ScoreBoard) Set(identity string, value int) bool {
	if _, ok := b.scores[identity]; !ok {
		return false
	}
	b.scores[identity] = value
	return true
}

func (b *ScoreBoard) ResetAll() {
	for id := range b.scores {
		b.scores[id] = 0
	}
}

func (b *ScoreBoard) Remove(identity string) {
	delete(b.scores, identity)
}

// Snapshot returns a point-in-time copy.
func (b *ScoreBoard) Snapshot() domain.Scores {
	out := make(domain.Scores, len(b.scores))
	for id, v := range b.scores {
		out[id] = v
	}
	return out
}
