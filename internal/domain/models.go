package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionKind discriminates the two question variants. The values double as
// the wire "type" of questions and answers.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindShortAnswer    QuestionKind = "short_answer"
)

// OptionCount is the fixed number of options of a multiple-choice question.
const OptionCount = 4

// Question is one immutable question record. Exactly one of the variant
// fields is meaningful, depending on Kind.
type Question struct {
	Kind  QuestionKind `json:"type"`
	Text  string       `json:"question"`
	Image string       `json:"image,omitempty"` // already encoded, opaque

	// multiple choice
	Options      [OptionCount]string `json:"options,omitempty"`
	CorrectIndex int                 `json:"correct,omitempty"`

	// short answer
	ExpectedAnswer string `json:"answer,omitempty"`
}

// NewMultipleChoice builds a validated multiple-choice question.
func NewMultipleChoice(text string, options [OptionCount]string, correctIndex int, image string) (Question, error) {
	q := Question{
		Kind:         KindMultipleChoice,
		Text:         text,
		Image:        image,
		Options:      options,
		CorrectIndex: correctIndex,
	}
	return q, q.Validate()
}

// NewShortAnswer builds a validated short-answer question.
func NewShortAnswer(text, expected, image string) (Question, error) {
	q := Question{
		Kind:           KindShortAnswer,
		Text:           text,
		Image:          image,
		ExpectedAnswer: expected,
	}
	return q, q.Validate()
}

// Validate checks the variant invariants.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty question text", ErrInvalidQuestion)
	}
	switch q.Kind {
	case KindMultipleChoice:
		if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
			return fmt.Errorf("%w: correct index %d out of range", ErrInvalidQuestion, q.CorrectIndex)
		}
		for i, opt := range q.Options {
			if strings.TrimSpace(opt) == "" {
				return fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i+1)
			}
		}
	case KindShortAnswer:
		if strings.TrimSpace(q.ExpectedAnswer) == "" {
			return fmt.Errorf("%w: empty expected answer", ErrInvalidQuestion)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, q.Kind)
	}
	return nil
}

// CorrectOption returns the text of the correct option, or "" for short answers.
func (q Question) CorrectOption() string {
	if q.Kind != KindMultipleChoice {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// QuestionSet is an ordered, immutable sequence of questions.
type QuestionSet struct {
	id        string
	questions []Question
}

// NewQuestionSet copies questions so later changes to the slice do not leak in.
func NewQuestionSet(id string, questions []Question) QuestionSet {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return QuestionSet{id: id, questions: qs}
}

func (s QuestionSet) ID() string { return s.id }

func (s QuestionSet) Len() int { return len(s.questions) }

// At returns the question at index i.
func (s QuestionSet) At(i int) (Question, bool) {
	if i < 0 || i >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[i], true
}

// Questions returns a copy of the records.
func (s QuestionSet) Questions() []Question {
	qs := make([]Question, len(s.questions))
	copy(qs, s.questions)
	return qs
}

// Validate checks every record.
func (s QuestionSet) Validate() error {
	for i, q := range s.questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}

type questionSetJSON struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

func (s QuestionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(questionSetJSON{ID: s.id, Questions: s.questions})
}

func (s *QuestionSet) UnmarshalJSON(data []byte) error {
	var raw questionSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewQuestionSet(raw.ID, raw.Questions)
	return nil
}

// Answer is a decoded player submission.
type Answer struct {
	Kind   QuestionKind
	Choice int    // multiple choice, zero-based; -1 means no answer
	Text   string // short answer
}

// EmptyAnswer is what a player implicitly submits when the time runs out.
func EmptyAnswer(kind QuestionKind) Answer {
	if kind == KindMultipleChoice {
		return Answer{Kind: kind, Choice: -1}
	}
	return Answer{Kind: kind}
}

// PendingGrading is a short-answer submission awaiting the host's verdict.
type PendingGrading struct {
	Player        string `json:"player"`
	Answer        string `json:"answer"`
	QuestionIndex int    `json:"question_index"`
}

// SessionState is the phase of the question lifecycle.
type SessionState int

const (
	StateIdle SessionState = iota
	StateQuestionActive
	StateAllAnswered
	StateEnded
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQuestionActive:
		return "question_active"
	case StateAllAnswered:
		return "all_answered"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(text []byte) error {
	for _, st := range []SessionState{StateIdle, StateQuestionActive, StateAllAnswered, StateEnded} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Scores maps player identity to score.
type Scores map[string]int
