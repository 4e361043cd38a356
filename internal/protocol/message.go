// Package protocol defines the records exchanged between the quiz host and
// its players, and how they are framed on a byte stream.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"live-quiz-service/internal/domain"
)

// Outbound record types.
const (
	TypeQuestion      = "question"
	TypeScoreUpdate   = "score_update"
	TypeAnswerSummary = "answer_summary"
	TypeEnd           = "end"
	TypeRestart       = "restart"
	TypeError         = "error"
)

// ErrMalformed is returned for inbound records that cannot be decoded.
var ErrMalformed = errors.New("malformed message")

// Message is a host -> player record.
type Message struct {
	Type          string `json:"type"`
	Data          any    `json:"data,omitempty"`
	CorrectAnswer string `json:"correct_answer,omitempty"`
	TimerReset    bool   `json:"timer_reset,omitempty"`
	Message       string `json:"message,omitempty"`
}

// QuestionPayload is the data of a question record.
type QuestionPayload struct {
	Question       string              `json:"question"`
	Type           domain.QuestionKind `json:"type"`
	QuestionNumber int                 `json:"question_number"`
	TotalQuestions int                 `json:"total_questions"`
	TimerMode      bool                `json:"timer_mode"`
	Options        []string            `json:"options,omitempty"`
	TimeLimit      int                 `json:"time_limit,omitempty"`
	Image          string              `json:"image,omitempty"`
}

// NewQuestion builds the outbound question record. The correct answer of
// the question is never included.
func NewQuestion(q domain.Question, number, total int, timerMode bool, timeLimit int) Message {
	p := QuestionPayload{
		Question:       q.Text,
		Type:           q.Kind,
		QuestionNumber: number,
		TotalQuestions: total,
		TimerMode:      timerMode,
		Image:          q.Image,
	}
	if q.Kind == domain.KindMultipleChoice {
		p.Options = append([]string(nil), q.Options[:]...)
	}
	if timerMode {
		p.TimeLimit = timeLimit
	}
	return Message{Type: TypeQuestion, Data: p}
}

func NewScoreUpdate(scores domain.Scores) Message {
	return Message{Type: TypeScoreUpdate, Data: nonNil(scores)}
}

func NewAnswerSummary(correct string, scores domain.Scores) Message {
	return Message{Type: TypeAnswerSummary, CorrectAnswer: correct, Data: nonNil(scores)}
}

func NewEnd(scores domain.Scores) Message {
	return Message{Type: TypeEnd, Data: nonNil(scores)}
}

func NewRestart(scores domain.Scores) Message {
	return Message{Type: TypeRestart, Data: nonNil(scores), TimerReset: true}
}

func NewError(msg string) Message {
	return Message{Type: TypeError, Message: msg}
}

// Encode serializes m without a frame terminator.
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", m.Type, err)
	}
	return b, nil
}

type inboundAnswer struct {
	Type   domain.QuestionKind `json:"type"`
	Answer json.RawMessage     `json:"answer"`
}

// DecodeAnswer parses a player -> host answer record.
func DecodeAnswer(data []byte) (domain.Answer, error) {
	var in inboundAnswer
	if err := json.Unmarshal(data, &in); err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch in.Type {
	case domain.KindMultipleChoice:
		var choice int
		if err := json.Unmarshal(in.Answer, &choice); err != nil {
			return domain.Answer{}, fmt.Errorf("%w: multiple choice answer must be an integer", ErrMalformed)
		}
		return domain.Answer{Kind: in.Type, Choice: choice}, nil
	case domain.KindShortAnswer:
		var text string
		if err := json.Unmarshal(in.Answer, &text); err != nil {
			return domain.Answer{}, fmt.Errorf("%w: short answer must be a string", ErrMalformed)
		}
		return domain.Answer{Kind: in.Type, Text: text}, nil
	}
	return domain.Answer{}, fmt.Errorf("%w: unknown answer type %q", ErrMalformed, in.Type)
}

func nonNil(s domain.Scores) domain.Scores {
	if s == nil {
		return domain.Scores{}
	}
	return s
}
