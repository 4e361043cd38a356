package domain

// Lifecycle events (question started, all answered, ended, restarted) carry
// Seq, which grows with every question start, end and restart of a session.
// Handlers run concurrently, so consumers that care about order compare Seq.
const (
	EventNamePlayerCountChanged = "player.count_changed"
	EventNameScoresUpdated      = "scores.updated"
	EventNameQuestionStarted    = "question.started"
	EventNameAnswerRecorded     = "answer.recorded"
	EventNameAllAnswered        = "question.all_answered"
	EventNameQuizEnded          = "quiz.ended"
	EventNameQuizRestarted      = "quiz.restarted"
	EventNamePeerDropped        = "peer.dropped"
)

type EventPlayerCountChanged struct {
	SessionID string `json:"session_id"`
	Player    string `json:"player"`
	Joined    bool   `json:"joined"`
	Count     int    `json:"count"`
}

func (EventPlayerCountChanged) Name() string { return EventNamePlayerCountChanged }

type EventScoresUpdated struct {
	SessionID string `json:"session_id"`
	Scores    Scores `json:"scores"`
}

func (EventScoresUpdated) Name() string { return EventNameScoresUpdated }

type EventQuestionStarted struct {
	SessionID      string       `json:"session_id"`
	Seq            uint64       `json:"seq"`
	QuestionNumber int          `json:"question_number"`
	Total          int          `json:"total"`
	Kind           QuestionKind `json:"kind"`
	TimerMode      bool         `json:"timer_mode"`
	TimeLimit      int          `json:"time_limit"` // seconds
}

func (EventQuestionStarted) Name() string { return EventNameQuestionStarted }

// AnswerOutcome classifies a recorded answer.
type AnswerOutcome string

const (
	OutcomeCorrect   AnswerOutcome = "correct"
	OutcomeIncorrect AnswerOutcome = "incorrect"
	OutcomePending   AnswerOutcome = "pending"
	OutcomeRejected  AnswerOutcome = "rejected"
)

type EventAnswerRecorded struct {
	SessionID      string        `json:"session_id"`
	Player         string        `json:"player"`
	QuestionNumber int           `json:"question_number"`
	Outcome        AnswerOutcome `json:"outcome"`
}

func (EventAnswerRecorded) Name() string { return EventNameAnswerRecorded }

// EventAllAnswered fires once per question when every connected player has
// answered. For short answers GradingReady tells the host to start grading.
type EventAllAnswered struct {
	SessionID      string       `json:"session_id"`
	Seq            uint64       `json:"seq"`
	QuestionNumber int          `json:"question_number"`
	Kind           QuestionKind `json:"kind"`
	CorrectAnswer  string       `json:"correct_answer"`
	GradingReady   bool         `json:"grading_ready"`
	Scores         Scores       `json:"scores"`
}

func (EventAllAnswered) Name() string { return EventNameAllAnswered }

type EventQuizEnded struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
	Scores    Scores `json:"scores"`
}

func (EventQuizEnded) Name() string { return EventNameQuizEnded }

type EventQuizRestarted struct {
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
}

func (EventQuizRestarted) Name() string { return EventNameQuizRestarted }

type EventPeerDropped struct {
	SessionID string `json:"session_id"`
	Player    string `json:"player"`
	Reason    string `json:"reason"`
}

func (EventPeerDropped) Name() string { return EventNamePeerDropped }
