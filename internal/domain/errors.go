package domain

import "errors"

var (
	// ErrDuplicateIdentity is returned when a player name is already connected.
	ErrDuplicateIdentity = errors.New("player name already in use")
	// ErrInvalidIdentity is returned for an empty player name.
	ErrInvalidIdentity = errors.New("invalid player name")
	// ErrPlayerNotFound is returned when a score operation names an unknown player.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrNoPlayers is returned when starting a quiz with nobody connected.
	ErrNoPlayers = errors.New("no players connected")
	// ErrNoQuestions is returned when starting a quiz without questions.
	ErrNoQuestions = errors.New("no questions loaded")
	// ErrQuizInProgress is returned for operations that require an idle session.
	ErrQuizInProgress = errors.New("quiz in progress")
	// ErrQuizNotRunning is returned when advancing a session that is idle or ended.
	ErrQuizNotRunning = errors.New("quiz not running")
	// ErrAnswersPending is returned when advancing before everyone answered without forcing.
	ErrAnswersPending = errors.New("not all players have answered")
	// ErrNoPendingGrading is returned when grading with an empty queue.
	ErrNoPendingGrading = errors.New("no pending answers to grade")
	// ErrTypeMismatch indicates an answer whose type differs from the active question.
	ErrTypeMismatch = errors.New("answer type does not match question type")
	// ErrTransportFailure wraps per-connection read/write errors.
	ErrTransportFailure = errors.New("transport failure")
	// ErrQuestionSetNotFound indicates the question source could not be found.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrInvalidQuestion indicates a record that breaks the question invariants.
	ErrInvalidQuestion = errors.New("invalid question")
)
