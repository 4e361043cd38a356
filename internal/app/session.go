package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/event"
	"live-quiz-service/internal/protocol"
)

const (
	defaultSendBuffer = 64
	defaultTimeLimit  = 30 // seconds
)

// Publisher receives session events. *event.Bus satisfies it. Publish is
// called under the session lock and must not block.
type Publisher interface {
	Publish(ctx context.Context, e event.Event)
}

type Config struct {
	// Publisher is optional; events are dropped when nil.
	Publisher Publisher
	// SendBuffer bounds each player's outbound queue.
	SendBuffer int
	TimerMode  bool
	TimeLimit  int // seconds
	Logger     *slog.Logger
}

// Session is one running quiz: the connected players, their scores and the
// question flow. A single mutex guards all of it; network writes happen on
// each peer's writer goroutine, never under the lock.
type Session struct {
	id         string
	pub        Publisher
	log        *slog.Logger
	sendBuffer int

	mu        sync.Mutex
	state     domain.SessionState
	questions domain.QuestionSet
	next      int // index of the next question to send; current is next-1
	seq       uint64
	timerMode bool
	timeLimit int
	registry  *Registry
	scores    *ScoreBoard
	tracker   *AnswerTracker
	stale     []*Peer
	outbox    []event.Event
}

func NewSession(cfg Config) *Session {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	limit := cfg.TimeLimit
	if limit <= 0 {
		limit = defaultTimeLimit
	}
	id := uuid.NewString()
	return &Session{
		id:         id,
		pub:        cfg.Publisher,
		log:        log.With("session", id),
		sendBuffer: cfg.SendBuffer,
		state:      domain.StateIdle,
		timerMode:  cfg.TimerMode,
		timeLimit:  limit,
		registry:   NewRegistry(),
		scores:     NewScoreBoard(),
		tracker:    NewAnswerTracker(),
	}
}

func (s *Session) ID() string { return s.id }

// GradeResult describes one resolved short answer.
type GradeResult struct {
	Graded   domain.PendingGrading `json:"graded"`
	Correct  bool                  `json:"correct"`
	Credited bool                  `json:"credited"`
	Next     *PendingReview        `json:"next,omitempty"`
	Scores   domain.Scores         `json:"scores"`
}

// PendingReview is the head of the grading queue as the host sees it.
type PendingReview struct {
	domain.PendingGrading
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer"`
	Remaining      int    `json:"remaining"`
}

// StateView is a point-in-time view for the host.
type StateView struct {
	SessionID      string              `json:"session_id"`
	State          domain.SessionState `json:"state"`
	QuestionSetID  string              `json:"question_set,omitempty"`
	QuestionNumber int                 `json:"question_number"`
	TotalQuestions int                 `json:"total_questions"`
	PlayerCount    int                 `json:"player_count"`
	Players        []string            `json:"players"`
	Answered       []string            `json:"answered"`
	Scores         domain.Scores       `json:"scores"`
	PendingGrading int                 `json:"pending_grading"`
	TimerMode      bool                `json:"timer_mode"`
	TimeLimit      int                 `json:"time_limit"`
}

// Join registers a player connection and starts its writer. The returned
// Peer must be passed to Leave when the receive side ends.
func (s *Session) Join(ctx context.Context, identity string, t Transport) (*Peer, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, domain.ErrInvalidIdentity
	}

	p := newPeer(identity, t, s.sendBuffer, func(p *Peer) {
		s.drop(context.WithoutCancel(ctx), p, "write failed")
	})

	err := s.locked(ctx, func() error {
		if err := s.registry.Register(identity, p); err != nil {
			return err
		}
		s.scores.Add(identity)
		s.emit(domain.EventPlayerCountChanged{
			SessionID: s.id,
			Player:    identity,
			Joined:    true,
			Count:     s.registry.Count(),
		})
		s.log.InfoContext(ctx, "session: player joined", "player", identity, "players", s.registry.Count())
		return nil
	})
	if err != nil {
		return nil, err
	}

	go p.writeLoop()
	return p, nil
}

// Leave removes a disconnected player. It is safe to call more than once.
func (s *Session) Leave(ctx context.Context, p *Peer) {
	s.drop(ctx, p, "")
}

func (s *Session) drop(ctx context.Context, p *Peer, reason string) {
	_ = s.locked(ctx, func() error {
		s.removeLocked(ctx, p, reason)
		return nil
	})
	p.close()
}

func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.Count()
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Scores() domain.Scores {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores.Snapshot()
}

// LoadQuestions replaces the question set. Only allowed while idle.
func (s *Session) LoadQuestions(ctx context.Context, set domain.QuestionSet) error {
	if err := set.Validate(); err != nil {
		return err
	}
	return s.locked(ctx, func() error {
		if s.state != domain.StateIdle {
			return domain.ErrQuizInProgress
		}
		s.questions = set
		s.next = 0
		s.log.InfoContext(ctx, "session: questions loaded", "set", set.ID(), "questions", set.Len())
		return nil
	})
}

// Start zeroes the scores and sends the first question.
func (s *Session) Start(ctx context.Context) error {
	return s.locked(ctx, func() error {
		switch {
		case s.state == domain.StateQuestionActive || s.state == domain.StateAllAnswered:
			return domain.ErrQuizInProgress
		case s.registry.Count() == 0:
			return domain.ErrNoPlayers
		case s.questions.Len() == 0:
			return domain.ErrNoQuestions
		}

		s.scores.ResetAll()
		s.tracker.Reset()
		s.next = 0
		s.broadcastScoresLocked(ctx)
		s.log.InfoContext(ctx, "session: quiz started", "players", s.registry.Count(), "questions", s.questions.Len())
		s.sendNextLocked(ctx)
		return nil
	})
}

// Advance moves to the next question, or ends the quiz when none is left.
// Without force it refuses while answers are still outstanding.
func (s *Session) Advance(ctx context.Context, force bool) error {
	return s.locked(ctx, func() error {
		switch s.state {
		case domain.StateIdle, domain.StateEnded:
			return domain.ErrQuizNotRunning
		case domain.StateQuestionActive:
			if !force {
				return domain.ErrAnswersPending
			}
			s.log.InfoContext(ctx, "session: advancing with answers pending",
				"question", s.next,
				"answered", len(s.tracker.Answered()),
				"players", s.registry.Count(),
			)
		}
		s.sendNextLocked(ctx)
		return nil
	})
}

// SubmitAnswer records a player's answer to the active question. Answers
// outside an active question, from unknown players, or repeated within the
// same question are ignored.
func (s *Session) SubmitAnswer(ctx context.Context, identity string, ans domain.Answer) error {
	return s.locked(ctx, func() error {
		return s.submitLocked(ctx, identity, ans)
	})
}

func (s *Session) submitLocked(ctx context.Context, identity string, ans domain.Answer) error {
	if s.state != domain.StateQuestionActive {
		s.log.DebugContext(ctx, "session: answer outside active question", "player", identity, "state", s.state)
		return nil
	}
	if _, ok := s.registry.Lookup(identity); !ok {
		s.log.DebugContext(ctx, "session: answer from unknown player", "player", identity)
		return nil
	}

	idx := s.next - 1
	q, _ := s.questions.At(idx)
	if ans.Kind != q.Kind {
		s.log.WarnContext(ctx, "session: answer type mismatch",
			"player", identity,
			"got", ans.Kind,
			"want", q.Kind,
		)
		s.emit(domain.EventAnswerRecorded{
			SessionID:      s.id,
			Player:         identity,
			QuestionNumber: s.next,
			Outcome:        domain.OutcomeRejected,
		})
		return fmt.Errorf("%w: got %s, question %d is %s", domain.ErrTypeMismatch, ans.Kind, s.next, q.Kind)
	}
	if s.tracker.HasAnswered(identity) {
		s.log.DebugContext(ctx, "session: repeated answer ignored", "player", identity, "question", s.next)
		return nil
	}

	var outcome domain.AnswerOutcome
	switch q.Kind {
	case domain.KindMultipleChoice:
		outcome = domain.OutcomeIncorrect
		if ans.Choice == q.CorrectIndex {
			outcome = domain.OutcomeCorrect
			s.scores.Credit(identity, 1)
			s.broadcastScoresLocked(ctx)
		}
	case domain.KindShortAnswer:
		outcome = domain.OutcomePending
		s.tracker.EnqueueGrading(domain.PendingGrading{
			Player:        identity,
			Answer:        ans.Text,
			QuestionIndex: idx,
		})
	}
	s.tracker.MarkAnswered(identity)
	s.emit(domain.EventAnswerRecorded{
		SessionID:      s.id,
		Player:         identity,
		QuestionNumber: s.next,
		Outcome:        outcome,
	})

	s.checkCompletionLocked(ctx)
	return nil
}

// GradeOne resolves the oldest pending short answer.
func (s *Session) GradeOne(ctx context.Context, correct bool) (GradeResult, error) {
	var res GradeResult
	err := s.locked(ctx, func() error {
		entry, err := s.tracker.ResolveGrading()
		if err != nil {
			return err
		}

		credited := false
		if correct {
			credited = s.scores.Credit(entry.Player, 1)
		}
		s.broadcastScoresLocked(ctx)

		res = GradeResult{
			Graded:   entry,
			Correct:  correct,
			Credited: credited,
			Scores:   s.scores.Snapshot(),
		}
		if next, ok := s.pendingReviewLocked(); ok {
			res.Next = &next
		}
		s.log.InfoContext(ctx, "session: answer graded", "player", entry.Player, "correct", correct, "remaining", s.tracker.PendingCount())
		return nil
	})
	return res, err
}

// PendingGrading returns the next short answer awaiting review.
func (s *Session) PendingGrading() (PendingReview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingReviewLocked()
}

func (s *Session) pendingReviewLocked() (PendingReview, bool) {
	entry, ok := s.tracker.PeekGrading()
	if !ok {
		return PendingReview{}, false
	}
	q, _ := s.questions.At(entry.QuestionIndex)
	return PendingReview{
		PendingGrading: entry,
		Question:       q.Text,
		ExpectedAnswer: q.ExpectedAnswer,
		Remaining:      s.tracker.PendingCount(),
	}, true
}

// Restart returns to idle from any state with all scores at zero.
func (s *Session) Restart(ctx context.Context) error {
	return s.locked(ctx, func() error {
		s.tracker.Reset()
		s.scores.ResetAll()
		s.next = 0
		s.state = domain.StateIdle
		s.seq++

		scores := s.scores.Snapshot()
		s.broadcastLocked(ctx, protocol.NewRestart(scores))
		s.emit(domain.EventQuizRestarted{SessionID: s.id, Seq: s.seq})
		s.emit(domain.EventScoresUpdated{SessionID: s.id, Scores: scores})
		s.log.InfoContext(ctx, "session: quiz restarted")
		return nil
	})
}

func (s *Session) AdjustScore(ctx context.Context, identity string, delta int) error {
	return s.locked(ctx, func() error {
		if !s.scores.Credit(identity, delta) {
			return fmt.Errorf("%w: %q", domain.ErrPlayerNotFound, identity)
		}
		s.broadcastScoresLocked(ctx)
		return nil
	})
}

func (s *Session) SetScore(ctx context.Context, identity string, value int) error {
	return s.locked(ctx, func() error {
		if !s.scores.Set(identity, value) {
			return fmt.Errorf("%w: %q", domain.ErrPlayerNotFound, identity)
		}
		s.broadcastScoresLocked(ctx)
		return nil
	})
}

// SetTimer changes timer mode for questions sent from now on. A
// non-positive limit falls back to the default.
func (s *Session) SetTimer(ctx context.Context, enabled bool, limit int) {
	if limit <= 0 {
		limit = defaultTimeLimit
	}
	_ = s.locked(ctx, func() error {
		s.timerMode = enabled
		s.timeLimit = limit
		return nil
	})
}

// TimeUp submits an empty answer for every connected player who has not
// answered the active question.
func (s *Session) TimeUp(ctx context.Context) {
	_ = s.locked(ctx, func() error {
		s.expireLocked(ctx, 0, false)
		return nil
	})
}

// ExpireQuestion is TimeUp restricted to the question announced with seq
// (EventQuestionStarted.Seq). It does nothing once the quiz has moved on,
// including across a restart that starts the same question number again.
func (s *Session) ExpireQuestion(ctx context.Context, seq uint64) {
	_ = s.locked(ctx, func() error {
		s.expireLocked(ctx, seq, true)
		return nil
	})
}

func (s *Session) expireLocked(ctx context.Context, seq uint64, matchSeq bool) {
	if s.state != domain.StateQuestionActive {
		return
	}
	if matchSeq && seq != s.seq {
		s.log.DebugContext(ctx, "session: stale deadline ignored", "deadline_seq", seq, "seq", s.seq, "question", s.next)
		return
	}

	q, _ := s.questions.At(s.next - 1)
	empty := domain.EmptyAnswer(q.Kind)
	for _, id := range s.registry.Identities() {
		if s.state != domain.StateQuestionActive {
			break
		}
		if s.tracker.HasAnswered(id) {
			continue
		}
		if err := s.submitLocked(ctx, id, empty); err != nil {
			s.log.ErrorContext(ctx, "session: submit timed out answer", "player", id, "error", err)
		}
	}
}

func (s *Session) Snapshot() StateView {
	s.mu.Lock()
	defer s.mu.Unlock()

	number := 0
	switch s.state {
	case domain.StateQuestionActive, domain.StateAllAnswered:
		number = s.next
	case domain.StateEnded:
		number = s.questions.Len()
	}
	return StateView{
		SessionID:      s.id,
		State:          s.state,
		QuestionSetID:  s.questions.ID(),
		QuestionNumber: number,
		TotalQuestions: s.questions.Len(),
		PlayerCount:    s.registry.Count(),
		Players:        s.registry.Identities(),
		Answered:       s.tracker.Answered(),
		Scores:         s.scores.Snapshot(),
		PendingGrading: s.tracker.PendingCount(),
		TimerMode:      s.timerMode,
		TimeLimit:      s.timeLimit,
	}
}

// locked runs fn under the session lock, drops peers that could not keep up
// and publishes the collected events. Publishing happens before unlock so
// subscribers see events in the order the session changed.
func (s *Session) locked(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := fn()
	s.reapLocked(ctx)
	events := s.outbox
	s.outbox = nil

	if s.pub != nil {
		for _, e := range events {
			s.pub.Publish(ctx, e)
		}
	}
	return err
}

func (s *Session) emit(e event.Event) {
	s.outbox = append(s.outbox, e)
}

func (s *Session) sendNextLocked(ctx context.Context) {
	total := s.questions.Len()
	s.seq++
	if s.next >= total {
		s.state = domain.StateEnded
		s.tracker.Reset()
		scores := s.scores.Snapshot()
		s.broadcastLocked(ctx, protocol.NewEnd(scores))
		s.emit(domain.EventQuizEnded{SessionID: s.id, Seq: s.seq, Scores: scores})
		s.log.InfoContext(ctx, "session: quiz ended", "scores", scores)
		return
	}

	q, _ := s.questions.At(s.next)
	s.tracker.BeginQuestion()
	s.next++
	s.state = domain.StateQuestionActive
	s.broadcastLocked(ctx, protocol.NewQuestion(q, s.next, total, s.timerMode, s.timeLimit))
	s.emit(domain.EventQuestionStarted{
		SessionID:      s.id,
		Seq:            s.seq,
		QuestionNumber: s.next,
		Total:          total,
		Kind:           q.Kind,
		TimerMode:      s.timerMode,
		TimeLimit:      s.timeLimit,
	})
	s.log.DebugContext(ctx, "session: question sent", "question", s.next, "total", total, "type", q.Kind)

	// A question sent to nobody is complete immediately.
	s.checkCompletionLocked(ctx)
}

// checkCompletionLocked moves to AllAnswered once every connected player has
// answered. It runs after each mutation that can complete a question.
func (s *Session) checkCompletionLocked(ctx context.Context) {
	if s.state != domain.StateQuestionActive {
		return
	}
	if !s.tracker.AllAnswered(s.registry.Identities()) {
		return
	}

	s.state = domain.StateAllAnswered
	q, _ := s.questions.At(s.next - 1)
	scores := s.scores.Snapshot()

	e := domain.EventAllAnswered{
		SessionID:      s.id,
		Seq:            s.seq,
		QuestionNumber: s.next,
		Kind:           q.Kind,
		Scores:         scores,
	}
	switch q.Kind {
	case domain.KindMultipleChoice:
		e.CorrectAnswer = q.CorrectOption()
		s.broadcastLocked(ctx, protocol.NewAnswerSummary(e.CorrectAnswer, scores))
	case domain.KindShortAnswer:
		e.CorrectAnswer = q.ExpectedAnswer
		e.GradingReady = true
	}
	s.emit(e)
	s.log.InfoContext(ctx, "session: all players answered", "question", s.next, "pending_grading", s.tracker.PendingCount())
}

func (s *Session) broadcastScoresLocked(ctx context.Context) {
	scores := s.scores.Snapshot()
	s.broadcastLocked(ctx, protocol.NewScoreUpdate(scores))
	s.emit(domain.EventScoresUpdated{SessionID: s.id, Scores: scores})
}

// broadcastLocked encodes m once and offers it to every peer. Peers that
// cannot take it are removed by reapLocked before the lock is released.
func (s *Session) broadcastLocked(ctx context.Context, m protocol.Message) {
	b, err := protocol.Encode(m)
	if err != nil {
		s.log.ErrorContext(ctx, "session: encode message", "type", m.Type, "error", err)
		return
	}
	s.stale = append(s.stale, s.registry.Broadcast(b)...)
}

// reapLocked removes peers that fell behind. Removing one may complete the
// active question and broadcast again, so it loops until nothing is left.
func (s *Session) reapLocked(ctx context.Context) {
	for len(s.stale) > 0 {
		p := s.stale[0]
		s.stale = s.stale[1:]
		s.removeLocked(ctx, p, "send queue full")
		p.close()
	}
}

func (s *Session) removeLocked(ctx context.Context, p *Peer, reason string) {
	if !s.registry.Unregister(p.identity, p) {
		return
	}
	s.scores.Remove(p.identity)
	s.emit(domain.EventPlayerCountChanged{
		SessionID: s.id,
		Player:    p.identity,
		Joined:    false,
		Count:     s.registry.Count(),
	})
	if reason != "" {
		s.emit(domain.EventPeerDropped{SessionID: s.id, Player: p.identity, Reason: reason})
		s.log.WarnContext(ctx, "session: peer dropped", "player", p.identity, "reason", reason)
	} else {
		s.log.InfoContext(ctx, "session: player left", "player", p.identity, "players", s.registry.Count())
	}

	s.checkCompletionLocked(ctx)
}
