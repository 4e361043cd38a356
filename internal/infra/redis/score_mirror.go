package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/event"
)

// Notification is what the mirror publishes on the session channel.
type Notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ScoreMirror copies session scores and lifecycle into Redis so dashboards
// outside the process can follow a running quiz.
// Keys:
//
//	{prefix}:session:{id}:scores  hash player -> score
//	{prefix}:session:{id}:state   string
//	{prefix}:session:{id}         pub/sub channel of Notification
type ScoreMirror struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewScoreMirror(client *redis.Client, ttl time.Duration, prefix string) *ScoreMirror {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ScoreMirror{client: client, ttl: ttl, prefix: prefix}
}

// Register subscribes the mirror to the session events it copies. One
// subscription keeps the writes in session order.
func (m *ScoreMirror) Register(bus *event.Bus) {
	bus.SubscribeMany([]string{
		domain.EventNameScoresUpdated,
		domain.EventNameQuizEnded,
		domain.EventNameQuizRestarted,
		domain.EventNameQuestionStarted,
		domain.EventNamePlayerCountChanged,
	}, m.handle)
}

func (m *ScoreMirror) handle(ctx context.Context, e event.Event) error {
	switch e.(type) {
	case domain.EventScoresUpdated:
		return m.onScores(ctx, e)
	case domain.EventQuizEnded:
		return m.onEnded(ctx, e)
	case domain.EventQuizRestarted:
		return m.onRestarted(ctx, e)
	case domain.EventQuestionStarted:
		return m.onQuestion(ctx, e)
	case domain.EventPlayerCountChanged:
		return m.onPlayers(ctx, e)
	}
	return fmt.Errorf("redis: unexpected event %T", e)
}

func (m *ScoreMirror) onScores(ctx context.Context, e event.Event) error {
	ev, ok := e.(domain.EventScoresUpdated)
	if !ok {
		return fmt.Errorf("redis: unexpected event %T", e)
	}
	return m.writeScores(ctx, ev.SessionID, ev.Scores, e)
}

func (m *ScoreMirror) onEnded(ctx context.Context, e event.Event) error {
	ev, ok := e.(domain.EventQuizEnded)
	if !ok {
		return fmt.Errorf("redis: unexpected event %T", e)
	}
	if err := m.setState(ctx, ev.SessionID, domain.StateEnded); err != nil {
		return err
	}
	return m.writeScores(ctx, ev.SessionID, ev.Scores, e)
}

func (m *ScoreMirror) onRestarted(ctx context.Context, e event.Event) error {
	ev, ok := e.(domain.EventQuizRestarted)
	if !ok {
		return fmt.Errorf("redis: unexpected event %T", e)
	}
	if err := m.setState(ctx, ev.SessionID, domain.StateIdle); err != nil {
		return err
	}
	return m.notify(ctx, ev.SessionID, e)
}

func (m *ScoreMirror) onQuestion(ctx context.Context, e event.Event) error {
	ev, ok := e.(domain.EventQuestionStarted)
	if !ok {
		return fmt.Errorf("redis: unexpected event %T", e)
	}
	if err := m.setState(ctx, ev.SessionID, domain.StateQuestionActive); err != nil {
		return err
	}
	return m.notify(ctx, ev.SessionID, e)
}

func (m *ScoreMirror) onPlayers(ctx context.Context, e event.Event) error {
	ev, ok := e.(domain.EventPlayerCountChanged)
	if !ok {
		return fmt.Errorf("redis: unexpected event %T", e)
	}
	if !ev.Joined {
		if err := m.client.HDel(ctx, m.scoresKey(ev.SessionID), ev.Player).Err(); err != nil {
			return fmt.Errorf("redis: remove player score: %w", err)
		}
	}
	return m.notify(ctx, ev.SessionID, e)
}

// writeScores replaces the scores hash.
func (m *ScoreMirror) writeScores(ctx context.Context, sessionID string, scores domain.Scores, e event.Event) error {
	key := m.scoresKey(sessionID)
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(scores) > 0 {
			values := make(map[string]interface{}, len(scores))
			for player, score := range scores {
				values[player] = score
			}
			pipe.HSet(ctx, key, values)
		}
		if m.ttl > 0 {
			pipe.Expire(ctx, key, m.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: write scores: %w", err)
	}
	return m.notify(ctx, sessionID, e)
}

func (m *ScoreMirror) setState(ctx context.Context, sessionID string, state domain.SessionState) error {
	if err := m.client.Set(ctx, m.stateKey(sessionID), state.String(), m.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set state: %w", err)
	}
	return nil
}

func (m *ScoreMirror) notify(ctx context.Context, sessionID string, e event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(Notification{Event: e.Name(), Data: data})
	if err != nil {
		return err
	}
	if err := m.client.Publish(ctx, m.channel(sessionID), msg).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", e.Name(), err)
	}
	return nil
}

func (m *ScoreMirror) scoresKey(sessionID string) string {
	return m.channel(sessionID) + ":scores"
}

func (m *ScoreMirror) stateKey(sessionID string) string {
	return m.channel(sessionID) + ":state"
}

func (m *ScoreMirror) channel(sessionID string) string {
	return m.prefix + ":session:" + sessionID
}
