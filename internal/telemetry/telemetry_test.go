package telemetry

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/event"
)

func TestMetricsFollowEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	bus := event.NewBus()
	m.Register(bus)

	for _, e := range []event.Event{
		domain.EventPlayerCountChanged{Player: "Alice", Joined: true, Count: 1},
		domain.EventPlayerCountChanged{Player: "Bob", Joined: true, Count: 2},
		domain.EventQuestionStarted{Kind: domain.KindMultipleChoice},
		domain.EventAnswerRecorded{Outcome: domain.OutcomeCorrect},
		domain.EventAnswerRecorded{Outcome: domain.OutcomeRejected},
		domain.EventPeerDropped{Reason: "send queue full"},
		domain.EventQuizEnded{},
	} {
		bus.Publish(ctx, e)
	}
	bus.Stop()

	require.Equal(t, 2.0, testutil.ToFloat64(m.players))
	require.Equal(t, 1.0, testutil.ToFloat64(m.questions.WithLabelValues("multiple_choice")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("correct")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.answers.WithLabelValues("rejected")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("send queue full")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.lifecycle.WithLabelValues(domain.EventNameQuizEnded)))
}

func TestPlayersGaugeKeepsLastCount(t *testing.T) {
	ctx := context.Background()
	m := NewMetrics(prometheus.NewRegistry())
	bus := event.NewBus()
	m.Register(bus)

	for i := 1; i <= 200; i++ {
		bus.Publish(ctx, domain.EventPlayerCountChanged{Joined: true, Count: i})
	}
	bus.Publish(ctx, domain.EventPlayerCountChanged{Joined: false, Count: 199})
	bus.Stop()

	require.Equal(t, 199.0, testutil.ToFloat64(m.players))
}

func TestMonitorRedisKeepsCommandsWorking(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	MonitorRedis(client)

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	got, err := client.Get(ctx, "k").Result()
	require.NoError(t, err)
	require.Equal(t, "v", got)

	_, err = client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, "n")
		p.Incr(ctx, "n")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "2", mustGet(t, mr, "n"))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
