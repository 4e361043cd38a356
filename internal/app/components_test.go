package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"live-quiz-service/internal/domain"
)

type nopTransport struct{}

func (nopTransport) WriteMessage([]byte) error { return nil }
func (nopTransport) Close() error              { return nil }

func TestRegistryCount(t *testing.T) {
	r := NewRegistry()
	a := newPeer("Alice", nopTransport{}, 1, nil)
	b := newPeer("Bob", nopTransport{}, 1, nil)

	require.NoError(t, r.Register("Alice", a))
	require.NoError(t, r.Register("Bob", b))
	require.ErrorIs(t, r.Register("Alice", newPeer("Alice", nopTransport{}, 1, nil)), domain.ErrDuplicateIdentity)
	require.Equal(t, 2, r.Count())
	require.Equal(t, []string{"Alice", "Bob"}, r.Identities())
	require.Len(t, r.Peers(), 2)

	require.False(t, r.Unregister("Alice", newPeer("Alice", nopTransport{}, 1, nil)), "other connection")
	require.True(t, r.Unregister("Alice", a))
	require.False(t, r.Unregister("Alice", a))
	require.Equal(t, 1, r.Count())

	_, ok := r.Lookup("Bob")
	require.True(t, ok)
}

func TestRegistryBroadcastReportsFullQueues(t *testing.T) {
	r := NewRegistry()
	a := newPeer("Alice", nopTransport{}, 1, nil)
	b := newPeer("Bob", nopTransport{}, 2, nil)
	require.NoError(t, r.Register("Alice", a))
	require.NoError(t, r.Register("Bob", b))

	require.Empty(t, r.Broadcast([]byte("1")))
	failed := r.Broadcast([]byte("2"))
	require.Equal(t, []*Peer{a}, failed)

	b.close()
	require.Len(t, r.Broadcast([]byte("3")), 2)
}

func TestScoreBoard(t *testing.T) {
	b := NewScoreBoard()
	b.Add("Alice")
	require.True(t, b.Credit("Alice", 2))
	b.Add("Alice")
	require.Equal(t, domain.Scores{"Alice": 2}, b.Snapshot())

	require.False(t, b.Credit("Bob", 1))
	require.False(t, b.Set("Bob", 1))
	require.True(t, b.Set("Alice", -3))

	snap := b.Snapshot()
	snap["Alice"] = 100
	require.Equal(t, domain.Scores{"Alice": -3}, b.Snapshot())

	b.ResetAll()
	require.Equal(t, domain.Scores{"Alice": 0}, b.Snapshot())
	b.Remove("Alice")
	require.False(t, b.Has("Alice"))
}

func TestAnswerTracker(t *testing.T) {
	tr := NewAnswerTracker()
	require.True(t, tr.AllAnswered(nil))

	require.False(t, tr.MarkAnswered("Alice"))
	require.True(t, tr.MarkAnswered("Alice"))
	require.False(t, tr.AllAnswered([]string{"Alice", "Bob"}))
	require.True(t, tr.AllAnswered([]string{"Alice"}))

	tr.EnqueueGrading(domain.PendingGrading{Player: "Alice", Answer: "a"})
	tr.EnqueueGrading(domain.PendingGrading{Player: "Bob", Answer: "b"})
	head, ok := tr.PeekGrading()
	require.True(t, ok)
	require.Equal(t, "Alice", head.Player)

	got, err := tr.ResolveGrading()
	require.NoError(t, err)
	require.Equal(t, "Alice", got.Player)
	got, err = tr.ResolveGrading()
	require.NoError(t, err)
	require.Equal(t, "Bob", got.Player)
	_, err = tr.ResolveGrading()
	require.ErrorIs(t, err, domain.ErrNoPendingGrading)

	tr.EnqueueGrading(domain.PendingGrading{Player: "Carol"})
	tr.BeginQuestion()
	require.Zero(t, tr.PendingCount())
	require.Empty(t, tr.Answered())
}
