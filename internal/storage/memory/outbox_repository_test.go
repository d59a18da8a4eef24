package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/artcart/internal/domain"
)

func notification(id, session string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: domain.AggregateCart,
		AggregateID:   session,
		EventType:     domain.EventCartNotification,
		Payload:       []byte(`{"title":"Cart cleared"}`),
	}
}

func TestOutboxRepository_EnqueueAssignsIDAndCopiesPayload(t *testing.T) {
	repo := NewOutboxRepository()

	msg := notification("", "session-1")
	saved, err := repo.Enqueue(msg)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	msg.Payload[0] = '['
	pending, err := repo.PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, saved.ID, pending[0].ID)
	require.JSONEq(t, `{"title":"Cart cleared"}`, string(pending[0].Payload))
}

func TestOutboxRepository_EnqueueValidation(t *testing.T) {
	repo := NewOutboxRepository()

	_, err := repo.Enqueue(domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "ORD-100001"})
	require.ErrorIs(t, err, domain.ErrOutboxEventTypeRequired)

	empty := notification("outbox-empty", "session-1")
	empty.Payload = nil
	saved, err := repo.Enqueue(empty)
	require.NoError(t, err)
	require.Equal(t, "null", string(saved.Payload))
}

func TestOutboxRepository_PullPendingKeepsEnqueueOrder(t *testing.T) {
	repo := NewOutboxRepository()
	for _, id := range []string{"c", "a", "b"} {
		_, err := repo.Enqueue(notification(id, "session-"+id))
		require.NoError(t, err)
	}

	pending, err := repo.PullPending(2)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "a"}, ids(pending))

	require.NoError(t, repo.MarkSent("c"))
	pending, err = repo.PullPending(0)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, ids(pending))
}

func TestOutboxRepository_Transitions(t *testing.T) {
	repo := NewOutboxRepository()
	_, err := repo.Enqueue(notification("sent", "session-1"))
	require.NoError(t, err)
	_, err = repo.Enqueue(notification("failed", "session-2"))
	require.NoError(t, err)

	require.NoError(t, repo.MarkSent("sent"))
	require.NoError(t, repo.MarkFailed("failed"))
	require.ErrorIs(t, repo.MarkFailed("missing"), domain.ErrOutboxPublish)

	require.Empty(t, repo.AllPending())
	require.Equal(t, 1, repo.entries["sent"].attempts)
	require.Equal(t, outboxFailed, repo.entries["failed"].status)
}

func TestOutboxRepository_Stats(t *testing.T) {
	repo := NewOutboxRepository()
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := base
	repo.now = func() time.Time { return clock }

	stats, err := repo.Stats()
	require.NoError(t, err)
	require.Equal(t, domain.OutboxStats{}, stats)

	_, err = repo.Enqueue(notification("first", "session-1"))
	require.NoError(t, err)
	clock = base.Add(time.Minute)
	_, err = repo.Enqueue(notification("second", "session-2"))
	require.NoError(t, err)

	stats, err = repo.Stats()
	require.NoError(t, err)
	require.Equal(t, domain.OutboxStats{PendingCount: 2, OldestPendingAt: base}, stats)

	require.NoError(t, repo.MarkSent("first"))
	stats, err = repo.Stats()
	require.NoError(t, err)
	require.Equal(t, domain.OutboxStats{PendingCount: 1, OldestPendingAt: base.Add(time.Minute)}, stats)
}

func ids(messages []domain.OutboxMessage) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg.ID)
	}
	return out
}
