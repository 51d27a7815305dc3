package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/relaydb/jobcore/internal/queue"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushPopFIFO(t *testing.T) {
	q := queue.New(2)
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, queue.Item{ExecutionID: "a"}))
	require.NoError(t, q.Push(ctx, queue.Item{ExecutionID: "b"}))

	item, ok := q.Pop(ctx, 100*time.Millisecond)
	require.True(t, ok)
	require.Equal(t, "a", item.ExecutionID)

	item, ok = q.Pop(ctx, 100*time.Millisecond)
	require.True(t, ok)
	require.Equal(t, "b", item.ExecutionID)
}

func TestQueue_PopTimesOutWhenEmpty(t *testing.T) {
	q := queue.New(1)
	_, ok := q.Pop(context.Background(), 20*time.Millisecond)
	require.False(t, ok)
}

func TestQueue_PushBlocksUntilCancelled(t *testing.T) {
	q := queue.New(1)
	require.NoError(t, q.Push(context.Background(), queue.Item{ExecutionID: "fills-capacity"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Push(ctx, queue.Item{ExecutionID: "overflow"})
	require.ErrorIs(t, err, queue.ErrOverflow)
}
