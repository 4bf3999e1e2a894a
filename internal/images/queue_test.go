package images

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) *Queue {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client)
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{DeckID: "d1", SlideID: "s1", Prompt: "a skyline at dusk"}))

	job, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "s1", job.SlideID)
	assert.NotEmpty(t, job.ID)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestQueue_FIFOOrder(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, Job{SlideID: "first", Prompt: "p"}))
	require.NoError(t, q.Enqueue(ctx, Job{SlideID: "second", Prompt: "p"}))

	j1, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	j2, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "first", j1.SlideID)
	assert.Equal(t, "second", j2.SlideID)
}

func TestQueue_RequeueFailed(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	job := &Job{ID: "j1", SlideID: "s1", Prompt: "p"}
	require.NoError(t, q.MarkFailed(ctx, job))
	assert.Equal(t, 1, job.Attempts)

	moved, err := q.RequeueFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "j1", got.ID)
	assert.Equal(t, 1, got.Attempts)
}
