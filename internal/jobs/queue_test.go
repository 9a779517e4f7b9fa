package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client), client
}

func queues(t *testing.T) map[string]Queue {
	redisQueue, _ := newRedisQueue(t)
	return map[string]Queue{
		"redis":  redisQueue,
		"memory": NewMemoryQueue(),
	}
}

func TestQueueClaimsOnlyDueJobs(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			due := NewJob(TypeAssignTechnician, "t1", now.Add(-time.Second))
			later := NewJob(TypeFollowUp, "t1", now.Add(time.Hour))
			require.NoError(t, q.Enqueue(ctx, due))
			require.NoError(t, q.Enqueue(ctx, later))

			claimed, err := q.Claim(ctx, now, 10, time.Minute)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			assert.Equal(t, due.ID, claimed[0].ID)
			assert.Equal(t, TypeAssignTechnician, claimed[0].Type)
			assert.Equal(t, "t1", claimed[0].TicketID)

			again, err := q.Claim(ctx, now, 10, time.Minute)
			require.NoError(t, err)
			assert.Empty(t, again)

			require.NoError(t, q.Ack(ctx, due.ID))
			reaped, err := q.ReapExpired(ctx, now.Add(2*time.Minute))
			require.NoError(t, err)
			assert.Zero(t, reaped)
		})
	}
}

func TestQueueReapsExpiredClaims(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := NewJob(TypeFollowUp, "t2", now)
			require.NoError(t, q.Enqueue(ctx, job))

			claimed, err := q.Claim(ctx, now, 1, 30*time.Second)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			reaped, err := q.ReapExpired(ctx, now.Add(10*time.Second))
			require.NoError(t, err)
			assert.Zero(t, reaped)

			reaped, err = q.ReapExpired(ctx, now.Add(time.Minute))
			require.NoError(t, err)
			assert.Equal(t, 1, reaped)

			claimed, err = q.Claim(ctx, now.Add(time.Minute), 1, 30*time.Second)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			assert.Equal(t, job.ID, claimed[0].ID)
		})
	}
}

func TestQueueRetryReschedules(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			job := NewJob(TypeAssignTechnician, "t3", now)
			require.NoError(t, q.Enqueue(ctx, job))
			claimed, err := q.Claim(ctx, now, 1, time.Minute)
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			retry := claimed[0]
			retry.Attempts++
			retry.LastError = "store unavailable"
			require.NoError(t, q.Retry(ctx, retry, now.Add(5*time.Second)))

			early, err := q.Claim(ctx, now.Add(time.Second), 1, time.Minute)
			require.NoError(t, err)
			assert.Empty(t, early)

			claimed, err = q.Claim(ctx, now.Add(5*time.Second), 1, time.Minute)
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			assert.Equal(t, 1, claimed[0].Attempts)
			assert.Equal(t, "store unavailable", claimed[0].LastError)
		})
	}
}

func TestRedisQueueSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	q, client := newRedisQueue(t)
	now := time.Now().UTC()
	job := NewJob(TypeFollowUp, "t4", now)
	require.NoError(t, q.Enqueue(ctx, job))

	reopened := NewRedisQueue(client)
	claimed, err := reopened.Claim(ctx, now.Add(time.Second), 5, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, job.ID, claimed[0].ID)
}

func TestBackoff(t *testing.T) {
	base := 2 * time.Second
	max := 30 * time.Second
	assert.Equal(t, 2*time.Second, Backoff(0, base, max))
	assert.Equal(t, 2*time.Second, Backoff(1, base, max))
	assert.Equal(t, 4*time.Second, Backoff(2, base, max))
	assert.Equal(t, 16*time.Second, Backoff(4, base, max))
	assert.Equal(t, max, Backoff(10, base, max))
}
