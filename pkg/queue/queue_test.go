package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client, nil), mr
}

func TestEnqueueDequeueEmail(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()
	logID := uuid.New()

	require.NoError(t, q.EnqueueEmail(ctx, EmailPayload{
		EmailLogID:     logID,
		EmailType:      "temporary_password",
		RecipientEmail: "a@x.com",
		Data:           map[string]string{"temporary_password": "s3cret"},
	}))

	n, err := q.Len(ctx, QueueEmails)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	job, err := q.Dequeue(ctx, QueueEmails, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeEmail, job.Type)
	assert.Equal(t, 0, job.Attempt)

	var payload EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &payload))
	assert.Equal(t, logID, payload.EmailLogID)
	assert.Equal(t, "s3cret", payload.Data["temporary_password"])
}

func TestDequeueSkipsGarbage(t *testing.T) {
	q, mr := setupQueue(t)
	_, err := mr.Lpush(QueueEmails, "not json")
	require.NoError(t, err)

	job, err := q.Dequeue(context.Background(), QueueEmails, time.Second)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetryMovesToDLQAfterMaxRetries(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()
	job := &Job{ID: "j1", Type: JobTypeEmail, Payload: json.RawMessage(`{}`)}

	for i := 1; i < MaxRetries; i++ {
		dead, err := q.Retry(ctx, QueueEmails, job)
		require.NoError(t, err)
		assert.False(t, dead)
	}
	dead, err := q.Retry(ctx, QueueEmails, job)
	require.NoError(t, err)
	assert.True(t, dead)
	assert.Equal(t, MaxRetries, job.Attempt)

	dlq, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	assert.Len(t, dlq, 1)
	pending, err := mr.List(QueueEmails)
	require.NoError(t, err)
	assert.Len(t, pending, MaxRetries-1)
}
