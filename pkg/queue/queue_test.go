package queue

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listRedis implements the list commands the queue uses; anything else panics on the nil embed.
type listRedis struct {
	redis.Cmdable
	mu    sync.Mutex
	lists map[string][]string
}

func newListRedis() *listRedis {
	return &listRedis{lists: map[string][]string{}}
}

func (r *listRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range values {
		switch x := v.(type) {
		case []byte:
			r.lists[key] = append(r.lists[key], string(x))
		case string:
			r.lists[key] = append(r.lists[key], x)
		}
	}
	return redis.NewIntResult(int64(len(r.lists[key])), nil)
}

func (r *listRedis) BLPop(_ context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		if l := r.lists[k]; len(l) > 0 {
			r.lists[k] = l[1:]
			return redis.NewStringSliceResult([]string{k, l[0]}, nil)
		}
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (r *listRedis) LLen(_ context.Context, key string) *redis.IntCmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return redis.NewIntResult(int64(len(r.lists[key])), nil)
}

func TestEnqueueDequeueEmail(t *testing.T) {
	q := NewQueue(newListRedis(), nil)
	payload := EmailPayload{
		EmailType:      EmailRegistrationConfirmed,
		EventID:        uuid.New(),
		RegistrationID: uuid.New(),
		RecipientEmail: "asha@adityauniversity.in",
		EventTitle:     "Hackathon",
	}
	require.NoError(t, q.EnqueueEmail(context.Background(), payload))

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, JobTypeEmail, job.Type)
	assert.Zero(t, job.Attempt)

	var got EmailPayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload, got)
}

func TestDequeue_EmptyAndInvalid(t *testing.T) {
	rdb := newListRedis()
	q := NewQueue(rdb, nil)

	job, err := q.Dequeue(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, job)

	rdb.lists[QueueEmails] = []string{"not json"}
	job, err = q.Dequeue(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestRetry_MovesToDLQAfterMaxRetries(t *testing.T) {
	rdb := newListRedis()
	q := NewQueue(rdb, nil)
	job, err := NewJob(JobTypeEmail, EmailPayload{EmailType: EmailRegistrationCancelled})
	require.NoError(t, err)

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(context.Background(), job))
		assert.Equal(t, i, job.Attempt)
		assert.Len(t, rdb.lists[QueueEmails], i)
	}
	require.NoError(t, q.Retry(context.Background(), job))
	assert.Equal(t, MaxRetries, job.Attempt)

	n, err := q.DeadLetterCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
