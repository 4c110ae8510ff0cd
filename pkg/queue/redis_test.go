package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadJob = errors.New("bad job")

type recordingHandler struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (h *recordingHandler) Topic() string { return "jobs" }

func (h *recordingHandler) Handle(_ context.Context, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, string(payload))
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func newQueue(t *testing.T, opts ...Option) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	opts = append([]Option{WithKeyPrefix("test"), WithPermanent(func(err error) bool { return errors.Is(err, errBadJob) })}, opts...)
	return NewRedisQueue(rdb, opts...), mr
}

// pop takes the next queued message the way a worker would.
func pop(t *testing.T, mr *miniredis.Miniredis, topic string) string {
	t.Helper()
	raw, err := mr.Lpop("test:" + topic + ":messages")
	require.NoError(t, err)
	return raw
}

func TestPublishWrapsPayload(t *testing.T) {
	ctx := context.Background()
	q, mr := newQueue(t)

	require.NoError(t, q.Publish(ctx, "jobs", []byte("AAPL"), map[string]string{"id": "j1"}))

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(pop(t, mr, "jobs")), &msg))
	assert.Equal(t, "jobs", msg.Topic)
	assert.Equal(t, "AAPL", msg.Key)
	assert.JSONEq(t, `{"id":"j1"}`, string(msg.Payload))
	assert.NotEmpty(t, msg.ID)
}

func TestTransientFailureIsRetriedLater(t *testing.T) {
	ctx := context.Background()
	q, mr := newQueue(t, WithRetry(2, time.Minute))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return now }
	h := &recordingHandler{err: errors.New("provider down")}

	require.NoError(t, q.Publish(ctx, "jobs", nil, []byte(`{"id":"j1"}`)))
	q.process(ctx, h, pop(t, mr, "jobs"))

	queued, retrying, dead, err := q.Pending(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, [3]int64{0, 1, 0}, [3]int64{queued, retrying, dead})

	// not due yet
	q.moveDueRetries(ctx, "jobs")
	_, retrying, _, _ = q.Pending(ctx, "jobs")
	assert.EqualValues(t, 1, retrying)

	now = now.Add(2 * time.Minute)
	q.moveDueRetries(ctx, "jobs")
	queued, retrying, _, _ = q.Pending(ctx, "jobs")
	assert.EqualValues(t, 1, queued)
	assert.EqualValues(t, 0, retrying)

	var msg Message
	raw := pop(t, mr, "jobs")
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, 1, msg.Attempts)
	assert.Equal(t, "provider down", msg.LastError)
}

func TestExhaustedRetriesAreDeadLettered(t *testing.T) {
	ctx := context.Background()
	q, mr := newQueue(t, WithRetry(0, time.Second))
	h := &recordingHandler{err: errors.New("still down")}

	require.NoError(t, q.Publish(ctx, "jobs", nil, []byte(`{}`)))
	q.process(ctx, h, pop(t, mr, "jobs"))

	_, retrying, dead, err := q.Pending(ctx, "jobs")
	require.NoError(t, err)
	assert.EqualValues(t, 0, retrying)
	assert.EqualValues(t, 1, dead)
}

func TestPermanentFailureSkipsRetry(t *testing.T) {
	ctx := context.Background()
	q, mr := newQueue(t, WithRetry(5, time.Second))
	h := &recordingHandler{err: errBadJob}

	require.NoError(t, q.Publish(ctx, "jobs", nil, []byte(`{}`)))
	q.process(ctx, h, pop(t, mr, "jobs"))

	_, retrying, dead, err := q.Pending(ctx, "jobs")
	require.NoError(t, err)
	assert.EqualValues(t, 0, retrying)
	assert.EqualValues(t, 1, dead)
	assert.Equal(t, 1, h.count())
}

func TestWorkersConsumeUntilStopped(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t, WithWorkers(2))
	h := &recordingHandler{}
	q.RegisterHandler(h)

	require.NoError(t, q.Start(ctx))
	require.Error(t, q.Start(ctx), "second start fails")

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Publish(ctx, "jobs", nil, []byte(`{"n":1}`)))
	}
	require.Eventually(t, func() bool { return h.count() == 3 }, 5*time.Second, 20*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(stopCtx))
}

func TestStartRequiresHandlers(t *testing.T) {
	q, _ := newQueue(t)
	assert.Error(t, q.Start(context.Background()))
}
