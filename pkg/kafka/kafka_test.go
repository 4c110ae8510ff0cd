package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type funcHandler struct {
	topic string
	fn    func([]byte) error
}

func (h funcHandler) Topic() string                            { return h.topic }
func (h funcHandler) Handle(_ context.Context, b []byte) error { return h.fn(b) }

func TestProducerPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "snappy")

	err := p.Publish(context.Background(), "results", []byte("AAPL"), map[string]float64{"ev": 1.5})
	require.NoError(t, err)

	got := w.written()
	require.Len(t, got, 1)
	assert.Equal(t, "results", got[0].Topic)
	assert.Equal(t, "AAPL", string(got[0].Key))
	var body map[string]float64
	require.NoError(t, json.Unmarshal(got[0].Value, &body))
	assert.Equal(t, 1.5, body["ev"])
}

func TestProducerPassesRawBytes(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "snappy")

	require.NoError(t, p.PublishMessage(context.Background(), "logs", []byte(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, string(w.written()[0].Value))
}

func TestProducerWrapsWriteError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "snappy")
	err := p.Publish(context.Background(), "results", nil, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka publish results")
}

func newTestConsumer(t *testing.T, reader *fakeReader, dlq *fakeWriter, retries int) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(retries, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	c.newReader = func(string) Reader { return reader }
	if dlq != nil {
		c.dlq = dlq
		c.cfg.DLQTopic = "jobs.dlq"
	}
	return c
}

func runUntil(t *testing.T, c *Consumer, cond func() bool) {
	t.Helper()
	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestConsumerCommitsAfterSuccess(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Value: []byte("a")}, {Value: []byte("b"), Offset: 1}}}
	c := newTestConsumer(t, reader, nil, 0)

	var mu sync.Mutex
	var seen []string
	c.RegisterHandler(funcHandler{topic: "jobs", fn: func(b []byte) error {
		mu.Lock()
		seen = append(seen, string(b))
		mu.Unlock()
		return nil
	}})

	runUntil(t, c, func() bool { return reader.commits() == 2 })
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestConsumerRetriesTransientErrors(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Value: []byte("a")}}}
	c := newTestConsumer(t, reader, nil, 3)

	var calls int
	c.RegisterHandler(funcHandler{topic: "jobs", fn: func([]byte) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	}})

	runUntil(t, c, func() bool { return reader.commits() == 1 })
	assert.Equal(t, 3, calls)
}

func TestConsumerSendsPermanentFailuresToDLQ(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Key: []byte("MSFT"), Value: []byte("bad")}}}
	dlq := &fakeWriter{}
	c := newTestConsumer(t, reader, dlq, 5)

	var calls int
	c.RegisterHandler(funcHandler{topic: "jobs", fn: func([]byte) error {
		calls++
		return Permanent(errors.New("invalid job"))
	}})

	runUntil(t, c, func() bool { return reader.commits() == 1 })
	assert.Equal(t, 1, calls)

	parked := dlq.written()
	require.Len(t, parked, 1)
	assert.Equal(t, "jobs.dlq", parked[0].Topic)
	assert.Equal(t, "bad", string(parked[0].Value))
	assert.Equal(t, "source_topic", parked[0].Headers[0].Key)
	assert.Equal(t, "jobs", string(parked[0].Headers[0].Value))
}

func TestConsumerLeavesFailureUncommittedWithoutDLQ(t *testing.T) {
	c := newTestConsumer(t, &fakeReader{}, nil, 0)
	reader := &fakeReader{}
	c.readers["jobs"] = reader
	c.RegisterHandler(funcHandler{topic: "jobs", fn: func([]byte) error { return errors.New("boom") }})

	c.process(&message{topic: "jobs", km: kafka.Message{Value: []byte("x")}})
	assert.Equal(t, 0, reader.commits())
}

func TestHookChainOrderAndPanicRecovery(t *testing.T) {
	var order []string
	chain := NewHookChain(
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before1")
				return ctx, km, append(d, '1'), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after1") },
		},
		nil,
		HookFuncs{
			Before: func(ctx context.Context, _ string, km kafka.Message, d []byte) (context.Context, kafka.Message, []byte, error) {
				order = append(order, "before2")
				return ctx, km, append(d, '2'), nil
			},
			After: func(context.Context, string, kafka.Message, []byte, error) {
				order = append(order, "after2")
				panic("ignored")
			},
		},
	)

	_, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x12", string(data))

	chain.AfterHandle(context.Background(), "t", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"before1", "before2", "after2", "after1"}, order)

	panicky := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
	})
	_, _, _, err = panicky.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
}

func TestExtractTraceID(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	assert.Equal(t, "abc", ExtractTraceID(msg))
	assert.Empty(t, ExtractTraceID(kafka.Message{}))
}

func TestBackoffWithJitterStaysInRange(t *testing.T) {
	for attempt := 1; attempt < 10; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 80*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 80*time.Millisecond)
	}
}
