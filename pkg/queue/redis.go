package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"FinValue/pkg/logger"
)

// RedisQueue is a list backed work queue with delayed retries and a dead
// letter list per topic. Delivery is at most once per attempt: a message
// popped by a worker that crashes is lost.
type RedisQueue struct {
	client   redis.UniversalClient
	cfg      *Config
	log      *logger.Logger
	handlers map[string]Handler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewRedisQueue creates a queue; it does nothing until Start.
func NewRedisQueue(client redis.UniversalClient, opts ...Option) *RedisQueue {
	cfg := &Config{
		Workers:     1,
		RetryLimit:  3,
		RetryDelay:  10 * time.Second,
		PollTimeout: time.Second,
		KeyPrefix:   "finvalue:queue",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.IsPermanent == nil {
		cfg.IsPermanent = func(error) bool { return false }
	}
	return &RedisQueue{
		client:   client,
		cfg:      cfg,
		log:      cfg.Logger,
		handlers: make(map[string]Handler),
		now:      time.Now,
	}
}

// RegisterHandler registers a handler for its topic. Call before Start.
func (r *RedisQueue) RegisterHandler(h Handler) {
	if _, exists := r.handlers[h.Topic()]; exists {
		r.log.Warn("queue handler already registered", logger.String("topic", h.Topic()))
		return
	}
	r.handlers[h.Topic()] = h
}

// Publish enqueues value under topic. []byte and string values are stored
// as is, anything else is JSON encoded.
func (r *RedisQueue) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	payload, err := encode(value)
	if err != nil {
		return fmt.Errorf("queue publish %s: %w", topic, err)
	}
	msg := Message{
		ID:         uuid.NewString(),
		Topic:      topic,
		Key:        string(key),
		Payload:    payload,
		EnqueuedAt: r.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue publish %s: %w", topic, err)
	}
	if err := r.client.LPush(ctx, r.queueKey(topic), data).Err(); err != nil {
		return fmt.Errorf("queue publish %s: lpush: %w", topic, err)
	}
	return nil
}

func encode(v interface{}) (json.RawMessage, error) {
	switch b := v.(type) {
	case []byte:
		return json.RawMessage(b), nil
	case string:
		return json.RawMessage(b), nil
	default:
		return json.Marshal(v)
	}
}

// Start launches the workers and the retry mover.
func (r *RedisQueue) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}
	if len(r.handlers) == 0 {
		return errors.New("no handlers registered")
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = stop
	r.running = true

	for topic, h := range r.handlers {
		for i := 0; i < r.cfg.Workers; i++ {
			r.wg.Add(1)
			go r.worker(runCtx, topic, h)
		}
	}
	r.wg.Add(1)
	go r.retryLoop(runCtx)

	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("topics", len(r.handlers)),
		logger.String("prefix", r.cfg.KeyPrefix),
	)
	return nil
}

// Stop cancels the workers and waits for in-flight messages.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	case <-done:
		r.log.Info("redis queue stopped")
		return nil
	}
}

func (r *RedisQueue) worker(ctx context.Context, topic string, h Handler) {
	defer r.wg.Done()
	key := r.queueKey(topic)
	for ctx.Err() == nil {
		res, err := r.client.BRPop(ctx, r.cfg.PollTimeout, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			r.log.Error("queue brpop", logger.String("topic", topic), logger.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		r.process(ctx, h, res[1])
	}
}

func (r *RedisQueue) process(ctx context.Context, h Handler, raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.log.Error("queue decode message", logger.String("topic", h.Topic()), logger.Error(err))
		r.deadLetter(ctx, h.Topic(), []byte(raw))
		return
	}

	start := r.now()
	err := h.Handle(ctx, msg.Payload)
	if err == nil {
		r.log.Debug("queue message handled",
			logger.String("topic", msg.Topic),
			logger.String("id", msg.ID),
			logger.Duration("took_ms", r.now().Sub(start)),
		)
		return
	}

	msg.Attempts++
	msg.LastError = err.Error()
	if r.cfg.IsPermanent(err) || msg.Attempts > r.cfg.RetryLimit {
		r.log.Warn("queue message dead-lettered",
			logger.String("topic", msg.Topic),
			logger.String("id", msg.ID),
			logger.Int("attempts", msg.Attempts),
			logger.Error(err),
		)
		if data, mErr := json.Marshal(msg); mErr == nil {
			r.deadLetter(ctx, msg.Topic, data)
		}
		return
	}

	retryAt := r.now().Add(time.Duration(msg.Attempts) * r.cfg.RetryDelay)
	r.log.Warn("queue message retry scheduled",
		logger.String("topic", msg.Topic),
		logger.String("id", msg.ID),
		logger.Int("attempt", msg.Attempts),
		logger.String("retry_at", retryAt.Format(time.RFC3339)),
		logger.Error(err),
	)
	data, mErr := json.Marshal(msg)
	if mErr != nil {
		return
	}
	// ctx may already be cancelled at shutdown; the retry must still be recorded
	if err := r.client.ZAdd(context.WithoutCancel(ctx), r.retryKey(msg.Topic), redis.Z{
		Score:  float64(retryAt.Unix()),
		Member: data,
	}).Err(); err != nil {
		r.log.Error("queue schedule retry", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(ctx context.Context, topic string, data []byte) {
	if err := r.client.LPush(context.WithoutCancel(ctx), r.deadLetterKey(topic), data).Err(); err != nil {
		r.log.Error("queue dead letter", logger.String("topic", topic), logger.Error(err))
	}
}

func (r *RedisQueue) retryLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for topic := range r.handlers {
				r.moveDueRetries(ctx, topic)
			}
		}
	}
}

// moveDueRetries requeues retries whose time has come. ZREM decides which
// instance moves a message when several run against one Redis.
func (r *RedisQueue) moveDueRetries(ctx context.Context, topic string) {
	due, err := r.client.ZRangeByScore(ctx, r.retryKey(topic), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(r.now().Unix(), 10),
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("queue fetch retries", logger.String("topic", topic), logger.Error(err))
		}
		return
	}
	for _, member := range due {
		removed, err := r.client.ZRem(ctx, r.retryKey(topic), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := r.client.LPush(ctx, r.queueKey(topic), member).Err(); err != nil {
			r.log.Error("queue requeue retry", logger.String("topic", topic), logger.Error(err))
		}
	}
}

// Pending returns the number of messages waiting, scheduled for retry and dead-lettered.
func (r *RedisQueue) Pending(ctx context.Context, topic string) (queued, retrying, dead int64, err error) {
	pipe := r.client.Pipeline()
	q := pipe.LLen(ctx, r.queueKey(topic))
	rt := pipe.ZCard(ctx, r.retryKey(topic))
	d := pipe.LLen(ctx, r.deadLetterKey(topic))
	if _, err = pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, 0, err
	}
	return q.Val(), rt.Val(), d.Val(), nil
}

func (r *RedisQueue) queueKey(topic string) string {
	return fmt.Sprintf("%s:%s:messages", r.cfg.KeyPrefix, topic)
}

func (r *RedisQueue) retryKey(topic string) string {
	return fmt.Sprintf("%s:%s:retry", r.cfg.KeyPrefix, topic)
}

func (r *RedisQueue) deadLetterKey(topic string) string {
	return fmt.Sprintf("%s:%s:dlq", r.cfg.KeyPrefix, topic)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
