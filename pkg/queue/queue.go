package queue

import (
	"encoding/json"
	"time"

	"FinValue/pkg/logger"
)

// Config contains the configuration for the queue.
type Config struct {
	Workers     int           // workers per topic
	RetryLimit  int           // retries before a message is dead-lettered
	RetryDelay  time.Duration // base delay, multiplied by the attempt number
	PollTimeout time.Duration // BRPOP block time
	KeyPrefix   string

	// IsPermanent marks handler errors that must not be retried.
	IsPermanent func(error) bool
	Logger      *logger.Logger
}

type Option func(*Config)

func WithWorkers(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.Workers = n
		}
	}
}

func WithRetry(limit int, delay time.Duration) Option {
	return func(c *Config) {
		c.RetryLimit = limit
		if delay > 0 {
			c.RetryDelay = delay
		}
	}
}

func WithPollTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollTimeout = d
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(c *Config) { c.KeyPrefix = prefix }
}

func WithPermanent(fn func(error) bool) Option {
	return func(c *Config) { c.IsPermanent = fn }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Key        string          `json:"key,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}
