package queue

import "context"

// Handler processes messages queued under one topic. It has the same shape
// as a Kafka message handler so one implementation serves both transports.
type Handler interface {
	Topic() string
	Handle(ctx context.Context, payload []byte) error
}
