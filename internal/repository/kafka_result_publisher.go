package repository

import (
	"context"
	"time"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
)

var _ drepo.ResultSink = (*KafkaResultPublisher)(nil)

// Publisher is the part of pkg/kafka.Producer the result publisher needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// ResultEvent is the message published for every finished valuation.
type ResultEvent struct {
	Type        models.JobType `json:"type"`
	ID          string         `json:"id"`
	Ticker      string         `json:"ticker"`
	GeneratedAt time.Time      `json:"generated_at"`
	Report      interface{}    `json:"report"`
}

// KafkaResultPublisher publishes valuation reports keyed by ticker.
type KafkaResultPublisher struct {
	producer Publisher
	topic    string
}

func NewKafkaResultPublisher(producer Publisher, topic string) *KafkaResultPublisher {
	return &KafkaResultPublisher{producer: producer, topic: topic}
}

func (p *KafkaResultPublisher) SaveComps(ctx context.Context, r *models.CompsReport) error {
	return p.publish(ctx, ResultEvent{
		Type:        models.JobComps,
		ID:          r.ID,
		Ticker:      r.Target.Ticker,
		GeneratedAt: r.GeneratedAt,
		Report:      r,
	})
}

func (p *KafkaResultPublisher) SaveDCF(ctx context.Context, r *models.DCFReport) error {
	return p.publish(ctx, ResultEvent{
		Type:        models.JobDCF,
		ID:          r.ID,
		Ticker:      r.Ticker,
		GeneratedAt: r.GeneratedAt,
		Report:      r,
	})
}

func (p *KafkaResultPublisher) publish(ctx context.Context, ev ResultEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Ticker), ev)
}
