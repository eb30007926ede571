// Package events publishes persisted forecast records to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"commodity-forecast/internal/domain"
	"commodity-forecast/internal/observability"
)

// Publisher sends forecast records to a message bus.
type Publisher interface {
	Publish(ctx context.Context, r *domain.ForecastRecord) error
	Close() error
}

// Noop discards every record.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, *domain.ForecastRecord) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

// ForecastEvent is the JSON payload written to the topic.
type ForecastEvent struct {
	RunID          string  `json:"run_id,omitempty"`
	Date           string  `json:"date"`
	Asset          string  `json:"asset"`
	PredictedPrice float64 `json:"predicted_price"`
	ActualPrice    float64 `json:"actual_price"`
	Error          float64 `json:"error"`
	PublishedAt    int64   `json:"published_at"`
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per record, keyed by asset.
type KafkaPublisher struct {
	writer messageWriter
	runID  string
	now    func() time.Time
}

// NewKafkaPublisher creates a publisher for topic on the given brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, now: time.Now}, nil
}

// RunScoped is implemented by publishers that tag events with a run id.
type RunScoped interface {
	WithRunID(runID string) Publisher
}

// WithRunID returns a copy of the publisher that stamps events with runID.
func (p *KafkaPublisher) WithRunID(runID string) Publisher {
	cp := *p
	cp.runID = runID
	return &cp
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, r *domain.ForecastRecord) error {
	value, err := json.Marshal(ForecastEvent{
		RunID:          p.runID,
		Date:           domain.FormatDate(r.Date),
		Asset:          r.Asset,
		PredictedPrice: r.PredictedPrice,
		ActualPrice:    r.ActualPrice,
		Error:          r.Error,
		PublishedAt:    p.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal forecast event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.Asset),
		Value: value,
		Time:  p.now(),
	})
	observability.RecordEventPublished(err)
	if err != nil {
		return fmt.Errorf("publish %s/%s: %w", r.Asset, domain.FormatDate(r.Date), err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
