package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "crisis-alerts/internal/common/errors"

	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher publishes records as dispatch events.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string, batchTimeout time.Duration) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: batchTimeout,
	}
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

func (p *KafkaPublisher) Save(ctx context.Context, rec Record) error {
	msg, err := serializeToMessage(rec)
	if err != nil {
		return apperrors.NewEventPublishError(p.topic, err)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return apperrors.NewEventPublishError(p.topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage keys by record ID so retries of one dispatch land on
// the same partition.
func serializeToMessage(rec Record) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize dispatch record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "crisis_type", Value: []byte(rec.CrisisType)},
			{Key: "dispatched_at", Value: []byte(rec.DispatchedAt.Format(time.RFC3339))},
		},
	}, nil
}
