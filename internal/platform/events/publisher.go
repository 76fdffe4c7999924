package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON-encoded events to a single topic, keyed so that
// every event of one aggregate lands on the same partition.
type KafkaPublisher struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaPublisher builds a publisher writing to topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	})
}

// NewPublisher wraps an existing writer.
func NewPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{Key: []byte(key), Value: data, Time: p.now().UTC()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Noop discards events. Used when no brokers are configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }

func (Noop) Close() error { return nil }
