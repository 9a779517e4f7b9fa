package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards every dispatched event to a Kafka topic keyed by ticket ID.
type KafkaPublisher struct {
	writer  MessageWriter
	logger  *zap.Logger
	timeout time.Duration
}

// NewKafkaPublisher builds a publisher for brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewKafkaPublisherWithWriter(writer, logger), nil
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(writer MessageWriter, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{writer: writer, logger: logger, timeout: 5 * time.Second}
}

// Attach subscribes the publisher to every event on the dispatcher.
func (p *KafkaPublisher) Attach(dispatcher Dispatcher) {
	if dispatcher == nil {
		return
	}
	dispatcher.SubscribeAll(p.handle)
}

// Publish writes one event. The payload is the JSON encoding of the whole event.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TicketID),
		Value: data,
		Time:  event.Timestamp.UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
}

// handle never fails the dispatch; delivery is best effort.
func (p *KafkaPublisher) handle(ctx context.Context, event Event) error {
	if err := p.Publish(ctx, event); err != nil {
		p.logger.Warn("kafka publish failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
