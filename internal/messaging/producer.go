package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

var producerTracer = otel.Tracer("kart-checkout/messaging")

// Publisher sends status events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
	Close() error
}

// Producer publishes JSON events to Kafka, one topic per event type.
type Producer struct {
	writer *kafka.Writer
	prefix string
	logger zerolog.Logger
}

// NewProducer creates a producer. Topics are resolved per message as
// prefix+topic so one writer serves every event type.
func NewProducer(brokers []string, topicPrefix string, logger zerolog.Logger) *Producer {
	return &Producer{
		prefix: topicPrefix,
		logger: logger.With().Str("component", "producer").Logger(),
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

// Publish writes one event keyed by key. The current trace context travels
// in the message headers.
func (p *Producer) Publish(ctx context.Context, topic, key string, event any) error {
	msg, err := newMessage(p.prefix+topic, key, event)
	if err != nil {
		return err
	}

	ctx, span := producerTracer.Start(ctx, "send "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, NewMessageCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error().Err(err).Str("topic", msg.Topic).Str("key", key).Msg("failed to publish event")
		return fmt.Errorf("failed to publish to %s: %w", msg.Topic, err)
	}

	p.logger.Debug().Str("topic", msg.Topic).Str("key", key).Msg("event published")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func newMessage(topic, key string, event any) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode event for %s: %w", topic, err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
	}, nil
}

// NopPublisher drops every event. Used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }
func (NopPublisher) Close() error                                       { return nil }
