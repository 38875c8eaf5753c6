// Package messaging publishes order events to RabbitMQ with the trace context
// and baggage of the publishing request carried in the message headers.
package messaging

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jcmexdev/otel-orders/internal/pkg/messaging"

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes to a single durable queue through the default exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    channel
	queue      string
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Dial connects to url and declares queue.
func Dial(url, queue string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("messaging: connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("messaging: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("messaging: declare queue %s: %w", queue, err)
	}

	slog.Info("connected to rabbitmq", "queue", queue)
	r := newRabbitMQ(ch, queue)
	r.conn = conn
	return r, nil
}

func newRabbitMQ(ch channel, queue string) *RabbitMQ {
	return &RabbitMQ{
		channel:    ch,
		queue:      queue,
		tracer:     otel.Tracer(instrumentationName),
		propagator: otel.GetTextMapPropagator(),
	}
}

// Publish sends body to the queue inside a producer span. The span context
// and the baggage of ctx travel in the message headers.
func (r *RabbitMQ) Publish(ctx context.Context, body []byte) error {
	ctx, span := r.tracer.Start(ctx, r.queue+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", r.queue),
			attribute.Int("messaging.message.body.size", len(body)),
		),
	)
	defer span.End()

	headers := amqp.Table{}
	r.propagator.Inject(ctx, HeaderCarrier(headers))

	err := r.channel.PublishWithContext(ctx,
		"",      // exchange
		r.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
		},
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("messaging: publish to %s: %w", r.queue, err)
	}

	slog.DebugContext(ctx, "message published", "queue", r.queue)
	return nil
}

// Close closes the channel and the connection.
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			return err
		}
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
