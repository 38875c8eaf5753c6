package messaging

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry/telemetrytest"
)

type fakeChannel struct {
	key  string
	msg  amqp.Publishing
	err  error
	shut bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.key = key
	f.msg = msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.shut = true
	return nil
}

func newTestPublisher(ch *fakeChannel) (*RabbitMQ, *telemetrytest.Spans) {
	spans := telemetrytest.NewSpans()
	r := newRabbitMQ(ch, "orders.placed")
	r.tracer = spans.Tracer()
	r.propagator = telemetry.Propagator()
	return r, spans
}

func TestPublish_InjectsTraceAndBaggage(t *testing.T) {
	otel.SetTextMapPropagator(telemetry.Propagator())

	ch := &fakeChannel{}
	r, spans := newTestPublisher(ch)

	ctx := telemetry.WithBaggage(context.Background(), "user.id", "user-7")
	ctx, parent := spans.Tracer().Start(ctx, "order.process")
	require.NoError(t, r.Publish(ctx, []byte(`{"orderId":"ORD1_1"}`)))
	parent.End()

	assert.Equal(t, "orders.placed", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Contains(t, ch.msg.Headers, "traceparent")
	assert.Contains(t, ch.msg.Headers, "baggage")

	published := spans.Named("orders.placed publish")
	require.Len(t, published, 1)
	assert.Equal(t, trace.SpanKindProducer, published[0].SpanKind())
	assert.Equal(t, parent.SpanContext().SpanID(), published[0].Parent().SpanID())

	consumed := Extract(context.Background(), ch.msg.Headers)
	sc := trace.SpanContextFromContext(consumed)
	assert.Equal(t, parent.SpanContext().TraceID(), sc.TraceID())
	assert.Equal(t, published[0].SpanContext().SpanID(), sc.SpanID())
	assert.Equal(t, "user-7", telemetry.BaggageValue(consumed, "user.id"))
}

func TestPublish_Error(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	r, spans := newTestPublisher(ch)

	err := r.Publish(context.Background(), []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders.placed")

	published := spans.Named("orders.placed publish")
	require.Len(t, published, 1)
	assert.Equal(t, codes.Error, published[0].Status().Code)
}

func TestHeaderCarrier(t *testing.T) {
	c := HeaderCarrier(amqp.Table{"n": int32(4)})
	c.Set("traceparent", "00-abc")

	assert.Equal(t, "00-abc", c.Get("traceparent"))
	assert.Empty(t, c.Get("n"))
	assert.Empty(t, c.Get("missing"))
	assert.ElementsMatch(t, []string{"n", "traceparent"}, c.Keys())
}

func TestClose(t *testing.T) {
	ch := &fakeChannel{}
	r, _ := newTestPublisher(ch)

	require.NoError(t, r.Close())
	assert.True(t, ch.shut)
}
