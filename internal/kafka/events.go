package kafka

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// EventPublisher adapts Producer to commerce.Publisher.
type EventPublisher struct {
	P *Producer
}

var _ commerce.Publisher = (*EventPublisher)(nil)

func (e *EventPublisher) Publish(ctx context.Context, ev commerce.Event) error {
	env := ev.Envelope
	if env.TraceID == "" {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			env.TraceID = sc.TraceID().String()
		}
	}
	value, err := Marshal(env)
	if err != nil {
		return err
	}
	return e.P.Publish(ctx, kafka.Message{
		Topic: ev.Topic,
		Key:   commerce.PartitionKey(ev.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(env.EventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	})
}

// HeaderValue returns the first header named key.
func HeaderValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
