package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"peerpair/pkg/kafka"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	m := NewMetrics()
	produce := m.ProducerMiddleware()
	consume := m.ConsumerMiddleware()
	ctx := context.Background()

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("boom") }

	_ = produce(ctx, kafka.Message{}, ok)
	_ = produce(ctx, kafka.Message{}, ok)
	_ = produce(ctx, kafka.Message{}, fail)
	_ = consume(ctx, kafka.Message{}, ok)
	_ = consume(ctx, kafka.Message{}, fail)

	s := m.Snapshot()
	if s.Published != 2 || s.PublishFailed != 1 {
		t.Errorf("publish counts = %d/%d, want 2/1", s.Published, s.PublishFailed)
	}
	if s.Consumed != 1 || s.ConsumeFailed != 1 {
		t.Errorf("consume counts = %d/%d, want 1/1", s.Consumed, s.ConsumeFailed)
	}
}
