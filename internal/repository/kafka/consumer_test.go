package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"
)

// scriptedReader serves queued fetch results, then cancels the consumer.
type scriptedReader struct {
	mu        sync.Mutex
	queue     []fetchResult
	committed []int64
	cancel    context.CancelFunc
}

type fetchResult struct {
	msg kafka.Message
	err error
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) == 0 {
		r.mu.Unlock()
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	next := r.queue[0]
	r.queue = r.queue[1:]
	r.mu.Unlock()
	return next.msg, next.err
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func TestConsumer_CommitsOnlyHandledMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &scriptedReader{cancel: cancel, queue: []fetchResult{
		{msg: kafka.Message{Offset: 1, Key: []byte("ok")}},
		{err: io.EOF},
		{msg: kafka.Message{Offset: 2, Key: []byte("fail")}},
		{msg: kafka.Message{Offset: 3, Key: []byte("ok")}},
	}}
	c := newConsumer(r, ConsumerConfig{Topic: "account-events", GroupID: "g", Logger: zaptest.NewLogger(t)})
	var slept []time.Duration
	c.sleep = func(d time.Duration) { slept = append(slept, d) }

	var seen []string
	err := c.Consume(ctx, func(_ context.Context, key, _ []byte) error {
		seen = append(seen, string(key))
		if string(key) == "fail" {
			return errors.New("handler failed")
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"ok", "fail", "ok"}, seen)
	assert.Equal(t, []int64{1, 3}, r.committed)
	assert.Equal(t, []time.Duration{200 * time.Millisecond}, slept)
}

func TestConsumer_ExtractsTraceContext(t *testing.T) {
	withTracing(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	parentCtx, span := otel.Tracer("test").Start(context.Background(), "publish")
	span.End()
	var hs []kafka.Header
	otel.GetTextMapPropagator().Inject(parentCtx, headerCarrier{&hs})

	r := &scriptedReader{cancel: cancel, queue: []fetchResult{{msg: kafka.Message{Headers: hs}}}}
	c := newConsumer(r, ConsumerConfig{})

	var got trace.SpanContext
	_ = c.Consume(ctx, func(ctx context.Context, _, _ []byte) error {
		got = trace.SpanContextFromContext(ctx)
		return nil
	})

	require.True(t, got.IsValid())
	assert.Equal(t, span.SpanContext().TraceID(), got.TraceID())
}

func TestConsumer_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newConsumer(&scriptedReader{cancel: func() {}}, ConsumerConfig{})
	err := c.Consume(ctx, func(context.Context, []byte, []byte) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
