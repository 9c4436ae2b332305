package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/domain/outbox"
	"github.com/NordCoder/AuthServer/internal/obs/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type memRepo struct {
	mu   sync.Mutex
	msgs map[string]*outbox.Message
	err  error
}

func newMemRepo() *memRepo { return &memRepo{msgs: map[string]*outbox.Message{}} }

func (r *memRepo) Enqueue(_ context.Context, m outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.msgs[m.IdempotencyKey]; ok {
		return nil
	}
	m.Status = outbox.StatusCreated
	r.msgs[m.IdempotencyKey] = &m
	return nil
}

func (r *memRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []outbox.Message
	for _, m := range r.msgs {
		if len(out) == batch {
			break
		}
		if m.Status == outbox.StatusCreated {
			m.Status = outbox.StatusInProgress
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.msgs[k].Status = outbox.StatusSuccess
	}
	return nil
}

func (r *memRepo) status(key string) outbox.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[key].Status
}

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	got      []account.Registered
}

func (p *fakePublisher) PublishAccountRegistered(_ context.Context, ev account.Registered) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, ev)
	return nil
}

func (p *fakePublisher) published() []account.Registered {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]account.Registered(nil), p.got...)
}

var fastPolicy = retry.Policy{Name: "test", Attempts: 3, Backoff: retry.ExpoJitter{Base: time.Millisecond}}

func TestAccountEvents_EnqueuesWithTraceContext(t *testing.T) {
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	repo := newMemRepo()
	ctx, span := otel.Tracer("test").Start(context.Background(), "register")
	defer span.End()

	ev := account.Registered{UserID: 5, Login: "alice", Theme: "Light", At: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, NewAccountEvents(repo).AccountRegistered(ctx, ev))
	require.NoError(t, NewAccountEvents(repo).AccountRegistered(ctx, ev), "re-enqueue is idempotent")

	require.Len(t, repo.msgs, 1)
	m := repo.msgs["account_registered:5"]
	require.NotNil(t, m)
	assert.Equal(t, outbox.KindAccountRegistered, m.Kind)
	assert.Contains(t, m.Traceparent, span.SpanContext().TraceID().String())

	var got account.Registered
	require.NoError(t, json.Unmarshal(m.Data, &got))
	assert.Equal(t, ev, got)
}

func TestRunnerTick_PublishesAndMarksSuccess(t *testing.T) {
	repo := newMemRepo()
	pub := &fakePublisher{failures: 2}
	r := NewOutboxRunner(zaptest.NewLogger(t), repo, MakeGlobalOutboxHandler(pub, fastPolicy), 1, 10, time.Hour, time.Minute)

	ev := account.Registered{UserID: 9, Login: "bob", Theme: "Dark"}
	require.NoError(t, NewAccountEvents(repo).AccountRegistered(context.Background(), ev))

	assert.Equal(t, 1, r.tick(context.Background()))
	assert.Equal(t, outbox.StatusSuccess, repo.status("account_registered:9"))
	assert.Equal(t, []account.Registered{ev}, pub.published())
}

func TestRunnerTick_ExhaustedRetriesLeaveMessageInProgress(t *testing.T) {
	repo := newMemRepo()
	pub := &fakePublisher{failures: 100}
	r := NewOutboxRunner(zaptest.NewLogger(t), repo, MakeGlobalOutboxHandler(pub, fastPolicy), 1, 10, time.Hour, time.Minute)

	require.NoError(t, NewAccountEvents(repo).AccountRegistered(context.Background(), account.Registered{UserID: 1}))

	assert.Zero(t, r.tick(context.Background()))
	assert.Equal(t, outbox.StatusInProgress, repo.status("account_registered:1"))
	assert.Empty(t, pub.published())
}

func TestRunnerTick_UnknownKindAndBadPayload(t *testing.T) {
	repo := newMemRepo()
	pub := &fakePublisher{}
	r := NewOutboxRunner(zaptest.NewLogger(t), repo, MakeGlobalOutboxHandler(pub, fastPolicy), 1, 10, time.Hour, time.Minute)

	ctx := context.Background()
	require.NoError(t, repo.Enqueue(ctx, outbox.Message{IdempotencyKey: "weird", Kind: outbox.Kind(99), Data: []byte(`{}`)}))
	require.NoError(t, repo.Enqueue(ctx, outbox.Message{IdempotencyKey: "broken", Kind: outbox.KindAccountRegistered, Data: []byte(`{`)}))

	assert.Zero(t, r.tick(ctx))
	assert.Empty(t, pub.published())
}

func TestGlobalHandler_BadPayloadIsPermanent(t *testing.T) {
	pub := &fakePublisher{}
	h, err := MakeGlobalOutboxHandler(pub, fastPolicy)(outbox.KindAccountRegistered)
	require.NoError(t, err)

	err = h(context.Background(), []byte(`nope`))
	assert.ErrorIs(t, err, retry.ErrPermanent)

	_, err = MakeGlobalOutboxHandler(pub, fastPolicy)(outbox.Kind(0))
	assert.Error(t, err)
}

func TestRunnerTick_PickError(t *testing.T) {
	repo := newMemRepo()
	repo.err = errors.New("db down")
	r := NewOutboxRunner(nil, repo, MakeGlobalOutboxHandler(&fakePublisher{}, fastPolicy), 1, 10, time.Hour, time.Minute)

	assert.Zero(t, r.tick(context.Background()))
}

func TestRunner_RunStopsAllWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	repo := newMemRepo()
	pub := &fakePublisher{}
	r := NewOutboxRunner(zaptest.NewLogger(t), repo, MakeGlobalOutboxHandler(pub, fastPolicy), 3, 10, 5*time.Millisecond, time.Minute)

	require.NoError(t, NewAccountEvents(repo).AccountRegistered(context.Background(), account.Registered{UserID: 3}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
