package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/domain/outbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var _ account.Events = (*AccountEvents)(nil)

// AccountEvents records account events as outbox rows. Called inside a
// transaction it commits or rolls back together with the account itself.
type AccountEvents struct {
	repo outbox.Repository
}

func NewAccountEvents(repo outbox.Repository) *AccountEvents {
	return &AccountEvents{repo: repo}
}

func (e *AccountEvents) AccountRegistered(ctx context.Context, ev account.Registered) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal account-registered: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return e.repo.Enqueue(ctx, outbox.Message{
		IdempotencyKey: fmt.Sprintf("%s:%d", outbox.KindAccountRegistered, ev.UserID),
		Kind:           outbox.KindAccountRegistered,
		Data:           data,
		Traceparent:    carrier.Get("traceparent"),
		Tracestate:     carrier.Get("tracestate"),
		Baggage:        carrier.Get("baggage"),
	})
}
