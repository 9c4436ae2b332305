package kafka

import (
	"context"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/domain/kafka"
)

type AccountEventsKafka struct {
	p *Producer
}

func NewAccountEventsKafka(p *Producer) *AccountEventsKafka { return &AccountEventsKafka{p: p} }

var _ kafka.AccountEvents = (*AccountEventsKafka)(nil)

// PublishAccountRegistered keys by user id so one account's events stay on
// one partition.
func (e *AccountEventsKafka) PublishAccountRegistered(ctx context.Context, ev account.Registered) error {
	return e.p.PublishJSON(ctx, KeyFromInt64(ev.UserID), ev)
}
