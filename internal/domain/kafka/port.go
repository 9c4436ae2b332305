package kafka

import (
	"context"

	"github.com/NordCoder/AuthServer/internal/domain/account"
)

type AccountEvents interface {
	PublishAccountRegistered(ctx context.Context, ev account.Registered) error
}
