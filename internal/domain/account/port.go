package account

import "context"

type Store interface {
	// LookupCredential returns ErrNotFound for an unknown login.
	LookupCredential(ctx context.Context, login string) (*Credential, error)
	// CreateAccount returns ErrDuplicateLogin when login is taken.
	CreateAccount(ctx context.Context, login, passwordHash, theme string) (*Account, error)
	Count(ctx context.Context) (int64, error)
}

// Events receives account lifecycle notifications. Implementations run
// inside the registering transaction when the store provides one.
type Events interface {
	AccountRegistered(ctx context.Context, ev Registered) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
