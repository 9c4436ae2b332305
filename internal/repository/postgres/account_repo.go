package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/jackc/pgx/v5"
)

var _ account.Store = (*AccountRepo)(nil)

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo { return &AccountRepo{db: db} }

const (
	qCredentialByLogin = `
SELECT u.id, u.password_hash, COALESCE(s.theme, '')
FROM users u
LEFT JOIN settings s ON s.user_id = u.id
WHERE u.login = $1;`

	qAccountInsert = `
WITH u AS (
    INSERT INTO users (login, password_hash)
    VALUES ($1, $2)
    RETURNING id, login, password_hash, created_at
), s AS (
    INSERT INTO settings (user_id, theme)
    SELECT id, $3 FROM u
)
SELECT id, login, password_hash, created_at FROM u;`

	qAccountCount = `SELECT COUNT(*) FROM users;`
)

func (r *AccountRepo) LookupCredential(ctx context.Context, login string) (*account.Credential, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var c account.Credential
	err := r.db.execQueryer(ctx).QueryRow(ctx, qCredentialByLogin, login).
		Scan(&c.UserID, &c.PasswordHash, &c.Theme)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}
	return &c, nil
}

func (r *AccountRepo) CreateAccount(ctx context.Context, login, passwordHash, theme string) (*account.Account, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	a := account.Account{Theme: theme}
	err := r.db.execQueryer(ctx).QueryRow(ctx, qAccountInsert, login, passwordHash, theme).
		Scan(&a.ID, &a.Login, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, account.ErrDuplicateLogin
		}
		return nil, fmt.Errorf("account insert: %w", err)
	}
	return &a, nil
}

func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n int64
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qAccountCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}
