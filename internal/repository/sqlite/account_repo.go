package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ account.Store = (*AccountRepo)(nil)

// AccountRepo reads and writes the users/settings tables of the original
// db.sqlite layout. That layout has no creation timestamp, so CreatedAt is
// taken from the repo clock.
type AccountRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewAccountRepo(db *sql.DB) *AccountRepo {
	return &AccountRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const (
	qCredentialByLogin = `
SELECT u.id, u.password_hash, COALESCE(s.theme, '')
FROM users u
LEFT JOIN settings s ON s.user_id = u.id
WHERE u.login = ?`

	qUserInsert = `INSERT INTO users (login, password_hash) VALUES (?, ?)`

	qSettingsUpsert = `
INSERT INTO settings (user_id, theme) VALUES (?, ?)
ON CONFLICT(user_id) DO UPDATE SET theme = excluded.theme`

	qCount = `SELECT COUNT(*) FROM users`
)

func (r *AccountRepo) LookupCredential(ctx context.Context, login string) (*account.Credential, error) {
	var c account.Credential
	err := r.db.QueryRowContext(ctx, qCredentialByLogin, login).Scan(&c.UserID, &c.PasswordHash, &c.Theme)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("lookup credential: %w", err)
	}
	return &c, nil
}

func (r *AccountRepo) CreateAccount(ctx context.Context, login, passwordHash, theme string) (_ *account.Account, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, qUserInsert, login, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, account.ErrDuplicateLogin
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	if _, err = tx.ExecContext(ctx, qSettingsUpsert, id, theme); err != nil {
		return nil, fmt.Errorf("insert settings: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &account.Account{
		ID:           id,
		Login:        login,
		PasswordHash: passwordHash,
		Theme:        theme,
		CreatedAt:    r.now(),
	}, nil
}

func (r *AccountRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
