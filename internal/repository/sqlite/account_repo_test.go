package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*AccountRepo, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Up(ctx, db, goose.DialectSQLite3)
	require.NoError(t, err)
	return NewAccountRepo(db), db
}

func TestAccountRepo_CreateAndLookup(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	a, err := repo.CreateAccount(ctx, "alice", "$2a$10$hash", "Light")
	require.NoError(t, err)
	assert.Positive(t, a.ID)
	assert.Equal(t, "alice", a.Login)
	assert.False(t, a.CreatedAt.IsZero())

	c, err := repo.LookupCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, c.UserID)
	assert.Equal(t, "$2a$10$hash", c.PasswordHash)
	assert.Equal(t, "Light", c.Theme)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAccountRepo_NotFound(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)

	_, err := repo.LookupCredential(context.Background(), "ghost")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestAccountRepo_DuplicateLogin(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateAccount(ctx, "alice", "h1", "Dark")
	require.NoError(t, err)
	_, err = repo.CreateAccount(ctx, "alice", "h2", "Light")
	assert.ErrorIs(t, err, account.ErrDuplicateLogin)

	c, err := repo.LookupCredential(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h1", c.PasswordHash, "failed insert leaves the first account intact")
}

func TestAccountRepo_LegacyRowWithoutSettings(t *testing.T) {
	t.Parallel()
	repo, db := newRepo(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO users (login, password_hash) VALUES ('old', 'plainpass')`)
	require.NoError(t, err)

	c, err := repo.LookupCredential(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, "plainpass", c.PasswordHash)
	assert.Empty(t, c.Theme)
}

func TestAccountRepo_ConcurrentRegistrationOfSameLogin(t *testing.T) {
	t.Parallel()
	repo, _ := newRepo(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		dups int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.CreateAccount(ctx, "race", "h", "Dark")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				oks++
			case assert.ErrorIs(t, err, account.ErrDuplicateLogin):
				dups++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, oks)
	assert.Equal(t, 7, dups)
}
