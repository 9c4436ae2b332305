package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	authcore "github.com/NordCoder/AuthServer/internal/auth"
	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/migrations"
	"github.com/NordCoder/AuthServer/internal/repository/sqlite"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

func testConfig(t *testing.T) Config {
	return Config{
		Codec:        authcore.NewCodec(authcore.CodecConfig{Secret: testSecret, RequireExp: true}),
		Verifier:     authcore.NewVerifier(authcore.SchemeBcrypt, authcore.SchemeSHA256, authcore.SchemePlain),
		TTL:          time.Hour,
		DefaultTheme: "Dark",
		Themes:       []string{"Dark", "Light"},
		BcryptCost:   bcrypt.MinCost,
		Logger:       zaptest.NewLogger(t),
	}
}

func newSQLiteStore(t *testing.T) (*sqlite.AccountRepo, *sql.DB) {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = migrations.Up(ctx, db, goose.DialectSQLite3)
	require.NoError(t, err)
	return sqlite.NewAccountRepo(db), db
}

func newTestUsecase(t *testing.T, mutate ...func(*Config)) (*Usecase, *sql.DB) {
	t.Helper()
	store, db := newSQLiteStore(t)
	cfg := testConfig(t)
	for _, m := range mutate {
		m(&cfg)
	}
	return NewUseCase(store, cfg), db
}

func TestUsecase_RegisterThenAuthenticate(t *testing.T) {
	t.Parallel()
	uc, _ := newTestUsecase(t)
	ctx := context.Background()

	a, err := uc.Register(ctx, "alice", "s3cret!", "Light")
	require.NoError(t, err)
	assert.Equal(t, authcore.SchemeBcrypt, authcore.DetectScheme(a.PasswordHash))
	assert.Equal(t, "Light", a.Theme)

	sess, err := uc.Authenticate(ctx, "alice", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "Light", sess.Theme)
	assert.Len(t, strings.Split(sess.Token, "."), 3)

	claims, err := uc.VerifyToken(sess.Token)
	require.NoError(t, err)
	sub, _ := claims.Sub()
	assert.Equal(t, "1", sub)
	login, _ := claims.Login()
	assert.Equal(t, "alice", login)

	_, err = uc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestUsecase_EnumerationResistance(t *testing.T) {
	t.Parallel()
	uc, _ := newTestUsecase(t)
	ctx := context.Background()

	_, err := uc.Register(ctx, "realuser", "rightpass", "")
	require.NoError(t, err)

	s1, err1 := uc.Authenticate(ctx, "nosuchuser", "x")
	s2, err2 := uc.Authenticate(ctx, "realuser", "wrongpass")

	assert.Nil(t, s1)
	assert.Nil(t, s2)
	assert.Equal(t, err1, err2)
	assert.Equal(t, ErrBadCredentials, err1)
}

func TestUsecase_DuplicateRegistration(t *testing.T) {
	t.Parallel()
	uc, _ := newTestUsecase(t)
	ctx := context.Background()

	_, err := uc.Register(ctx, "alice", "s3cret!", "Light")
	require.NoError(t, err)
	_, err = uc.Register(ctx, "alice", "other", "Dark")
	assert.ErrorIs(t, err, account.ErrDuplicateLogin)

	_, err = uc.Register(ctx, "  alice ", "other", "Dark")
	assert.ErrorIs(t, err, account.ErrDuplicateLogin, "login is trimmed before insert")
}

func TestUsecase_LoginIsTrimmed(t *testing.T) {
	t.Parallel()
	uc, _ := newTestUsecase(t)
	ctx := context.Background()

	_, err := uc.Register(ctx, "bob", "pw", "")
	require.NoError(t, err)

	sess, err := uc.Authenticate(ctx, "  bob\t", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", sess.Login)
	assert.Equal(t, "Dark", sess.Theme, "empty theme registers the default")
}

func TestUsecase_LegacyAccounts(t *testing.T) {
	t.Parallel()
	uc, db := newTestUsecase(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO users (login, password_hash) VALUES (?, ?), (?, ?)`,
		"sha", authcore.SHA256Hash("hunter2"), "plain", "  plainpass ")
	require.NoError(t, err)

	sess, err := uc.Authenticate(ctx, "sha", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "Dark", sess.Theme, "no settings row falls back to the default theme")

	_, err = uc.Authenticate(ctx, "plain", "plainpass")
	require.NoError(t, err)
}

func TestUsecase_PlainSchemeDisabled(t *testing.T) {
	t.Parallel()
	uc, db := newTestUsecase(t, func(c *Config) { c.Verifier = authcore.NewVerifier(authcore.DefaultSchemes...) })
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `INSERT INTO users (login, password_hash) VALUES ('plain', 'plainpass')`)
	require.NoError(t, err)

	_, err = uc.Authenticate(ctx, "plain", "plainpass")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestUsecase_TokenExpiry(t *testing.T) {
	t.Parallel()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return issued }
	uc, _ := newTestUsecase(t, func(c *Config) {
		c.Now = clock
		c.TTL = 30 * time.Minute
		c.Codec = authcore.NewCodec(authcore.CodecConfig{Secret: testSecret, RequireExp: true, Now: clock})
	})
	ctx := context.Background()

	_, err := uc.Register(ctx, "carol", "pw", "Dark")
	require.NoError(t, err)
	sess, err := uc.Authenticate(ctx, "carol", "pw")
	require.NoError(t, err)
	assert.Equal(t, issued.Add(30*time.Minute), sess.ExpiresAt)

	claims, err := uc.VerifyToken(sess.Token)
	require.NoError(t, err)
	exp, ok := claims.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, issued.Add(30*time.Minute).Unix(), exp.Unix())

	later := authcore.NewCodec(authcore.CodecConfig{
		Secret: testSecret,
		Now:    func() time.Time { return issued.Add(31 * time.Minute) },
	})
	_, err = later.Verify(sess.Token)
	assert.ErrorIs(t, err, authcore.ErrExpired)
}

func TestUsecase_RegisterValidation(t *testing.T) {
	t.Parallel()
	uc, _ := newTestUsecase(t)
	ctx := context.Background()

	_, err := uc.Register(ctx, "dave", "pw", "Neon")
	assert.ErrorIs(t, err, ErrInvalidTheme)

	_, err = uc.Register(ctx, "   ", "pw", "Dark")
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, err = uc.Register(ctx, "dave", strings.Repeat("p", 73), "Dark")
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = uc.Register(ctx, "dave", "", "Dark")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

type failingStore struct{ err error }

func (s failingStore) LookupCredential(context.Context, string) (*account.Credential, error) {
	return nil, s.err
}

func (s failingStore) CreateAccount(context.Context, string, string, string) (*account.Account, error) {
	return nil, s.err
}

func (s failingStore) Count(context.Context) (int64, error) { return 0, s.err }

func TestUsecase_StoreFailureIsNotBadCredentials(t *testing.T) {
	t.Parallel()
	boom := errors.New("disk I/O error")
	uc := NewUseCase(failingStore{err: boom}, testConfig(t))
	ctx := context.Background()

	_, err := uc.Authenticate(ctx, "alice", "pw")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrBadCredentials)

	assert.Equal(t, int64(-1), uc.AccountCount(ctx))
}

type recordingEvents struct {
	got []account.Registered
	err error
}

func (e *recordingEvents) AccountRegistered(_ context.Context, ev account.Registered) error {
	if e.err != nil {
		return e.err
	}
	e.got = append(e.got, ev)
	return nil
}

type countingTx struct{ calls int }

func (tx *countingTx) WithTx(ctx context.Context, fn func(context.Context) error) error {
	tx.calls++
	return fn(ctx)
}

func TestUsecase_RegisterRecordsEventInTransaction(t *testing.T) {
	t.Parallel()
	store, _ := newSQLiteStore(t)
	events := &recordingEvents{}
	tx := &countingTx{}
	uc := NewUseCase(store, testConfig(t), WithEvents(events, tx))

	a, err := uc.Register(context.Background(), "erin", "pw", "Light")
	require.NoError(t, err)
	assert.Equal(t, 1, tx.calls)
	require.Len(t, events.got, 1)
	assert.Equal(t, a.ID, events.got[0].UserID)
	assert.Equal(t, "erin", events.got[0].Login)
	assert.Equal(t, "Light", events.got[0].Theme)
}

func TestUsecase_RegisterFailsWhenEventFails(t *testing.T) {
	t.Parallel()
	store, _ := newSQLiteStore(t)
	boom := errors.New("outbox full")
	uc := NewUseCase(store, testConfig(t), WithEvents(&recordingEvents{err: boom}, nil))

	_, err := uc.Register(context.Background(), "frank", "pw", "Dark")
	assert.ErrorIs(t, err, boom)
}

func TestUsecase_AccountCount(t *testing.T) {
	t.Parallel()
	uc, _ := newTestUsecase(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), uc.AccountCount(ctx))
	_, err := uc.Register(ctx, "gina", "pw", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), uc.AccountCount(ctx))
}
