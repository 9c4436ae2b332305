package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	authcore "github.com/NordCoder/AuthServer/internal/auth"
	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/obs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	// ErrBadCredentials is the only login failure callers ever see.
	ErrBadCredentials  = errors.New("bad credentials")
	ErrInvalidTheme    = errors.New("unknown theme")
	ErrInvalidLogin    = errors.New("login must not be empty")
	ErrPasswordTooLong = authcore.ErrPasswordTooLong
	ErrEmptyPassword   = authcore.ErrEmptyPassword
)

var (
	loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_total",
		Help: "Login attempts by result (ok, bad_credentials, error).",
	}, []string{"result"})
	loginScheme = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_scheme_total",
		Help: "Stored hash schemes met by logins of existing accounts.",
	}, []string{"scheme"})
	registerTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_register_total",
		Help: "Registrations by result (ok, duplicate, invalid, error).",
	}, []string{"result"})
)

type Config struct {
	Codec        *authcore.Codec
	Verifier     *authcore.Verifier
	TTL          time.Duration
	DefaultTheme string
	Themes       []string
	BcryptCost   int
	Now          func() time.Time
	Logger       *zap.Logger
}

// Session is the outcome of a successful login.
type Session struct {
	UserID    int64
	Login     string
	Theme     string
	Token     string
	ExpiresAt time.Time
}

type Usecase struct {
	store  account.Store
	events account.Events
	tx     account.Transactor
	cfg    Config
	log    *zap.Logger
}

type Option func(*Usecase)

// WithEvents records an account event for each registration. When tx is
// set the account and its event are written atomically.
func WithEvents(events account.Events, tx account.Transactor) Option {
	return func(u *Usecase) {
		u.events = events
		u.tx = tx
	}
}

func NewUseCase(store account.Store, cfg Config, opts ...Option) *Usecase {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.Verifier == nil {
		cfg.Verifier = authcore.NewVerifier(authcore.DefaultSchemes...)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	u := &Usecase{store: store, cfg: cfg, log: cfg.Logger}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Authenticate checks login and password and mints a session token. Unknown
// logins and wrong passwords both fail with ErrBadCredentials.
func (u *Usecase) Authenticate(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	log := obs.WithTrace(ctx, u.log)

	cred, err := u.store.LookupCredential(ctx, login)
	switch {
	case errors.Is(err, account.ErrNotFound):
		authcore.BurnCompare(password)
		loginTotal.WithLabelValues("bad_credentials").Inc()
		log.Info("auth.login", zap.String("login", login), zap.Bool("ok", false))
		return nil, ErrBadCredentials
	case err != nil:
		loginTotal.WithLabelValues("error").Inc()
		log.Error("auth.login lookup", zap.String("login", login), zap.Error(err))
		return nil, fmt.Errorf("lookup credential: %w", err)
	}

	loginScheme.WithLabelValues(string(authcore.DetectScheme(cred.PasswordHash))).Inc()
	if !u.cfg.Verifier.Verify(cred.PasswordHash, password) {
		loginTotal.WithLabelValues("bad_credentials").Inc()
		log.Info("auth.login", zap.String("login", login), zap.Bool("ok", false))
		return nil, ErrBadCredentials
	}

	theme := cred.Theme
	if theme == "" {
		theme = u.cfg.DefaultTheme
	}

	exp := u.cfg.Now().Add(u.cfg.TTL)
	token, err := u.cfg.Codec.Mint(authcore.NewSessionClaims(cred.UserID, login, exp))
	if err != nil {
		loginTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("mint token: %w", err)
	}

	loginTotal.WithLabelValues("ok").Inc()
	log.Info("auth.login", zap.String("login", login), zap.Bool("ok", true))
	return &Session{
		UserID:    cred.UserID,
		Login:     login,
		Theme:     theme,
		Token:     token,
		ExpiresAt: exp,
	}, nil
}

// Register creates an account with a bcrypt hash. An empty theme means the
// configured default.
func (u *Usecase) Register(ctx context.Context, login, password, theme string) (*account.Account, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		registerTotal.WithLabelValues("invalid").Inc()
		return nil, ErrInvalidLogin
	}
	if theme == "" {
		theme = u.cfg.DefaultTheme
	}
	if !slices.Contains(u.cfg.Themes, theme) {
		registerTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidTheme, theme)
	}

	hash, err := authcore.HashPassword(password, u.cfg.BcryptCost)
	if err != nil {
		registerTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	var created *account.Account
	create := func(ctx context.Context) error {
		a, err := u.store.CreateAccount(ctx, login, hash, theme)
		if err != nil {
			return err
		}
		if u.events != nil {
			ev := account.Registered{UserID: a.ID, Login: a.Login, Theme: a.Theme, At: u.cfg.Now()}
			if err := u.events.AccountRegistered(ctx, ev); err != nil {
				return fmt.Errorf("record account event: %w", err)
			}
		}
		created = a
		return nil
	}

	if u.tx != nil {
		err = u.tx.WithTx(ctx, create)
	} else {
		err = create(ctx)
	}

	log := obs.WithTrace(ctx, u.log)
	switch {
	case errors.Is(err, account.ErrDuplicateLogin):
		registerTotal.WithLabelValues("duplicate").Inc()
		log.Info("auth.register", zap.String("login", login), zap.Bool("ok", false))
		return nil, err
	case err != nil:
		registerTotal.WithLabelValues("error").Inc()
		log.Error("auth.register", zap.String("login", login), zap.Error(err))
		return nil, err
	}

	registerTotal.WithLabelValues("ok").Inc()
	log.Info("auth.register", zap.String("login", login), zap.Int64("user_id", created.ID), zap.String("theme", theme))
	return created, nil
}

func (u *Usecase) MintToken(claims any) (string, error) {
	return u.cfg.Codec.Mint(claims)
}

func (u *Usecase) VerifyToken(token string) (authcore.Claims, error) {
	return u.cfg.Codec.Verify(token)
}

// AccountCount reports the number of stored accounts, or -1 when the store
// cannot be queried.
func (u *Usecase) AccountCount(ctx context.Context) int64 {
	n, err := u.store.Count(ctx)
	if err != nil {
		obs.WithTrace(ctx, u.log).Warn("count accounts", zap.Error(err))
		return -1
	}
	return n
}

func (u *Usecase) Themes() []string { return slices.Clone(u.cfg.Themes) }
