package main

import (
	"context"
	"database/sql"
	"fmt"

	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/NordCoder/AuthServer/internal/migrations"
	pg "github.com/NordCoder/AuthServer/internal/repository/postgres"
	"github.com/NordCoder/AuthServer/internal/repository/sqlite"
	authsvc "github.com/NordCoder/AuthServer/internal/services/authserver/auth"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// store is the account store selected by store.driver. Exactly one of pg
// and lite is set.
type store struct {
	accounts account.Store
	pg       *pg.DB
	lite     *sql.DB
	info     authsvc.StoreInfo
}

func initStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		n, err := migrations.Up(ctx, db, goose.DialectSQLite3)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("sqlite schema up to date", zap.Int("applied", n))
		return &store{
			accounts: sqlite.NewAccountRepo(db),
			lite:     db,
			info:     authsvc.StoreInfo{Driver: config.DriverSQLite, Path: cfg.Store.SQLitePath},
		}, nil

	case config.DriverPostgres:
		db, err := pg.NewDB(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		return &store{
			accounts: pg.NewAccountRepo(db),
			pg:       db,
			info:     authsvc.StoreInfo{Driver: config.DriverPostgres},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func (s *store) Ping(ctx context.Context) error {
	if s.pg != nil {
		return s.pg.Ping(ctx)
	}
	return s.lite.PingContext(ctx)
}

func (s *store) Close() {
	if s.pg != nil {
		s.pg.Close()
	}
	if s.lite != nil {
		_ = s.lite.Close()
	}
}
