package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/NordCoder/AuthServer/internal/migrations"
	"github.com/NordCoder/AuthServer/internal/repository/sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

func main() {
	cfgPath := flag.String("config", "config/authserver.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.DB.DSN = dsn
		cfg.Store.Driver = config.DriverPostgres
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, dialect, err := open(ctx, cfg)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	n, err := migrations.Up(ctx, db, dialect)
	if err != nil {
		log.Fatalf("migrate up: %v", err)
	}
	ver, err := migrations.Version(ctx, db, dialect)
	if err != nil {
		log.Fatalf("read version: %v", err)
	}
	log.Printf("migrations: up OK (%s, applied=%d, version=%d)", dialect, n, ver)
}

func open(ctx context.Context, cfg *config.Config) (*sql.DB, goose.Dialect, error) {
	if cfg.Store.Driver == config.DriverSQLite {
		db, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		return db, goose.DialectSQLite3, err
	}
	db, err := sql.Open("pgx", cfg.DB.DSN)
	if err != nil {
		return nil, "", err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, goose.DialectPostgres, nil
}
