package main

import (
	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/NordCoder/AuthServer/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.LoggerConfig())
}
