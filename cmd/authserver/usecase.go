package main

import (
	authcore "github.com/NordCoder/AuthServer/internal/auth"
	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	authsvc "github.com/NordCoder/AuthServer/internal/services/authserver/auth"
	"go.uber.org/zap"
)

func buildUsecase(cfg *config.Config, logger *zap.Logger, st *store, ev *events) (*authsvc.Usecase, error) {
	schemes, err := cfg.Schemes()
	if err != nil {
		return nil, err
	}
	warnInsecureSettings(cfg, logger, schemes)

	codec := authcore.NewCodec(authcore.CodecConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		RequireExp: cfg.Auth.RequireExp,
	})

	var opts []authsvc.Option
	if ev.sink != nil {
		opts = append(opts, authsvc.WithEvents(ev.sink, ev.tx))
	}

	return authsvc.NewUseCase(st.accounts, authsvc.Config{
		Codec:        codec,
		Verifier:     authcore.NewVerifier(schemes...),
		TTL:          cfg.Auth.TokenTTL(),
		DefaultTheme: cfg.Auth.DefaultTheme,
		Themes:       cfg.Auth.Themes,
		BcryptCost:   cfg.Auth.BcryptCost,
		Logger:       logger,
	}, opts...), nil
}
