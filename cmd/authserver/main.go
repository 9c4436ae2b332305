package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	authcore "github.com/NordCoder/AuthServer/internal/auth"
	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", "config/authserver.yaml", "path to the YAML config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting authserver", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	st, err := initStore(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("store init", zap.Error(err))
	}
	defer st.Close()

	ev, err := initEvents(cfg, logger, st)
	if err != nil {
		logger.Fatal("events init", zap.Error(err))
	}
	defer ev.Close()

	authUC, err := buildUsecase(cfg, logger, st, ev)
	if err != nil {
		logger.Fatal("build usecase", zap.Error(err))
	}
	logger.Info("store ready",
		zap.String("driver", st.info.Driver),
		zap.String("path", st.info.Path),
		zap.Int64("users", authUC.AccountCount(rootCtx)),
	)

	var wg sync.WaitGroup
	if ev.runner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev.runner.Run(rootCtx)
		}()
	}

	grpcServer, grpcLn, err := buildGRPCServer(cfg, logger, authUC)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}

	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, cfg, logger) }()

	httpSrv, err := buildHTTPServer(cfg, logger, authUC, st)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-grpcErrCh:
		if runErr != nil {
			logger.Error("grpc serve", zap.Error(runErr))
		}
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	_ = httpSrv.Shutdown(shCtx)
	grpcServer.GracefulStop()
	wg.Wait()

	logger.Info("bye")
}

func warnInsecureSettings(cfg *config.Config, logger *zap.Logger, schemes []authcore.Scheme) {
	for _, s := range schemes {
		if s == authcore.SchemePlain {
			logger.Warn("plaintext password scheme is enabled; stored plaintext passwords will be accepted")
		}
	}
	if cfg.Auth.JWTSecret == config.PlaceholderSecret {
		logger.Warn("auth.jwt_secret is the placeholder value; set a real secret outside dev")
	}
	if cfg.Server.DebugEndpoints {
		logger.Warn("debug endpoints are enabled")
	}
}
