package main

import (
	"context"
	"net/http"
	"time"

	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/NordCoder/AuthServer/internal/obs"
	authsvc "github.com/NordCoder/AuthServer/internal/services/authserver/auth"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, authUC *authsvc.Usecase, st *store) (*http.Server, error) {
	mux := runtime.NewServeMux()
	api := authsvc.NewHTTPServer(authUC, authsvc.HTTPOpts{
		Logger:         logger,
		DebugEndpoints: cfg.Server.DebugEndpoints,
		Store:          st.info,
	})
	if err := api.Register(mux); err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/", mux)
	root.Handle("/metrics", obs.MetricsHandler())
	root.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		hctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := st.Ping(hctx); err != nil {
			http.Error(w, "unhealthy: db", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var handler http.Handler = root
	handler = authsvc.CORS(cfg.Server.CORSOrigins)(handler)
	handler = authsvc.TrustedHosts(cfg.Server.TrustedHosts)(handler)
	handler = obs.Recover(logger, handler)
	handler = obs.AccessLog(logger, handler)
	handler = obs.HTTPHandler(handler, "authserver.http")

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
