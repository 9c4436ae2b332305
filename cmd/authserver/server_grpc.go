package main

import (
	"net"

	config "github.com/NordCoder/AuthServer/internal/config/authserver"
	"github.com/NordCoder/AuthServer/internal/obs"
	authsvc "github.com/NordCoder/AuthServer/internal/services/authserver/auth"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

func buildGRPCServer(cfg *config.Config, logger *zap.Logger, authUC *authsvc.Usecase) (*grpc.Server, net.Listener, error) {
	authSrv := authsvc.NewGRPCServer(authUC, logger)

	grpcMetrics := grpcprometheus.NewServerMetrics()

	opts := obs.GRPCServerOpts()
	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			authsvc.UnaryAuthInterceptor(authUC.VerifyToken),
		),
		grpc.ChainStreamInterceptor(
			grpcMetrics.StreamServerInterceptor(),
		),
	)

	grpcServer := grpc.NewServer(opts...)
	authsvc.RegisterAuthServiceServer(grpcServer, authSrv)
	grpcMetrics.InitializeMetrics(grpcServer)

	reflection.Register(grpcServer)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, err
	}
	return grpcServer, ln, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
	return s.Serve(ln)
}
