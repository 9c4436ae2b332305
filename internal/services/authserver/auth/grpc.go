package auth

import (
	"context"
	"errors"

	"github.com/NordCoder/AuthServer/internal/domain/account"
	"github.com/golang/protobuf/ptypes/empty"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ AuthServiceServer = (*GRPCServer)(nil)

type GRPCServer struct {
	uc  *Usecase
	log *zap.Logger
}

func NewGRPCServer(uc *Usecase, log *zap.Logger) *GRPCServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCServer{uc: uc, log: log}
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := LoginRequest{Login: stringField(in, "login"), Password: stringField(in, "password")}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sess, err := s.uc.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return structpb.NewStruct(map[string]any{
		"ok":        true,
		"themeName": sess.Theme,
		"token":     sess.Token,
	})
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := RegisterRequest{
		Login:    stringField(in, "login"),
		Password: stringField(in, "password"),
		Theme:    stringField(in, "theme"),
	}
	if err := req.ValidateWithThemes(s.uc.Themes()); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	a, err := s.uc.Register(ctx, req.Login, req.Password, req.Theme)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return structpb.NewStruct(map[string]any{
		"ok":    true,
		"id":    float64(a.ID),
		"theme": a.Theme,
	})
}

func (s *GRPCServer) Me(ctx context.Context, _ *empty.Empty) (*structpb.Struct, error) {
	claims, ok := ClaimsFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	out, err := structpb.NewStruct(claims)
	if err != nil {
		return nil, status.Error(codes.Internal, "claims not representable")
	}
	return out, nil
}

func (s *GRPCServer) Ping(context.Context, *empty.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"ok": true})
}

func (s *GRPCServer) mapErr(err error) error {
	switch {
	case errors.Is(err, ErrBadCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, account.ErrDuplicateLogin):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, ErrInvalidTheme), errors.Is(err, ErrInvalidLogin),
		errors.Is(err, ErrPasswordTooLong), errors.Is(err, ErrEmptyPassword):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.log.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal")
	}
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}
