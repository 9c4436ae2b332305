package auth

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestGRPC(t *testing.T) *AuthServiceClient {
	t.Helper()
	uc, _ := newTestUsecase(t)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryAuthInterceptor(uc.VerifyToken)))
	RegisterAuthServiceServer(srv, NewGRPCServer(uc, zaptest.NewLogger(t)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewAuthServiceClient(conn)
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestGRPC_Flow(t *testing.T) {
	t.Parallel()
	c := newTestGRPC(t)
	ctx := context.Background()

	pong, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.True(t, pong.GetFields()["ok"].GetBoolValue())

	reg, err := c.Register(ctx, mustStruct(t, map[string]any{"login": "alice", "password": "s3cret!", "theme": "Light"}))
	require.NoError(t, err)
	assert.Equal(t, "Light", reg.GetFields()["theme"].GetStringValue())

	out, err := c.Login(ctx, mustStruct(t, map[string]any{"login": "alice", "password": "s3cret!"}))
	require.NoError(t, err)
	assert.Equal(t, "Light", out.GetFields()["themeName"].GetStringValue())
	token := out.GetFields()["token"].GetStringValue()
	require.NotEmpty(t, token)

	mctx := metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	me, err := c.Me(mctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.GetFields()["login"].GetStringValue())
	assert.Equal(t, "1", me.GetFields()["sub"].GetStringValue())
}

func TestGRPC_ErrorCodes(t *testing.T) {
	t.Parallel()
	c := newTestGRPC(t)
	ctx := context.Background()

	creds := mustStruct(t, map[string]any{"login": "bob", "password": "pw"})
	_, err := c.Register(ctx, creds)
	require.NoError(t, err)

	_, err = c.Register(ctx, creds)
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	_, err = c.Login(ctx, mustStruct(t, map[string]any{"login": "bob", "password": "nope"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.Login(ctx, mustStruct(t, map[string]any{"login": "nosuchuser", "password": "nope"}))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.Login(ctx, mustStruct(t, map[string]any{"login": "bob"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Register(ctx, mustStruct(t, map[string]any{"login": "x", "password": "y", "theme": "Neon"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPC_MeRequiresToken(t *testing.T) {
	t.Parallel()
	c := newTestGRPC(t)
	ctx := context.Background()

	_, err := c.Me(ctx)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.Me(metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer garbage"))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}
