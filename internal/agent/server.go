// Package agent exposes an unlocked vault to other local processes over
// gRPC on a unix socket.
//
// Unlock returns a session token that every other call except Status must
// carry in the "authorization" metadata. Tokens die with the unlocked
// period: any lock, explicit or automatic, revokes them all.
package agent

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/autolock"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/vault"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// AuthorizationHeader is the metadata key carrying the session token.
const AuthorizationHeader = "authorization"

// publicMethods may be called without a token.
var publicMethods = map[string]bool{
	MethodStatus: true,
	MethodUnlock: true,
}

// Default unlock throttle: a burst of five attempts, then one per second.
const (
	DefaultUnlockRate  = rate.Limit(1)
	DefaultUnlockBurst = 5
)

type Server struct {
	manager  *vault.Manager
	logger   logging.Logger
	socket   string
	sessions *sessions
	now      func() time.Time
	unlocks  *rate.Limiter
}

type ServerOption func(*Server)

// WithServerClock replaces time.Now for token timestamps and TOTP codes.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// WithUnlockLimit replaces the unlock throttle. Every Unlock call takes a
// token, successful or not.
func WithUnlockLimit(r rate.Limit, burst int) ServerOption {
	return func(s *Server) { s.unlocks = rate.NewLimiter(r, burst) }
}

// NewServer builds an agent for m listening on socket. Tokens live for ttl
// unless the vault locks first.
func NewServer(m *vault.Manager, socket string, ttl time.Duration, l logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		manager: m,
		logger:  l.With("module", "agent"),
		socket:  socket,
		now:     time.Now,
		unlocks: rate.NewLimiter(DefaultUnlockRate, DefaultUnlockBurst),
	}
	for _, o := range opts {
		o(s)
	}
	s.sessions = newSessions(ttl, s.now, m.Unlocked)

	m.OnLock(func(r autolock.Reason) {
		s.sessions.revoke()
		s.logger.Info(context.Background(), "sessions revoked", "reason", r.String())
	})
	return s
}

// Run listens on the unix socket and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if _, err := filex.EnsureParentDir(s.socket); err != nil {
		return err
	}
	if err := filex.RemoveStale(s.socket); err != nil {
		return err
	}

	listen, err := net.Listen("unix", s.socket)
	if err != nil {
		return err
	}
	if err := os.Chmod(s.socket, 0o600); err != nil {
		listen.Close()
		return err
	}
	defer filex.RemoveStale(s.socket)

	return s.Serve(ctx, listen)
}

// Serve runs the gRPC server on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.authInterceptor))
	srv.RegisterService(&ServiceDesc, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping agent...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting agent", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := s.now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "call failed", "method", info.FullMethod, "error", err)
	} else {
		s.logger.Debug(ctx, "call", "method", info.FullMethod, "elapsed", s.now().Sub(start))
	}
	return resp, err
}

func (s *Server) authInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var token string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(AuthorizationHeader); len(values) > 0 {
			token = strings.TrimSpace(strings.TrimPrefix(values[0], "Bearer "))
		}
	}
	if token == "" {
		return nil, toStatus(ErrMissingToken)
	}
	if err := s.sessions.verify(token); err != nil {
		return nil, toStatus(err)
	}
	return handler(ctx, req)
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, err := s.manager.State(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	bio, err := s.manager.BiometricEnabled(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	p := s.manager.AutoLockPolicy()

	return structpb.NewStruct(map[string]any{
		"state":             st.String(),
		"biometric_enabled": bio,
		"autolock_seconds":  p.InactivityTimeout.Seconds(),
	})
}

func (s *Server) Unlock(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if !s.unlocks.AllowN(s.now(), 1) {
		s.logger.Warn(ctx, "unlock throttled")
		return nil, toStatus(ErrTooManyTries)
	}
	password := in.GetValue()
	defer cryptox.Wipe(password)

	if err := s.manager.Unlock(ctx, password); err != nil {
		return nil, toStatus(err)
	}
	token, err := s.sessions.issue()
	if err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info(ctx, "session issued")
	return wrapperspb.String(token), nil
}

func (s *Server) Lock(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.manager.Lock()
	return &emptypb.Empty{}, nil
}

func (s *Server) Search(_ context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	entries, err := s.manager.SearchEntries(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	out := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(entries))}
	for _, e := range entries {
		st, err := entryToStruct(redact(e))
		if err != nil {
			return nil, toStatus(err)
		}
		out.Values = append(out.Values, structpb.NewStructValue(st))
	}
	return out, nil
}

func (s *Server) GetEntry(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	e, err := s.manager.Entry(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	st, err := entryToStruct(e)
	if err != nil {
		return nil, toStatus(err)
	}
	return st, nil
}

func (s *Server) TOTP(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	code, err := s.manager.TOTP(in.GetValue(), s.now())
	if err != nil {
		return nil, toStatus(err)
	}
	return codeToStruct(code), nil
}

func (s *Server) Touch(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.manager.Touch()
	return &emptypb.Empty{}, nil
}
