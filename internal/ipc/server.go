package ipc

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/merci1994dz/appdreamer-creator/internal/catalog"
	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/status"
	"github.com/merci1994dz/appdreamer-creator/internal/sync"
)

// Refresher runs an on-demand sync.
type Refresher interface {
	Refresh(ctx context.Context, force bool) sync.Report
}

// ChannelLister reads the cached catalog.
type ChannelLister interface {
	ListChannels(ctx context.Context, limit int) ([]catalog.Channel, error)
	CountChannels(ctx context.Context) (int, error)
}

// Server wraps the gRPC server for daemon IPC.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	status    *status.Store
	refresher Refresher
	channels  ChannelLister
	ver       string

	grpcServer *grpc.Server
	listener   net.Listener
}

// NewServer constructs a gRPC IPC server.
func NewServer(cfg *config.Config, logger *zap.Logger, statusStore *status.Store, refresher Refresher, channels ChannelLister) (*Server, error) {
	if statusStore == nil {
		return nil, errors.New("ipc: status store is required")
	}
	if refresher == nil {
		return nil, errors.New("ipc: refresher is required")
	}
	if channels == nil {
		return nil, errors.New("ipc: channel lister is required")
	}
	return &Server{
		cfg:       cfg,
		logger:    logger,
		status:    statusStore,
		refresher: refresher,
		channels:  channels,
		ver:       "dev",
	}, nil
}

// WithVersion sets the server version string.
func (s *Server) WithVersion(version string) {
	if version != "" {
		s.ver = version
	}
}

// Start begins serving over a Unix domain socket and blocks until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if s.cfg.SocketPath == "" {
		return errors.New("socket path not configured")
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0o700); err != nil {
		return err
	}
	_ = os.Remove(s.cfg.SocketPath)

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		return err
	}
	s.listener = ln

	s.grpcServer = grpc.NewServer()
	RegisterDaemonServer(s.grpcServer, s)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ipc server listening", zap.String("socket", s.cfg.SocketPath))
		errCh <- s.grpcServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		_ = ln.Close()
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop forces the gRPC server to stop.
func (s *Server) Stop() {
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

// Ping returns daemon version.
func (s *Server) Ping(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	_ = ctx
	return wrapperspb.String(s.ver), nil
}

// GetStatus returns the current status snapshot.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	_ = ctx
	reply := toStatusReply(s.status.Current())
	reply.RequestID = uuid.NewString()
	return encode(reply)
}

// Refresh runs a sync and waits for its outcome. The flag forces a full replace.
func (s *Server) Refresh(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error) {
	rep := s.refresher.Refresh(ctx, req.GetValue())
	if err := ctx.Err(); err != nil {
		return nil, statusError(err)
	}
	reply := toRefreshReply(rep)
	reply.RequestID = uuid.NewString()
	s.logger.Info("refresh served", zap.String("request_id", reply.RequestID), zap.String("outcome", reply.Outcome))
	return encode(reply)
}

// ListChannels returns up to limit cached channels ordered by name.
func (s *Server) ListChannels(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	list, err := s.channels.ListChannels(ctx, int(req.GetValue()))
	if err != nil {
		return nil, grpcstatus.Error(codes.Unavailable, err.Error())
	}
	total, err := s.channels.CountChannels(ctx)
	if err != nil {
		return nil, grpcstatus.Error(codes.Unavailable, err.Error())
	}
	if list == nil {
		list = []catalog.Channel{}
	}
	return encode(&ChannelsReply{RequestID: uuid.NewString(), Total: total, Channels: list})
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, grpcstatus.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func statusError(err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return grpcstatus.FromContextError(err).Err()
	}
	return err
}
