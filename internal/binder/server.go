package binder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"wellbeing/internal/logging"
)

// Provider implements the framework service behind a Server.
type Provider interface {
	Bind(ctx context.Context, req BindRequest) (BindResponse, error)
	VersionCode() int
	SetAirplaneMode(ctx context.Context, enabled bool) error
	AirplaneMode(ctx context.Context) (bool, error)
}

// Server exposes a Provider via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer listens on path, replacing any stale socket file.
func NewServer(ctx context.Context, path string, provider Provider, logger *slog.Logger) (*Server, error) {
	if provider == nil {
		return nil, errors.New("binder server requires provider")
	}
	logger = logging.NewComponentLogger(logger, "framework-server")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{provider: provider, logger: logger, ctx: serverCtx}
	if err := rpcServer.RegisterName(ServiceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve accepts connections until Close is called or the context ends.
func (s *Server) Serve() {
	s.logger.Debug("framework server listening", logging.String("socket", s.path))
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		<-s.ctx.Done()
		_ = s.listener.Close()
		s.closeConns()
	}()
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "framework_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "clients may fail to bind"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the framework service"))
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.untrack(c)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server, drops every client connection and removes the
// socket file.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.closeConns()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "framework_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

type service struct {
	provider Provider
	logger   *slog.Logger
	ctx      context.Context
}

func (s *service) Bind(req BindRequest, resp *BindResponse) error {
	result, err := s.provider.Bind(s.ctx, req)
	if err != nil {
		return err
	}
	*resp = result
	s.logger.Debug("bind handled",
		logging.String("client_id", req.ClientID),
		logging.Bool("available", resp.Available))
	return nil
}

func (s *service) Ping(_ PingRequest, resp *PingResponse) error {
	resp.OK = true
	return nil
}

func (s *service) VersionCode(_ VersionCodeRequest, resp *VersionCodeResponse) error {
	resp.Version = s.provider.VersionCode()
	return nil
}

func (s *service) SetAirplaneMode(req SetAirplaneModeRequest, resp *SetAirplaneModeResponse) error {
	if err := s.provider.SetAirplaneMode(s.ctx, req.Enabled); err != nil {
		return err
	}
	resp.Enabled = req.Enabled
	return nil
}

func (s *service) AirplaneMode(_ AirplaneModeRequest, resp *AirplaneModeResponse) error {
	enabled, err := s.provider.AirplaneMode(s.ctx)
	if err != nil {
		return err
	}
	resp.Enabled = enabled
	return nil
}
