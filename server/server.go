package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guseggert/lambchops/closure"
	"github.com/guseggert/lambchops/status"
	"github.com/guseggert/lambchops/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// Server runs the closures its clients send. Each connection is served by its own goroutine, with its own
// Registry, and a failure on one connection never affects another.
type Server struct {
	logger  *zap.SugaredLogger
	catalog *closure.Catalog

	listenAddr string
	httpAddr   string

	listener     net.Listener
	httpListener net.Listener
	httpServer   *http.Server

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	closed   bool
	wg       sync.WaitGroup

	heartbeatMut  sync.Mutex
	lastHeartbeat time.Time
}

type Option func(s *Server)

func WithListenAddr(addr string) Option {
	return func(s *Server) {
		s.listenAddr = addr
	}
}

// WithHTTPAddr enables the HTTP side-channel (heartbeat, connection listing and the WebSocket transport) on addr.
func WithHTTPAddr(addr string) Option {
	return func(s *Server) {
		s.httpAddr = addr
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.logger = l.Named("lambchops_server").Sugar()
	}
}

func WithLogLevel(l zapcore.Level) Option {
	return func(s *Server) {
		s.logger = s.logger.WithOptions(zap.IncreaseLevel(l))
	}
}

// WithCatalog sets the catalog of closures this server can link and run. It defaults to closure.Default.
func WithCatalog(c *closure.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

func NewServer(opts ...Option) (*Server, error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	s := &Server{
		logger:     logger.Named("lambchops_server").Sugar(),
		catalog:    closure.Default,
		listenAddr: fmt.Sprintf("0.0.0.0:%d", wire.DefaultPort),
		sessions:   map[uuid.UUID]*session{},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Listen opens the listeners without serving them, so Addr and HTTPAddr are known before Serve is called.
func (s *Server) Listen() error {
	l, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listening TCP: %w", err)
	}
	s.listener = l

	if s.httpAddr != "" {
		hl, err := net.Listen("tcp", s.httpAddr)
		if err != nil {
			l.Close()
			return fmt.Errorf("listening HTTP: %w", err)
		}
		s.httpListener = hl
		s.httpServer = &http.Server{Handler: s.router()}
	}
	return nil
}

// Serve accepts connections until Stop is called.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}

	var g errgroup.Group
	g.Go(func() error {
		err := s.acceptLoop()
		if err != nil {
			s.Stop()
		}
		return err
	})
	if s.httpServer != nil {
		g.Go(func() error {
			err := s.httpServer.Serve(s.httpListener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			s.Stop()
			return err
		})
	}
	return g.Wait()
}

// Run listens and serves, returning once the server has stopped.
func (s *Server) Run() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) HTTPAddr() net.Addr {
	if s.httpListener == nil {
		return nil
	}
	return s.httpListener.Addr()
}

func (s *Server) acceptLoop() error {
	s.logger.Infof("server ready on %s", s.listener.Addr())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("accepting conn: %w", err)
		}
		go func() {
			_ = s.ServeConn(context.Background(), conn)
		}()
	}
}

// ServeConn runs the dispatch loop on rwc until the peer disconnects or the connection fails, then closes rwc.
// It returns nil on a clean disconnect.
func (s *Server) ServeConn(ctx context.Context, rwc io.ReadWriteCloser) error {
	remote := "unknown"
	if ra, ok := rwc.(interface{ RemoteAddr() net.Addr }); ok {
		remote = ra.RemoteAddr().String()
	}
	return s.serveConn(ctx, rwc, remote)
}

func (s *Server) serveConn(ctx context.Context, rwc io.ReadWriteCloser, remote string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := s.newSession(rwc, remote)
	if err != nil {
		rwc.Close()
		return err
	}
	defer s.endSession(sess)
	return sess.serve(ctx)
}

func (s *Server) newSession(rwc io.ReadWriteCloser, remote string) (*session, error) {
	id := uuid.New()
	sess := &session{
		id:       id,
		remote:   remote,
		since:    time.Now(),
		log:      s.logger.With("Conn", id.String()),
		catalog:  s.catalog,
		rwc:      rwc,
		conn:     wire.NewConn(rwc),
		registry: NewRegistry(s.catalog),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("server: stopped")
	}
	s.sessions[id] = sess
	s.wg.Add(1)
	return sess, nil
}

func (s *Server) endSession(sess *session) {
	if err := sess.rwc.Close(); err != nil {
		s.logger.Debugf("error closing conn %s: %s", sess.id, err)
	}
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	s.wg.Done()
}

// Connections returns a snapshot of the live connections, oldest first.
func (s *Server) Connections() []status.Connection {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	conns := make([]status.Connection, 0, len(sessions))
	for _, sess := range sessions {
		conns = append(conns, sess.snapshot())
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Since.Before(conns[j].Since) })
	return conns
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stop closes the listeners and every live connection, and waits for their goroutines to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var sessions []*session
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	var err error
	if s.listener != nil {
		err = multierr.Append(err, s.listener.Close())
	}
	if s.httpServer != nil {
		err = multierr.Append(err, s.httpServer.Close())
	}
	for _, sess := range sessions {
		_ = sess.rwc.Close()
	}
	s.wg.Wait()
	return err
}
