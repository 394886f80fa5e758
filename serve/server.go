package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	archchan "github.com/berkucuk/archchan"
	"github.com/berkucuk/archchan/agent"
)

// Dispatcher turns one decoded request into exactly one response.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *agent.Request) *archchan.Response
}

// Options tune per-session behavior.
type Options struct {
	DefaultLanguage string
	MaxFrameBytes   int
	MaxHistoryTurns int
}

// Server accepts TCP connections and runs one session per connection.
type Server struct {
	listener   net.Listener
	dispatcher Dispatcher
	opts       Options
	started    time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// OptionsFromConfig returns the session options set in cfg.
func OptionsFromConfig(cfg *archchan.Config) Options {
	return Options{
		DefaultLanguage: cfg.Server.DefaultLanguage,
		MaxFrameBytes:   cfg.Server.MaxFrameBytes,
		MaxHistoryTurns: cfg.Generation.MaxHistoryTurns,
	}
}

// NewServerWithDispatcher listens on addr with a custom Dispatcher.
func NewServerWithDispatcher(addr string, d Dispatcher, opts Options) (*Server, error) {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = archchan.DefaultLanguage
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		listener:   listener,
		dispatcher: d,
		opts:       opts,
		started:    time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*Session),
	}, nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until Close is called, then returns nil.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops accepting, closes every active session and waits for their loops to finish.
func (s *Server) Close() {
	var conns []frameConn
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.cancel()
		s.listener.Close()
		for _, sess := range s.sessions {
			conns = append(conns, sess.conn)
		}
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
}

func (s *Server) handleConn(conn net.Conn) {
	slog.Debug("connection accepted", "remote", conn.RemoteAddr())
	s.serveSession(newTCPConn(conn, s.opts.MaxFrameBytes), conn.RemoteAddr().String())
}

// serveSession registers a session for conn and runs it to completion.
func (s *Server) serveSession(conn frameConn, remote string) {
	defer conn.Close()

	sess := newSession(conn, remote, s.opts.DefaultLanguage, s.opts.MaxHistoryTurns)
	if !s.register(sess) {
		return
	}
	defer s.unregister(sess)

	sess.run(s.ctx, s.dispatcher)
}

func (s *Server) register(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[sess.ID] = sess
	s.wg.Add(1)
	return true
}

func (s *Server) unregister(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.ID)
	s.mu.Unlock()
	s.wg.Done()
}

// ActiveSessions returns the number of connected sessions.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.started)
}
