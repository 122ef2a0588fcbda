package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/nerrad567/gray-logic-hub/internal/wire"
)

// Server accepts client connections on the gateway command port.
type Server struct {
	addr   string
	router *Router
	logger Logger

	mu    sync.Mutex
	ln    net.Listener
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

// NewServer creates a command server for addr (e.g. "0.0.0.0:6000").
func NewServer(addr string, r *Router) *Server {
	return &Server{
		addr:   addr,
		router: r,
		logger: noopLogger{},
		conns:  make(map[net.Conn]struct{}),
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// Listen binds the command port. Run calls it when needed.
func (s *Server) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ln != nil {
		return nil
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("binding command port: %w", err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run accepts connections until ctx is done, then closes every open
// connection and waits for their handlers to return.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close() //nolint:errcheck // unblocks Accept
		s.closeConns()
	}()

	s.logger.Info("command server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				s.logger.Info("command server stopped")
				return nil
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		if !s.track(conn) {
			conn.Close() //nolint:errcheck // shutting down
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn answers requests on one connection until the peer closes it
// or a frame cannot be decoded.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	peer := conn.RemoteAddr().String()
	s.logger.Debug("client connected", "peer", peer)

	for {
		var req wire.ClientRequest
		if err := wire.ReadMessage(conn, &req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("client session ended", "peer", peer, "error", err)
			}
			break
		}

		resp := s.router.Handle(ctx, &req)
		if err := wire.WriteMessage(conn, resp); err != nil {
			s.logger.Debug("writing client response failed", "peer", peer, "error", err)
			break
		}
	}

	s.logger.Debug("client disconnected", "peer", peer)
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conns == nil {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	conn.Close() //nolint:errcheck // already finished
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()

	for c := range conns {
		c.Close() //nolint:errcheck // shutting down
	}
}
