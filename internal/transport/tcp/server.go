// Package tcp serves players over newline-delimited JSON on raw TCP.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/protocol"
)

const (
	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
)

type Options struct {
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// Server accepts player connections and feeds their answers to a session.
type Server struct {
	session          *app.Session
	writeTimeout     time.Duration
	handshakeTimeout time.Duration

	wg    sync.WaitGroup
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(session *app.Session, opts Options) *Server {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Server{
		session:          session,
		writeTimeout:     opts.WriteTimeout,
		handshakeTimeout: opts.HandshakeTimeout,
		conns:            make(map[net.Conn]struct{}),
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("tcp: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is done, then closes every open connection
// and waits for their handlers to return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	slog.InfoContext(ctx, "tcp: listening", "addr", ln.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
		s.closeAll()
	})
	defer stop()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("tcp: accept: %w", err)
		}

		s.track(nc, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(nc, false)
			s.handle(ctx, nc)
		}()
	}
}

func (s *Server) track(nc net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[nc] = struct{}{}
	} else {
		delete(s.conns, nc)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for nc := range s.conns {
		_ = nc.Close()
	}
}

func (s *Server) handle(ctx context.Context, nc net.Conn) {
	defer nc.Close()
	if ctx.Err() != nil {
		return
	}
	remote := nc.RemoteAddr().String()
	r := protocol.NewReader(nc)

	_ = nc.SetReadDeadline(time.Now().Add(s.handshakeTimeout))
	name, err := r.ReadHandshake()
	if err != nil {
		slog.InfoContext(ctx, "tcp: handshake failed", "remote", remote, "error", err)
		s.reject(nc, err)
		return
	}
	_ = nc.SetReadDeadline(time.Time{})

	peer, err := s.session.Join(ctx, name, &conn{nc: nc, timeout: s.writeTimeout})
	if err != nil {
		slog.InfoContext(ctx, "tcp: join rejected", "remote", remote, "player", name, "error", err)
		s.reject(nc, err)
		return
	}
	defer s.session.Leave(context.WithoutCancel(ctx), peer)

	for {
		frame, err := r.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				slog.InfoContext(ctx, "tcp: read failed", "player", name, "error", err)
			}
			return
		}

		ans, err := protocol.DecodeAnswer(frame)
		if err != nil {
			slog.WarnContext(ctx, "tcp: drop malformed record", "player", name, "error", err)
			continue
		}
		if err := s.session.SubmitAnswer(ctx, name, ans); err != nil {
			slog.DebugContext(ctx, "tcp: answer rejected", "player", name, "error", err)
		}
	}
}

// reject tells a client why it was refused. Best effort: the connection is
// closed right after.
func (s *Server) reject(nc net.Conn, cause error) {
	b, err := protocol.Encode(protocol.NewError(cause.Error()))
	if err != nil {
		return
	}
	_ = nc.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	_ = protocol.WriteFrame(nc, b)
}

// conn adapts a net.Conn to app.Transport.
type conn struct {
	nc      net.Conn
	timeout time.Duration
	mu      sync.Mutex
}

func (c *conn) WriteMessage(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.nc.SetWriteDeadline(time.Now().Add(c.timeout))
	if err := protocol.WriteFrame(c.nc, msg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrTransportFailure, err)
	}
	return nil
}

func (c *conn) Close() error {
	return c.nc.Close()
}
