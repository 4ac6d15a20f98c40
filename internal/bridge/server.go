package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/san-kum/cartpole/internal/cartpole"
)

const (
	DefaultAddr         = "127.0.0.1:25333"
	DefaultMaxLineBytes = 1 << 20
)

type Config struct {
	Addr string
	// MaxSessions caps concurrent connections; 0 means unlimited.
	MaxSessions int
	// IdleTimeout closes a session that sends nothing for this long;
	// 0 disables it.
	IdleTimeout time.Duration
	// MaxLineBytes bounds a single request line; longer lines are
	// discarded and answered with bad_request. 0 means DefaultMaxLineBytes.
	MaxLineBytes int
}

// Server exposes one simulator per connection over newline-delimited
// JSON. Simulators are never shared between connections.
type Server struct {
	cfg    Config
	opts   []cartpole.Option
	logger *log.Logger

	mu    sync.Mutex
	addr  net.Addr
	conns map[string]net.Conn
	// closing is set by closeAll; register refuses sessions after it.
	closing bool
	wg      sync.WaitGroup
}

// NewServer builds a server; opts are applied to every session's
// simulator.
func NewServer(cfg Config, logger *log.Logger, opts ...cartpole.Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = DefaultMaxLineBytes
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		conns:  make(map[string]net.Conn),
	}
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled or ln fails,
// then closes every open session and waits for them to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	var once sync.Once
	shutdown := func() {
		once.Do(func() {
			ln.Close()
			s.closeAll()
		})
	}
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		shutdown()
	}()

	s.mu.Lock()
	s.addr = ln.Addr()
	s.closing = false
	s.mu.Unlock()
	s.logger.Info("bridge listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				shutdown()
				s.wg.Wait()
				s.logger.Info("bridge stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.logger.Error("accept failed, closing sessions", "err", err)
			shutdown()
			s.wg.Wait()
			return err
		}

		id, err := s.register(conn)
		if err != nil {
			if errors.Is(err, errSessionLimit) {
				s.logger.Warn("session limit reached, rejecting connection",
					"remote", conn.RemoteAddr().String(), "max_sessions", s.cfg.MaxSessions)
			} else {
				s.logger.Debug("rejecting connection", "remote", conn.RemoteAddr().String(), "err", err)
			}
			conn.Close()
			continue
		}

		go s.serveConn(id, conn)
	}
}

// Addr returns the listening address once Serve has started, and the
// configured address before that.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return s.cfg.Addr
	}
	return s.addr.String()
}

// Sessions returns the number of open connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

var (
	errSessionLimit = errors.New("session limit reached")
	errShuttingDown = errors.New("server shutting down")
)

// register adds conn to the session table. Once closeAll has run no
// further sessions are accepted, so a connection accepted during
// shutdown cannot outlive it.
func (s *Server) register(conn net.Conn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return "", errShuttingDown
	}
	if s.cfg.MaxSessions > 0 && len(s.conns) >= s.cfg.MaxSessions {
		return "", errSessionLimit
	}
	id := uuid.NewString()
	s.conns[id] = conn
	s.wg.Add(1)
	return id, nil
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closing = true
	for _, conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) serveConn(id string, conn net.Conn) {
	defer s.wg.Done()
	defer s.unregister(id)
	defer conn.Close()

	logger := s.logger.With("session", id, "remote", conn.RemoteAddr().String())
	logger.Info("session opened")

	sess := newSession(id, s.opts...)
	rd := bufio.NewReader(conn)
	enc := json.NewEncoder(conn)

	for {
		if s.cfg.IdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		raw, err := readLine(rd, s.cfg.MaxLineBytes)
		if errors.Is(err, errLineTooLong) {
			logger.Warn("request line too long", "max_bytes", s.cfg.MaxLineBytes)
			resp := Response{Error: &ErrorMessage{Code: CodeBadRequest, Message: err.Error()}}
			if err := enc.Encode(resp); err != nil {
				logger.Debug("session write failed", "err", err)
				return
			}
			continue
		}
		if err != nil {
			var ne net.Error
			switch {
			case errors.Is(err, io.EOF):
				logger.Info("session closed", "steps", sess.steps)
			case errors.As(err, &ne) && ne.Timeout():
				logger.Info("session idle, closing", "steps", sess.steps)
			default:
				logger.Debug("session read ended", "err", err, "steps", sess.steps)
			}
			return
		}

		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		var resp Response
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp = Response{Error: &ErrorMessage{Code: CodeBadRequest, Message: err.Error()}}
		} else {
			resp = sess.handle(req)
		}

		if resp.Error != nil {
			logger.Warn("request failed", "op", req.Op, "id", req.ID, "code", resp.Error.Code)
		} else {
			logger.Debug("request", "op", req.Op, "id", req.ID)
		}

		if err := enc.Encode(resp); err != nil {
			logger.Debug("session write failed", "err", err)
			return
		}
	}
}

var errLineTooLong = errors.New("request line too long")

// readLine returns the next newline-terminated line. A line longer than
// max is consumed in full and reported as errLineTooLong so the stream
// stays aligned on the following request.
func readLine(rd *bufio.Reader, max int) ([]byte, error) {
	var line []byte
	tooLong := false
	for {
		chunk, err := rd.ReadSlice('\n')
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > max+1 {
				tooLong = true
				line = nil
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0 && !tooLong:
			return line, nil
		case err != nil:
			return nil, err
		}
		if tooLong {
			return nil, errLineTooLong
		}
		return line, nil
	}
}
