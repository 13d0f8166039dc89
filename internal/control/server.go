package control

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/loqalabs/yapper/internal/eventstore"
	"github.com/loqalabs/yapper/internal/session"
)

const maxLineBytes = 1024 * 1024

// Controller is the subset of *session.Controller the server drives.
type Controller interface {
	Start(ctx context.Context, device string) (string, error)
	Stop(ctx context.Context) error
	Status() session.Status
	Devices(ctx context.Context) ([]string, error)
}

// History answers transcript queries. *eventstore.Store satisfies it.
type History interface {
	Transcript(ctx context.Context, sessionID string) ([]string, error)
	RecentSessions(ctx context.Context, limit int) ([]eventstore.Session, error)
}

type Server struct {
	path    string
	ctrl    Controller
	history History
	logger  *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewServer(parent context.Context, path string, ctrl Controller, history History, logger *slog.Logger) *Server {
	ctx, cancel := context.WithCancel(parent)
	return &Server{
		path:    path,
		ctrl:    ctrl,
		history: history,
		logger:  logger.With(slog.String("component", "control")),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Start binds the socket, replacing a stale one left by a previous run, and
// begins accepting clients.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := removeStale(s.path); err != nil {
		return err
	}
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	s.logger.Info("control socket listening", slog.String("path", s.path))
	return nil
}

func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("accept failed", slogError(err))
			}
			return
		}
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp Response
		var cmd Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			resp = Response{Error: fmt.Sprintf("invalid command: %v", err)}
		} else {
			resp = s.Handle(cmd)
		}
		if err := enc.Encode(resp); err != nil {
			s.logger.Debug("client went away", slogError(err))
			return
		}
	}
}

// Handle executes one command.
func (s *Server) Handle(cmd Command) Response {
	switch cmd.Cmd {
	case CmdStart:
		id, err := s.ctrl.Start(s.ctx, cmd.Device)
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, SessionID: id, State: session.Recording.String(), Device: cmd.Device}

	case CmdStop:
		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		defer cancel()
		before := s.ctrl.Status()
		if err := s.ctrl.Stop(ctx); err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, SessionID: before.SessionID, State: session.Idle.String()}

	case CmdStatus:
		return statusResponse(s.ctrl.Status())

	case CmdDevices:
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		devices, err := s.ctrl.Devices(ctx)
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Devices: devices}

	case CmdTranscript:
		if cmd.SessionID == "" {
			return Response{Error: "sessionId is required"}
		}
		if s.history == nil {
			return Response{Error: "event store disabled"}
		}
		lines, err := s.history.Transcript(s.ctx, cmd.SessionID)
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, SessionID: cmd.SessionID, Lines: lines}

	case CmdSessions:
		if s.history == nil {
			return Response{Error: "event store disabled"}
		}
		sessions, err := s.history.RecentSessions(s.ctx, cmd.Limit)
		if err != nil {
			return errorResponse(err)
		}
		return Response{OK: true, Sessions: toSessionInfo(sessions)}

	default:
		return Response{Error: fmt.Sprintf("unknown command %q", cmd.Cmd)}
	}
}

func statusResponse(st session.Status) Response {
	resp := Response{
		OK:        true,
		State:     st.State.String(),
		SessionID: st.SessionID,
		Device:    st.Device,
	}
	if st.SessionID != "" {
		started := st.StartedAt
		resp.StartedAt = &started
		resp.Emitted = intPtr(st.Emitted)
		resp.Pending = intPtr(st.Pending)
	}
	return resp
}

func toSessionInfo(sessions []eventstore.Session) []SessionInfo {
	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		info := SessionInfo{
			SessionID: sess.ID,
			Device:    sess.Device,
			StartedAt: sess.StartedAt,
			Emitted:   sess.Emitted,
		}
		if !sess.EndedAt.IsZero() {
			ended := sess.EndedAt
			info.EndedAt = &ended
		}
		out = append(out, info)
	}
	return out
}

func errorResponse(err error) Response {
	return Response{Error: err.Error()}
}

// removeStale deletes a socket file nobody is listening on.
func removeStale(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
	if err == nil {
		conn.Close()
		return fmt.Errorf("control socket %s is in use", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	return nil
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
