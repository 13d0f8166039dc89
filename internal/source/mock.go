package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/loqalabs/yapper/internal/config"
)

var defaultScript = []string{
	"init: found 1 capture devices:",
	"[Start speaking]",
	"this is a test of the",
	"the dictation pipeline.",
	"pipeline it works.",
	" (keyboard clicking)",
	"i think it's fine",
}

type mockSource struct {
	cfg config.SourceConfig
}

// NewMock replays a script, one line per line_every_ms, instead of running a
// recognizer. Without a script it plays a short built-in sample.
func NewMock(cfg config.SourceConfig) Source {
	return &mockSource{cfg: cfg}
}

func (m *mockSource) Open(ctx context.Context, _ string) (Process, error) {
	lines := defaultScript
	if m.cfg.ScriptPath != "" {
		loaded, err := readScript(m.cfg.ScriptPath)
		if err != nil {
			return nil, err
		}
		lines = loaded
	}
	interval := time.Duration(m.cfg.LineEveryMS) * time.Millisecond
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return NewScripted(ctx, lines, interval), nil
}

func (m *mockSource) Devices(context.Context) ([]string, error) {
	return []string{"mock"}, nil
}

func readScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return lines, nil
}

// Scripted is a Process that yields fixed lines at a fixed cadence. It ends
// when the lines run out, when it is interrupted or killed, or when ctx is
// done.
type Scripted struct {
	lines    []string
	interval time.Duration
	ctx      context.Context

	mu   sync.Mutex
	next int

	stop     chan struct{}
	stopOnce sync.Once
}

func NewScripted(ctx context.Context, lines []string, interval time.Duration) *Scripted {
	return &Scripted{
		lines:    append([]string(nil), lines...),
		interval: interval,
		ctx:      ctx,
		stop:     make(chan struct{}),
	}
}

func (s *Scripted) ReadLine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.lines) {
		s.halt()
		return "", io.EOF
	}
	if s.interval > 0 {
		timer := time.NewTimer(s.interval)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.stop:
			return "", io.EOF
		case <-s.ctx.Done():
			s.halt()
			return "", io.EOF
		}
	} else {
		select {
		case <-s.stop:
			return "", io.EOF
		default:
		}
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}

func (s *Scripted) Interrupt() error {
	s.halt()
	return nil
}

func (s *Scripted) Kill() error {
	s.halt()
	return nil
}

// Wait blocks until the script has ended.
func (s *Scripted) Wait() error {
	select {
	case <-s.stop:
	case <-s.ctx.Done():
	}
	return nil
}

func (s *Scripted) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
}
