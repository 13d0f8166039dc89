package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/yapper/internal/config"
	"github.com/mattn/go-shellwords"
)

const (
	maxLineBytes = 1024 * 1024
	// stderrSettle bounds the wait for a dead recognizer's last words.
	stderrSettle = 200 * time.Millisecond
)

type execSource struct {
	cmd    []string
	cfg    config.SourceConfig
	logger *slog.Logger
}

// NewExec runs whisper.cpp's stream example, or anything with the same flags:
// <command> -m <model> -c <device> [extra args].
func NewExec(cfg config.SourceConfig, logger *slog.Logger) (Source, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse source command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("source command is empty")
	}
	return &execSource{
		cmd:    args,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "source")),
	}, nil
}

func (s *execSource) Open(ctx context.Context, device string) (Process, error) {
	if s.cfg.ModelPath != "" {
		if _, err := os.Stat(s.cfg.ModelPath); err != nil {
			return nil, fmt.Errorf("model %s: %w", s.cfg.ModelPath, err)
		}
	}

	args := append([]string{}, s.cmd[1:]...)
	if s.cfg.ModelPath != "" {
		args = append(args, "-m", s.cfg.ModelPath)
	}
	if device != "" {
		args = append(args, "-c", device)
	}
	args = append(args, s.cfg.ExtraArgs...)

	// The pipes are ours rather than exec's so that Wait can reap the
	// recognizer without closing output that is still being read.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("source stdout: %w", err)
	}
	stderr, stderrW, err := os.Pipe()
	if err != nil {
		stdout.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("source stderr: %w", err)
	}

	command := exec.CommandContext(ctx, s.cmd[0], args...)
	command.Stdout = stdoutW
	command.Stderr = stderrW
	command.Cancel = func() error {
		return command.Process.Signal(os.Interrupt)
	}
	err = command.Start()
	stdoutW.Close()
	stderrW.Close()
	if err != nil {
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start %s: %w", s.cmd[0], err)
	}
	s.logger.Info("recognizer started",
		slog.Int("pid", command.Process.Pid),
		slog.String("device", device))

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	p := &execProcess{
		cmd:        command,
		stdout:     stdout,
		scanner:    scanner,
		logger:     s.logger,
		exited:     make(chan struct{}),
		stderrDone: make(chan struct{}),
	}
	go p.logStderr(stderr)
	go p.reap()

	grace := time.Duration(s.cfg.StartupGraceMS) * time.Millisecond
	if err := p.awaitStartup(grace); err != nil {
		s.logger.Warn("recognizer exited during startup", slog.String("device", device), slog.String("error", err.Error()))
		return nil, err
	}
	return p, nil
}

func (s *execSource) Devices(ctx context.Context) ([]string, error) {
	return ListDevices(ctx, s.cmd[0])
}

type execProcess struct {
	cmd        *exec.Cmd
	stdout     *os.File
	scanner    *bufio.Scanner
	logger     *slog.Logger
	exited     chan struct{}
	stderrDone chan struct{}
	waitErr    error

	mu         sync.Mutex
	lastStderr string
	closeOnce  sync.Once
}

func (p *execProcess) ReadLine() (string, error) {
	if p.scanner.Scan() {
		return strings.TrimRight(p.scanner.Text(), "\r"), nil
	}
	if err := p.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Interrupt asks the recognizer to finish the way Ctrl-C would.
func (p *execProcess) Interrupt() error {
	return ignoreDone(p.cmd.Process.Signal(os.Interrupt))
}

func (p *execProcess) Kill() error {
	return ignoreDone(p.cmd.Process.Kill())
}

// Wait blocks until the recognizer has exited and releases its output. Call it
// once reading is finished.
func (p *execProcess) Wait() error {
	<-p.exited
	p.closeOnce.Do(func() { p.stdout.Close() })
	return p.waitErr
}

func (p *execProcess) reap() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

// awaitStartup fails when the recognizer exits within grace, naming the last
// thing it said on stderr.
func (p *execProcess) awaitStartup(grace time.Duration) error {
	if grace <= 0 {
		return nil
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-p.exited:
	}

	select {
	case <-p.stderrDone:
	case <-time.After(stderrSettle):
	}
	_ = p.Wait()

	p.mu.Lock()
	reason := p.lastStderr
	p.mu.Unlock()
	switch {
	case reason != "":
	case p.waitErr != nil:
		reason = p.waitErr.Error()
	default:
		reason = "exit status 0"
	}
	return fmt.Errorf("recognizer exited during startup: %s", reason)
}

// logStderr keeps the recognizer's diagnostics out of the transcript and in
// the debug log.
func (p *execProcess) logStderr(r io.ReadCloser) {
	defer close(p.stderrDone)
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			p.mu.Lock()
			p.lastStderr = line
			p.mu.Unlock()
			p.logger.Debug("recognizer", slog.String("stderr", line))
		}
	}
}

func ignoreDone(err error) error {
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
