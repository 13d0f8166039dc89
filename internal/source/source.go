// Package source runs the speech recognizer that produces the transcript
// stream and discovers the capture devices it can listen on.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loqalabs/yapper/internal/config"
)

// Process is one running recognizer. ReadLine blocks until a line is
// available and returns io.EOF once the output is exhausted. Wait may be
// called more than once.
type Process interface {
	ReadLine() (string, error)
	Interrupt() error
	Kill() error
	Wait() error
}

// Source starts recognizers.
type Source interface {
	Open(ctx context.Context, device string) (Process, error)
	Devices(ctx context.Context) ([]string, error)
}

func New(cfg config.SourceConfig, logger *slog.Logger) (Source, error) {
	switch cfg.Mode {
	case "", "exec":
		return NewExec(cfg, logger)
	case "mock":
		return NewMock(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported source mode %q", cfg.Mode)
	}
}
