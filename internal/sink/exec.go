package sink

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

type execSink struct {
	cmd []string
}

// NewExec types text by running command with the text appended as its last
// argument, e.g. `wtype` or `ydotool type`. The text is passed as an argv
// entry, never through a shell.
func NewExec(command string) (Sink, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse sink command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("sink command is empty")
	}
	return &execSink{cmd: args}, nil
}

func (e *execSink) Emit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	base := e.cmd[0]
	args := append(append([]string{}, e.cmd[1:]...), text)

	command := exec.CommandContext(ctx, base, args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return fmt.Errorf("sink command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
