package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const deviceMarker = "Capture device #"

// ListDevices runs the recognizer without arguments and reads the capture
// devices it reports on stderr. The recognizer exits non-zero when run this
// way, so only a failure to launch it is an error.
func ListDevices(ctx context.Context, command string) ([]string, error) {
	cmd := exec.CommandContext(ctx, command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", command, err)
		}
	}
	return ParseDevices(stderr.String()), nil
}

// ParseDevices extracts device names from lines such as
//
//	init: - Capture device #0: 'Built-in Microphone'
//
// A device is identified by its position in the returned slice.
func ParseDevices(output string) []string {
	var devices []string
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, deviceMarker) {
			continue
		}
		line = strings.TrimSpace(line)
		name := line
		if idx := strings.LastIndex(line, ": "); idx >= 0 {
			name = line[idx+2:]
		}
		devices = append(devices, strings.Trim(name, "'"))
	}
	return devices
}
