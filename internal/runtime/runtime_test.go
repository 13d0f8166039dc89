package runtime

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/loqalabs/yapper/internal/config"
	"github.com/loqalabs/yapper/internal/control"
)

func TestRuntimeMockSessionEndToEnd(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "script.txt")
	lines := "init: found 1 capture devices:\n[Start speaking]\nthe meeting is at noon.\nnoon it starts.\n"
	if err := os.WriteFile(script, []byte(lines), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	cfg := config.Default()
	cfg.HTTP.Enabled = false
	cfg.EventStore.Path = filepath.Join(dir, "events.db")
	cfg.Source.Mode = "mock"
	cfg.Source.ScriptPath = script
	cfg.Source.LineEveryMS = 1
	cfg.Pipeline.CorrectionDelayMS = 10
	cfg.Sink.Mode = "none"
	cfg.Control.SocketPath = filepath.Join(dir, "y.sock")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := New(cfg, logger)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- rt.Start(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("runtime exited with error: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("runtime did not shut down")
		}
	}()

	client := dialWithRetry(t, cfg.Control.SocketPath)
	defer client.Close()

	resp, err := client.Send(control.Command{Cmd: control.CmdStart, Device: "mock"})
	if err != nil || !resp.OK {
		t.Fatalf("start failed: %+v %v", resp, err)
	}
	sessionID := resp.SessionID

	// the script runs out, which ends the session on its own
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err = client.Send(control.Command{Cmd: control.CmdStatus})
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if resp.State == "idle" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never ended, state %q", resp.State)
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err = client.Send(control.Command{Cmd: control.CmdTranscript, SessionID: sessionID})
	if err != nil || !resp.OK {
		t.Fatalf("transcript failed: %+v %v", resp, err)
	}
	want := []string{"The meeting is at noon.", "It starts."}
	if !reflect.DeepEqual(resp.Lines, want) {
		t.Fatalf("expected %q, got %q", want, resp.Lines)
	}

	resp, _ = client.Send(control.Command{Cmd: control.CmdSessions})
	if len(resp.Sessions) != 1 || resp.Sessions[0].Emitted != 2 || resp.Sessions[0].EndedAt == nil {
		t.Fatalf("unexpected sessions %+v", resp.Sessions)
	}
}

func dialWithRetry(t *testing.T, path string) *control.Client {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		client, err := control.Dial(path)
		if err == nil {
			return client
		}
		if time.Now().After(deadline) {
			t.Fatalf("daemon never listened: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSinkFactoryModes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var buf bytes.Buffer

	factory, err := sinkFactory(config.SinkConfig{Mode: "stdout"}, &buf, nil, logger)
	if err != nil {
		t.Fatalf("stdout factory: %v", err)
	}
	if err := factory("s1").Emit(context.Background(), "Hello."); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if buf.String() != "Hello.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}

	if _, err := sinkFactory(config.SinkConfig{Mode: "exec", Command: ""}, &buf, nil, logger); err == nil {
		t.Fatal("expected error for empty exec command")
	}
	if _, err := sinkFactory(config.SinkConfig{Mode: "carrier-pigeon"}, &buf, nil, logger); err == nil {
		t.Fatal("expected error for unknown mode")
	}
	if _, err := sinkFactory(config.SinkConfig{Mode: "webhook", WebhookURL: "http://127.0.0.1:1/hook"}, &buf, nil, logger); err != nil {
		t.Fatalf("webhook factory: %v", err)
	}
}
