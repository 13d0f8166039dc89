package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/yapper/internal/config"
	"github.com/loqalabs/yapper/internal/natsserver"
)

func TestPublishThroughEmbeddedServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1, StoreDir: t.TempDir()}, logger)
	if err != nil {
		t.Fatalf("start embedded server: %v", err)
	}
	defer srv.Shutdown()

	client, err := Connect(context.Background(), config.BusConfig{
		Servers:        []string{srv.ClientURL()},
		ConnectTimeout: 2000,
	}, logger)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if !client.Healthy() {
		t.Fatal("expected healthy connection")
	}
	if err := client.EnsureStream("yapper.>"); err != nil {
		t.Fatalf("ensure stream: %v", err)
	}
	if err := client.EnsureStream("yapper.>"); err != nil {
		t.Fatalf("ensure stream twice: %v", err)
	}

	sub, err := client.Conn().SubscribeSync("yapper.transcript.sentence")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := client.Publish("yapper.transcript.sentence", []byte(`{"text":"Hi."}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next msg: %v", err)
	}
	if string(msg.Data) != `{"text":"Hi."}` {
		t.Fatalf("unexpected payload %s", msg.Data)
	}
}

func TestConnectRequiresServers(t *testing.T) {
	if _, err := Connect(context.Background(), config.BusConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatal("expected error without servers")
	}
}
