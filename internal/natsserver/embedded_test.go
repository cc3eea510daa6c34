package natsserver

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-scribe/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStartSkipsExternalBus(t *testing.T) {
	cfg := config.Default().Bus
	cfg.Enabled = true
	cfg.Embedded = false
	srv, err := Start(cfg, newLogger())
	if err != nil || srv != nil {
		t.Fatalf("expected no broker for an external bus, got %v, %v", srv, err)
	}
	srv.Shutdown()
}

func TestStartServesLoopback(t *testing.T) {
	cfg := config.Default().Bus
	cfg.Enabled = true
	cfg.Port = -1
	cfg.StoreDir = t.TempDir()
	srv, err := Start(cfg, newLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	if url := srv.ClientURL(); !strings.HasPrefix(url, "nats://127.0.0.1:") {
		t.Fatalf("unexpected client url %q", url)
	}
}
