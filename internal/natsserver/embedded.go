package natsserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/nats-io/nats-server/v2/server"
)

const readyTimeout = 5 * time.Second

// EmbeddedServer is an in-process broker bound to loopback, used when the
// scribe runs without an external bus.
type EmbeddedServer struct {
	ns  *server.Server
	log *slog.Logger
}

// Start runs the in-process broker. A nil server and nil error mean the bus
// is off or lives elsewhere.
func Start(cfg config.BusConfig, log *slog.Logger) (*EmbeddedServer, error) {
	if !cfg.Enabled || !cfg.Embedded {
		return nil, nil
	}
	log = log.With(slog.String("component", "broker"))

	ns, err := server.NewServer(&server.Options{
		Host:     "127.0.0.1",
		Port:     cfg.Port,
		StoreDir: cfg.StoreDir,
		NoSigs:   true,
		NoLog:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("broker options: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("broker on port %d not accepting clients after %s", cfg.Port, readyTimeout)
	}

	log.Info("broker listening", slog.String("client_url", ns.ClientURL()))
	return &EmbeddedServer{ns: ns, log: log}, nil
}

func (e *EmbeddedServer) ClientURL() string {
	return e.ns.ClientURL()
}

// Shutdown is safe on a nil server.
func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
	e.log.Info("broker stopped")
}
