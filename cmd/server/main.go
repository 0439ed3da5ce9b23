// Command conduit-server runs an echo endpoint over the conduit
// connection layer. It accepts sessions on the configured transport,
// echoes reliable messages back, and records closed connections to the
// history store when enabled.
package main

import (
	"crypto/tls"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meshforge/conduit/internal/config"
	"github.com/meshforge/conduit/internal/history"
	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	quictransport "github.com/meshforge/conduit/pkg/transport/quic"
	"github.com/meshforge/conduit/pkg/transport/ws"
	"github.com/meshforge/conduit/pkg/types"
)

var version = "dev"

const pumpInterval = 16 * time.Millisecond

func main() {
	cfg := config.DefaultConfig()
	if path := os.Getenv("CONDUIT_CONFIG"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel))
	logging.Info("Starting conduit server",
		logging.Field{Key: "version", Value: version},
		logging.Field{Key: "endpoint_id", Value: cfg.EndpointID},
		logging.Field{Key: "transport", Value: cfg.Transport})

	listener, err := buildListener(cfg)
	if err != nil {
		logging.Error("Failed to start listener", logging.Field{Key: "error", Value: err})
		log.Fatalf("Failed to start listener: %v", err)
	}

	var store *history.Store
	if cfg.HistoryEnabled {
		store, err = history.New(cfg.HistoryPath, cfg.MaxHistoryRows)
		if err != nil {
			logging.Error("Failed to open history store", logging.Field{Key: "error", Value: err})
			log.Fatalf("Failed to open history store: %v", err)
		}
		defer store.Close()
	}

	server := conduit.NewServer(listener, cfg.Options())
	server.OnAccept(func(c *conduit.Conn) {
		installHandlers(c, store)
	})
	server.Start()
	logging.Info("Server started", logging.Field{Key: "address", Value: server.Addr()})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			server.Pump()
		case sig := <-quit:
			logging.Info("Shutting down server...", logging.Field{Key: "signal", Value: sig.String()})
			server.Close()
			// Deliver the final status events before exiting.
			server.Pump()
			logging.Info("Server stopped")
			return
		}
	}
}

// installHandlers wires the echo behavior onto a fresh connection and,
// when a history store is present, records the connection once it closes.
func installHandlers(c *conduit.Conn, store *history.Store) {
	c.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		c.Send(payload, types.Reliable)
	})
	c.SetStatusHandler(func(id types.ConnectionID, connected bool) {
		if connected {
			logging.Info("peer connected",
				logging.Field{Key: "connection_id", Value: uint64(c.ID())},
				logging.Field{Key: "remote", Value: c.RemoteAddr()})
			return
		}
		stats := c.Stats()
		logging.Info("peer disconnected",
			logging.Field{Key: "connection_id", Value: uint64(c.ID())},
			logging.Field{Key: "reliable_sent", Value: stats.ReliableSent},
			logging.Field{Key: "received", Value: stats.Received},
			logging.Field{Key: "dropped", Value: stats.Dropped})
		if store != nil {
			entry := history.FromStats(c.ID(), c.RemoteAddr(), stats)
			if err := store.Record(entry); err != nil {
				logging.Warn("history record failed",
					logging.Field{Key: "connection_id", Value: uint64(c.ID())},
					logging.Field{Key: "error", Value: err})
			}
		}
	})
}

func buildListener(cfg *config.Config) (conduit.Listener, error) {
	switch cfg.Transport {
	case config.TransportQUIC:
		tlsConfig, err := quictransport.ServerTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile, cfg.TLSAutoGen)
		if err != nil {
			return nil, err
		}
		return quictransport.NewListener(cfg.ListenAddress, quictransport.ListenerOptions{
			TLSConfig:    tlsConfig,
			PingInterval: cfg.PingInterval,
		})
	default:
		var tlsConfig *tls.Config
		if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
			if err != nil {
				return nil, err
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		}
		return ws.NewListener(cfg.ListenAddress, ws.ListenerOptions{
			AllowedOrigins: cfg.AllowedOrigins,
			PingInterval:   cfg.PingInterval,
			TLSConfig:      tlsConfig,
		})
	}
}
