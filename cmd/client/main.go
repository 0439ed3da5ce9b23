// Command conduit-client dials a conduit endpoint, sends a stream of
// test messages, and prints the connection stats on exit. It exists to
// exercise the connection layer end to end against a running server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	"github.com/meshforge/conduit/pkg/diagnostic"
	quictransport "github.com/meshforge/conduit/pkg/transport/quic"
	"github.com/meshforge/conduit/pkg/transport/ws"
	"github.com/meshforge/conduit/pkg/types"
)

const version = "0.1.0"

const (
	exitSuccess   = 0
	exitFailure   = 1
	exitUsage     = 2
	exitInterrupt = 130
)

const pumpInterval = 16 * time.Millisecond

func main() {
	cfg, code, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "conduit-client: error: %v\n", err)
		os.Exit(exitUsage)
	}
	if cfg == nil {
		os.Exit(code)
	}

	level := logging.LevelWarn
	if cfg.Verbose {
		level = logging.LevelDebug
	}
	logging.Init(level)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	client, err := dial(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "conduit-client: error: %v\n", err)
		os.Exit(exitFailure)
	}

	conn := client.Conn()
	received := 0
	disconnected := false

	conn.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		received++
		if cfg.Verbose {
			fmt.Printf("recv: %s\n", payload)
		}
	})
	conn.SetStatusHandler(func(id types.ConnectionID, connected bool) {
		if connected {
			fmt.Printf("Connected to %s (%s)\n", cfg.Addr, cfg.Transport)
			return
		}
		disconnected = true
	})

	interrupted := runSendLoop(client, cfg)

	client.Close()
	client.Pump()

	printSummary(conn, received, disconnected)
	if interrupted {
		os.Exit(exitInterrupt)
	}
}

// runSendLoop pumps events and emits test messages until the count is
// reached, the connection drops, or the user interrupts. Reports whether
// a signal ended the run.
func runSendLoop(client *conduit.Client, cfg *clientConfig) bool {
	conn := client.Conn()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	pump := time.NewTicker(pumpInterval)
	defer pump.Stop()
	send := time.NewTicker(cfg.SendInterval)
	defer send.Stop()

	sent := 0
	deadline := time.After(cfg.DialTimeout)

	for sent < cfg.Count {
		select {
		case <-sigCh:
			return true
		case <-deadline:
			if !conn.IsConnected() {
				fmt.Fprintln(os.Stderr, "conduit-client: timed out waiting for connection")
				return false
			}
		case <-pump.C:
			client.Pump()
			if sent > 0 && !conn.IsConnected() {
				return false
			}
		case <-send.C:
			if !conn.IsConnected() {
				continue
			}
			sent++
			r := types.Reliable
			if cfg.UnreliableEvery > 0 && sent%cfg.UnreliableEvery == 0 {
				r = types.Unreliable
			}
			conn.Send([]byte(fmt.Sprintf("msg-%d", sent)), r)
		}
	}

	// Give in-flight echoes a moment to come back.
	drain := time.After(cfg.SendInterval * 10)
	for {
		select {
		case <-sigCh:
			return true
		case <-drain:
			return false
		case <-pump.C:
			client.Pump()
			if !conn.IsConnected() {
				return false
			}
		}
	}
}

func dial(ctx context.Context, cfg *clientConfig) (*conduit.Client, error) {
	opts := conduit.DefaultOptions()

	var d conduit.Dialer
	switch cfg.Transport {
	case "quic":
		d = &quictransport.Dialer{
			TLSConfig: quictransport.TLSClientConfig(cfg.Insecure),
		}
	default:
		d = &ws.Dialer{}
	}
	return conduit.Dial(ctx, d, cfg.Addr, opts)
}

func printSummary(conn *conduit.Conn, received int, disconnected bool) {
	stats := conn.Stats()
	plain := !term.IsTerminal(int(os.Stdout.Fd()))

	if plain {
		fmt.Printf("reliable_sent=%d unreliable_sent=%d received=%d dropped=%d rtt=%s quality=%.0f uptime=%s\n",
			stats.ReliableSent, stats.UnreliableSent, received,
			stats.Dropped, stats.RTT, stats.Quality, stats.Uptime.Round(time.Millisecond))
		return
	}

	interp := diagnostic.Interpret(diagnostic.FromStats(stats))

	fmt.Println()
	fmt.Printf("Grade: %s — %s\n", interp.Grade, interp.Summary)
	fmt.Printf("  Reliable sent:    %d\n", stats.ReliableSent)
	fmt.Printf("  Unreliable sent:  %d\n", stats.UnreliableSent)
	fmt.Printf("  Received:         %d\n", received)
	fmt.Printf("  Dropped:          %d\n", stats.Dropped)
	fmt.Printf("  RTT:              %s (p50 %s, p95 %s)\n",
		stats.RTT, conn.RTTPercentile(50), conn.RTTPercentile(95))
	fmt.Printf("  Quality:          %.0f%%\n", stats.Quality)
	fmt.Printf("  Uptime:           %s\n", stats.Uptime.Round(time.Millisecond))
	if len(interp.Concerns) > 0 {
		fmt.Printf("  Concerns:         %s\n", strings.Join(interp.Concerns, ", "))
	}
	if disconnected {
		fmt.Println("  State:            disconnected")
	}
}
