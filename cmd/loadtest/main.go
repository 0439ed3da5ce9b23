// Command loadtest drives many concurrent client connections against a
// conduit server and reports aggregate throughput. It is a development
// tool for sizing pump intervals and queue capacities.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	quictransport "github.com/meshforge/conduit/pkg/transport/quic"
	"github.com/meshforge/conduit/pkg/transport/ws"
	"github.com/meshforge/conduit/pkg/types"
)

type config struct {
	addr            string
	transport       string
	duration        time.Duration
	concurrency     int
	sendInterval    time.Duration
	payloadSize     int
	unreliableEvery int
	insecure        bool
}

type totals struct {
	reliableSent   atomic.Int64
	unreliableSent atomic.Int64
	received       atomic.Int64
	dropped        atomic.Int64
	dialFailures   atomic.Int64
}

func main() {
	cfg := parseFlags()
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "loadtest: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.LevelWarn)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.duration)
	defer cancel()

	var t totals
	var wg sync.WaitGroup
	wg.Add(cfg.concurrency)
	for i := 0; i < cfg.concurrency; i++ {
		go func(worker int) {
			defer wg.Done()
			runWorker(ctx, cfg, worker, &t)
		}(i)
	}
	wg.Wait()

	seconds := cfg.duration.Seconds()
	if seconds <= 0 {
		seconds = 1
	}
	fmt.Printf("transport=%s concurrency=%d duration=%s reliable_sent=%d unreliable_sent=%d received=%d dropped=%d dial_failures=%d msgs_per_sec=%.1f\n",
		cfg.transport,
		cfg.concurrency,
		cfg.duration,
		t.reliableSent.Load(),
		t.unreliableSent.Load(),
		t.received.Load(),
		t.dropped.Load(),
		t.dialFailures.Load(),
		float64(t.reliableSent.Load()+t.unreliableSent.Load())/seconds,
	)
}

func runWorker(ctx context.Context, cfg config, worker int, t *totals) {
	var d conduit.Dialer
	switch cfg.transport {
	case "quic":
		d = &quictransport.Dialer{TLSConfig: quictransport.TLSClientConfig(cfg.insecure)}
	default:
		d = &ws.Dialer{}
	}

	client, err := conduit.Dial(ctx, d, cfg.addr, conduit.DefaultOptions())
	if err != nil {
		t.dialFailures.Add(1)
		return
	}
	conn := client.Conn()
	conn.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		t.received.Add(1)
	})

	payload := make([]byte, cfg.payloadSize)
	for i := range payload {
		payload[i] = byte('a' + (worker+i)%26)
	}

	pump := time.NewTicker(5 * time.Millisecond)
	defer pump.Stop()
	send := time.NewTicker(cfg.sendInterval)
	defer send.Stop()

	sent := 0
	for {
		select {
		case <-ctx.Done():
			client.Close()
			client.Pump()
			stats := conn.Stats()
			t.reliableSent.Add(int64(stats.ReliableSent))
			t.unreliableSent.Add(int64(stats.UnreliableSent))
			t.dropped.Add(int64(stats.Dropped))
			return
		case <-pump.C:
			client.Pump()
		case <-send.C:
			if !conn.IsConnected() {
				continue
			}
			sent++
			r := types.Reliable
			if cfg.unreliableEvery > 0 && sent%cfg.unreliableEvery == 0 {
				r = types.Unreliable
			}
			conn.Send(payload, r)
		}
	}
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.addr, "addr", "127.0.0.1:9000", "Server address")
	flag.StringVar(&cfg.transport, "transport", "websocket", "Transport: websocket, quic")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "Test duration (e.g. 10s)")
	flag.IntVar(&cfg.concurrency, "concurrency", 10, "Concurrent connections")
	flag.DurationVar(&cfg.sendInterval, "send-interval", 10*time.Millisecond, "Delay between messages per connection")
	flag.IntVar(&cfg.payloadSize, "payload-size", 256, "Message payload size in bytes")
	flag.IntVar(&cfg.unreliableEvery, "unreliable-every", 4, "Send every Nth message unreliably (0 = all reliable)")
	flag.BoolVar(&cfg.insecure, "insecure", false, "Accept self-signed server certificates (quic)")
	flag.Parse()
	return cfg
}

func validateConfig(cfg config) error {
	if cfg.concurrency <= 0 {
		return fmt.Errorf("concurrency must be > 0")
	}
	if cfg.duration <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if cfg.transport != "websocket" && cfg.transport != "quic" {
		return fmt.Errorf("invalid transport: %s", cfg.transport)
	}
	if cfg.sendInterval <= 0 {
		return fmt.Errorf("send-interval must be > 0")
	}
	if cfg.payloadSize < 1 || cfg.payloadSize > 64*1024 {
		return fmt.Errorf("payload-size must be between 1 and 65536")
	}
	if cfg.unreliableEvery < 0 {
		return fmt.Errorf("unreliable-every cannot be negative")
	}
	return nil
}
