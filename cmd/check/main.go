// Command conduit-check runs a quick connectivity probe against a
// conduit server: dial, exchange a handful of reliable round trips, and
// report a grade with key link metrics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	"github.com/meshforge/conduit/pkg/diagnostic"
	quictransport "github.com/meshforge/conduit/pkg/transport/quic"
	"github.com/meshforge/conduit/pkg/transport/ws"
	"github.com/meshforge/conduit/pkg/types"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

const probeCount = 5

// CheckResult is the structured output of conduit-check.
type CheckResult struct {
	SchemaVersion  string                     `json:"schema_version"`
	Status         string                     `json:"status"`
	Address        string                     `json:"address"`
	Transport      string                     `json:"transport"`
	RTTMs          float64                    `json:"rtt_ms"`
	Quality        float64                    `json:"quality"`
	ProbesSent     int                        `json:"probes_sent"`
	ProbesEchoed   int                        `json:"probes_echoed"`
	Interpretation *diagnostic.Interpretation `json:"interpretation"`
	DurationMs     int64                      `json:"duration_ms"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flagSet := flag.NewFlagSet("conduit-check", flag.ContinueOnError)
	flagSet.SetOutput(os.Stdout)

	var (
		addr      string
		transport string
		jsonOut   bool
		timeout   time.Duration
		insecure  bool
	)
	flagSet.StringVar(&addr, "addr", "127.0.0.1:9000", "Server address")
	flagSet.StringVar(&transport, "transport", "websocket", "Transport: websocket, quic")
	flagSet.BoolVar(&jsonOut, "json", false, "Output as JSON")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "Overall timeout")
	flagSet.BoolVar(&insecure, "insecure", false, "Accept self-signed server certificates (quic)")
	help := flagSet.Bool("help", false, "Show help")
	flagSet.BoolVar(help, "h", false, "Show help (short)")

	if err := flagSet.Parse(args); err != nil {
		return exitUsage
	}
	if *help {
		printUsage()
		return exitSuccess
	}
	if transport != "websocket" && transport != "quic" {
		fmt.Fprintf(os.Stderr, "conduit-check: invalid transport %q\n", transport)
		return exitUsage
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		addr = rest[0]
	}

	logging.Init(logging.LevelError)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	result, err := runCheck(ctx, addr, transport, insecure)
	if err != nil {
		if jsonOut {
			errResp := map[string]interface{}{
				"schema_version": "1.0",
				"error":          true,
				"code":           "check_failed",
				"message":        err.Error(),
			}
			json.NewEncoder(os.Stdout).Encode(errResp)
		} else {
			fmt.Fprintf(os.Stderr, "conduit-check: error: %v\n", err)
		}
		return exitFailure
	}
	result.DurationMs = time.Since(start).Milliseconds()

	if jsonOut {
		if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "conduit-check: json encode error: %v\n", err)
			return exitFailure
		}
	} else {
		printHuman(result)
	}

	// Exit 1 if grade is D or F (degraded)
	if result.Interpretation != nil && (result.Interpretation.Grade == "D" || result.Interpretation.Grade == "F") {
		return exitFailure
	}
	return exitSuccess
}

func runCheck(ctx context.Context, addr, transport string, insecure bool) (*CheckResult, error) {
	var d conduit.Dialer
	switch transport {
	case "quic":
		d = &quictransport.Dialer{TLSConfig: quictransport.TLSClientConfig(insecure)}
	default:
		d = &ws.Dialer{PingInterval: time.Second}
	}

	client, err := conduit.Dial(ctx, d, addr, conduit.DefaultOptions())
	if err != nil {
		return nil, err
	}
	defer func() {
		client.Close()
		client.Pump()
	}()

	conn := client.Conn()
	echoed := 0
	conn.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		echoed++
	})

	pump := time.NewTicker(5 * time.Millisecond)
	defer pump.Stop()

	// Wait for the connection, then fire the probes.
	for !conn.IsConnected() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for connection to %s", addr)
		case <-pump.C:
			client.Pump()
		}
	}

	sent := 0
	probe := time.NewTicker(100 * time.Millisecond)
	defer probe.Stop()
	for echoed < probeCount {
		select {
		case <-ctx.Done():
			return buildResult(conn, addr, transport, sent, echoed), nil
		case <-pump.C:
			client.Pump()
			if !conn.IsConnected() {
				return buildResult(conn, addr, transport, sent, echoed), nil
			}
		case <-probe.C:
			if sent < probeCount {
				sent++
				conn.Send([]byte(fmt.Sprintf("probe-%d", sent)), types.Reliable)
			}
		}
	}
	return buildResult(conn, addr, transport, sent, echoed), nil
}

func buildResult(conn *conduit.Conn, addr, transport string, sent, echoed int) *CheckResult {
	stats := conn.Stats()
	status := "ok"
	if echoed < sent {
		status = "degraded"
	}
	if echoed == 0 {
		status = "unreachable"
	}

	params := diagnostic.FromStats(stats)
	if sent > 0 {
		params.DropRate = float64(sent-echoed) / float64(sent) * 100
	}

	return &CheckResult{
		SchemaVersion:  "1.0",
		Status:         status,
		Address:        addr,
		Transport:      transport,
		RTTMs:          float64(stats.RTT.Microseconds()) / 1000,
		Quality:        stats.Quality,
		ProbesSent:     sent,
		ProbesEchoed:   echoed,
		Interpretation: diagnostic.Interpret(params),
	}
}

func printHuman(r *CheckResult) {
	if r.Interpretation != nil {
		fmt.Printf("Grade: %s — %s\n", r.Interpretation.Grade, r.Interpretation.Summary)
	}
	fmt.Printf("  Status:  %s\n", r.Status)
	fmt.Printf("  RTT:     %.1f ms\n", r.RTTMs)
	fmt.Printf("  Quality: %.0f%%\n", r.Quality)
	fmt.Printf("  Probes:  %d/%d echoed\n", r.ProbesEchoed, r.ProbesSent)
	if r.Interpretation != nil && len(r.Interpretation.Concerns) > 0 {
		fmt.Printf("  Concerns: %s\n", strings.Join(r.Interpretation.Concerns, ", "))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stdout, `Usage: conduit-check [flags] [address]

Quick connectivity check against a conduit server. Dials, exchanges a
few reliable round trips, and reports a grade.

Flags:
  -h, --help          Show help
  --addr string       Server address (default: 127.0.0.1:9000)
  --transport string  Transport: websocket, quic (default: websocket)
  --json              Output as JSON
  --timeout duration  Overall timeout (default: 10s)
  --insecure          Accept self-signed server certificates (quic)

Exit codes:
  0   Healthy (grade A-C)
  1   Degraded (grade D-F) or error

Examples:
  conduit-check                          # Check localhost
  conduit-check server.example.com:9000
  conduit-check --json                   # JSON output for agents
`)
}
