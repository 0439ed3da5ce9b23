package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

type clientConfig struct {
	Addr            string
	Transport       string
	Count           int
	SendInterval    time.Duration
	UnreliableEvery int
	DialTimeout     time.Duration
	Insecure        bool
	Verbose         bool
}

// parseFlags returns the parsed config, or nil plus an exit code when a
// flag like -version handled the invocation entirely.
func parseFlags(args []string) (*clientConfig, int, error) {
	cfg := &clientConfig{}

	flagSet := flag.NewFlagSet("conduit-client", flag.ContinueOnError)
	flagSet.SetOutput(os.Stdout)
	flagSet.StringVar(&cfg.Addr, "addr", "127.0.0.1:9000", "Server address (host:port or ws:// URL)")
	flagSet.StringVar(&cfg.Transport, "transport", "websocket", "Transport: websocket, quic")
	flagSet.IntVar(&cfg.Count, "count", 10, "Number of messages to send (1-100000)")
	flagSet.IntVar(&cfg.Count, "n", 10, "Number of messages to send (short)")
	flagSet.DurationVar(&cfg.SendInterval, "interval", 100*time.Millisecond, "Delay between messages")
	flagSet.IntVar(&cfg.UnreliableEvery, "unreliable-every", 5, "Send every Nth message unreliably (0 = all reliable)")
	flagSet.DurationVar(&cfg.DialTimeout, "timeout", 10*time.Second, "Dial timeout")
	flagSet.BoolVar(&cfg.Insecure, "insecure", false, "Accept self-signed server certificates (quic)")
	flagSet.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	flagSet.BoolVar(&cfg.Verbose, "v", false, "Verbose output (short)")

	versionFlag := flagSet.Bool("version", false, "Print version")
	help := flagSet.Bool("help", false, "Show help")
	flagSet.BoolVar(help, "h", false, "Show help (short)")

	if err := flagSet.Parse(args); err != nil {
		return nil, exitUsage, err
	}

	if *versionFlag {
		fmt.Printf("conduit-client %s\n", version)
		return nil, exitSuccess, nil
	}
	if *help {
		printUsage()
		return nil, exitSuccess, nil
	}

	if rest := flagSet.Args(); len(rest) > 0 {
		cfg.Addr = rest[0]
	}

	if err := validateConfig(cfg); err != nil {
		return nil, exitUsage, err
	}
	return cfg, 0, nil
}

func validateConfig(cfg *clientConfig) error {
	if cfg.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if cfg.Transport != "websocket" && cfg.Transport != "quic" {
		return fmt.Errorf("invalid transport %q: must be 'websocket' or 'quic'", cfg.Transport)
	}
	if cfg.Count < 1 || cfg.Count > 100000 {
		return fmt.Errorf("invalid count %d: must be between 1 and 100000", cfg.Count)
	}
	if cfg.SendInterval <= 0 {
		return fmt.Errorf("send interval must be > 0")
	}
	if cfg.UnreliableEvery < 0 {
		return fmt.Errorf("unreliable-every cannot be negative")
	}
	if cfg.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be > 0")
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stdout, `Usage: conduit-client [flags] [address]

Dial a conduit endpoint and exchange test messages.

Flags:
  -h, --help               Show help
  --version                Print version
  --addr string            Server address (default: 127.0.0.1:9000)
  --transport string       Transport: websocket, quic (default: websocket)
  -n, --count int          Number of messages to send (default: 10)
  --interval duration      Delay between messages (default: 100ms)
  --unreliable-every int   Send every Nth message unreliably (default: 5)
  --timeout duration       Dial timeout (default: 10s)
  --insecure               Accept self-signed server certificates (quic)
  -v, --verbose            Verbose output

Examples:
  conduit-client                               # 10 messages to localhost
  conduit-client -n 100 --interval 50ms
  conduit-client --transport quic --insecure 127.0.0.1:9000
`)
}
