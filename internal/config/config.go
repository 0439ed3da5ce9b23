package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/meshforge/conduit/pkg/conduit"
)

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

type Config struct {
	ListenAddress  string
	Transport      string
	EndpointID     string
	AllowedOrigins []string

	PingInterval       time.Duration
	FlushInterval      time.Duration
	DrainBatch         int
	UnreliableQueueCap int
	MaxUnreliableAge   time.Duration

	HistoryEnabled bool
	HistoryPath    string
	MaxHistoryRows int

	TLSCertFile        string
	TLSKeyFile         string
	TLSAutoGen         bool // Auto-generate self-signed cert for dev
	InsecureSkipVerify bool // Client side: accept self-signed server certs

	LogLevel string
}

func DefaultConfig() *Config {
	return &Config{
		ListenAddress:      "0.0.0.0:9000",
		Transport:          TransportWebSocket,
		EndpointID:         uuid.NewString(),
		AllowedOrigins:     []string{"*"},
		PingInterval:       5 * time.Second,
		FlushInterval:      10 * time.Millisecond,
		DrainBatch:         64,
		UnreliableQueueCap: 256,
		MaxUnreliableAge:   0,
		HistoryEnabled:     false,
		HistoryPath:        "./data/connlog.db",
		MaxHistoryRows:     10000,
		TLSAutoGen:         true,
		LogLevel:           "info",
	}
}

func (c *Config) LoadFromEnv() error {
	if addr := os.Getenv("CONDUIT_LISTEN_ADDRESS"); addr != "" {
		c.ListenAddress = addr
	}
	if transport := os.Getenv("CONDUIT_TRANSPORT"); transport != "" {
		c.Transport = strings.ToLower(transport)
	}
	if id := os.Getenv("CONDUIT_ENDPOINT_ID"); id != "" {
		c.EndpointID = id
	}
	if origins := os.Getenv("CONDUIT_ALLOWED_ORIGINS"); origins != "" {
		entries := strings.Split(origins, ",")
		c.AllowedOrigins = make([]string, 0, len(entries))
		for _, entry := range entries {
			value := strings.TrimSpace(entry)
			if value != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, value)
			}
		}
	}

	if interval := os.Getenv("CONDUIT_PING_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid CONDUIT_PING_INTERVAL %q: must be a positive duration (e.g. 5s)", interval)
		}
		c.PingInterval = d
	}
	if interval := os.Getenv("CONDUIT_FLUSH_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid CONDUIT_FLUSH_INTERVAL %q: must be a positive duration (e.g. 10ms)", interval)
		}
		c.FlushInterval = d
	}
	if batch := os.Getenv("CONDUIT_DRAIN_BATCH"); batch != "" {
		n, err := strconv.Atoi(batch)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CONDUIT_DRAIN_BATCH %q: must be a positive integer", batch)
		}
		c.DrainBatch = n
	}
	if capacity := os.Getenv("CONDUIT_UNRELIABLE_QUEUE_CAP"); capacity != "" {
		n, err := strconv.Atoi(capacity)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CONDUIT_UNRELIABLE_QUEUE_CAP %q: must be a positive integer", capacity)
		}
		c.UnreliableQueueCap = n
	}
	if age := os.Getenv("CONDUIT_MAX_UNRELIABLE_AGE"); age != "" {
		d, err := time.ParseDuration(age)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid CONDUIT_MAX_UNRELIABLE_AGE %q: must be a non-negative duration", age)
		}
		c.MaxUnreliableAge = d
	}

	if enabled := os.Getenv("CONDUIT_HISTORY_ENABLED"); enabled == "true" || enabled == "1" {
		c.HistoryEnabled = true
	}
	if path := os.Getenv("CONDUIT_HISTORY_PATH"); path != "" {
		c.HistoryPath = path
	}
	if max := os.Getenv("CONDUIT_MAX_HISTORY_ROWS"); max != "" {
		n, err := strconv.Atoi(max)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CONDUIT_MAX_HISTORY_ROWS %q: must be a positive integer", max)
		}
		c.MaxHistoryRows = n
	}

	if cert := os.Getenv("CONDUIT_TLS_CERT_FILE"); cert != "" {
		c.TLSCertFile = cert
	}
	if key := os.Getenv("CONDUIT_TLS_KEY_FILE"); key != "" {
		c.TLSKeyFile = key
	}
	if autoGen := os.Getenv("CONDUIT_TLS_AUTO_GEN"); autoGen == "false" || autoGen == "0" {
		c.TLSAutoGen = false
	}
	if insecure := os.Getenv("CONDUIT_INSECURE_SKIP_VERIFY"); insecure == "true" || insecure == "1" {
		c.InsecureSkipVerify = true
	}

	if level := os.Getenv("CONDUIT_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}

	return nil
}

// fileConfig mirrors Config with optional YAML fields so an absent key
// leaves the current value untouched.
type fileConfig struct {
	ListenAddress  string   `yaml:"listen_address,omitempty"`
	Transport      string   `yaml:"transport,omitempty"`
	EndpointID     string   `yaml:"endpoint_id,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`

	PingInterval       string `yaml:"ping_interval,omitempty"`
	FlushInterval      string `yaml:"flush_interval,omitempty"`
	DrainBatch         int    `yaml:"drain_batch,omitempty"`
	UnreliableQueueCap int    `yaml:"unreliable_queue_cap,omitempty"`
	MaxUnreliableAge   string `yaml:"max_unreliable_age,omitempty"`

	HistoryEnabled *bool  `yaml:"history_enabled,omitempty"`
	HistoryPath    string `yaml:"history_path,omitempty"`
	MaxHistoryRows int    `yaml:"max_history_rows,omitempty"`

	TLSCertFile        string `yaml:"tls_cert_file,omitempty"`
	TLSKeyFile         string `yaml:"tls_key_file,omitempty"`
	TLSAutoGen         *bool  `yaml:"tls_auto_gen,omitempty"`
	InsecureSkipVerify *bool  `yaml:"insecure_skip_verify,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`
}

func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ListenAddress != "" {
		c.ListenAddress = fc.ListenAddress
	}
	if fc.Transport != "" {
		c.Transport = strings.ToLower(fc.Transport)
	}
	if fc.EndpointID != "" {
		c.EndpointID = fc.EndpointID
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.PingInterval != "" {
		d, err := time.ParseDuration(fc.PingInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid ping_interval %q in %s", fc.PingInterval, path)
		}
		c.PingInterval = d
	}
	if fc.FlushInterval != "" {
		d, err := time.ParseDuration(fc.FlushInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid flush_interval %q in %s", fc.FlushInterval, path)
		}
		c.FlushInterval = d
	}
	if fc.DrainBatch > 0 {
		c.DrainBatch = fc.DrainBatch
	}
	if fc.UnreliableQueueCap > 0 {
		c.UnreliableQueueCap = fc.UnreliableQueueCap
	}
	if fc.MaxUnreliableAge != "" {
		d, err := time.ParseDuration(fc.MaxUnreliableAge)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid max_unreliable_age %q in %s", fc.MaxUnreliableAge, path)
		}
		c.MaxUnreliableAge = d
	}
	if fc.HistoryEnabled != nil {
		c.HistoryEnabled = *fc.HistoryEnabled
	}
	if fc.HistoryPath != "" {
		c.HistoryPath = fc.HistoryPath
	}
	if fc.MaxHistoryRows > 0 {
		c.MaxHistoryRows = fc.MaxHistoryRows
	}
	if fc.TLSCertFile != "" {
		c.TLSCertFile = fc.TLSCertFile
	}
	if fc.TLSKeyFile != "" {
		c.TLSKeyFile = fc.TLSKeyFile
	}
	if fc.TLSAutoGen != nil {
		c.TLSAutoGen = *fc.TLSAutoGen
	}
	if fc.InsecureSkipVerify != nil {
		c.InsecureSkipVerify = *fc.InsecureSkipVerify
	}
	if fc.LogLevel != "" {
		c.LogLevel = fc.LogLevel
	}

	return nil
}

func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	_, port, err := net.SplitHostPort(c.ListenAddress)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.ListenAddress, err)
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid listen port %q: must be 0-65535", port)
	}
	if c.Transport != TransportWebSocket && c.Transport != TransportQUIC {
		return fmt.Errorf("invalid transport %q: must be %q or %q", c.Transport, TransportWebSocket, TransportQUIC)
	}
	if c.EndpointID == "" {
		return fmt.Errorf("endpoint id cannot be empty")
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be > 0")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be > 0")
	}
	if c.DrainBatch <= 0 {
		return fmt.Errorf("drain batch must be > 0")
	}
	if c.UnreliableQueueCap <= 0 {
		return fmt.Errorf("unreliable queue capacity must be > 0")
	}
	if c.MaxUnreliableAge < 0 {
		return fmt.Errorf("max unreliable age cannot be negative")
	}
	if c.HistoryEnabled {
		if c.HistoryPath == "" {
			return fmt.Errorf("history path cannot be empty when history is enabled")
		}
		if c.MaxHistoryRows <= 0 {
			return fmt.Errorf("max history rows must be > 0")
		}
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS cert and key must be configured together")
	}
	return nil
}

// Options derives the per-connection tuning from the config.
func (c *Config) Options() conduit.Options {
	return conduit.Options{
		FlushInterval:      c.FlushInterval,
		DrainBatch:         c.DrainBatch,
		UnreliableCapacity: c.UnreliableQueueCap,
		MaxUnreliableAge:   c.MaxUnreliableAge,
	}
}
