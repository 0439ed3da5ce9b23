package ws

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshforge/conduit/pkg/conduit"
)

// Dialer establishes outbound WebSocket sessions. The zero value dials
// plain ws with default timings.
type Dialer struct {
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	// TLSConfig enables wss when dialing a wss:// URL.
	TLSConfig *tls.Config
}

// Dial connects to addr, which may be a bare host:port (expanded to
// ws://host:port/ws) or a full ws:// / wss:// URL.
func (d *Dialer) Dial(ctx context.Context, addr string) (conduit.Binding, error) {
	u := addr
	if !strings.Contains(addr, "://") {
		u = fmt.Sprintf("ws://%s/ws", addr)
	}

	handshakeTimeout := d.HandshakeTimeout
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		TLSClientConfig:  d.TLSConfig,
	}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	return newBinding(conn, d.PingInterval), nil
}
