package conduit

import (
	"context"

	cerrors "github.com/meshforge/conduit/pkg/errors"
	"github.com/meshforge/conduit/pkg/types"
)

// A client endpoint holds exactly one connection, so its identifier is
// fixed.
const clientConnectionID types.ConnectionID = 1

// Client owns the application's single outbound connection and its
// dispatch bridge. There is no ambient singleton; the application holds
// and passes the Client explicitly.
type Client struct {
	conn   *Conn
	bridge *Bridge
}

// Dial establishes a session to addr over d. The returned connection
// reports IsConnected()==false until the binding's handshake event has
// been observed by the service loop; the status handler fires on the
// first Pump after that.
func Dial(ctx context.Context, d Dialer, addr string, opts Options) (*Client, error) {
	binding, err := d.Dial(ctx, addr)
	if err != nil {
		return nil, cerrors.ErrDialFailed(addr, err)
	}

	bridge := NewBridge()
	conn := newConn(clientConnectionID, binding, bridge, opts.withDefaults())
	return &Client{conn: conn, bridge: bridge}, nil
}

// Conn returns the client's connection for sends, handler registration,
// and stats.
func (c *Client) Conn() *Conn { return c.conn }

// Pump processes pending events. Call once per application tick on the
// main goroutine.
func (c *Client) Pump() int { return c.bridge.Pump() }

// Close disconnects. Pump once more afterwards to observe the final
// status event.
func (c *Client) Close() { c.conn.Disconnect() }
