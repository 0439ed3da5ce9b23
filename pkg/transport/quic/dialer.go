package quic

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/meshforge/conduit/pkg/conduit"
)

// Dialer establishes outbound QUIC sessions.
type Dialer struct {
	// TLSConfig must carry the conduit ALPN; TLSClientConfig builds a
	// suitable one.
	TLSConfig    *tls.Config
	PingInterval time.Duration
}

func (d *Dialer) Dial(ctx context.Context, addr string) (conduit.Binding, error) {
	tlsConf := d.TLSConfig
	if tlsConf == nil {
		tlsConf = TLSClientConfig(false)
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		EnableDatagrams: true,
	}

	conn, err := quic.DialAddr(ctx, addr, tlsConf, quicConfig)
	if err != nil {
		return nil, err
	}

	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(1, "stream open failed")
		return nil, err
	}

	// Opening a stream transmits nothing until data flows, so send an
	// empty hello frame to make the server's AcceptStream return.
	if err := writeFrame(stream, nil); err != nil {
		conn.CloseWithError(1, "hello failed")
		return nil, err
	}

	return newBinding(conn, stream, d.PingInterval), nil
}
