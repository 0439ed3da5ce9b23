package quic

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	cerrors "github.com/meshforge/conduit/pkg/errors"
)

// ListenerOptions configure the QUIC accept side. TLSConfig is required;
// QUIC has no cleartext mode.
type ListenerOptions struct {
	TLSConfig    *tls.Config
	PingInterval time.Duration
}

type Listener struct {
	listener *quic.Listener
	opts     ListenerOptions
	log      *logging.Logger
}

func NewListener(addr string, opts ListenerOptions) (*Listener, error) {
	if opts.TLSConfig == nil {
		return nil, cerrors.ErrTLSConfig("quic listener requires a TLS config", nil)
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:     30 * time.Second,
		MaxIncomingStreams: 100,
		EnableDatagrams:    true,
	}

	ln, err := quic.ListenAddr(addr, opts.TLSConfig, quicConfig)
	if err != nil {
		return nil, cerrors.ErrListenFailed(addr, err)
	}

	return &Listener{
		listener: ln,
		opts:     opts,
		log:      logging.NewLogger("quic-listener"),
	}, nil
}

// Accept waits for the next QUIC connection and its control stream. The
// dialer opens the stream and writes a hello frame, so AcceptStream
// returns promptly after the handshake.
func (l *Listener) Accept(ctx context.Context) (conduit.Binding, error) {
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(1, "no control stream")
		return nil, err
	}

	l.log.Debug("accepted connection",
		logging.Field{Key: "remote", Value: conn.RemoteAddr().String()})

	return newBinding(conn, stream, l.opts.PingInterval), nil
}

func (l *Listener) Addr() string {
	return l.listener.Addr().String()
}

func (l *Listener) Close() error {
	return l.listener.Close()
}
