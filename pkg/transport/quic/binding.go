// Package quic binds conduit connections to QUIC sessions. Reliable
// payloads ride a single bidirectional stream; unreliable payloads use
// QUIC datagrams, which the transport may drop under loss without
// stalling the stream.
package quic

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	"github.com/meshforge/conduit/pkg/types"
)

const (
	defaultPingInterval = 5 * time.Second
	eventBuffer         = 128
)

// Binding adapts one QUIC connection plus its control stream to the
// conduit.Binding contract.
type Binding struct {
	conn         *quic.Conn
	stream       *quic.Stream
	events       chan conduit.Event
	pingInterval time.Duration

	writeMu sync.Mutex

	rttNanos  atomic.Int64
	pingsSent atomic.Int64
	pongsRecv atomic.Int64
	bytesSent atomic.Int64
	bytesRecv atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	log       *logging.Logger
}

func newBinding(conn *quic.Conn, stream *quic.Stream, pingInterval time.Duration) *Binding {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	b := &Binding{
		conn:         conn,
		stream:       stream,
		events:       make(chan conduit.Event, eventBuffer),
		pingInterval: pingInterval,
		done:         make(chan struct{}),
		log:          logging.NewLogger("quic"),
	}

	// The handshake and stream setup completed before this binding
	// existed, so the connected notification is immediate.
	b.emit(conduit.Event{Kind: conduit.EventConnected})

	go b.streamLoop()
	go b.datagramLoop()
	go b.pingLoop()
	return b
}

func (b *Binding) emit(ev conduit.Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

func (b *Binding) streamLoop() {
	for {
		payload, err := readFrame(b.stream)
		if err != nil {
			b.emit(conduit.Event{Kind: conduit.EventClosed})
			return
		}
		// Zero-length hello frames only exist to open the stream.
		if len(payload) == 0 {
			continue
		}
		b.bytesRecv.Add(int64(len(payload)))
		b.emit(conduit.Event{Kind: conduit.EventMessage, Payload: payload})
	}
}

func (b *Binding) datagramLoop() {
	for {
		dgram, err := b.conn.ReceiveDatagram(context.Background())
		if err != nil {
			return
		}
		if len(dgram) == 0 {
			continue
		}
		switch dgram[0] {
		case datagramData:
			payload := dgram[1:]
			b.bytesRecv.Add(int64(len(payload)))
			b.emit(conduit.Event{Kind: conduit.EventMessage, Payload: payload})
		case datagramPing:
			if sent, ok := decodeProbe(dgram); ok {
				b.conn.SendDatagram(encodeProbe(datagramPong, sent))
			}
		case datagramPong:
			if sent, ok := decodeProbe(dgram); ok {
				b.rttNanos.Store(time.Since(sent).Nanoseconds())
				b.pongsRecv.Add(1)
			}
		default:
			b.log.Debug("unknown datagram kind",
				logging.Field{Key: "kind", Value: dgram[0]})
		}
	}
}

func (b *Binding) pingLoop() {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			if err := b.conn.SendDatagram(encodeProbe(datagramPing, time.Now())); err != nil {
				return
			}
			b.pingsSent.Add(1)
		}
	}
}

func (b *Binding) Send(payload []byte, r types.Reliability) error {
	if r == types.Unreliable {
		if err := b.conn.SendDatagram(encodeDataDatagram(payload)); err != nil {
			return err
		}
		b.bytesSent.Add(int64(len(payload)))
		return nil
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := writeFrame(b.stream, payload); err != nil {
		return err
	}
	b.bytesSent.Add(int64(len(payload)))
	return nil
}

// Ready always reports true: quic-go buffers stream writes internally and
// datagram sends fail fast rather than block.
func (b *Binding) Ready() bool { return true }

func (b *Binding) Events() <-chan conduit.Event { return b.events }

func (b *Binding) Metrics() types.LinkMetrics {
	pings := b.pingsSent.Load()
	pongs := b.pongsRecv.Load()

	quality := float64(100)
	if pings > 0 {
		quality = float64(pongs) / float64(pings) * 100
		if quality > 100 {
			quality = 100
		}
	}

	return types.LinkMetrics{
		RTT:           time.Duration(b.rttNanos.Load()),
		Quality:       quality,
		BytesSent:     b.bytesSent.Load(),
		BytesReceived: b.bytesRecv.Load(),
	}
}

func (b *Binding) RemoteAddr() string {
	return b.conn.RemoteAddr().String()
}

func (b *Binding) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.done)
		b.stream.Close()
		err = b.conn.CloseWithError(0, "closed")
	})
	return err
}
