// Package ws binds conduit connections to WebSocket sessions using
// gorilla/websocket. Both reliability classes ride the same ordered TCP
// stream; the tag only affects queueing upstream. Round-trip time is
// measured with ping/pong control frames.
package ws

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/conduit"
	"github.com/meshforge/conduit/pkg/types"
)

const (
	defaultPingInterval = 5 * time.Second
	controlWriteWait    = 5 * time.Second
	eventBuffer         = 128
)

// Binding adapts one *websocket.Conn to the conduit.Binding contract.
type Binding struct {
	conn         *websocket.Conn
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

func newBinding(conn *websocket.Conn, pingInterval time.Duration) *Binding {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	b := &Binding{
		conn:         conn,
		events:       make(chan conduit.Event, eventBuffer),
		pingInterval: pingInterval,
		done:         make(chan struct{}),
		log:          logging.NewLogger("ws"),
	}
	conn.SetPongHandler(b.onPong)

	// The WebSocket handshake completed before this binding existed, so
	// the connected notification is immediate.
	b.emit(conduit.Event{Kind: conduit.EventConnected})

	go b.readLoop()
	go b.pingLoop()
	return b
}

func (b *Binding) emit(ev conduit.Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

func (b *Binding) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.emit(conduit.Event{Kind: conduit.EventClosed})
			return
		}
		b.bytesRecv.Add(int64(len(data)))
		b.emit(conduit.Event{Kind: conduit.EventMessage, Payload: data})
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
			payload := strconv.FormatInt(time.Now().UnixNano(), 10)
			err := b.conn.WriteControl(websocket.PingMessage, []byte(payload), time.Now().Add(controlWriteWait))
			if err != nil {
				return
			}
			b.pingsSent.Add(1)
		}
	}
}

// onPong computes RTT from the timestamp echoed in the pong payload.
func (b *Binding) onPong(appData string) error {
	sent, err := strconv.ParseInt(appData, 10, 64)
	if err != nil {
		return nil
	}
	b.rttNanos.Store(time.Now().UnixNano() - sent)
	b.pongsRecv.Add(1)
	return nil
}

func (b *Binding) Send(payload []byte, r types.Reliability) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	if err := b.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	b.bytesSent.Add(int64(len(payload)))
	return nil
}

// Ready always reports true: the TCP write path absorbs short stalls in
// its own buffers rather than signaling backpressure upward.
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
	var lastErr error
	b.closeOnce.Do(func() {
		close(b.done)

		err := b.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(controlWriteWait),
		)
		if err != nil {
			lastErr = err
		}
		if err := b.conn.Close(); err != nil {
			lastErr = err
		}
	})
	return lastErr
}
