package conduit

import (
	"fmt"
	"sync"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/types"
)

type bridgeEventKind int

const (
	messageEvent bridgeEventKind = iota
	statusEvent
)

type bridgeEvent struct {
	conn      *Conn
	kind      bridgeEventKind
	payload   []byte
	connected bool
}

// Bridge moves events produced on transport goroutines onto whichever
// goroutine calls Pump, preserving per-connection production order. No
// total order across connections is guaranteed.
type Bridge struct {
	mu      sync.Mutex
	events  []bridgeEvent
	pending map[types.ConnectionID]int
	log     *logging.Logger
}

func NewBridge() *Bridge {
	return &Bridge{
		pending: make(map[types.ConnectionID]int),
		log:     logging.NewLogger("bridge"),
	}
}

func (b *Bridge) pushMessage(c *Conn, payload []byte) {
	b.push(bridgeEvent{conn: c, kind: messageEvent, payload: payload})
}

func (b *Bridge) pushStatus(c *Conn, connected bool) {
	b.push(bridgeEvent{conn: c, kind: statusEvent, connected: connected})
}

func (b *Bridge) push(ev bridgeEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.pending[ev.conn.id]++
	b.mu.Unlock()
}

// Pump drains every event queued at the time of the call and invokes the
// registered handlers synchronously, in production order per connection.
// Handler panics are isolated per event and never stall later events.
// Events produced while pumping (handler re-entrancy, transport
// goroutines) are delivered on the next call. Returns the number of
// events delivered; an empty pump is a no-op.
func (b *Bridge) Pump() int {
	b.mu.Lock()
	batch := b.events
	b.events = nil
	b.mu.Unlock()

	for i := range batch {
		b.dispatch(batch[i])

		b.mu.Lock()
		id := batch[i].conn.id
		if n := b.pending[id]; n <= 1 {
			delete(b.pending, id)
		} else {
			b.pending[id] = n - 1
		}
		b.mu.Unlock()
	}
	return len(batch)
}

func (b *Bridge) dispatch(ev bridgeEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("handler panic",
				logging.Field{Key: "connection_id", Value: uint64(ev.conn.id)},
				logging.Field{Key: "panic", Value: fmt.Sprintf("%v", r)})
		}
	}()

	switch ev.kind {
	case messageEvent:
		if h := ev.conn.messageHandler(); h != nil {
			h(ev.conn.id, ev.payload)
		}
	case statusEvent:
		if h := ev.conn.statusHandler(); h != nil {
			h(ev.conn.id, ev.connected)
		}
	}
}

// Pending reports undelivered events for id. The registry defers removal
// of a disconnected connection until this reaches zero.
func (b *Bridge) Pending(id types.ConnectionID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending[id]
}
