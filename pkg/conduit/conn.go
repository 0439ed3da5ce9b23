package conduit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/internal/queue"
	"github.com/meshforge/conduit/internal/stats"
	"github.com/meshforge/conduit/pkg/types"
)

type connState int32

const (
	stateInitial connState = iota
	stateConnected
	stateDisconnected
)

// Conn is one point-to-point session. All public methods are safe to
// call from any goroutine without external locking; handlers registered
// on a Conn fire only inside the owning bridge's Pump.
//
// A Conn never leaves the disconnected state. To reconnect, create a new
// connection with a new identifier.
type Conn struct {
	id      types.ConnectionID
	binding Binding
	bridge  *Bridge
	queue   *queue.Outbound
	stats   *stats.Tracker
	opts    Options
	log     *logging.Logger

	state atomic.Int32

	handlerMu sync.RWMutex
	onMessage types.MessageHandler
	onStatus  types.StatusHandler

	// sendMu serializes queue drains so the binding sees reliable
	// messages in strict enqueue order even when an explicit Disconnect
	// races the service tick.
	sendMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	loopDone  chan struct{}
}

func newConn(id types.ConnectionID, binding Binding, bridge *Bridge, opts Options) *Conn {
	c := &Conn{
		id:       id,
		binding:  binding,
		bridge:   bridge,
		queue:    queue.New(opts.UnreliableCapacity),
		stats:    stats.NewTracker(),
		opts:     opts,
		log:      logging.NewLogger("conn"),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go c.serviceLoop()
	return c
}

func (c *Conn) ID() types.ConnectionID { return c.id }

func (c *Conn) RemoteAddr() string { return c.binding.RemoteAddr() }

// IsConnected reports the most recently observed state. It is eventually
// consistent with transitions driven from transport goroutines.
func (c *Conn) IsConnected() bool {
	return connState(c.state.Load()) == stateConnected
}

// SetMessageHandler replaces the message handler. Passing nil clears it;
// inbound messages without a handler are silently discarded at dispatch.
func (c *Conn) SetMessageHandler(h types.MessageHandler) {
	c.handlerMu.Lock()
	c.onMessage = h
	c.handlerMu.Unlock()
}

// SetStatusHandler replaces the status handler.
func (c *Conn) SetStatusHandler(h types.StatusHandler) {
	c.handlerMu.Lock()
	c.onStatus = h
	c.handlerMu.Unlock()
}

func (c *Conn) messageHandler() types.MessageHandler {
	c.handlerMu.RLock()
	defer c.handlerMu.RUnlock()
	return c.onMessage
}

func (c *Conn) statusHandler() types.StatusHandler {
	c.handlerMu.RLock()
	defer c.handlerMu.RUnlock()
	return c.onStatus
}

// Send queues payload for asynchronous transmission and returns
// immediately. Sends are fire-and-forget: when the connection is not
// connected the message is dropped silently and counted, never raised as
// an error.
func (c *Conn) Send(payload []byte, r types.Reliability) {
	if !c.IsConnected() {
		c.stats.AddDropped()
		return
	}
	evicted := c.queue.Push(queue.Message{
		Payload:     payload,
		Reliability: r,
		EnqueuedAt:  time.Now(),
	})
	if evicted {
		c.stats.AddDropped()
	}
}

// Stats returns an immutable snapshot. Never blocks on network I/O.
func (c *Conn) Stats() types.ConnectionStats {
	return c.stats.Snapshot()
}

// RTTPercentile reports the p-th percentile of round-trip samples
// observed over the connection's lifetime.
func (c *Conn) RTTPercentile(p float64) time.Duration {
	return c.stats.RTTPercentile(p)
}

// QueueDepth reports the pending backlog per lane. Together with the
// Dropped counter it keeps the fire-and-forget send path diagnosable.
func (c *Conn) QueueDepth() (reliable, unreliable int) {
	return c.queue.Depth()
}

// Disconnect requests graceful close. Reliable messages queued before
// the call are flushed best-effort; unreliable ones are abandoned.
// Idempotent and safe from any goroutine; the status handler observes
// connected=false at most once.
func (c *Conn) Disconnect() {
	c.closeOnce.Do(func() {
		prev := connState(c.state.Swap(int32(stateDisconnected)))
		if prev == stateConnected {
			c.drainReliable(0)
			c.bridge.pushStatus(c, false)
		}
		close(c.done)
		if err := c.binding.Close(); err != nil {
			c.log.Debug("binding close",
				logging.Field{Key: "connection_id", Value: uint64(c.id)},
				logging.Field{Key: "error", Value: err})
		}
		c.queue.Clear()
	})
}

func (c *Conn) serviceLoop() {
	defer close(c.loopDone)

	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()
	events := c.binding.Events()

	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-events:
			if !ok {
				c.Disconnect()
				return
			}
			c.handleEvent(ev)
			if connState(c.state.Load()) == stateDisconnected {
				return
			}
		case <-ticker.C:
			c.drainReliable(c.opts.DrainBatch)
			c.drainUnreliable()
			c.refreshLink()
		}
	}
}

func (c *Conn) handleEvent(ev Event) {
	switch ev.Kind {
	case EventConnected:
		if c.state.CompareAndSwap(int32(stateInitial), int32(stateConnected)) {
			c.stats.MarkConnected(time.Now())
			c.bridge.pushStatus(c, true)
		}
	case EventMessage:
		if connState(c.state.Load()) != stateConnected {
			return
		}
		c.stats.AddReceived()
		c.bridge.pushMessage(c, ev.Payload)
	case EventClosed:
		c.Disconnect()
	}
}

// drainReliable hands queued reliable messages to the binding in FIFO
// order. limit <= 0 drains without a batch cap (used by Disconnect for
// the best-effort final flush). A send failure requeues the message at
// the head and stops the drain.
func (c *Conn) drainReliable(limit int) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	for n := 0; limit <= 0 || n < limit; n++ {
		if !c.binding.Ready() {
			return
		}
		m, ok := c.queue.PopReliable()
		if !ok {
			return
		}
		if err := c.binding.Send(m.Payload, types.Reliable); err != nil {
			c.queue.RequeueReliable(m)
			return
		}
		c.stats.AddReliableSent()
	}
}

func (c *Conn) drainUnreliable() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	for {
		if !c.binding.Ready() {
			return
		}
		m, ok := c.queue.PopUnreliable()
		if !ok {
			return
		}
		if c.opts.MaxUnreliableAge > 0 && time.Since(m.EnqueuedAt) > c.opts.MaxUnreliableAge {
			c.stats.AddDropped()
			continue
		}
		if err := c.binding.Send(m.Payload, types.Unreliable); err != nil {
			// Unreliable carries no delivery guarantee; count and move on.
			c.stats.AddDropped()
			return
		}
		c.stats.AddUnreliableSent()
	}
}

func (c *Conn) refreshLink() {
	lm := c.binding.Metrics()
	c.stats.SetLink(lm.RTT, lm.Quality)
}
