package conduit

import (
	"sync"
	"sync/atomic"

	"github.com/meshforge/conduit/internal/logging"
	"github.com/meshforge/conduit/pkg/types"
)

// Registry owns the server side's live connections. Identifiers are
// minted from a monotonically increasing 64-bit counter, so an ID is
// never zero and never reused within a process lifetime.
type Registry struct {
	mu     sync.RWMutex
	conns  map[types.ConnectionID]*Conn
	nextID atomic.Uint64
	bridge *Bridge
	opts   Options
	log    *logging.Logger
}

func NewRegistry(bridge *Bridge, opts Options) *Registry {
	return &Registry{
		conns:  make(map[types.ConnectionID]*Conn),
		bridge: bridge,
		opts:   opts.withDefaults(),
		log:    logging.NewLogger("registry"),
	}
}

// Accept wraps binding in a new connection under a freshly minted
// identifier and starts its service loop.
func (r *Registry) Accept(binding Binding) *Conn {
	id := types.ConnectionID(r.nextID.Add(1))
	c := newConn(id, binding, r.bridge, r.opts)

	r.mu.Lock()
	r.conns[id] = c
	r.mu.Unlock()

	r.log.Debug("connection registered",
		logging.Field{Key: "connection_id", Value: uint64(id)},
		logging.Field{Key: "remote", Value: binding.RemoteAddr()})
	return c
}

func (r *Registry) Get(id types.ConnectionID) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) IDs() []types.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]types.ConnectionID, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

func (r *Registry) ForEach(fn func(*Conn)) {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	for _, c := range conns {
		fn(c)
	}
}

// Remove drops id if its connection is disconnected and the bridge holds
// no pending events for it. Returns false when removal must wait; stale
// events still being delivered must not observe a freed identifier.
func (r *Registry) Remove(id types.ConnectionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	if connState(c.state.Load()) != stateDisconnected {
		return false
	}
	if r.bridge.Pending(id) > 0 {
		return false
	}
	delete(r.conns, id)
	return true
}

// Reap removes every disconnected connection whose dispatch queue has
// drained. Called after each pump.
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, c := range r.conns {
		if connState(c.state.Load()) != stateDisconnected {
			continue
		}
		if r.bridge.Pending(id) > 0 {
			continue
		}
		delete(r.conns, id)
		removed++
	}
	return removed
}
