package conduit

import "time"

// Options tune the per-connection queueing and service-loop behavior.
// The zero value is usable; unset fields take defaults.
type Options struct {
	// FlushInterval is the service-tick period for draining the outbound
	// queue and refreshing link gauges.
	FlushInterval time.Duration
	// DrainBatch caps how many reliable messages are handed to the
	// binding per tick. Backlog beyond it stays queued and shows up in
	// QueueDepth rather than being dropped.
	DrainBatch int
	// UnreliableCapacity bounds the unreliable lane; overflow evicts the
	// oldest pending message.
	UnreliableCapacity int
	// MaxUnreliableAge discards unreliable messages older than this at
	// drain time. Zero disables staleness checks.
	MaxUnreliableAge time.Duration
}

// DefaultOptions returns the tuning used when no explicit options are
// given.
func DefaultOptions() Options {
	return Options{
		FlushInterval:      10 * time.Millisecond,
		DrainBatch:         64,
		UnreliableCapacity: 256,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.FlushInterval <= 0 {
		o.FlushInterval = def.FlushInterval
	}
	if o.DrainBatch <= 0 {
		o.DrainBatch = def.DrainBatch
	}
	if o.UnreliableCapacity <= 0 {
		o.UnreliableCapacity = def.UnreliableCapacity
	}
	return o
}
