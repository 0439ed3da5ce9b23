package types

// ConnectionID identifies one live connection on an endpoint. IDs are
// unique among live connections and are never reassigned while any
// reference to the old connection may still exist.
type ConnectionID uint64

// InvalidConnection is never assigned to a real connection.
const InvalidConnection ConnectionID = 0

// Reliability selects the delivery class of an outbound message. It is
// the only reliability-control surface offered to callers.
type Reliability int

const (
	// Unreliable messages have no delivery or ordering guarantee and may
	// be dropped under backpressure.
	Unreliable Reliability = iota
	// Reliable messages are delivered exactly once and in order relative
	// to other reliable messages on the same connection.
	Reliable
)

func (r Reliability) String() string {
	switch r {
	case Unreliable:
		return "unreliable"
	case Reliable:
		return "reliable"
	default:
		return "unknown"
	}
}

// MessageHandler receives one inbound payload. Handlers run only on the
// goroutine that pumps the dispatch bridge.
type MessageHandler func(id ConnectionID, payload []byte)

// StatusHandler receives connectivity transitions. connected=false fires
// at most once per connection.
type StatusHandler func(id ConnectionID, connected bool)
