// Package conduit is a transport-agnostic, bidirectional connection
// abstraction. A Conn drives exactly one transport Binding, queues
// outbound messages in two reliability lanes, and delivers inbound
// messages and status changes through a Bridge that the application
// pumps on its main goroutine.
package conduit

import (
	"context"

	"github.com/meshforge/conduit/pkg/types"
)

// EventKind discriminates the notifications a Binding produces.
type EventKind int

const (
	// EventConnected signals transport-level handshake success.
	EventConnected EventKind = iota
	// EventMessage carries one inbound payload.
	EventMessage
	// EventClosed signals loss or close of the underlying session.
	EventClosed
)

// Event is produced on transport-owned goroutines and consumed by the
// connection's service loop.
type Event struct {
	Kind    EventKind
	Payload []byte
}

// Binding is the concrete transport session a Conn drives. Exactly one
// Conn owns a Binding for its whole lifetime.
//
// Send must be safe for concurrent use. Events must deliver EventClosed
// (or be closed) when the session ends; after that no further events may
// be produced. Payload size limits are the binding's responsibility.
type Binding interface {
	// Send hands one payload to the transport. The reliability tag maps
	// to the transport's own delivery modes.
	Send(payload []byte, r types.Reliability) error
	// Ready reports whether the transport can take another message.
	// Returning false backs up the reliable lane and lets the unreliable
	// lane overflow by policy.
	Ready() bool
	// Events is the binding's ordered notification stream.
	Events() <-chan Event
	// Metrics returns continuously refreshed raw link metrics.
	Metrics() types.LinkMetrics
	RemoteAddr() string
	Close() error
}

// Listener accepts inbound transport sessions on the server side.
type Listener interface {
	Accept(ctx context.Context) (Binding, error)
	Addr() string
	Close() error
}

// Dialer establishes the client side's single outbound session. The
// concrete transport is selected once at construction, never per call.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Binding, error)
}
