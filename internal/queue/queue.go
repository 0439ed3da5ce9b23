package queue

import (
	"sync"
	"time"

	"github.com/meshforge/conduit/pkg/types"
)

// Message is one pending outbound payload. The queue owns it until it is
// popped for hand-off to the transport binding.
type Message struct {
	Payload     []byte
	Reliability types.Reliability
	EnqueuedAt  time.Time
}

// Outbound partitions pending messages into a reliable and an unreliable
// lane so reliable ordering is independent of unreliable volume. The
// reliable lane never drops; the unreliable lane is a bounded ring that
// evicts its oldest entry on overflow, favoring freshness.
//
// Safe for concurrent use.
type Outbound struct {
	mu            sync.Mutex
	reliable      []Message
	unreliable    []Message
	unreliableCap int
}

const defaultUnreliableCap = 256

func New(unreliableCap int) *Outbound {
	if unreliableCap <= 0 {
		unreliableCap = defaultUnreliableCap
	}
	return &Outbound{unreliableCap: unreliableCap}
}

// Push appends m to its lane and reports whether an older unreliable
// message was evicted to make room.
func (q *Outbound) Push(m Message) (evicted bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if m.Reliability == types.Reliable {
		q.reliable = append(q.reliable, m)
		return false
	}

	if len(q.unreliable) >= q.unreliableCap {
		copy(q.unreliable, q.unreliable[1:])
		q.unreliable[len(q.unreliable)-1] = m
		return true
	}
	q.unreliable = append(q.unreliable, m)
	return false
}

func (q *Outbound) PopReliable() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.reliable) == 0 {
		return Message{}, false
	}
	m := q.reliable[0]
	q.reliable[0] = Message{}
	q.reliable = q.reliable[1:]
	if len(q.reliable) == 0 {
		q.reliable = nil
	}
	return m, true
}

// RequeueReliable puts m back at the head of the reliable lane after a
// failed send so FIFO order survives retries.
func (q *Outbound) RequeueReliable(m Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.reliable = append(q.reliable, Message{})
	copy(q.reliable[1:], q.reliable)
	q.reliable[0] = m
}

func (q *Outbound) PopUnreliable() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.unreliable) == 0 {
		return Message{}, false
	}
	m := q.unreliable[0]
	q.unreliable[0] = Message{}
	q.unreliable = q.unreliable[1:]
	if len(q.unreliable) == 0 {
		q.unreliable = nil
	}
	return m, true
}

// Depth reports the current backlog per lane.
func (q *Outbound) Depth() (reliable, unreliable int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.reliable), len(q.unreliable)
}

// Clear abandons all pending messages and reports how many were dropped
// from each lane. Used during connection teardown.
func (q *Outbound) Clear() (reliable, unreliable int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	reliable, unreliable = len(q.reliable), len(q.unreliable)
	q.reliable = nil
	q.unreliable = nil
	return reliable, unreliable
}
