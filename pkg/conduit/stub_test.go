package conduit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meshforge/conduit/pkg/types"
)

// fakeBinding drives the state machine from tests without a network.
type fakeBinding struct {
	mu        sync.Mutex
	sent      []string
	sentRel   []types.Reliability
	ready     bool
	failSends bool
	closed    bool
	events    chan Event
}

func newFakeBinding() *fakeBinding {
	return &fakeBinding{
		ready:  true,
		events: make(chan Event, 64),
	}
}

func (f *fakeBinding) Send(payload []byte, r types.Reliability) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSends {
		return errors.New("send failed")
	}
	f.sent = append(f.sent, string(payload))
	f.sentRel = append(f.sentRel, r)
	return nil
}

func (f *fakeBinding) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeBinding) Events() <-chan Event { return f.events }

func (f *fakeBinding) Metrics() types.LinkMetrics {
	return types.LinkMetrics{RTT: 5 * time.Millisecond, Quality: 100}
}

func (f *fakeBinding) RemoteAddr() string { return "fake:0" }

func (f *fakeBinding) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeBinding) setReady(ready bool) {
	f.mu.Lock()
	f.ready = ready
	f.mu.Unlock()
}

func (f *fakeBinding) connect() {
	f.events <- Event{Kind: EventConnected}
}

func (f *fakeBinding) deliver(payload string) {
	f.events <- Event{Kind: EventMessage, Payload: []byte(payload)}
}

func (f *fakeBinding) dropLink() {
	f.events <- Event{Kind: EventClosed}
}

func (f *fakeBinding) sentPayloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeBinding) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testOptions() Options {
	return Options{
		FlushInterval:      time.Millisecond,
		DrainBatch:         64,
		UnreliableCapacity: 256,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
