package conduit

import (
	"sync"
	"testing"
	"time"

	"github.com/meshforge/conduit/pkg/types"
)

func TestPumpEmptyIsNoOp(t *testing.T) {
	bridge := NewBridge()

	if n := bridge.Pump(); n != 0 {
		t.Fatalf("expected empty pump to deliver nothing, got %d", n)
	}
}

func TestHandlerPanicDoesNotStallDelivery(t *testing.T) {
	c, b, bridge := newTestConn(t, testOptions())

	var mu sync.Mutex
	var delivered []string
	c.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		if string(payload) == "boom" {
			panic("handler failure")
		}
		mu.Lock()
		delivered = append(delivered, string(payload))
		mu.Unlock()
	})

	connectAndPump(t, c, b, bridge)

	b.deliver("boom")
	b.deliver("after")
	waitFor(t, 2*time.Second, "events queued", func() bool { return bridge.Pending(c.ID()) == 2 })

	if n := bridge.Pump(); n != 2 {
		t.Fatalf("expected both events delivered, got %d", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0] != "after" {
		t.Fatalf("expected the event after the panic to still arrive, got %v", delivered)
	}
	if bridge.Pending(c.ID()) != 0 {
		t.Fatalf("expected pending count drained after panic")
	}
}

func TestEventsDuringPumpDeliverNextPump(t *testing.T) {
	c, b, bridge := newTestConn(t, testOptions())

	var mu sync.Mutex
	var rounds [][]string
	var current []string
	c.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		mu.Lock()
		current = append(current, string(payload))
		mu.Unlock()
	})

	connectAndPump(t, c, b, bridge)

	b.deliver("first")
	waitFor(t, 2*time.Second, "first event", func() bool { return bridge.Pending(c.ID()) == 1 })

	bridge.Pump()
	mu.Lock()
	rounds = append(rounds, current)
	current = nil
	mu.Unlock()

	b.deliver("second")
	waitFor(t, 2*time.Second, "second event", func() bool { return bridge.Pending(c.ID()) == 1 })
	bridge.Pump()
	mu.Lock()
	rounds = append(rounds, current)
	mu.Unlock()

	if len(rounds[0]) != 1 || rounds[0][0] != "first" {
		t.Fatalf("expected first pump to deliver only the first event, got %v", rounds[0])
	}
	if len(rounds[1]) != 1 || rounds[1][0] != "second" {
		t.Fatalf("expected second pump to deliver the second event, got %v", rounds[1])
	}
}

func TestHandlerReplacementWins(t *testing.T) {
	c, b, bridge := newTestConn(t, testOptions())

	var mu sync.Mutex
	firstCalls, secondCalls := 0, 0
	c.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		mu.Lock()
		firstCalls++
		mu.Unlock()
	})
	c.SetMessageHandler(func(id types.ConnectionID, payload []byte) {
		mu.Lock()
		secondCalls++
		mu.Unlock()
	})

	connectAndPump(t, c, b, bridge)

	b.deliver("x")
	waitFor(t, 2*time.Second, "event queued", func() bool { return bridge.Pending(c.ID()) == 1 })
	bridge.Pump()

	mu.Lock()
	defer mu.Unlock()
	if firstCalls != 0 {
		t.Fatalf("expected replaced handler to never fire, got %d calls", firstCalls)
	}
	if secondCalls != 1 {
		t.Fatalf("expected replacement handler to fire once, got %d", secondCalls)
	}
}
