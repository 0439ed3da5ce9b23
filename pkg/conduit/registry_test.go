package conduit

import (
	"testing"
	"time"

	"github.com/meshforge/conduit/pkg/types"
)

func TestRegistryMintsDistinctNonZeroIDs(t *testing.T) {
	bridge := NewBridge()
	reg := NewRegistry(bridge, testOptions())

	c1 := reg.Accept(newFakeBinding())
	c2 := reg.Accept(newFakeBinding())
	t.Cleanup(c1.Disconnect)
	t.Cleanup(c2.Disconnect)

	if c1.ID() == types.InvalidConnection || c2.ID() == types.InvalidConnection {
		t.Fatalf("expected non-zero identifiers, got %d and %d", c1.ID(), c2.ID())
	}
	if c1.ID() == c2.ID() {
		t.Fatalf("expected distinct identifiers, both are %d", c1.ID())
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 registered connections, got %d", reg.Len())
	}
}

func TestRegistryRemovalIsIndependent(t *testing.T) {
	bridge := NewBridge()
	reg := NewRegistry(bridge, testOptions())

	c1 := reg.Accept(newFakeBinding())
	c2 := reg.Accept(newFakeBinding())
	t.Cleanup(c2.Disconnect)

	c1.Disconnect()
	bridge.Pump()
	if !reg.Remove(c1.ID()) {
		t.Fatalf("expected disconnected connection with drained queue to be removable")
	}

	if _, ok := reg.Get(c1.ID()); ok {
		t.Fatalf("expected removed connection to be gone")
	}
	if _, ok := reg.Get(c2.ID()); !ok {
		t.Fatalf("expected other connection to be unaffected by removal")
	}
}

func TestRegistryRemoveRefusesLiveConnection(t *testing.T) {
	bridge := NewBridge()
	reg := NewRegistry(bridge, testOptions())

	b := newFakeBinding()
	c := reg.Accept(b)
	t.Cleanup(c.Disconnect)

	b.connect()
	waitFor(t, 2*time.Second, "connected state", c.IsConnected)

	if reg.Remove(c.ID()) {
		t.Fatalf("expected removal of a live connection to be refused")
	}
}

func TestRegistryReapDeferredUntilDrained(t *testing.T) {
	bridge := NewBridge()
	reg := NewRegistry(bridge, testOptions())

	b := newFakeBinding()
	c := reg.Accept(b)

	b.connect()
	waitFor(t, 2*time.Second, "connected event", func() bool {
		return c.IsConnected() && bridge.Pending(c.ID()) == 1
	})
	bridge.Pump()

	b.dropLink()
	waitFor(t, 2*time.Second, "disconnect event queued", func() bool {
		return !c.IsConnected() && bridge.Pending(c.ID()) == 1
	})

	// The status event is still queued: the identifier must stay valid.
	if n := reg.Reap(); n != 0 {
		t.Fatalf("expected reap to defer while events are pending, removed %d", n)
	}
	if _, ok := reg.Get(c.ID()); !ok {
		t.Fatalf("expected connection to remain until its events drain")
	}

	bridge.Pump()
	if n := reg.Reap(); n != 1 {
		t.Fatalf("expected reap to remove the drained connection, removed %d", n)
	}
	if _, ok := reg.Get(c.ID()); ok {
		t.Fatalf("expected connection gone after reap")
	}
}

func TestRegistryForEach(t *testing.T) {
	bridge := NewBridge()
	reg := NewRegistry(bridge, testOptions())

	for i := 0; i < 3; i++ {
		c := reg.Accept(newFakeBinding())
		t.Cleanup(c.Disconnect)
	}

	seen := 0
	reg.ForEach(func(c *Conn) { seen++ })
	if seen != 3 {
		t.Fatalf("expected to visit 3 connections, visited %d", seen)
	}
	if len(reg.IDs()) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(reg.IDs()))
	}
}
