package queue

import (
	"testing"
	"time"

	"github.com/meshforge/conduit/pkg/types"
)

func msg(payload string, r types.Reliability) Message {
	return Message{Payload: []byte(payload), Reliability: r, EnqueuedAt: time.Now()}
}

func TestReliableFIFO(t *testing.T) {
	q := New(8)
	q.Push(msg("a", types.Reliable))
	q.Push(msg("b", types.Reliable))
	q.Push(msg("c", types.Reliable))

	for _, want := range []string{"a", "b", "c"} {
		m, ok := q.PopReliable()
		if !ok {
			t.Fatalf("expected reliable message %q", want)
		}
		if string(m.Payload) != want {
			t.Fatalf("expected %q, got %q", want, m.Payload)
		}
	}
	if _, ok := q.PopReliable(); ok {
		t.Fatalf("expected empty reliable lane")
	}
}

func TestRequeuePreservesOrder(t *testing.T) {
	q := New(8)
	q.Push(msg("a", types.Reliable))
	q.Push(msg("b", types.Reliable))

	m, _ := q.PopReliable()
	q.RequeueReliable(m)

	m, _ = q.PopReliable()
	if string(m.Payload) != "a" {
		t.Fatalf("expected requeued message at head, got %q", m.Payload)
	}
	m, _ = q.PopReliable()
	if string(m.Payload) != "b" {
		t.Fatalf("expected b after requeued a, got %q", m.Payload)
	}
}

func TestUnreliableDropOldest(t *testing.T) {
	q := New(3)
	for _, p := range []string{"a", "b", "c"} {
		if evicted := q.Push(msg(p, types.Unreliable)); evicted {
			t.Fatalf("unexpected eviction pushing %q", p)
		}
	}
	if evicted := q.Push(msg("d", types.Unreliable)); !evicted {
		t.Fatalf("expected eviction on overflow")
	}

	for _, want := range []string{"b", "c", "d"} {
		m, ok := q.PopUnreliable()
		if !ok || string(m.Payload) != want {
			t.Fatalf("expected %q, got %q (ok=%v)", want, m.Payload, ok)
		}
	}
}

func TestReliableUnaffectedByUnreliableOverflow(t *testing.T) {
	q := New(1)
	q.Push(msg("r1", types.Reliable))
	q.Push(msg("u1", types.Unreliable))
	q.Push(msg("u2", types.Unreliable))
	q.Push(msg("r2", types.Reliable))

	r, u := q.Depth()
	if r != 2 {
		t.Fatalf("expected 2 reliable pending, got %d", r)
	}
	if u != 1 {
		t.Fatalf("expected 1 unreliable pending, got %d", u)
	}
}

func TestClear(t *testing.T) {
	q := New(8)
	q.Push(msg("a", types.Reliable))
	q.Push(msg("b", types.Unreliable))

	r, u := q.Clear()
	if r != 1 || u != 1 {
		t.Fatalf("expected clear counts (1,1), got (%d,%d)", r, u)
	}
	if _, ok := q.PopReliable(); ok {
		t.Fatalf("expected empty queue after clear")
	}
}
