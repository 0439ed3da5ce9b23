package stats

import (
	"testing"
	"time"
)

func TestCountersMonotonic(t *testing.T) {
	tr := NewTracker()

	var last uint64
	for i := 0; i < 10; i++ {
		tr.AddReliableSent()
		s := tr.Snapshot()
		if s.ReliableSent <= last && i > 0 {
			t.Fatalf("expected monotonic counter, got %d after %d", s.ReliableSent, last)
		}
		last = s.ReliableSent
	}
	if last != 10 {
		t.Fatalf("expected 10 reliable sent, got %d", last)
	}
}

func TestSnapshotGauges(t *testing.T) {
	tr := NewTracker()
	tr.SetLink(42*time.Millisecond, 87.5)

	s := tr.Snapshot()
	if s.RTT != 42*time.Millisecond {
		t.Fatalf("expected rtt 42ms, got %v", s.RTT)
	}
	if s.Quality != 87.5 {
		t.Fatalf("expected quality 87.5, got %v", s.Quality)
	}
}

func TestQualityClamped(t *testing.T) {
	tr := NewTracker()

	tr.SetLink(0, 150)
	if s := tr.Snapshot(); s.Quality != 100 {
		t.Fatalf("expected quality clamped to 100, got %v", s.Quality)
	}
	tr.SetLink(0, -3)
	if s := tr.Snapshot(); s.Quality != 0 {
		t.Fatalf("expected quality clamped to 0, got %v", s.Quality)
	}
}

func TestUptime(t *testing.T) {
	tr := NewTracker()

	if s := tr.Snapshot(); s.Uptime != 0 {
		t.Fatalf("expected zero uptime before connect, got %v", s.Uptime)
	}

	tr.MarkConnected(time.Now().Add(-time.Second))
	if s := tr.Snapshot(); s.Uptime < time.Second {
		t.Fatalf("expected at least 1s uptime, got %v", s.Uptime)
	}

	// A second mark must not reset the connected period.
	first := tr.Snapshot().Uptime
	tr.MarkConnected(time.Now())
	if s := tr.Snapshot(); s.Uptime < first {
		t.Fatalf("expected uptime to keep growing, got %v after %v", s.Uptime, first)
	}
}
