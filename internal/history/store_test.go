package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/meshforge/conduit/pkg/types"
)

func newTestStore(t *testing.T, maxRows int) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "connlog.db"), maxRows)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t, 100)

	for i := uint64(1); i <= 3; i++ {
		err := s.Record(Entry{
			ConnectionID: i,
			RemoteAddr:   "10.0.0.1:1234",
			ReliableSent: i * 10,
			ClosedAt:     time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("record entry %d: %v", i, err)
		}
	}

	entries, err := s.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ConnectionID != 3 {
		t.Fatalf("expected newest first, got connection %d", entries[0].ConnectionID)
	}
	if entries[0].ReliableSent != 30 {
		t.Fatalf("expected reliable_sent 30, got %d", entries[0].ReliableSent)
	}
}

func TestPruneCapsRows(t *testing.T) {
	s := newTestStore(t, 2)

	for i := uint64(1); i <= 5; i++ {
		if err := s.Record(Entry{ConnectionID: i, ClosedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	s.prune()

	n, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows after prune, got %d", n)
	}

	entries, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if entries[0].ConnectionID != 5 || entries[1].ConnectionID != 4 {
		t.Fatalf("expected newest rows to survive prune, got %+v", entries)
	}
}

func TestFromStats(t *testing.T) {
	e := FromStats(types.ConnectionID(7), "10.0.0.2:9", types.ConnectionStats{
		ReliableSent: 3,
		RTT:          12 * time.Millisecond,
		Quality:      95,
		Uptime:       90 * time.Second,
	})

	if e.ConnectionID != 7 || e.ReliableSent != 3 {
		t.Fatalf("expected counters carried over, got %+v", e)
	}
	if e.RTTMs != 12 {
		t.Fatalf("expected rtt 12ms, got %v", e.RTTMs)
	}
	if e.UptimeSeconds != 90 {
		t.Fatalf("expected uptime 90s, got %v", e.UptimeSeconds)
	}
}
