package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/meshforge/conduit/pkg/types"
)

// Tracker accumulates per-connection counters and link gauges. Counters
// are atomics and only ever increase; gauges are refreshed from the
// transport binding's raw metrics under a lock so snapshots are never
// torn. Each connection owns exactly one Tracker and is the only writer
// of its counters.
type Tracker struct {
	reliableSent   atomic.Uint64
	unreliableSent atomic.Uint64
	received       atomic.Uint64
	dropped        atomic.Uint64

	mu          sync.RWMutex
	rtt         time.Duration
	quality     float64
	connectedAt time.Time
	rttHist     *RTTHistogram
}

func NewTracker() *Tracker {
	return &Tracker{
		quality: 100,
		// 1ms buckets up to 1s cover any link worth keeping open.
		rttHist: NewRTTHistogram(time.Millisecond, 1000),
	}
}

func (t *Tracker) AddReliableSent()   { t.reliableSent.Add(1) }
func (t *Tracker) AddUnreliableSent() { t.unreliableSent.Add(1) }
func (t *Tracker) AddReceived()       { t.received.Add(1) }
func (t *Tracker) AddDropped()        { t.dropped.Add(1) }

// MarkConnected records the start of the connected period. Subsequent
// calls are no-ops; a connection never reconnects under the same ID.
func (t *Tracker) MarkConnected(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectedAt.IsZero() {
		t.connectedAt = now
	}
}

// SetLink folds the binding's raw link metrics into the gauges. Quality
// is clamped to 0-100.
func (t *Tracker) SetLink(rtt time.Duration, quality float64) {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rtt = rtt
	t.quality = quality
	if rtt > 0 {
		t.rttHist.Record(rtt)
	}
}

// RTTPercentile reports the p-th percentile of observed round-trip
// samples. Zero before any sample has been recorded.
func (t *Tracker) RTTPercentile(p float64) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rttHist.Percentile(p)
}

// Snapshot returns a consistent copy of the current stats.
func (t *Tracker) Snapshot() types.ConnectionStats {
	s := types.ConnectionStats{
		ReliableSent:   t.reliableSent.Load(),
		UnreliableSent: t.unreliableSent.Load(),
		Received:       t.received.Load(),
		Dropped:        t.dropped.Load(),
	}

	t.mu.RLock()
	s.RTT = t.rtt
	s.Quality = t.quality
	if !t.connectedAt.IsZero() {
		s.Uptime = time.Since(t.connectedAt)
	}
	t.mu.RUnlock()

	return s
}
