package stats

import (
	"testing"
	"time"
)

func TestHistogramPercentiles(t *testing.T) {
	h := NewRTTHistogram(time.Millisecond, 100)

	// 90 fast samples, 10 slow ones.
	for i := 0; i < 90; i++ {
		h.Record(3 * time.Millisecond)
	}
	for i := 0; i < 10; i++ {
		h.Record(50 * time.Millisecond)
	}

	if got := h.Percentile(50); got != 4*time.Millisecond {
		t.Fatalf("expected p50 in the 3ms bucket, got %v", got)
	}
	if got := h.Percentile(99); got != 51*time.Millisecond {
		t.Fatalf("expected p99 in the 50ms bucket, got %v", got)
	}
}

func TestHistogramEmptyAndReset(t *testing.T) {
	h := NewRTTHistogram(time.Millisecond, 10)
	if got := h.Percentile(50); got != 0 {
		t.Fatalf("expected zero percentile with no samples, got %v", got)
	}

	h.Record(2 * time.Millisecond)
	if h.Count() != 1 {
		t.Fatalf("expected 1 sample, got %d", h.Count())
	}

	h.Reset()
	if h.Count() != 0 || h.Percentile(50) != 0 {
		t.Fatalf("expected reset to clear samples")
	}
}

func TestHistogramOverflowClampsToMax(t *testing.T) {
	h := NewRTTHistogram(time.Millisecond, 10)
	h.Record(5 * time.Second)

	if got := h.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("expected overflow sample to clamp to max bucket, got %v", got)
	}
}

func TestTrackerRTTPercentile(t *testing.T) {
	tr := NewTracker()
	if got := tr.RTTPercentile(50); got != 0 {
		t.Fatalf("expected zero before any link update, got %v", got)
	}

	for i := 0; i < 10; i++ {
		tr.SetLink(8*time.Millisecond, 100)
	}
	got := tr.RTTPercentile(50)
	if got < 8*time.Millisecond || got > 9*time.Millisecond {
		t.Fatalf("expected p50 near 8ms, got %v", got)
	}
}
