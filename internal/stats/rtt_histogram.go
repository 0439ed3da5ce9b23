package stats

import "time"

// RTTHistogram accumulates round-trip samples in fixed-width buckets.
// Samples past the last bucket land in an overflow counter; percentile
// queries treat those as the maximum tracked value. Not safe for
// concurrent use; the Tracker guards it with its gauge lock.
type RTTHistogram struct {
	bucketWidth time.Duration
	buckets     []uint32
	overflow    uint32
	total       uint64
}

func NewRTTHistogram(bucketWidth time.Duration, bucketCount int) *RTTHistogram {
	if bucketWidth <= 0 {
		bucketWidth = time.Millisecond
	}
	if bucketCount <= 0 {
		bucketCount = 1
	}
	return &RTTHistogram{
		bucketWidth: bucketWidth,
		buckets:     make([]uint32, bucketCount),
	}
}

func (h *RTTHistogram) Record(sample time.Duration) {
	if sample < 0 {
		sample = 0
	}
	h.total++
	index := int(sample / h.bucketWidth)
	if index >= len(h.buckets) {
		h.overflow++
		return
	}
	h.buckets[index]++
}

func (h *RTTHistogram) Count() uint64 { return h.total }

// Percentile returns the upper bound of the bucket containing the p-th
// percentile sample, for p in (0, 100]. Zero samples yield zero.
func (h *RTTHistogram) Percentile(p float64) time.Duration {
	if h.total == 0 || p <= 0 {
		return 0
	}
	if p > 100 {
		p = 100
	}

	rank := uint64(float64(h.total)*p/100 + 0.5)
	if rank == 0 {
		rank = 1
	}

	var seen uint64
	for i, n := range h.buckets {
		seen += uint64(n)
		if seen >= rank {
			return time.Duration(i+1) * h.bucketWidth
		}
	}
	return time.Duration(len(h.buckets)) * h.bucketWidth
}

func (h *RTTHistogram) Reset() {
	for i := range h.buckets {
		h.buckets[i] = 0
	}
	h.overflow = 0
	h.total = 0
}
