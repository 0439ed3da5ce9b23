// Package diagnostic interprets raw connection metrics into
// human/agent-readable grades and ratings.
package diagnostic

import (
	"fmt"

	"github.com/meshforge/conduit/pkg/types"
)

// Interpretation holds the semantic interpretation of a connection's
// link health.
type Interpretation struct {
	Grade             string   `json:"grade"`
	Summary           string   `json:"summary"`
	LatencyRating     string   `json:"latency_rating"`
	QualityRating     string   `json:"quality_rating"`
	ReliabilityRating string   `json:"reliability_rating"`
	SuitableFor       []string `json:"suitable_for"`
	Concerns          []string `json:"concerns"`
}

// Params are the raw metrics to interpret.
type Params struct {
	RTTMs    float64
	Quality  float64 // 0-100, link-level delivery quality
	DropRate float64 // 0-100, share of sends dropped at the queue layer
}

// FromStats derives interpretation parameters from a stats snapshot.
func FromStats(s types.ConnectionStats) Params {
	total := s.ReliableSent + s.UnreliableSent + s.Dropped
	dropRate := 0.0
	if total > 0 {
		dropRate = float64(s.Dropped) / float64(total) * 100
	}
	return Params{
		RTTMs:    float64(s.RTT.Microseconds()) / 1000,
		Quality:  s.Quality,
		DropRate: dropRate,
	}
}

// Interpret produces a diagnostic Interpretation from raw metrics.
func Interpret(p Params) *Interpretation {
	interp := &Interpretation{
		SuitableFor: []string{},
		Concerns:    []string{},
	}

	interp.LatencyRating = rateLatency(p.RTTMs)
	interp.QualityRating = rateQuality(p.Quality)
	interp.ReliabilityRating = rateReliability(p.DropRate)

	interp.SuitableFor = suitability(p)
	interp.Concerns = concerns(p)

	interp.Grade = computeGrade(interp.LatencyRating, interp.QualityRating, interp.ReliabilityRating)
	interp.Summary = buildSummary(interp.Grade, p)

	return interp
}

func rateLatency(ms float64) string {
	switch {
	case ms <= 0:
		return "unknown"
	case ms <= 20:
		return "excellent"
	case ms <= 50:
		return "good"
	case ms <= 100:
		return "fair"
	default:
		return "poor"
	}
}

func rateQuality(quality float64) string {
	switch {
	case quality <= 0:
		return "unknown"
	case quality >= 99:
		return "excellent"
	case quality >= 95:
		return "good"
	case quality >= 85:
		return "fair"
	default:
		return "poor"
	}
}

func rateReliability(dropRate float64) string {
	switch {
	case dropRate < 0:
		return "unknown"
	case dropRate > 5:
		return "unstable"
	case dropRate > 1:
		return "degraded"
	case dropRate > 0.1:
		return "fair"
	default:
		return "stable"
	}
}

func suitability(p Params) []string {
	s := []string{}

	// Turn-based state sync tolerates almost anything that stays up.
	if p.Quality > 0 && p.DropRate <= 5 {
		s = append(s, "state_sync")
	}

	// Real-time updates: quality 95+, drop rate under 1%.
	if p.Quality >= 95 && p.DropRate < 1 {
		s = append(s, "realtime_updates")
	}

	// Fast-paced interaction: tight RTT on top of a clean link.
	if p.RTTMs > 0 && p.RTTMs < 50 && p.Quality >= 95 && p.DropRate < 1 {
		s = append(s, "fast_paced_interaction")
	}

	return s
}

func concerns(p Params) []string {
	c := []string{}

	if p.RTTMs > 100 {
		c = append(c, "high_latency")
	}
	if p.Quality > 0 && p.Quality < 95 {
		c = append(c, "lossy_link")
	}
	if p.DropRate > 1 {
		c = append(c, "send_drops")
	}

	return c
}

var ratingScore = map[string]int{
	"excellent": 4,
	"stable":    4,
	"good":      3,
	"fair":      2,
	"degraded":  1,
	"poor":      0,
	"unstable":  0,
	"unknown":   2, // neutral default
}

func computeGrade(latency, quality, reliability string) string {
	score := ratingScore[latency] + ratingScore[quality] + ratingScore[reliability]
	// Max score = 12 (4+4+4)
	switch {
	case score >= 11:
		return "A"
	case score >= 9:
		return "B"
	case score >= 6:
		return "C"
	case score >= 3:
		return "D"
	default:
		return "F"
	}
}

func buildSummary(grade string, p Params) string {
	gradeDesc := map[string]string{
		"A": "Excellent",
		"B": "Good",
		"C": "Fair",
		"D": "Poor",
		"F": "Very poor",
	}

	desc := gradeDesc[grade]

	parts := []string{}
	if p.RTTMs > 0 {
		parts = append(parts, fmt.Sprintf("%.0fms rtt", p.RTTMs))
	}
	if p.Quality > 0 {
		parts = append(parts, fmt.Sprintf("%.0f%% quality", p.Quality))
	}
	if p.DropRate > 0 {
		parts = append(parts, fmt.Sprintf("%.1f%% drops", p.DropRate))
	}

	summary := desc + " connection"
	if len(parts) > 0 {
		summary += ": "
		for i, part := range parts {
			if i > 0 {
				summary += ", "
			}
			summary += part
		}
	}

	return summary
}
