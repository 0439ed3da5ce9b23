package types

import "time"

// ConnectionStats is an immutable snapshot of one connection's counters
// and link gauges. Counters are monotonically non-decreasing for the life
// of the connection; gauges move in either direction.
type ConnectionStats struct {
	ReliableSent   uint64        `json:"reliable_sent"`
	UnreliableSent uint64        `json:"unreliable_sent"`
	Received       uint64        `json:"received"`
	Dropped        uint64        `json:"dropped"`
	RTT            time.Duration `json:"rtt"`
	Quality        float64       `json:"quality_percent"`
	Uptime         time.Duration `json:"uptime"`
}

// LinkMetrics is the raw signal a transport binding exposes. The stats
// tracker folds it into ConnectionStats gauges each service tick.
type LinkMetrics struct {
	RTT           time.Duration
	Quality       float64
	BytesSent     int64
	BytesReceived int64
}
