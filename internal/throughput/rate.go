// Package throughput converts cumulative interface counters into rates and
// aggregates a session's samples into summary statistics.
package throughput

import "github.com/Guliveer/rocemon/internal/models"

// bitsPerMegabit converts a bytes-per-second figure (times 8) into Mbps.
const bitsPerMegabit = 1_000_000

// Rate returns the send and receive rates in Mbps between two snapshots taken
// elapsed seconds apart. A non-positive elapsed yields (0, 0).
//
// Counter deltas are signed. A counter that went backwards (interface
// re-attach, 32-bit rollover) produces a negative rate; it is kept as-is in
// the sample and left for the aggregation filter to deal with.
func Rate(prev, curr models.CounterSnapshot, elapsed float64) (send, recv float64) {
	if elapsed <= 0 {
		return 0, 0
	}
	sent := counterDelta(prev.BytesSent, curr.BytesSent)
	got := counterDelta(prev.BytesRecv, curr.BytesRecv)
	send = float64(sent) * 8 / (elapsed * bitsPerMegabit)
	recv = float64(got) * 8 / (elapsed * bitsPerMegabit)
	return send, recv
}

// counterDelta returns curr-prev without unsigned wraparound.
func counterDelta(prev, curr uint64) int64 {
	return int64(curr) - int64(prev)
}
