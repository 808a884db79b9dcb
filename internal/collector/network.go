// Network I/O counter source backed by gopsutil.
package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/net"

	"github.com/Guliveer/rocemon/internal/models"
)

// GopsutilSource reads per-interface counters through gopsutil.
type GopsutilSource struct {
	// ioCounters is swapped out in tests.
	ioCounters func(ctx context.Context, pernic bool) ([]net.IOCountersStat, error)
}

// NewGopsutilSource creates a new gopsutil-backed counter source.
func NewGopsutilSource() *GopsutilSource {
	return &GopsutilSource{ioCounters: net.IOCountersWithContext}
}

// Name returns the source identifier.
func (s *GopsutilSource) Name() string { return "gopsutil" }

// Counters gathers per-NIC byte and packet counters.
func (s *GopsutilSource) Counters(ctx context.Context) (map[string]models.CounterSnapshot, error) {
	stats, err := s.ioCounters(ctx, true)
	if err != nil {
		return nil, err
	}
	return snapshotsFromIOCounters(stats, time.Now()), nil
}

func snapshotsFromIOCounters(stats []net.IOCountersStat, at time.Time) map[string]models.CounterSnapshot {
	result := make(map[string]models.CounterSnapshot, len(stats))
	for _, st := range stats {
		result[st.Name] = models.CounterSnapshot{
			BytesSent:   st.BytesSent,
			BytesRecv:   st.BytesRecv,
			PacketsSent: st.PacketsSent,
			PacketsRecv: st.PacketsRecv,
			CapturedAt:  at,
		}
	}
	return result
}
