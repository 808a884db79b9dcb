//go:build linux

package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/procfs"

	"github.com/Guliveer/rocemon/internal/models"
)

// ProcfsSource reads counters straight from /proc/net/dev.
type ProcfsSource struct {
	fs procfs.FS
}

// NewProcfsSource creates a counter source rooted at mountPoint
// (procfs.DefaultMountPoint when empty).
func NewProcfsSource(mountPoint string) (*ProcfsSource, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs %s: %w", mountPoint, err)
	}
	return &ProcfsSource{fs: fs}, nil
}

// Name returns the source identifier.
func (s *ProcfsSource) Name() string { return "procfs" }

// Counters parses /proc/net/dev. The read is not interruptible, so ctx is
// only checked before starting.
func (s *ProcfsSource) Counters(ctx context.Context) (map[string]models.CounterSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nd, err := s.fs.NetDev()
	if err != nil {
		return nil, err
	}
	at := time.Now()
	result := make(map[string]models.CounterSnapshot, len(nd))
	for name, line := range nd {
		result[name] = models.CounterSnapshot{
			BytesSent:   line.TxBytes,
			BytesRecv:   line.RxBytes,
			PacketsSent: line.TxPackets,
			PacketsRecv: line.RxPackets,
			CapturedAt:  at,
		}
	}
	return result, nil
}
