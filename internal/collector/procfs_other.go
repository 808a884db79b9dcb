//go:build !linux

package collector

import (
	"context"

	"github.com/Guliveer/rocemon/internal/models"
)

// ProcfsSource is unavailable outside Linux.
type ProcfsSource struct{}

// NewProcfsSource always fails on non-Linux platforms.
func NewProcfsSource(string) (*ProcfsSource, error) {
	return nil, ErrUnsupported
}

// Name returns the source identifier.
func (s *ProcfsSource) Name() string { return "procfs" }

// Counters always returns ErrUnsupported.
func (s *ProcfsSource) Counters(context.Context) (map[string]models.CounterSnapshot, error) {
	return nil, ErrUnsupported
}
