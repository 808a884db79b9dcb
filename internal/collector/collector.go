// Package collector provides the data sources the sampler reads from:
// cumulative interface counters and listening-socket listings.
package collector

import (
	"context"
	"errors"

	"github.com/Guliveer/rocemon/internal/models"
)

// ErrUnsupported is returned by a source that cannot run on this platform.
var ErrUnsupported = errors.New("collector: not supported on this platform")

// CounterSource returns cumulative counters for every interface it knows about.
type CounterSource interface {
	// Name returns the unique identifier for this source.
	Name() string

	// Counters returns a snapshot per interface name.
	// The context allows for cancellation and timeout control.
	Counters(ctx context.Context) (map[string]models.CounterSnapshot, error)
}

// SocketLister returns listening sockets as raw text lines.
type SocketLister interface {
	// Name returns the unique identifier for this lister.
	Name() string

	// ListSockets returns one line per socket. Unavailability of the
	// underlying tool is reported as ErrToolNotFound.
	ListSockets(ctx context.Context) ([]string, error)
}
