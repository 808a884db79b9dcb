// Package sampler implements the fixed-cadence measurement loop. Each tick it
// reads interface counters, derives send/receive rates against the previous
// reading, attaches matching socket-listing lines and appends a Sample.
package sampler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/Guliveer/rocemon/internal/collector"
	"github.com/Guliveer/rocemon/internal/metrics"
	"github.com/Guliveer/rocemon/internal/models"
	"github.com/Guliveer/rocemon/internal/throughput"
)

// DefaultInterval gives roughly ten samples per second.
const DefaultInterval = 100 * time.Millisecond

// ErrAlreadyStarted is returned by Run on a sampler that has already run.
var ErrAlreadyStarted = errors.New("sampler: already started")

// State is the lifecycle state of a Sampler.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config holds the per-session sampling settings.
type Config struct {
	Interface        string
	Duration         time.Duration
	Interval         time.Duration
	CallTimeout      time.Duration // zero means no per-call timeout
	FallbackPrefixes []string
	Ports            []string
}

// Target names the interface being sampled. It is replaced, never modified,
// when the sampler falls back to another interface.
type Target struct {
	Requested string
	Interface string
}

// ResolveInterface looks up the snapshot for t.Interface. If that name is
// missing it adopts the first interface, in name order, that starts with one
// of prefixes and returns the new Target. ok is false when nothing matches.
func ResolveInterface(t Target, counters map[string]models.CounterSnapshot, prefixes []string) (Target, models.CounterSnapshot, bool) {
	if snap, found := counters[t.Interface]; found {
		return t, snap, true
	}
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, prefix := range prefixes {
			if prefix != "" && strings.HasPrefix(name, prefix) {
				return Target{Requested: t.Requested, Interface: name}, counters[name], true
			}
		}
	}
	return t, models.CounterSnapshot{}, false
}

// MatchPorts returns the trimmed lines that mention ":<port>" for any of ports.
// The result is never nil.
func MatchPorts(lines, ports []string) []string {
	matched := make([]string, 0)
	for _, line := range lines {
		for _, port := range ports {
			if port != "" && strings.Contains(line, ":"+port) {
				matched = append(matched, strings.TrimSpace(line))
				break
			}
		}
	}
	return matched
}

// Sampler drives one sampling session. It is single-use: Idle → Running → Stopped.
type Sampler struct {
	cfg    Config
	source collector.CounterSource
	lister collector.SocketLister
	clock  clock.Clock
	logger *zap.Logger

	onSample func(models.Sample)

	mu       sync.Mutex
	state    State
	target   Target
	start    time.Time
	prev     *models.CounterSnapshot
	prevTime time.Time
	samples  []models.Sample
}

// New creates a Sampler. The logger may be nil.
func New(cfg Config, source collector.CounterSource, lister collector.SocketLister, logger *zap.Logger) *Sampler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sampler{
		cfg:    cfg,
		source: source,
		lister: lister,
		clock:  clock.New(),
		logger: logger.Named("sampler"),
		target: Target{Requested: cfg.Interface, Interface: cfg.Interface},
	}
}

// OnSample sets a callback invoked with every sample as it is produced.
// It runs on the sampling goroutine.
func (s *Sampler) OnSample(fn func(models.Sample)) {
	s.onSample = fn
}

// Run samples until ctx is cancelled or the configured duration has elapsed.
// Cancellation is observed between ticks, so a tick in progress always
// finishes. Cancellation is a normal stop and is not reported as an error.
func (s *Sampler) Run(ctx context.Context) error {
	if !s.begin() {
		return ErrAlreadyStarted
	}
	defer s.setState(StateStopped)

	s.logger.Info("Sampling started",
		zap.String("interface", s.cfg.Interface),
		zap.Duration("duration", s.cfg.Duration),
		zap.Duration("interval", s.cfg.Interval))

	for {
		if ctx.Err() != nil {
			s.logger.Info("Sampling cancelled", zap.Int("samples", s.count()))
			return nil
		}
		if s.clock.Since(s.start) >= s.cfg.Duration {
			s.logger.Info("Sampling duration reached", zap.Int("samples", s.count()))
			return nil
		}

		s.tick(ctx)

		select {
		case <-ctx.Done():
		case <-s.clock.After(s.cfg.Interval):
		}
	}
}

// begin moves Idle → Running and records the start time.
func (s *Sampler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	s.state = StateRunning
	s.start = s.clock.Now()
	s.prevTime = s.start
	return true
}

// tick performs one iteration and reports whether it produced a sample.
// Collaborator calls are detached from ctx cancellation so that a stop
// request never leaves a half-built sample.
func (s *Sampler) tick(ctx context.Context) (models.Sample, bool) {
	t := s.clock.Now()
	callCtx := context.WithoutCancel(ctx)

	curr, ok := s.snapshot(callCtx)
	if !ok {
		return models.Sample{}, false
	}

	s.mu.Lock()
	prev, prevTime := s.prev, s.prevTime
	s.prev, s.prevTime = &curr, t
	s.mu.Unlock()

	if prev == nil {
		return models.Sample{}, false
	}

	send, recv := throughput.Rate(*prev, curr, t.Sub(prevTime).Seconds())
	sample := models.Sample{
		Timestamp:     t,
		Elapsed:       t.Sub(s.start).Seconds(),
		BytesSent:     curr.BytesSent,
		BytesRecv:     curr.BytesRecv,
		PacketsSent:   curr.PacketsSent,
		PacketsRecv:   curr.PacketsRecv,
		SendRateMbps:  send,
		RecvRateMbps:  recv,
		TotalRateMbps: send + recv,
		PortStats:     s.portStats(callCtx),
	}

	s.mu.Lock()
	s.samples = append(s.samples, sample)
	iface := s.target.Interface
	s.mu.Unlock()

	s.record(iface, sample)
	if s.onSample != nil {
		s.onSample(sample)
	}
	return sample, true
}

// snapshot reads counters and resolves the effective interface.
func (s *Sampler) snapshot(ctx context.Context) (models.CounterSnapshot, bool) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	counters, err := s.source.Counters(callCtx)
	if err != nil {
		s.logger.Warn("Failed to read interface counters",
			zap.String("source", s.source.Name()),
			zap.Error(err))
		metrics.TickErrorCount.WithLabelValues("counters").Inc()
		return models.CounterSnapshot{}, false
	}

	s.mu.Lock()
	current := s.target
	s.mu.Unlock()

	target, snap, ok := ResolveInterface(current, counters, s.cfg.FallbackPrefixes)
	if !ok {
		s.logger.Debug("Interface not found", zap.String("interface", current.Interface))
		metrics.TickErrorCount.WithLabelValues("interface").Inc()
		return models.CounterSnapshot{}, false
	}
	if target != current {
		s.logger.Info("Interface not found, using fallback",
			zap.String("requested", current.Interface),
			zap.String("interface", target.Interface))
		s.mu.Lock()
		s.target = target
		s.mu.Unlock()
	}
	return snap, true
}

// portStats returns the socket-listing lines that mention a tracked port.
func (s *Sampler) portStats(ctx context.Context) []string {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	lines, err := s.lister.ListSockets(callCtx)
	if err != nil {
		s.logger.Debug("Failed to list sockets",
			zap.String("lister", s.lister.Name()),
			zap.Error(err))
		metrics.TickErrorCount.WithLabelValues("sockets").Inc()
	}
	return MatchPorts(lines, s.cfg.Ports)
}

func (s *Sampler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Sampler) record(iface string, sample models.Sample) {
	metrics.SampleCount.Inc()
	metrics.CurrentRate.WithLabelValues(iface, "send").Set(sample.SendRateMbps)
	metrics.CurrentRate.WithLabelValues(iface, "recv").Set(sample.RecvRateMbps)
	metrics.CurrentRate.WithLabelValues(iface, "total").Set(sample.TotalRateMbps)
	metrics.RateHistogram.WithLabelValues("send").Observe(sample.SendRateMbps)
	metrics.RateHistogram.WithLabelValues("recv").Observe(sample.RecvRateMbps)
	metrics.RDMAPortLines.Set(float64(len(sample.PortStats)))
}

func (s *Sampler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Sampler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// State returns the current lifecycle state.
func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interface returns the effective interface name, which differs from the
// requested one after a fallback.
func (s *Sampler) Interface() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target.Interface
}

// StartedAt returns the wall-clock start time, zero before Run.
func (s *Sampler) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// Samples returns a copy of the samples produced so far.
func (s *Sampler) Samples() []models.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}
