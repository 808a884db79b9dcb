package collector

import (
	"fmt"

	"go.uber.org/zap"
)

// Counter source names accepted by NewCounterSource.
const (
	SourceGopsutil = "gopsutil"
	SourceProcfs   = "procfs"
)

// Socket lister names accepted by NewSocketLister.
const (
	ListerAuto    = "auto"
	ListerSS      = "ss"
	ListerNetstat = "netstat"
	ListerNative  = "native"
)

// NewCounterSource returns the counter source registered under name.
// An empty name selects gopsutil.
func NewCounterSource(name string, logger *zap.Logger) (CounterSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		src CounterSource
		err error
	)
	switch name {
	case "", SourceGopsutil:
		src = NewGopsutilSource()
	case SourceProcfs:
		src, err = NewProcfsSource("")
	default:
		return nil, fmt.Errorf("unknown counter source %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("counter source %s: %w", name, err)
	}
	logger.Info("Selected counter source", zap.String("name", src.Name()))
	return src, nil
}

// NewSocketLister returns the lister strategy registered under name.
// "auto" (or empty) chains ss, netstat, and the native lister in that order.
func NewSocketLister(name string, logger *zap.Logger) (SocketLister, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var l SocketLister
	switch name {
	case "", ListerAuto:
		l = NewFallbackLister(logger, NewSSLister(), NewNetstatLister(), NewConnectionLister())
	case ListerSS:
		l = NewFallbackLister(logger, NewSSLister())
	case ListerNetstat:
		l = NewFallbackLister(logger, NewNetstatLister())
	case ListerNative:
		l = NewConnectionLister()
	default:
		return nil, fmt.Errorf("unknown socket lister %q", name)
	}
	logger.Info("Selected socket lister", zap.String("name", l.Name()))
	return l, nil
}
