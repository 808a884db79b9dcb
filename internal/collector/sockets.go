// Listening-socket listers. The primary strategies shell out to ss or netstat,
// mirroring what an operator would run by hand; the native strategy asks
// gopsutil for the same table without an external binary.
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
)

// ErrToolNotFound is returned when a lister's external binary is not installed.
var ErrToolNotFound = errors.New("collector: socket listing tool not found")

// CommandLister runs an external tool and returns its stdout split into lines.
type CommandLister struct {
	name string
	args []string

	// lookPath and output are swapped out in tests.
	lookPath func(file string) (string, error)
	output   func(ctx context.Context, path string, args ...string) ([]byte, error)
}

// NewSSLister lists UDP listeners with iproute2's ss.
func NewSSLister() *CommandLister {
	return newCommandLister("ss", "-ulnp")
}

// NewNetstatLister lists UDP listeners with net-tools' netstat.
func NewNetstatLister() *CommandLister {
	return newCommandLister("netstat", "-ulnp")
}

func newCommandLister(name string, args ...string) *CommandLister {
	return &CommandLister{
		name:     name,
		args:     args,
		lookPath: exec.LookPath,
		output: func(ctx context.Context, path string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, path, args...).Output()
		},
	}
}

// Name returns the lister identifier.
func (l *CommandLister) Name() string { return l.name }

// ListSockets runs the tool. A missing binary yields ErrToolNotFound; a
// non-zero exit is reported as a plain error.
func (l *CommandLister) ListSockets(ctx context.Context) ([]string, error) {
	path, err := l.lookPath(l.name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.name, ErrToolNotFound)
	}
	out, err := l.output(ctx, path, l.args...)
	if err != nil {
		return nil, fmt.Errorf("running %s %s: %w", l.name, strings.Join(l.args, " "), err)
	}
	return splitLines(string(out)), nil
}

// ConnectionLister reads the UDP socket table through gopsutil.
type ConnectionLister struct {
	connections func(ctx context.Context, kind string) ([]psnet.ConnectionStat, error)
}

// NewConnectionLister creates a lister that needs no external binary.
func NewConnectionLister() *ConnectionLister {
	return &ConnectionLister{connections: psnet.ConnectionsWithContext}
}

// Name returns the lister identifier.
func (l *ConnectionLister) Name() string { return "native" }

// ListSockets renders each unconnected UDP socket as "udp <local> <remote> pid=<pid>".
func (l *ConnectionLister) ListSockets(ctx context.Context) ([]string, error) {
	conns, err := l.connections(ctx, "udp")
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(conns))
	for _, c := range conns {
		if c.Raddr.Port != 0 {
			continue
		}
		kind := "udp"
		if strings.Contains(c.Laddr.IP, ":") {
			kind = "udp6"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s pid=%d",
			kind, formatAddr(c.Laddr), formatAddr(c.Raddr), c.Pid))
	}
	return lines, nil
}

func formatAddr(a psnet.Addr) string {
	host := a.IP
	if host == "" {
		host = "*"
	}
	port := "*"
	if a.Port != 0 {
		port = strconv.FormatUint(uint64(a.Port), 10)
	}
	return net.JoinHostPort(host, port)
}

// FallbackLister tries each lister in order, skipping ones whose tool is
// missing. When none is available it returns no lines and no error.
type FallbackLister struct {
	listers []SocketLister
	logger  *zap.Logger
}

// NewFallbackLister creates a lister chain. The logger may be nil.
func NewFallbackLister(logger *zap.Logger, listers ...SocketLister) *FallbackLister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackLister{listers: listers, logger: logger}
}

// Name returns the names of the chained listers.
func (f *FallbackLister) Name() string {
	names := make([]string, 0, len(f.listers))
	for _, l := range f.listers {
		names = append(names, l.Name())
	}
	return strings.Join(names, ",")
}

// ListSockets returns the output of the first available lister.
func (f *FallbackLister) ListSockets(ctx context.Context) ([]string, error) {
	for _, l := range f.listers {
		lines, err := l.ListSockets(ctx)
		if errors.Is(err, ErrToolNotFound) {
			f.logger.Debug("Socket lister unavailable, trying next", zap.String("lister", l.Name()))
			continue
		}
		return lines, err
	}
	return nil, nil
}

func splitLines(out string) []string {
	raw := strings.Split(out, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
