// Package models defines the measurement data structures used throughout the monitor.
// These structures are serialized to JSON when a session record is persisted.
package models

import "time"

// CounterSnapshot is a point-in-time reading of an interface's cumulative counters.
type CounterSnapshot struct {
	BytesSent   uint64
	BytesRecv   uint64
	PacketsSent uint64
	PacketsRecv uint64
	CapturedAt  time.Time
}

// Sample is one derived measurement between two consecutive snapshots.
type Sample struct {
	Timestamp     time.Time `json:"timestamp"`
	Elapsed       float64   `json:"elapsed_time"`
	BytesSent     uint64    `json:"bytes_sent"`
	BytesRecv     uint64    `json:"bytes_recv"`
	PacketsSent   uint64    `json:"packets_sent"`
	PacketsRecv   uint64    `json:"packets_recv"`
	SendRateMbps  float64   `json:"send_rate_mbps"`
	RecvRateMbps  float64   `json:"recv_rate_mbps"`
	TotalRateMbps float64   `json:"total_rate_mbps"`
	PortStats     []string  `json:"port_stats"`
}

// Session is a single monitoring run. Samples are only ever appended.
type Session struct {
	ID                 string
	Interface          string
	RequestedInterface string
	RequestedDuration  time.Duration
	StartedAt          time.Time
	EndedAt            *time.Time
	Samples            []Sample
}

// RateStats holds the aggregate of one rate series, in Mbps.
type RateStats struct {
	Avg  float64 `json:"avg"`
	Peak float64 `json:"peak"`
	Min  float64 `json:"min"`
}

// Transfer is the cumulative traffic between the first and last sample.
// Byte deltas are signed: a counter reset mid-session shows up as a negative value.
type Transfer struct {
	BytesSent         int64    `json:"bytes_sent"`
	BytesRecv         int64    `json:"bytes_recv"`
	TotalBytes        int64    `json:"total_bytes"`
	Seconds           float64  `json:"seconds"`
	AvgThroughputMbps *float64 `json:"avg_throughput_mbps,omitempty"`
}

// RDMAActivity holds the port-presence heuristics. Neither flag is protocol-verified.
type RDMAActivity struct {
	CMActivity     bool `json:"cm_activity"`
	RoCEv2Activity bool `json:"rocev2_activity"`
}

// Summary is derived from a session's samples. Absent blocks are nil, never zero-filled.
type Summary struct {
	SendRate  *RateStats    `json:"send_rate,omitempty"`
	RecvRate  *RateStats    `json:"recv_rate,omitempty"`
	TotalRate *RateStats    `json:"total_rate,omitempty"`
	Transfer  *Transfer     `json:"transfer,omitempty"`
	RDMA      *RDMAActivity `json:"rdma,omitempty"`
}

// IsEmpty reports whether no block is present.
func (s Summary) IsEmpty() bool {
	return s.SendRate == nil && s.RecvRate == nil && s.TotalRate == nil &&
		s.Transfer == nil && s.RDMA == nil
}

// Record is the persisted form of a finished session.
type Record struct {
	SessionID          string     `json:"session_id"`
	Interface          string     `json:"interface"`
	RequestedInterface string     `json:"requested_interface,omitempty"`
	Duration           uint32     `json:"duration"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            *time.Time `json:"end_time"`
	DataPoints         []Sample   `json:"data_points"`
	Summary            *Summary   `json:"summary"`
}

// NewRecord builds the persisted form of a session and its summary.
// DataPoints is never nil so an empty session still serializes as [].
func NewRecord(s *Session, summary Summary) *Record {
	points := s.Samples
	if points == nil {
		points = []Sample{}
	}
	return &Record{
		SessionID:          s.ID,
		Interface:          s.Interface,
		RequestedInterface: s.RequestedInterface,
		Duration:           uint32(s.RequestedDuration / time.Second),
		StartTime:          s.StartedAt,
		EndTime:            s.EndedAt,
		DataPoints:         points,
		Summary:            &summary,
	}
}
