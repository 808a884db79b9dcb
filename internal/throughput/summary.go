package throughput

import (
	"strings"

	"github.com/Guliveer/rocemon/internal/models"
)

// DefaultRoCEv2Port is the IANA-assigned RoCEv2 UDP port.
const DefaultRoCEv2Port = "4791"

// Summarize aggregates samples using the default filter and RoCEv2 port.
func Summarize(samples []models.Sample) models.Summary {
	return DefaultFilter().Summarize(samples, DefaultRoCEv2Port)
}

// Summarize aggregates samples into a Summary. It does not modify samples and
// returns identical results for identical input.
//
// Each rate series is filtered independently; a series with no retained
// values has no block. Transfer needs at least two samples. With no samples
// the summary is empty.
func (f Filter) Summarize(samples []models.Sample, rocePort string) models.Summary {
	var summary models.Summary
	if len(samples) == 0 {
		return summary
	}

	send := make([]float64, 0, len(samples))
	recv := make([]float64, 0, len(samples))
	total := make([]float64, 0, len(samples))
	for _, s := range samples {
		send = append(send, s.SendRateMbps)
		recv = append(recv, s.RecvRateMbps)
		total = append(total, s.TotalRateMbps)
	}
	summary.SendRate = f.stats(send)
	summary.RecvRate = f.stats(recv)
	summary.TotalRate = f.stats(total)
	summary.Transfer = transfer(samples)
	summary.RDMA = rdmaActivity(samples, rocePort)
	return summary
}

// stats computes avg/peak/min over the retained values, or nil if none remain.
func (f Filter) stats(values []float64) *models.RateStats {
	var (
		sum      float64
		peak, lo float64
		n        int
	)
	for _, v := range values {
		if !f.Keep(v) {
			continue
		}
		if n == 0 || v > peak {
			peak = v
		}
		if n == 0 || v < lo {
			lo = v
		}
		sum += v
		n++
	}
	if n == 0 {
		return nil
	}
	return &models.RateStats{Avg: sum / float64(n), Peak: peak, Min: lo}
}

func transfer(samples []models.Sample) *models.Transfer {
	if len(samples) < 2 {
		return nil
	}
	first, last := samples[0], samples[len(samples)-1]
	t := &models.Transfer{
		BytesSent: counterDelta(first.BytesSent, last.BytesSent),
		BytesRecv: counterDelta(first.BytesRecv, last.BytesRecv),
		Seconds:   last.Elapsed - first.Elapsed,
	}
	t.TotalBytes = t.BytesSent + t.BytesRecv
	if t.Seconds > 0 {
		avg := float64(t.TotalBytes) * 8 / t.Seconds / bitsPerMegabit
		t.AvgThroughputMbps = &avg
	}
	return t
}

func rdmaActivity(samples []models.Sample, rocePort string) *models.RDMAActivity {
	var lines int
	roce := false
	for _, s := range samples {
		lines += len(s.PortStats)
		if roce || rocePort == "" {
			continue
		}
		for _, line := range s.PortStats {
			if strings.Contains(line, rocePort) {
				roce = true
				break
			}
		}
	}
	return &models.RDMAActivity{CMActivity: lines > 0, RoCEv2Activity: roce}
}
