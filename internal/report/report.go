// Package report renders sessions for the console: the live per-sample line,
// the report printed when monitoring finishes, and the re-analysis of a
// stored record.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Guliveer/rocemon/internal/models"
	"github.com/Guliveer/rocemon/internal/throughput"
)

const bytesPerMegabyte = 1e6

// Ports names the tracked RDMA ports in report output.
type Ports struct {
	CM     string
	RoCEv2 string
}

// DefaultPorts are the RDMA connection manager and IANA RoCEv2 ports.
var DefaultPorts = Ports{CM: "18515", RoCEv2: throughput.DefaultRoCEv2Port}

// printer remembers the first write error so callers can print freely.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// LiveLine overwrites the current console line with the sample's rates.
func LiveLine(w io.Writer, s models.Sample) error {
	_, err := fmt.Fprintf(w, "\r[%6.1fs] TX: %6.2f Mbps | RX: %6.2f Mbps | Total: %6.2f Mbps",
		s.Elapsed, s.SendRateMbps, s.RecvRateMbps, s.TotalRateMbps)
	return err
}

// Report prints the analysis of a finished session.
func Report(w io.Writer, r *models.Record, ports Ports) error {
	p := &printer{w: w}
	if len(r.DataPoints) == 0 {
		p.printf("No data points collected\n")
		return p.err
	}

	summary := models.Summary{}
	if r.Summary != nil {
		summary = *r.Summary
	}

	p.printf("\n%s\n", strings.Repeat("=", 60))
	p.printf("THROUGHPUT ANALYSIS RESULTS\n")
	p.printf("%s\n", strings.Repeat("=", 60))

	p.rateBlock("Send Rate Statistics:", summary.SendRate)
	p.rateBlock("Receive Rate Statistics:", summary.RecvRate)
	p.rateBlock("Total Rate Statistics:", summary.TotalRate)

	p.transferBlock(summary.Transfer)
	p.rdmaBlock(summary.RDMA, ports)
	return p.err
}

// Analyze prints the summary stored in a record. A record that carries
// samples but no summary is summarized again with f; collectors are never
// consulted.
func Analyze(w io.Writer, r *models.Record, f throughput.Filter, ports Ports) error {
	p := &printer{w: w}

	iface := r.Interface
	if iface == "" {
		iface = "unknown"
	}
	p.printf("Analyzing existing data...\n")
	p.printf("Interface: %s\n", iface)
	p.printf("Duration: %d seconds\n", r.Duration)

	summary := r.Summary
	if summary == nil && len(r.DataPoints) > 0 {
		s := f.Summarize(r.DataPoints, ports.RoCEv2)
		summary = &s
	}
	if summary == nil || summary.IsEmpty() {
		p.printf("\nNo summary available\n")
		return p.err
	}

	p.rateBlock("\nSEND Rate:", summary.SendRate)
	p.rateBlock("\nRECV Rate:", summary.RecvRate)
	p.rateBlock("\nTOTAL Rate:", summary.TotalRate)
	p.transferBlock(summary.Transfer)
	p.rdmaBlock(summary.RDMA, ports)
	return p.err
}

func (p *printer) rateBlock(title string, stats *models.RateStats) {
	if stats == nil {
		return
	}
	p.printf("%s\n", title)
	p.printf("  Average: %.2f Mbps\n", stats.Avg)
	p.printf("  Peak:    %.2f Mbps\n", stats.Peak)
	p.printf("  Min:     %.2f Mbps\n", stats.Min)
}

func (p *printer) transferBlock(t *models.Transfer) {
	if t == nil {
		return
	}
	p.printf("\nTotal Data Transferred:\n")
	p.printf("  Sent:    %.2f MB\n", float64(t.BytesSent)/bytesPerMegabyte)
	p.printf("  Received: %.2f MB\n", float64(t.BytesRecv)/bytesPerMegabyte)
	p.printf("  Total:   %.2f MB\n", float64(t.TotalBytes)/bytesPerMegabyte)
	if t.AvgThroughputMbps != nil {
		p.printf("  Average Throughput: %.2f Mbps\n", *t.AvgThroughputMbps)
	}
}

func (p *printer) rdmaBlock(rdma *models.RDMAActivity, ports Ports) {
	if rdma == nil {
		return
	}
	p.printf("\nRDMA Traffic:\n")
	p.printf("  Port %s (RDMA CM) activity detected: %t\n", ports.CM, rdma.CMActivity)
	p.printf("  Port %s (RoCEv2) activity detected: %t\n", ports.RoCEv2, rdma.RoCEv2Activity)
}
