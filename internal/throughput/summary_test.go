package throughput

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/rocemon/internal/models"
)

func samplesWithSendRates(rates ...float64) []models.Sample {
	samples := make([]models.Sample, 0, len(rates))
	for i, r := range rates {
		samples = append(samples, models.Sample{
			Elapsed:       float64(i),
			SendRateMbps:  r,
			TotalRateMbps: r,
		})
	}
	return samples
}

func TestSummarize_ExcludesOutliers(t *testing.T) {
	summary := Summarize(samplesWithSendRates(10, 20, 1500, 30))

	require.NotNil(t, summary.SendRate)
	assert.InDelta(t, 20.0, summary.SendRate.Avg, 1e-9)
	assert.Equal(t, 30.0, summary.SendRate.Peak)
	assert.Equal(t, 10.0, summary.SendRate.Min)
}

func TestSummarize_NoSamples(t *testing.T) {
	summary := Summarize(nil)

	assert.True(t, summary.IsEmpty())
	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestSummarize_AllOutliersOmitsBlock(t *testing.T) {
	summary := Summarize(samplesWithSendRates(1000, 2000))

	assert.Nil(t, summary.SendRate)
	assert.Nil(t, summary.TotalRate)
	require.NotNil(t, summary.RecvRate)
	assert.Equal(t, 0.0, summary.RecvRate.Peak)
}

func TestSummarize_NegativeRatesIncludedByDefault(t *testing.T) {
	samples := samplesWithSendRates(10, -50, 30)

	lenient := Summarize(samples)
	require.NotNil(t, lenient.SendRate)
	assert.InDelta(t, -10.0/3, lenient.SendRate.Avg, 1e-9)
	assert.Equal(t, -50.0, lenient.SendRate.Min)

	strict := Filter{Ceiling: DefaultCeilingMbps, ExcludeNegative: true}.Summarize(samples, DefaultRoCEv2Port)
	require.NotNil(t, strict.SendRate)
	assert.InDelta(t, 20.0, strict.SendRate.Avg, 1e-9)
	assert.Equal(t, 10.0, strict.SendRate.Min)
}

func TestSummarize_Transfer(t *testing.T) {
	samples := []models.Sample{
		{Elapsed: 1, BytesSent: 125000, BytesRecv: 1000},
		{Elapsed: 2, BytesSent: 250000, BytesRecv: 1000},
		{Elapsed: 3, BytesSent: 375000, BytesRecv: 126000},
	}

	summary := Summarize(samples)

	require.NotNil(t, summary.Transfer)
	assert.Equal(t, int64(250000), summary.Transfer.BytesSent)
	assert.Equal(t, int64(125000), summary.Transfer.BytesRecv)
	assert.Equal(t, int64(375000), summary.Transfer.TotalBytes)
	assert.Equal(t, 2.0, summary.Transfer.Seconds)
	require.NotNil(t, summary.Transfer.AvgThroughputMbps)
	assert.InDelta(t, 1.5, *summary.Transfer.AvgThroughputMbps, 1e-9)
}

func TestSummarize_TransferNeedsTwoSamples(t *testing.T) {
	summary := Summarize(samplesWithSendRates(5))

	assert.Nil(t, summary.Transfer)
	require.NotNil(t, summary.SendRate)
}

func TestSummarize_TransferZeroSpan(t *testing.T) {
	samples := []models.Sample{
		{Elapsed: 1, BytesSent: 100},
		{Elapsed: 1, BytesSent: 200},
	}

	summary := Summarize(samples)

	require.NotNil(t, summary.Transfer)
	assert.Nil(t, summary.Transfer.AvgThroughputMbps)
}

func TestSummarize_RDMAActivity(t *testing.T) {
	tests := []struct {
		name      string
		portStats [][]string
		wantCM    bool
		wantRoCE  bool
	}{
		{
			name:      "no socket lines",
			portStats: [][]string{nil, {}},
		},
		{
			name:      "rocev2 port",
			portStats: [][]string{nil, {"UNCONN 0 0 0.0.0.0:4791 0.0.0.0:*"}},
			wantCM:    true,
			wantRoCE:  true,
		},
		{
			name:      "cm port only",
			portStats: [][]string{{"UNCONN 0 0 0.0.0.0:18515 0.0.0.0:*"}},
			wantCM:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]models.Sample, 0, len(tt.portStats))
			for _, lines := range tt.portStats {
				samples = append(samples, models.Sample{PortStats: lines})
			}

			summary := Summarize(samples)

			require.NotNil(t, summary.RDMA)
			assert.Equal(t, tt.wantCM, summary.RDMA.CMActivity)
			assert.Equal(t, tt.wantRoCE, summary.RDMA.RoCEv2Activity)
		})
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	samples := samplesWithSendRates(10, 20, 1500, 30, -5)
	samples[2].PortStats = []string{"udp 0.0.0.0:4791"}

	first, err := json.Marshal(Summarize(samples))
	require.NoError(t, err)
	second, err := json.Marshal(Summarize(samples))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1500.0, samples[2].SendRateMbps, "input must not be modified")
}
