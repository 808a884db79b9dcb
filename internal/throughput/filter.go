package throughput

// DefaultCeilingMbps is the rate at or above which a sample is treated as a
// measurement error.
const DefaultCeilingMbps = 1000.0

// IsOutlier reports whether rate is at or above ceiling. Negative rates are not
// outliers.
func IsOutlier(rate, ceiling float64) bool {
	return rate >= ceiling
}

// Filter decides which rate values take part in summary statistics.
//
// With ExcludeNegative unset (the default) negative rates from counter
// rollbacks pass through and pull the averages down. Setting it drops them.
type Filter struct {
	Ceiling         float64
	ExcludeNegative bool
}

// DefaultFilter returns the filter used when no configuration is given.
func DefaultFilter() Filter {
	return Filter{Ceiling: DefaultCeilingMbps}
}

// Keep reports whether rate is retained for aggregation.
func (f Filter) Keep(rate float64) bool {
	if IsOutlier(rate, f.ceiling()) {
		return false
	}
	if f.ExcludeNegative && rate < 0 {
		return false
	}
	return true
}

func (f Filter) ceiling() float64 {
	if f.Ceiling <= 0 {
		return DefaultCeilingMbps
	}
	return f.Ceiling
}
