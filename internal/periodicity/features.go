package periodicity

import "math"

// Metric names a raw statistic that can be normalised into a feature.
type Metric string

const (
	MetricAvgInterval      Metric = "avg_interval"
	MetricIntervalCV       Metric = "interval_cv"
	MetricHeightCV         Metric = "height_cv"
	MetricACFMax           Metric = "acf_max"
	MetricPeakCount        Metric = "peak_count"
	MetricPeriodicityScore Metric = "periodicity_score"
)

const (
	// FeatureDims is the length of a FeatureVector.
	FeatureDims = 6

	peakCountScale   = 15.0
	scoreScale       = 50.0
	longestCycle     = 6.0
	neutralNormValue = 0.5
)

// FeatureVector is the normalised usage profile of a drug:
// [avg_interval, interval_cv, height_cv, acf_max, peak_count, active_months_ratio],
// every component in [0,1].
type FeatureVector [FeatureDims]float64

// FeatureNames lists the FeatureVector components in order.
var FeatureNames = [FeatureDims]string{
	"avg_interval_norm",
	"interval_cv_norm",
	"height_cv_norm",
	"acf_max_norm",
	"peak_count_norm",
	"active_months_ratio",
}

// Activity describes how much of a drug's lifetime had non-zero usage.
// The lifetime starts at the first non-zero month.
type Activity struct {
	ActiveMonths  int     `json:"active_months"`
	TotalMonths   int     `json:"total_months"`
	TrailingZeros int     `json:"trailing_zeros"`
	Ratio         float64 `json:"ratio"`
}

// Normalize maps a raw metric into [0,1]. A nil value maps to 0.5 so that
// missing data is not confused with the worst score.
func Normalize(metric Metric, value *float64) float64 {
	if value == nil {
		return neutralNormValue
	}
	x := *value
	if math.IsNaN(x) {
		return neutralNormValue
	}

	var out float64
	switch metric {
	case MetricIntervalCV, MetricHeightCV:
		// lower variability is better
		out = math.Max(0, 1-math.Min(1, x))
	case MetricACFMax:
		out = (x + 1) / 2
	case MetricPeakCount:
		out = math.Min(1, x/peakCountScale)
	case MetricAvgInterval:
		// log scale separates short cycles more finely than long ones
		if x <= 1 {
			out = 0
		} else {
			out = math.Log(x) / math.Log(longestCycle)
		}
	case MetricPeriodicityScore:
		out = math.Min(1, x/scoreScale)
	default:
		out = x
	}

	return clamp01(out)
}

// ActiveMonths measures activity from the first non-zero month onward.
func ActiveMonths(series []int) Activity {
	first := -1
	for i, v := range series {
		if v > 0 {
			first = i
			break
		}
	}

	trailing := 0
	for i := len(series) - 1; i >= 0 && series[i] == 0; i-- {
		trailing++
	}

	if first < 0 {
		return Activity{TrailingZeros: trailing}
	}

	active := 0
	for _, v := range series[first:] {
		if v > 0 {
			active++
		}
	}
	total := len(series) - first

	return Activity{
		ActiveMonths:  active,
		TotalMonths:   total,
		TrailingZeros: trailing,
		Ratio:         float64(active) / float64(total),
	}
}

// BuildFeatureVector normalises metrics and appends the activity ratio of
// series.
func BuildFeatureVector(m Metrics, series []int) FeatureVector {
	peakCount := float64(m.PeakCount)
	return FeatureVector{
		Normalize(MetricAvgInterval, m.AvgInterval),
		Normalize(MetricIntervalCV, m.IntervalCV),
		Normalize(MetricHeightCV, m.HeightCV),
		Normalize(MetricACFMax, m.ACFMax),
		Normalize(MetricPeakCount, &peakCount),
		ActiveMonths(series).Ratio,
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return neutralNormValue
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
