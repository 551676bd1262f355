// Package periodicity classifies how regularly a drug is dispensed from its
// monthly usage counts.
package periodicity

import (
	"errors"
	"fmt"
	"math"
)

const (
	// MinPeaks is the number of non-zero months below which a drug is treated
	// as new and no dispersion statistic is computed.
	MinPeaks = 3

	DefaultMinLag = 2
	DefaultMaxLag = 6
)

// ErrNegativeUsage is returned when a usage series holds a negative month.
var ErrNegativeUsage = errors.New("periodicity: negative monthly usage")

// Peak is a month with non-zero usage.
type Peak struct {
	Month int `json:"month"`
	Value int `json:"value"`
}

// Metrics holds the periodicity statistics of one usage series. Every field
// except PeakCount is nil when PeakCount < MinPeaks.
type Metrics struct {
	PeakCount        int      `json:"peak_count"`
	AvgInterval      *float64 `json:"avg_interval"`
	IntervalCV       *float64 `json:"interval_cv"`
	HeightCV         *float64 `json:"height_cv"`
	ACFMax           *float64 `json:"acf_max"`
	PeriodicityScore *float64 `json:"periodicity_score"`
}

// Analyzable reports whether the series had enough peaks to be scored.
func (m Metrics) Analyzable() bool {
	return m.PeakCount >= MinPeaks && m.PeriodicityScore != nil
}

// Analyzer computes Metrics using a fixed autocorrelation lag range.
type Analyzer struct {
	minLag int
	maxLag int
}

// NewAnalyzer creates an analyzer scanning lags [minLag, maxLag]. An empty or
// inverted range falls back to the default 2..6.
func NewAnalyzer(minLag, maxLag int) *Analyzer {
	if minLag < 1 || maxLag < minLag {
		minLag, maxLag = DefaultMinLag, DefaultMaxLag
	}
	return &Analyzer{minLag: minLag, maxLag: maxLag}
}

// Analyze computes Metrics for series using the default lag range.
func Analyze(series []int) (Metrics, error) {
	return NewAnalyzer(DefaultMinLag, DefaultMaxLag).Analyze(series)
}

// Analyze computes all periodicity metrics for a single drug.
func (a *Analyzer) Analyze(series []int) (Metrics, error) {
	if err := validateSeries(series); err != nil {
		return Metrics{}, err
	}

	peaks := FindPeaks(series)
	metrics := Metrics{PeakCount: len(peaks)}
	if len(peaks) < MinPeaks {
		return metrics, nil
	}

	intervalCV := IntervalCV(peaks)
	heightCV := HeightCV(peaks)
	acfMax := ACFMax(series, a.minLag, a.maxLag)

	metrics.AvgInterval = AvgInterval(peaks)
	metrics.IntervalCV = intervalCV
	metrics.HeightCV = heightCV
	metrics.ACFMax = &acfMax

	if intervalCV != nil && heightCV != nil {
		score := Score(acfMax, *intervalCV, *heightCV)
		metrics.PeriodicityScore = &score
	}

	return metrics, nil
}

// Score combines the three regularity axes multiplicatively so that a single
// irregular axis suppresses the whole score.
func Score(acfMax, intervalCV, heightCV float64) float64 {
	acfFactor := math.Max(0, acfMax)
	intervalFactor := 1 / (1 + intervalCV)
	heightFactor := 1 / (1 + heightCV)
	return 100 * acfFactor * intervalFactor * heightFactor
}

// FindPeaks returns every month with usage > 0 in time order.
func FindPeaks(series []int) []Peak {
	peaks := make([]Peak, 0, len(series))
	for i, v := range series {
		if v > 0 {
			peaks = append(peaks, Peak{Month: i, Value: v})
		}
	}
	return peaks
}

// IntervalCV is the coefficient of variation of the gaps between consecutive
// peaks. Nil with fewer than two peaks.
func IntervalCV(peaks []Peak) *float64 {
	gaps := peakGaps(peaks)
	if len(gaps) == 0 {
		return nil
	}

	mean, std := meanStd(gaps)
	if mean == 0 {
		return nil
	}
	cv := std / mean
	return &cv
}

// HeightCV is the coefficient of variation of the peak values. Identical
// heights yield exactly 0.
func HeightCV(peaks []Peak) *float64 {
	if len(peaks) < 2 {
		return nil
	}

	values := make([]float64, len(peaks))
	for i, p := range peaks {
		values[i] = float64(p.Value)
	}

	mean, std := meanStd(values)
	if mean == 0 {
		return nil
	}

	cv := 0.0
	if std != 0 {
		cv = std / mean
	}
	return &cv
}

// AvgInterval is the mean gap, in months, between consecutive peaks.
func AvgInterval(peaks []Peak) *float64 {
	gaps := peakGaps(peaks)
	if len(gaps) == 0 {
		return nil
	}
	mean, _ := meanStd(gaps)
	return &mean
}

// ACF is the biased sample autocorrelation of series at lag, normalised by
// the population variance of the whole series.
func ACF(series []int, lag int) float64 {
	n := len(series)
	if lag < 0 || lag >= n {
		return 0
	}

	values := make([]float64, n)
	for i, v := range series {
		values[i] = float64(v)
	}

	mean, std := meanStd(values)
	variance := std * std
	if variance == 0 {
		return 0
	}

	var sum float64
	for t := 0; t < n-lag; t++ {
		sum += (values[t] - mean) * (values[t+lag] - mean)
	}
	return sum / (float64(n) * variance)
}

// ACFMax returns the largest autocorrelation over the closed lag range.
func ACFMax(series []int, minLag, maxLag int) float64 {
	if maxLag < minLag {
		return 0
	}

	best := math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		if v := ACF(series, lag); v > best {
			best = v
		}
	}
	return best
}

func peakGaps(peaks []Peak) []float64 {
	if len(peaks) < 2 {
		return nil
	}
	gaps := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		gaps[i-1] = float64(peaks[i].Month - peaks[i-1].Month)
	}
	return gaps
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func validateSeries(series []int) error {
	for i, v := range series {
		if v < 0 {
			return fmt.Errorf("%w: month %d has %d", ErrNegativeUsage, i, v)
		}
	}
	return nil
}
