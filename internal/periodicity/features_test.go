package periodicity

import (
	"math"
	"testing"
)

func ptr(v float64) *float64 { return &v }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		value  *float64
		want   float64
	}{
		{"nil is neutral", MetricIntervalCV, nil, 0.5},
		{"interval cv zero", MetricIntervalCV, ptr(0), 1},
		{"interval cv mid", MetricIntervalCV, ptr(0.25), 0.75},
		{"interval cv capped", MetricIntervalCV, ptr(3), 0},
		{"height cv", MetricHeightCV, ptr(0.4), 0.6},
		{"acf min", MetricACFMax, ptr(-1), 0},
		{"acf zero", MetricACFMax, ptr(0), 0.5},
		{"acf max", MetricACFMax, ptr(1), 1},
		{"peak count", MetricPeakCount, ptr(6), 0.4},
		{"peak count capped", MetricPeakCount, ptr(40), 1},
		{"avg interval one month", MetricAvgInterval, ptr(1), 0},
		{"avg interval below one", MetricAvgInterval, ptr(0.5), 0},
		{"avg interval two months", MetricAvgInterval, ptr(2), math.Log(2) / math.Log(6)},
		{"avg interval six months", MetricAvgInterval, ptr(6), 1},
		{"avg interval long", MetricAvgInterval, ptr(12), 1},
		{"score", MetricPeriodicityScore, ptr(25), 0.5},
		{"score capped", MetricPeriodicityScore, ptr(120), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.metric, tt.value)
			if !almostEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNormalize_AlwaysWithinUnitInterval(t *testing.T) {
	metrics := []Metric{
		MetricAvgInterval, MetricIntervalCV, MetricHeightCV,
		MetricACFMax, MetricPeakCount, MetricPeriodicityScore,
	}
	values := []float64{-1e9, -5, -1, -0.3, 0, 0.001, 0.7, 1, 2.5, 6, 99, 1e9}

	for _, m := range metrics {
		for _, v := range values {
			got := Normalize(m, ptr(v))
			if got < 0 || got > 1 {
				t.Errorf("%s(%v) = %v, outside [0,1]", m, v, got)
			}
		}
	}
}

func TestActiveMonths(t *testing.T) {
	tests := []struct {
		name   string
		series []int
		want   Activity
	}{
		{"never used", []int{0, 0, 0}, Activity{TrailingZeros: 3}},
		{"empty", nil, Activity{}},
		{"introduced mid period", []int{0, 0, 0, 4, 0, 4, 4, 0},
			Activity{ActiveMonths: 3, TotalMonths: 5, TrailingZeros: 1, Ratio: 0.6}},
		{"always used", []int{1, 2, 3}, Activity{ActiveMonths: 3, TotalMonths: 3, Ratio: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActiveMonths(tt.series)
			if got.ActiveMonths != tt.want.ActiveMonths || got.TotalMonths != tt.want.TotalMonths ||
				got.TrailingZeros != tt.want.TrailingZeros || !almostEqual(got.Ratio, tt.want.Ratio) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestBuildFeatureVector(t *testing.T) {
	series := []int{0, 0, 0, 90, 0, 90, 0, 0, 90, 0, 0, 0}
	m, err := Analyze(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fv := BuildFeatureVector(m, series)
	want := FeatureVector{
		math.Log(2.5) / math.Log(6),
		0.8,
		1,
		(7.0/36.0 + 1) / 2,
		3.0 / 15.0,
		3.0 / 9.0,
	}
	for i := range want {
		if !almostEqual(fv[i], want[i]) {
			t.Errorf("%s: expected %v, got %v", FeatureNames[i], want[i], fv[i])
		}
	}
}

func TestBuildFeatureVector_NewDrugIsNeutral(t *testing.T) {
	series := []int{0, 12, 0, 0}
	m, _ := Analyze(series)
	fv := BuildFeatureVector(m, series)

	for i := 0; i < 4; i++ {
		if fv[i] != 0.5 {
			t.Errorf("%s: expected neutral 0.5, got %v", FeatureNames[i], fv[i])
		}
	}
	if !almostEqual(fv[4], 1.0/15.0) {
		t.Errorf("expected peak count norm 1/15, got %v", fv[4])
	}
	if !almostEqual(fv[5], 1.0/3.0) {
		t.Errorf("expected activity ratio 1/3, got %v", fv[5])
	}
}
