package periodicity

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestFindPeaks(t *testing.T) {
	peaks := FindPeaks([]int{0, 5, 0, 0, 7, 1})
	want := []Peak{{Month: 1, Value: 5}, {Month: 4, Value: 7}, {Month: 5, Value: 1}}
	if len(peaks) != len(want) {
		t.Fatalf("expected %d peaks, got %d", len(want), len(peaks))
	}
	for i := range want {
		if peaks[i] != want[i] {
			t.Errorf("peak %d: expected %+v, got %+v", i, want[i], peaks[i])
		}
	}

	if got := FindPeaks(nil); len(got) != 0 {
		t.Errorf("expected no peaks for empty series, got %d", len(got))
	}
}

func TestHeightCV_IdenticalHeightsIsExactlyZero(t *testing.T) {
	cv := HeightCV(FindPeaks([]int{90, 0, 90, 0, 90}))
	if cv == nil {
		t.Fatal("expected height cv, got nil")
	}
	if *cv != 0.0 {
		t.Errorf("expected exactly 0, got %v", *cv)
	}
}

func TestHeightCV_TooFewPeaks(t *testing.T) {
	if cv := HeightCV([]Peak{{Month: 0, Value: 4}}); cv != nil {
		t.Errorf("expected nil for a single peak, got %v", *cv)
	}
}

func TestIntervalCV(t *testing.T) {
	peaks := []Peak{{Month: 3, Value: 1}, {Month: 5, Value: 1}, {Month: 8, Value: 1}}
	cv := IntervalCV(peaks)
	if cv == nil {
		t.Fatal("expected interval cv, got nil")
	}
	if !almostEqual(*cv, 0.2) {
		t.Errorf("expected 0.2, got %v", *cv)
	}

	if IntervalCV(peaks[:1]) != nil {
		t.Error("expected nil interval cv for one peak")
	}
}

func TestACF_ConstantSeriesIsZero(t *testing.T) {
	for lag := 0; lag < 4; lag++ {
		if v := ACF([]int{5, 5, 5, 5, 5}, lag); v != 0 {
			t.Errorf("lag %d: expected 0, got %v", lag, v)
		}
	}
}

func TestACF_LagBeyondSeries(t *testing.T) {
	if v := ACF([]int{1, 0, 1}, 3); v != 0 {
		t.Errorf("expected 0 for lag >= n, got %v", v)
	}
}

func TestACF_LagZeroIsOne(t *testing.T) {
	if v := ACF([]int{1, 0, 3, 0, 2}, 0); !almostEqual(v, 1) {
		t.Errorf("expected 1 at lag 0, got %v", v)
	}
}

func TestAnalyze_TwoPeaksIsUnanalyzable(t *testing.T) {
	m, err := Analyze([]int{0, 30, 0, 0, 30, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PeakCount != 2 {
		t.Errorf("expected peak count 2, got %d", m.PeakCount)
	}
	if m.AvgInterval != nil || m.IntervalCV != nil || m.HeightCV != nil || m.ACFMax != nil || m.PeriodicityScore != nil {
		t.Errorf("expected all derived metrics nil, got %+v", m)
	}
	if m.Analyzable() {
		t.Error("expected Analyzable() to be false")
	}
}

func TestAnalyze_CompositeScore(t *testing.T) {
	series := []int{0, 0, 0, 90, 0, 90, 0, 0, 90, 0, 0, 0}
	m, err := Analyze(series)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.PeakCount != 3 {
		t.Fatalf("expected 3 peaks, got %d", m.PeakCount)
	}
	if !almostEqual(*m.AvgInterval, 2.5) {
		t.Errorf("expected avg interval 2.5, got %v", *m.AvgInterval)
	}
	if !almostEqual(*m.IntervalCV, 0.2) {
		t.Errorf("expected interval cv 0.2, got %v", *m.IntervalCV)
	}
	if *m.HeightCV != 0 {
		t.Errorf("expected height cv 0, got %v", *m.HeightCV)
	}

	// lag 5 dominates: 7/36
	if !almostEqual(*m.ACFMax, 7.0/36.0) {
		t.Errorf("expected acf max %v, got %v", 7.0/36.0, *m.ACFMax)
	}

	want := 100 * (7.0 / 36.0) * (1 / 1.2) * 1.0
	if !almostEqual(*m.PeriodicityScore, want) {
		t.Errorf("expected score %v, got %v", want, *m.PeriodicityScore)
	}
	if !m.Analyzable() {
		t.Error("expected Analyzable() to be true")
	}
}

func TestAnalyze_NegativeACFClampsScoreToZero(t *testing.T) {
	// alternating series: every even lag is positive, so pick a range of odd lags only
	a := NewAnalyzer(3, 3)
	m, err := a.Analyze([]int{5, 0, 5, 0, 5, 0, 5, 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *m.ACFMax >= 0 {
		t.Fatalf("expected negative acf at lag 3, got %v", *m.ACFMax)
	}
	if *m.PeriodicityScore != 0 {
		t.Errorf("expected score 0 for negative acf, got %v", *m.PeriodicityScore)
	}
}

func TestAnalyze_NegativeUsageFails(t *testing.T) {
	_, err := Analyze([]int{3, -1, 4})
	if !errors.Is(err, ErrNegativeUsage) {
		t.Fatalf("expected ErrNegativeUsage, got %v", err)
	}
}

func TestAnalyze_EmptySeries(t *testing.T) {
	m, err := Analyze(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.PeakCount != 0 || m.PeriodicityScore != nil {
		t.Errorf("expected empty metrics, got %+v", m)
	}
}

func TestNewAnalyzer_InvalidRangeFallsBack(t *testing.T) {
	a := NewAnalyzer(5, 2)
	if a.minLag != DefaultMinLag || a.maxLag != DefaultMaxLag {
		t.Errorf("expected default lag range, got %d..%d", a.minLag, a.maxLag)
	}
}
