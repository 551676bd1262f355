package buffer

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func fourPatients() []PatientProfile {
	return []PatientProfile{
		{PatientID: 1, Name: "A", VisitCycleDays: 30, DosagePerVisit: 30},
		{PatientID: 2, Name: "B", VisitCycleDays: 30, DosagePerVisit: 30},
		{PatientID: 3, Name: "C", VisitCycleDays: 60, DosagePerVisit: 60},
		{PatientID: 4, Name: "D", VisitCycleDays: 90, DosagePerVisit: 90},
	}
}

func TestPMF_SumsToOne(t *testing.T) {
	inputs := [][]float64{
		{},
		{0.5},
		{1.0 / 30, 1.0 / 30, 1.0 / 60, 1.0 / 90},
		{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7},
	}

	for _, probs := range inputs {
		pmf := PMF(probs)
		if len(pmf) != len(probs)+1 {
			t.Fatalf("expected %d entries, got %d", len(probs)+1, len(pmf))
		}
		var sum float64
		for _, v := range pmf {
			if v < 0 {
				t.Errorf("negative probability %v in %v", v, pmf)
			}
			sum += v
		}
		if !almostEqual(sum, 1, 1e-12) {
			t.Errorf("pmf for %v sums to %v", probs, sum)
		}
	}
}

func TestPMF_KnownValues(t *testing.T) {
	pmf := PMF([]float64{1.0 / 30, 1.0 / 30, 1.0 / 60, 1.0 / 90})
	want := []float64{0.9086607, 0.08827695, 0.003019753, 4.238683e-5, 2.057613e-7}
	for i := range want {
		if !almostEqual(pmf[i], want[i], want[i]*1e-4) {
			t.Errorf("pmf[%d]: expected %v, got %v", i, want[i], pmf[i])
		}
	}

	// single fair coin
	coin := PMF([]float64{0.5})
	if coin[0] != 0.5 || coin[1] != 0.5 {
		t.Errorf("expected [0.5 0.5], got %v", coin)
	}
}

func TestTailProbability(t *testing.T) {
	pmf := PMF([]float64{0.2, 0.4, 0.6})

	if got := TailProbability(pmf, 0); got != 1 {
		t.Errorf("k=0: expected 1, got %v", got)
	}
	if got := TailProbability(pmf, -3); got != 1 {
		t.Errorf("k<0: expected 1, got %v", got)
	}
	if got := TailProbability(pmf, 4); got != 0 {
		t.Errorf("k>N: expected 0, got %v", got)
	}
	if got := TailProbability(pmf, 3); !almostEqual(got, 0.2*0.4*0.6, 1e-12) {
		t.Errorf("k=N: expected %v, got %v", 0.2*0.4*0.6, got)
	}

	prev := 1.0
	for k := 0; k <= 4; k++ {
		got := TailProbability(pmf, k)
		if got > prev+1e-15 {
			t.Errorf("tail not monotonic at k=%d: %v > %v", k, got, prev)
		}
		prev = got
	}
}

func TestMinimumBuffer_RiskLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantK     int
		wantBuf   int
		wantRisk  float64
		wantNames []string
	}{
		{RiskRelaxed, 2, 150, 0.003062346, []string{"D", "C"}},
		{RiskNormal, 3, 180, 4.259259e-5, []string{"D", "C", "A"}},
		{RiskSafe, 3, 180, 4.259259e-5, []string{"D", "C", "A"}},
		{RiskVerySafe, 4, 210, 2.057613e-7, []string{"D", "C", "A", "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			res, err := MinimumBuffer(fourPatients(), ResolveRiskLevel(tt.level))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.MaxK != tt.wantK {
				t.Errorf("expected k=%d, got %d", tt.wantK, res.MaxK)
			}
			if res.MinBuffer != tt.wantBuf {
				t.Errorf("expected buffer %d, got %d", tt.wantBuf, res.MinBuffer)
			}
			if !almostEqual(res.ActualRisk, tt.wantRisk, tt.wantRisk*1e-4) {
				t.Errorf("expected actual risk %v, got %v", tt.wantRisk, res.ActualRisk)
			}
			if res.ActualRisk > res.RiskThreshold {
				t.Errorf("actual risk %v exceeds threshold %v", res.ActualRisk, res.RiskThreshold)
			}
			if res.TotalPatients != 4 || len(res.Patients) != 4 {
				t.Errorf("expected 4 patients, got %d/%d", res.TotalPatients, len(res.Patients))
			}
			if len(res.IncludedPatients) != len(tt.wantNames) {
				t.Fatalf("expected %d included, got %d", len(tt.wantNames), len(res.IncludedPatients))
			}
			for i, name := range tt.wantNames {
				if res.IncludedPatients[i].Name != name {
					t.Errorf("included[%d]: expected %s, got %s", i, name, res.IncludedPatients[i].Name)
				}
			}
		})
	}
}

func TestMinimumBuffer_KIsMinimal(t *testing.T) {
	patients := fourPatients()
	probs := []float64{1.0 / 30, 1.0 / 30, 1.0 / 60, 1.0 / 90}
	pmf := PMF(probs)

	for _, key := range []string{RiskRelaxed, RiskNormal, RiskSafe, RiskVerySafe} {
		level := ResolveRiskLevel(key)
		res, err := MinimumBuffer(patients, level)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", level.Key, err)
		}
		if TailProbability(pmf, res.MaxK) > level.Threshold {
			t.Errorf("%s: tail at k=%d exceeds threshold", level.Key, res.MaxK)
		}
		if res.MaxK > 0 && TailProbability(pmf, res.MaxK-1) <= level.Threshold {
			t.Errorf("%s: k=%d is not minimal", level.Key, res.MaxK)
		}
	}
}

func TestMinimumBuffer_NoPatients(t *testing.T) {
	res, err := MinimumBuffer(nil, ResolveRiskLevel(RiskSafe))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MinBuffer != 0 || res.MaxK != 0 || res.TotalPatients != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res.Explanation == "" {
		t.Error("expected an explanation message")
	}
}

func TestMinimumBuffer_FallsBackToAllPatients(t *testing.T) {
	// daily visitors: P(X=N)=1 so no k satisfies the threshold
	patients := []PatientProfile{
		{PatientID: 1, VisitCycleDays: 1, DosagePerVisit: 5},
		{PatientID: 2, VisitCycleDays: 1, DosagePerVisit: 7},
	}
	res, err := MinimumBuffer(patients, ResolveRiskLevel(RiskVerySafe))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MaxK != 2 || res.MinBuffer != 12 {
		t.Errorf("expected k=2 buffer=12, got k=%d buffer=%d", res.MaxK, res.MinBuffer)
	}
}

func TestMinimumBuffer_Defaults(t *testing.T) {
	patients := []PatientProfile{{PatientID: 1}}
	res, err := MinimumBuffer(patients, ResolveRiskLevel(RiskRelaxed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := res.Patients[0]
	if p.VisitCycleDays != DefaultVisitCycleDays || p.Dosage != DefaultDosage {
		t.Errorf("expected defaults, got %+v", p)
	}
	if !almostEqual(p.VisitProbability, 1.0/30, 1e-15) {
		t.Errorf("expected p=1/30, got %v", p.VisitProbability)
	}
	// 1/30 > 0.03 so one patient must be covered
	if res.MaxK != 1 || res.MinBuffer != 1 {
		t.Errorf("expected k=1 buffer=1, got k=%d buffer=%d", res.MaxK, res.MinBuffer)
	}
}

func TestMinimumBuffer_NegativeInputs(t *testing.T) {
	_, err := MinimumBuffer([]PatientProfile{{PatientID: 1, VisitCycleDays: -5}}, ResolveRiskLevel(RiskSafe))
	if !errors.Is(err, ErrNegativeCycle) {
		t.Errorf("expected ErrNegativeCycle, got %v", err)
	}

	_, err = MinimumBuffer([]PatientProfile{{PatientID: 1, DosagePerVisit: -1}}, ResolveRiskLevel(RiskSafe))
	if !errors.Is(err, ErrNegativeDosage) {
		t.Errorf("expected ErrNegativeDosage, got %v", err)
	}
}

func TestMinimumBuffer_StableTieBreak(t *testing.T) {
	patients := []PatientProfile{
		{PatientID: 10, Name: "first", VisitCycleDays: 30, DosagePerVisit: 20},
		{PatientID: 11, Name: "second", VisitCycleDays: 30, DosagePerVisit: 20},
		{PatientID: 12, Name: "third", VisitCycleDays: 30, DosagePerVisit: 20},
	}
	res, err := MinimumBuffer(patients, ResolveRiskLevel(RiskRelaxed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MaxK != 2 {
		t.Fatalf("expected k=2, got %d", res.MaxK)
	}
	for i, p := range res.Patients {
		if p.PatientID != patients[i].PatientID {
			t.Errorf("position %d: expected patient %d, got %d", i, patients[i].PatientID, p.PatientID)
		}
	}
	for i, p := range res.Patients {
		if p.Included != (i < res.MaxK) {
			t.Errorf("patient %d: included=%v with k=%d", p.PatientID, p.Included, res.MaxK)
		}
	}
}

func TestMinimumBuffer_Explanation(t *testing.T) {
	res, err := MinimumBuffer(fourPatients(), ResolveRiskLevel(RiskRelaxed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(res.Explanation, "90 + 60") {
		t.Errorf("expected dosage breakdown in explanation, got %q", res.Explanation)
	}
}

func TestResolveRiskLevel(t *testing.T) {
	if got := ResolveRiskLevel("very_safe").Threshold; got != 0.00003 {
		t.Errorf("expected very_safe 3e-5, got %v", got)
	}
	if got := ResolveRiskLevel(" Relaxed "); got.Key != RiskRelaxed {
		t.Errorf("expected relaxed, got %s", got.Key)
	}
	if got := ResolveRiskLevel("reckless"); got.Key != RiskSafe {
		t.Errorf("expected fallback to safe, got %s", got.Key)
	}
	if _, ok := LookupRiskLevel("reckless"); ok {
		t.Error("expected unknown level lookup to fail")
	}
}

func TestRiskLevels_LoosestFirst(t *testing.T) {
	levels := RiskLevels()
	if len(levels) < 4 {
		t.Fatalf("expected at least 4 levels, got %d", len(levels))
	}
	for i := 1; i < len(levels); i++ {
		if levels[i].Threshold > levels[i-1].Threshold {
			t.Errorf("levels not ordered: %v before %v", levels[i-1].Threshold, levels[i].Threshold)
		}
	}
}

func TestCustomRiskLevel(t *testing.T) {
	level, err := CustomRiskLevel(0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level.Threshold != 0.01 || level.Key != customRiskKey {
		t.Errorf("unexpected level %+v", level)
	}

	for _, bad := range []float64{0, 1, -0.5, 2} {
		if _, err := CustomRiskLevel(bad); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: expected ErrInvalidThreshold, got %v", bad, err)
		}
	}
}

func TestRegisterRiskLevel(t *testing.T) {
	if err := RegisterRiskLevel(RiskLevel{Key: "Paranoid", Name: "Paranoid", Threshold: 1e-7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ResolveRiskLevel("paranoid"); got.Threshold != 1e-7 {
		t.Errorf("expected registered level, got %+v", got)
	}
	if err := RegisterRiskLevel(RiskLevel{Key: "", Threshold: 0.1}); err == nil {
		t.Error("expected error for empty key")
	}
	if err := RegisterRiskLevel(RiskLevel{Key: "broken", Threshold: 1.5}); !errors.Is(err, ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
}
