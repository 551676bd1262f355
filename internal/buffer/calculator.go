// Package buffer sizes the minimum stock a pharmacy keeps for drugs that are
// tied to specific patients.
//
// Each linked patient visits on a given day with probability 1/visit_cycle.
// The number of same-day visits follows a Poisson-binomial distribution; the
// buffer covers the smallest visit count k whose tail probability P(X>=k) is
// within the chosen risk level.
package buffer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultVisitCycleDays = 30
	DefaultDosage         = 1
)

var (
	ErrNegativeCycle    = errors.New("buffer: negative visit cycle")
	ErrNegativeDosage   = errors.New("buffer: negative dosage")
	ErrInvalidThreshold = errors.New("buffer: risk threshold must be in (0,1)")
)

// PatientProfile is one patient linked to a drug.
type PatientProfile struct {
	PatientID      int64  `json:"patient_id"`
	Name           string `json:"name"`
	VisitCycleDays int    `json:"visit_cycle_days"`
	DosagePerVisit int    `json:"dosage_per_visit"`
}

// PatientShare is a patient's contribution to a buffer computation.
type PatientShare struct {
	PatientID        int64   `json:"patient_id"`
	Name             string  `json:"name"`
	VisitCycleDays   int     `json:"visit_cycle_days"`
	Dosage           int     `json:"dosage"`
	VisitProbability float64 `json:"visit_probability"`
	Included         bool    `json:"included"`
}

// Result is the outcome of MinimumBuffer.
type Result struct {
	MinBuffer        int            `json:"min_buffer"`
	MaxK             int            `json:"max_k"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	RiskThreshold    float64        `json:"risk_threshold"`
	ActualRisk       float64        `json:"actual_risk"`
	IncludedPatients []PatientShare `json:"included_patients"`
	Patients         []PatientShare `json:"patients"`
	TotalPatients    int            `json:"total_patients"`
	Explanation      string         `json:"explanation"`
}

// VisitProbability returns the daily visit probability for a visit cycle.
// A zero cycle means "unset" and uses the 30 day default.
func VisitProbability(cycleDays int) (float64, error) {
	if cycleDays < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeCycle, cycleDays)
	}
	return 1.0 / float64(effectiveCycle(cycleDays)), nil
}

// PMF returns P(X = j) for j in 0..len(probs) where X is the number of
// successes among independent Bernoulli trials with the given probabilities.
func PMF(probs []float64) []float64 {
	n := len(probs)
	dp := make([]float64, n+1)
	dp[0] = 1

	for _, p := range probs {
		// descending so dp[j-1] still holds the previous patient's value
		for j := n; j >= 1; j-- {
			dp[j] = dp[j]*(1-p) + dp[j-1]*p
		}
		dp[0] *= 1 - p
	}

	return dp
}

// TailProbability returns P(X >= k) from a PMF.
func TailProbability(pmf []float64, k int) float64 {
	if k <= 0 {
		return 1.0
	}
	n := len(pmf) - 1
	if k > n {
		return 0.0
	}

	var cumulative float64
	for i := 0; i < k; i++ {
		cumulative += pmf[i]
	}
	return 1.0 - cumulative
}

// MinimumBuffer computes the smallest buffer keeping the probability of
// running short within risk.Threshold.
func MinimumBuffer(patients []PatientProfile, risk RiskLevel) (Result, error) {
	if len(patients) == 0 {
		return Result{
			RiskLevel:        risk,
			RiskThreshold:    risk.Threshold,
			IncludedPatients: []PatientShare{},
			Patients:         []PatientShare{},
			Explanation:      "No patients are linked to this drug.",
		}, nil
	}

	// 1. Visit probability and effective dosage per patient
	shares := make([]PatientShare, len(patients))
	probs := make([]float64, len(patients))
	for i, patient := range patients {
		p, err := VisitProbability(patient.VisitCycleDays)
		if err != nil {
			return Result{}, fmt.Errorf("patient %d: %w", patient.PatientID, err)
		}
		if patient.DosagePerVisit < 0 {
			return Result{}, fmt.Errorf("patient %d: %w: %d", patient.PatientID, ErrNegativeDosage, patient.DosagePerVisit)
		}

		dosage := patient.DosagePerVisit
		if dosage == 0 {
			dosage = DefaultDosage
		}

		probs[i] = p
		shares[i] = PatientShare{
			PatientID:        patient.PatientID,
			Name:             patient.Name,
			VisitCycleDays:   effectiveCycle(patient.VisitCycleDays),
			Dosage:           dosage,
			VisitProbability: p,
		}
	}

	// 2. Smallest k with P(X >= k) <= threshold, falling back to N
	n := len(probs)
	pmf := PMF(probs)
	maxK := n
	for k := 0; k <= n; k++ {
		if TailProbability(pmf, k) <= risk.Threshold {
			maxK = k
			break
		}
	}
	actualRisk := TailProbability(pmf, maxK)

	// 3. Cover the k patients with the largest dosages
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Dosage > shares[j].Dosage
	})

	minBuffer := 0
	included := make([]PatientShare, 0, maxK)
	for i := range shares {
		if i < maxK {
			shares[i].Included = true
			minBuffer += shares[i].Dosage
			included = append(included, shares[i])
		}
	}

	result := Result{
		MinBuffer:        minBuffer,
		MaxK:             maxK,
		RiskLevel:        risk,
		RiskThreshold:    risk.Threshold,
		ActualRisk:       actualRisk,
		IncludedPatients: included,
		Patients:         shares,
		TotalPatients:    n,
	}
	result.Explanation = explain(result)

	return result, nil
}

func effectiveCycle(cycleDays int) int {
	if cycleDays <= 0 {
		return DefaultVisitCycleDays
	}
	return cycleDays
}

func explain(r Result) string {
	risk := formatRisk(r.ActualRisk)

	switch r.MaxK {
	case 0:
		return fmt.Sprintf("%d patients are linked, but no extra buffer is needed.", r.TotalPatients)
	case 1:
		return fmt.Sprintf("Out of %d patients, one may visit (%s); a buffer of the largest dosage, %d units, is needed.",
			r.TotalPatients, risk, r.MinBuffer)
	}

	parts := make([]string, len(r.IncludedPatients))
	for i, p := range r.IncludedPatients {
		parts[i] = strconv.Itoa(p.Dosage)
	}
	return fmt.Sprintf("Out of %d patients, %d may visit on the same day (%s); the top %d dosages (%s = %d units) are needed as buffer.",
		r.TotalPatients, r.MaxK, risk, r.MaxK, strings.Join(parts, " + "), r.MinBuffer)
}

func formatRisk(v float64) string {
	switch {
	case v >= 0.01:
		return fmt.Sprintf("%.1f%%", v*100)
	case v >= 0.001:
		return fmt.Sprintf("%.2f%%", v*100)
	case v >= 0.00001:
		return fmt.Sprintf("%.4f%%", v*100)
	case v > 0:
		return "<0.001%"
	}
	return "0%"
}

func formatPercent(v float64) string {
	switch {
	case v >= 0.01:
		return fmt.Sprintf("%.1f%%", v*100)
	case v >= 0.001:
		return fmt.Sprintf("%.2f%%", v*100)
	}
	return fmt.Sprintf("%.3f%%", v*100)
}
