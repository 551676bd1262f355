package suggestion

import (
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
)

const (
	DefaultMaxMonthlyUsage    = 200.0
	DefaultDiscontinuedMonths = 9
)

// Reason explains why a drug is not a candidate. The zero value means eligible.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNotPeriodic  Reason = "not_periodic"
	ReasonDrugType     Reason = "drug_type"
	ReasonHighVolume   Reason = "high_volume"
	ReasonMonthly      Reason = "monthly"
	ReasonDiscontinued Reason = "discontinued"
)

// DrugProfile is what the eligibility rules look at.
type DrugProfile struct {
	DrugType       string
	MonthlyAverage float64
	Metrics        periodicity.Metrics
	Series         []int
}

// Eligibility filters the candidate pool. Drugs used in bulk are better
// handled by ordinary reordering, drugs used every month need no per-patient
// tracking, and drugs unused for DiscontinuedMonths are treated as retired.
type Eligibility struct {
	// DrugType, when set, restricts candidates to that type.
	DrugType           string
	MaxMonthlyUsage    float64
	DiscontinuedMonths int
}

// DefaultEligibility returns the standard filter set with no drug type
// restriction.
func DefaultEligibility() Eligibility {
	return Eligibility{
		MaxMonthlyUsage:    DefaultMaxMonthlyUsage,
		DiscontinuedMonths: DefaultDiscontinuedMonths,
	}
}

// Check returns ReasonNone when the drug may be suggested.
func (e Eligibility) Check(p DrugProfile) Reason {
	if !p.Metrics.Analyzable() {
		return ReasonNotPeriodic
	}
	if e.DrugType != "" && p.DrugType != e.DrugType {
		return ReasonDrugType
	}
	if e.MaxMonthlyUsage > 0 && p.MonthlyAverage >= e.MaxMonthlyUsage {
		return ReasonHighVolume
	}
	if p.Metrics.AvgInterval != nil && *p.Metrics.AvgInterval == 1.0 {
		return ReasonMonthly
	}
	if e.DiscontinuedMonths > 0 && periodicity.ActiveMonths(p.Series).TrailingZeros >= e.DiscontinuedMonths {
		return ReasonDiscontinued
	}
	return ReasonNone
}
