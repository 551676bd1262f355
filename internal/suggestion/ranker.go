// Package suggestion ranks periodic drugs that are worth tying to specific
// patients, based on how closely their usage profile resembles the drugs
// already linked.
package suggestion

import (
	"fmt"
	"math"
	"sort"

	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
)

const (
	// DefaultMinPatients is the number of patients with at least one linked
	// drug needed before suggestions are produced.
	DefaultMinPatients = 5

	penaltyCap             = 3
	registrationPenaltyMax = 0.3
	skipPenaltyMax         = 0.5
)

// Status is the kind of outcome returned by Ranker.Next.
type Status string

const (
	StatusSuggested Status = "suggested"
	StatusInactive  Status = "inactive"
	StatusEmpty     Status = "empty"
)

// Activation reports whether enough patients have linked drugs for the
// ranker to make suggestions.
type Activation struct {
	Active            bool   `json:"active"`
	PatientCount      int    `json:"patient_count"`
	PatientsWithDrugs int    `json:"patients_with_drugs"`
	DrugsWithPatients int    `json:"drugs_with_patients"`
	RequiredCount     int    `json:"required_count"`
	Message           string `json:"message"`
}

// LinkCounts are the link graph totals the activation gate reads.
type LinkCounts struct {
	Patients          int
	PatientsWithDrugs int
	DrugsWithPatients int
}

// Candidate is a drug the ranker may suggest.
type Candidate struct {
	DrugCode         string
	Vector           periodicity.FeatureVector
	PeriodicityScore *float64
	RegisteredCount  int
}

// Ranked is a scored candidate.
type Ranked struct {
	DrugCode           string  `json:"drug_code"`
	RawSimilarity      float64 `json:"raw_similarity"`
	AdjustedSimilarity float64 `json:"adjusted_similarity"`
	RegisteredCount    int     `json:"registered_count"`
	SkipCount          int     `json:"skip_count"`
}

// Input is everything Next needs. The ranker never reads storage.
type Input struct {
	Linked     []periodicity.FeatureVector
	Candidates []Candidate
	SkipCounts map[string]int
	Links      LinkCounts
}

// Outcome is the result of Next. Best is nil unless Status is StatusSuggested.
type Outcome struct {
	Status     Status     `json:"status"`
	Activation Activation `json:"activation"`
	Best       *Ranked    `json:"best,omitempty"`
	Remaining  int        `json:"remaining_count"`
}

// Ranker orders candidates by skip count, registration count and then
// similarity to the centroid of the linked drugs.
type Ranker struct {
	minPatients int
}

// NewRanker returns a ranker gated on minPatients; non-positive values use
// DefaultMinPatients.
func NewRanker(minPatients int) *Ranker {
	if minPatients <= 0 {
		minPatients = DefaultMinPatients
	}
	return &Ranker{minPatients: minPatients}
}

// MinPatients returns the activation threshold.
func (r *Ranker) MinPatients() int {
	return r.minPatients
}

// Activation evaluates the gate against the current link counts.
func (r *Ranker) Activation(links LinkCounts) Activation {
	a := Activation{
		Active:            links.PatientsWithDrugs >= r.minPatients,
		PatientCount:      links.Patients,
		PatientsWithDrugs: links.PatientsWithDrugs,
		DrugsWithPatients: links.DrugsWithPatients,
		RequiredCount:     r.minPatients,
	}

	if a.Active {
		a.Message = fmt.Sprintf("Suggestions are active (%d patients have linked drugs).", links.PatientsWithDrugs)
	} else {
		a.Message = fmt.Sprintf("%d more patients with linked drugs are needed (currently %d).",
			r.minPatients-links.PatientsWithDrugs, links.PatientsWithDrugs)
	}
	return a
}

// Rank scores and orders candidates. The result is sorted ascending by
// (skip count, registered count, -adjusted similarity); ties keep input order.
func (r *Ranker) Rank(linked []periodicity.FeatureVector, candidates []Candidate, skips map[string]int) []Ranked {
	centroid := Centroid(linked)

	ranked := make([]Ranked, len(candidates))
	for i, c := range candidates {
		var sim float64
		if centroid != nil {
			sim = CosineSimilarity(*centroid, c.Vector)
		} else if c.PeriodicityScore != nil {
			sim = *c.PeriodicityScore / 100
		}

		skip := skips[c.DrugCode]
		ranked[i] = Ranked{
			DrugCode:           c.DrugCode,
			RawSimilarity:      sim,
			AdjustedSimilarity: AdjustedSimilarity(sim, c.RegisteredCount, skip),
			RegisteredCount:    c.RegisteredCount,
			SkipCount:          skip,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.SkipCount != b.SkipCount {
			return a.SkipCount < b.SkipCount
		}
		if a.RegisteredCount != b.RegisteredCount {
			return a.RegisteredCount < b.RegisteredCount
		}
		return a.AdjustedSimilarity > b.AdjustedSimilarity
	})

	return ranked
}

// Next returns the single best suggestion, or an inactive or empty outcome.
func (r *Ranker) Next(in Input) Outcome {
	activation := r.Activation(in.Links)
	if !activation.Active {
		return Outcome{Status: StatusInactive, Activation: activation}
	}

	ranked := r.Rank(in.Linked, in.Candidates, in.SkipCounts)
	if len(ranked) == 0 {
		return Outcome{Status: StatusEmpty, Activation: activation}
	}

	best := ranked[0]
	return Outcome{
		Status:     StatusSuggested,
		Activation: activation,
		Best:       &best,
		Remaining:  len(ranked) - 1,
	}
}

// Centroid is the component-wise mean of vectors, nil when there are none.
func Centroid(vectors []periodicity.FeatureVector) *periodicity.FeatureVector {
	if len(vectors) == 0 {
		return nil
	}

	var c periodicity.FeatureVector
	for _, v := range vectors {
		for i := range v {
			c[i] += v[i]
		}
	}
	n := float64(len(vectors))
	for i := range c {
		c[i] /= n
	}
	return &c
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either is the zero vector.
func CosineSimilarity(a, b periodicity.FeatureVector) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RegistrationPenalty grows by 0.1 per linked patient, up to three.
func RegistrationPenalty(registered int) float64 {
	return float64(capCount(registered)) * (registrationPenaltyMax / penaltyCap)
}

// SkipPenalty grows by 0.5/3 per skip, up to three.
func SkipPenalty(skips int) float64 {
	return float64(capCount(skips)) * (skipPenaltyMax / penaltyCap)
}

// AdjustedSimilarity subtracts both penalties from sim, floored at 0.
func AdjustedSimilarity(sim float64, registered, skips int) float64 {
	return math.Max(0, sim-RegistrationPenalty(registered)-SkipPenalty(skips))
}

func capCount(n int) int {
	switch {
	case n < 0:
		return 0
	case n > penaltyCap:
		return penaltyCap
	}
	return n
}
