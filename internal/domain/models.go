// backend-go/internal/domain/models.go
package domain

import (
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
)

// Drug is a drug with its monthly dispensed-quantity history.
type Drug struct {
	Code         string      `json:"drug_code" db:"drug_code"`
	Name         string      `json:"drug_name" db:"drug_name"`
	Company      string      `json:"company" db:"company"`
	DrugType     string      `json:"drug_type" db:"drug_type"`
	MonthlyUsage UsageSeries `json:"monthly_usage" db:"monthly_usage"`
	MovingAvg12M float64     `json:"moving_avg_12m" db:"moving_avg_12m"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// TrailingAverage is the mean of the last n months, or of the whole series
// when it is shorter.
func TrailingAverage(series []int, n int) float64 {
	if len(series) == 0 || n <= 0 {
		return 0
	}
	if len(series) > n {
		series = series[len(series)-n:]
	}
	var sum int
	for _, v := range series {
		sum += v
	}
	return float64(sum) / float64(len(series))
}

// PeriodicityRecord is the persisted analysis of one drug.
type PeriodicityRecord struct {
	DrugCode         string            `json:"drug_code" db:"drug_code"`
	PeakCount        int               `json:"peak_count" db:"peak_count"`
	AvgInterval      *float64          `json:"avg_interval" db:"avg_interval"`
	IntervalCV       *float64          `json:"interval_cv" db:"interval_cv"`
	HeightCV         *float64          `json:"height_cv" db:"height_cv"`
	ACFMax           *float64          `json:"acf_max" db:"acf_max"`
	PeriodicityScore *float64          `json:"periodicity_score" db:"periodicity_score"`
	FeatureVector    NullFeatureVector `json:"feature_vector" db:"feature_vector"`
	ComputedAt       time.Time         `json:"computed_at" db:"computed_at"`
}

// NewPeriodicityRecord pairs metrics with the feature vector built from them.
func NewPeriodicityRecord(code string, m periodicity.Metrics, fv periodicity.FeatureVector, at time.Time) PeriodicityRecord {
	return PeriodicityRecord{
		DrugCode:         code,
		PeakCount:        m.PeakCount,
		AvgInterval:      m.AvgInterval,
		IntervalCV:       m.IntervalCV,
		HeightCV:         m.HeightCV,
		ACFMax:           m.ACFMax,
		PeriodicityScore: m.PeriodicityScore,
		FeatureVector:    NullFeatureVector{Vector: fv, Valid: true},
		ComputedAt:       at,
	}
}

// Metrics converts the record back into analyzer output.
func (r PeriodicityRecord) Metrics() periodicity.Metrics {
	return periodicity.Metrics{
		PeakCount:        r.PeakCount,
		AvgInterval:      r.AvgInterval,
		IntervalCV:       r.IntervalCV,
		HeightCV:         r.HeightCV,
		ACFMax:           r.ACFMax,
		PeriodicityScore: r.PeriodicityScore,
	}
}

// Patient is a pharmacy patient who may be linked to drugs.
type Patient struct {
	ID             int64     `json:"patient_id" db:"patient_id"`
	Name           string    `json:"name" db:"name"`
	BirthPrefix    string    `json:"birth_prefix" db:"birth_prefix"`
	Memo           string    `json:"memo" db:"memo"`
	VisitCycleDays int       `json:"visit_cycle_days" db:"visit_cycle_days"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// DrugPatientLink ties a patient to a drug they are dispensed.
type DrugPatientLink struct {
	DrugCode       string    `json:"drug_code" db:"drug_code"`
	PatientID      int64     `json:"patient_id" db:"patient_id"`
	DosagePerVisit int       `json:"dosage_per_visit" db:"dosage_per_visit"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// InventoryItem is the current stock of a drug.
type InventoryItem struct {
	DrugCode     string    `json:"drug_code" db:"drug_code"`
	DrugName     string    `json:"drug_name" db:"drug_name"`
	CurrentStock int       `json:"current_stock" db:"current_stock"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SkipRecord counts how often a suggestion was skipped.
type SkipRecord struct {
	DrugCode      string    `json:"drug_code" db:"drug_code"`
	SkipCount     int       `json:"skip_count" db:"skip_count"`
	LastSkippedAt time.Time `json:"last_skipped_at" db:"last_skipped_at"`
}
