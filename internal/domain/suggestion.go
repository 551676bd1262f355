package domain

import (
	"github.com/andresuchdata/rxstock/backend-go/internal/suggestion"
)

// NeighbourDrug is a linked drug close to a suggested one.
type NeighbourDrug struct {
	DrugCode    string   `json:"drug_code"`
	DrugName    string   `json:"drug_name"`
	AvgInterval *float64 `json:"avg_interval"`
	Distance    float64  `json:"distance"`
}

// SuggestionDetail is everything shown when proposing a drug for linking.
type SuggestionDetail struct {
	DrugCode           string          `json:"drug_code"`
	DrugName           string          `json:"drug_name"`
	Company            string          `json:"company"`
	DrugType           string          `json:"drug_type"`
	AvgInterval        *float64        `json:"avg_interval"`
	IntervalCV         *float64        `json:"interval_cv"`
	HeightCV           *float64        `json:"height_cv"`
	PeriodicityScore   *float64        `json:"periodicity_score"`
	AvgPeakHeight      float64         `json:"avg_peak_height"`
	ActiveMonths       int             `json:"active_months"`
	TotalMonths        int             `json:"total_months"`
	MonthlyAvg         float64         `json:"monthly_avg"`
	CurrentStock       int             `json:"current_stock"`
	MonthlyUsage       []int           `json:"monthly_usage"`
	NearestDrugs       []NeighbourDrug `json:"nearest_k_drugs"`
	Similarity         float64         `json:"similarity"`
	AdjustedSimilarity float64         `json:"adjusted_similarity"`
	KNNSimilarity      float64         `json:"knn_similarity"`
	SkipCount          int             `json:"skip_count"`
	RegisteredCount    int             `json:"registered_count"`
	RemainingCount     int             `json:"remaining_count"`
}

// NextSuggestion is the response of a "next suggestion" request. Suggestion
// is nil when Status is inactive or empty.
type NextSuggestion struct {
	Status     suggestion.Status     `json:"status"`
	Activation suggestion.Activation `json:"activation"`
	Suggestion *SuggestionDetail     `json:"suggestion"`
}

// SuggestionStats summarises progress through the candidate pool.
type SuggestionStats struct {
	TotalPeriodic     int `json:"total_periodic"`
	AlreadyRegistered int `json:"already_registered"`
	Pending           int `json:"pending"`
	Skipped           int `json:"skipped"`
	NewDrugs          int `json:"new_drugs"`
}

// NewDrug is a drug with too few usage peaks to analyse.
type NewDrug struct {
	DrugCode         string   `json:"drug_code"`
	DrugName         string   `json:"drug_name"`
	Company          string   `json:"company"`
	DrugType         string   `json:"drug_type"`
	PeakCount        int      `json:"peak_count"`
	PeriodicityScore *float64 `json:"periodicity_score"`
}

// SkippedDrug is a drug the user skipped at least once.
type SkippedDrug struct {
	DrugCode  string `json:"drug_code"`
	DrugName  string `json:"drug_name"`
	Company   string `json:"company"`
	SkipCount int    `json:"skip_count"`
}

// RecalculateSummary reports a bulk periodicity recompute.
type RecalculateSummary struct {
	Total      int `json:"total"`
	Calculated int `json:"calculated"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}
