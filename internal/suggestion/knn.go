package suggestion

import (
	"math"
	"sort"

	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
)

// DefaultNeighbours is how many linked drugs are shown next to a suggestion.
const DefaultNeighbours = 3

// FeatureWeights weight each FeatureVector component in WeightedDistance.
// Visit interval matters most, then regularity.
var FeatureWeights = periodicity.FeatureVector{2.0, 1.5, 1.0, 0.8, 0.5, 0.5}

// Reference is a linked drug a candidate can be compared with.
type Reference struct {
	DrugCode string
	Vector   periodicity.FeatureVector
}

// Neighbour is a reference drug and its distance to the target.
type Neighbour struct {
	DrugCode string  `json:"drug_code"`
	Distance float64 `json:"distance"`
}

// WeightedDistance is the euclidean distance with each squared component
// difference scaled by FeatureWeights.
func WeightedDistance(a, b periodicity.FeatureVector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += FeatureWeights[i] * d * d
	}
	return math.Sqrt(sum)
}

// Nearest returns up to k references closest to target, nearest first.
func Nearest(target periodicity.FeatureVector, refs []Reference, k int) []Neighbour {
	if k <= 0 || len(refs) == 0 {
		return []Neighbour{}
	}

	out := make([]Neighbour, len(refs))
	for i, ref := range refs {
		out[i] = Neighbour{DrugCode: ref.DrugCode, Distance: WeightedDistance(target, ref.Vector)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})

	if k < len(out) {
		out = out[:k]
	}
	return out
}

// KNNSimilarity maps the mean distance to the k nearest references into
// (0,1]; 0 when there are no references.
func KNNSimilarity(target periodicity.FeatureVector, refs []Reference, k int) float64 {
	nearest := Nearest(target, refs, k)
	if len(nearest) == 0 {
		return 0
	}

	var sum float64
	for _, n := range nearest {
		sum += n.Distance
	}
	return 1 / (1 + sum/float64(len(nearest)))
}
