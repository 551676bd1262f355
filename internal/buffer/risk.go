package buffer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Risk level keys shipped by default.
const (
	RiskRelaxed  = "relaxed"
	RiskNormal   = "normal"
	RiskSafe     = "safe"
	RiskVerySafe = "very_safe"

	// DefaultRiskLevel is used when a requested level is unknown.
	DefaultRiskLevel = RiskSafe

	customRiskKey = "custom"
)

// RiskLevel is the maximum accepted probability that simultaneous visits
// exceed the stocked buffer.
type RiskLevel struct {
	Key         string  `json:"key"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Threshold   float64 `json:"threshold"`
}

// ThresholdPercent is the threshold expressed in percent.
func (r RiskLevel) ThresholdPercent() float64 {
	return r.Threshold * 100
}

var (
	riskLevelsMu sync.RWMutex
	riskLevels   = map[string]RiskLevel{
		RiskRelaxed: {
			Key:         RiskRelaxed,
			Name:        "Relaxed",
			Description: "Covers only common simultaneous visits",
			Threshold:   0.03,
		},
		RiskNormal: {
			Key:         RiskNormal,
			Name:        "Normal",
			Description: "Covers typical simultaneous visits",
			Threshold:   0.003,
		},
		RiskSafe: {
			Key:         RiskSafe,
			Name:        "Safe",
			Description: "Covers rare simultaneous visits",
			Threshold:   0.0003,
		},
		RiskVerySafe: {
			Key:         RiskVerySafe,
			Name:        "Very safe",
			Description: "Covers very rare simultaneous visits",
			Threshold:   0.00003,
		},
	}
)

// ResolveRiskLevel returns the named level, or the safe level when the name
// is unknown.
func ResolveRiskLevel(key string) RiskLevel {
	riskLevelsMu.RLock()
	defer riskLevelsMu.RUnlock()

	if level, ok := riskLevels[strings.ToLower(strings.TrimSpace(key))]; ok {
		return level
	}
	return riskLevels[DefaultRiskLevel]
}

// LookupRiskLevel returns the named level and whether it exists.
func LookupRiskLevel(key string) (RiskLevel, bool) {
	riskLevelsMu.RLock()
	defer riskLevelsMu.RUnlock()

	level, ok := riskLevels[strings.ToLower(strings.TrimSpace(key))]
	return level, ok
}

// CustomRiskLevel builds a level from an explicit threshold in (0,1).
func CustomRiskLevel(threshold float64) (RiskLevel, error) {
	if !(threshold > 0 && threshold < 1) {
		return RiskLevel{}, fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return RiskLevel{
		Key:         customRiskKey,
		Name:        "Custom",
		Description: fmt.Sprintf("Accepts a %s shortage probability", formatPercent(threshold)),
		Threshold:   threshold,
	}, nil
}

// RegisterRiskLevel adds or replaces a named level.
func RegisterRiskLevel(level RiskLevel) error {
	key := strings.ToLower(strings.TrimSpace(level.Key))
	if key == "" {
		return fmt.Errorf("risk level key must be provided")
	}
	if !(level.Threshold > 0 && level.Threshold < 1) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, level.Threshold)
	}
	level.Key = key

	riskLevelsMu.Lock()
	defer riskLevelsMu.Unlock()
	riskLevels[key] = level
	return nil
}

// RiskLevels returns every registered level, loosest first.
func RiskLevels() []RiskLevel {
	riskLevelsMu.RLock()
	levels := make([]RiskLevel, 0, len(riskLevels))
	for _, level := range riskLevels {
		levels = append(levels, level)
	}
	riskLevelsMu.RUnlock()

	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Threshold > levels[j].Threshold
	})
	return levels
}
