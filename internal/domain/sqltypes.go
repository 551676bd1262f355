package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
)

// UsageSeries is stored as a JSON array in a text column.
type UsageSeries []int

func (s UsageSeries) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]int(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *UsageSeries) Scan(src any) error {
	raw, err := textBytes(src)
	if err != nil {
		return fmt.Errorf("usage series: %w", err)
	}
	if len(raw) == 0 {
		*s = UsageSeries{}
		return nil
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("usage series: %w", err)
	}
	*s = out
	return nil
}

// NullFeatureVector is a feature vector column that may be NULL.
type NullFeatureVector struct {
	Vector periodicity.FeatureVector
	Valid  bool
}

func (v NullFeatureVector) Value() (driver.Value, error) {
	if !v.Valid {
		return nil, nil
	}
	b, err := json.Marshal(v.Vector)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *NullFeatureVector) Scan(src any) error {
	if src == nil {
		*v = NullFeatureVector{}
		return nil
	}
	raw, err := textBytes(src)
	if err != nil {
		return fmt.Errorf("feature vector: %w", err)
	}
	if len(raw) == 0 {
		*v = NullFeatureVector{}
		return nil
	}
	var vec periodicity.FeatureVector
	if err := json.Unmarshal(raw, &vec); err != nil {
		return fmt.Errorf("feature vector: %w", err)
	}
	*v = NullFeatureVector{Vector: vec, Valid: true}
	return nil
}

func (v NullFeatureVector) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Vector)
}

func (v *NullFeatureVector) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = NullFeatureVector{}
		return nil
	}
	if err := json.Unmarshal(data, &v.Vector); err != nil {
		return err
	}
	v.Valid = true
	return nil
}

func textBytes(src any) ([]byte, error) {
	switch t := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	}
	return nil, fmt.Errorf("unsupported column type %T", src)
}
