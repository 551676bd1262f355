// backend-go/internal/repository/periodicity_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb"
	"github.com/jmoiron/sqlx"
)

type PeriodicityRepository interface {
	Upsert(ctx context.Context, rec domain.PeriodicityRecord) error
	Get(ctx context.Context, code string) (*domain.PeriodicityRecord, error)
	List(ctx context.Context) ([]domain.PeriodicityRecord, error)
	ListPeriodic(ctx context.Context, minPeaks int) ([]domain.PeriodicityRecord, error)
	ListNew(ctx context.Context, maxPeaks int) ([]domain.PeriodicityRecord, error)
	FeatureVectors(ctx context.Context, codes []string) (map[string]periodicity.FeatureVector, error)
}

type periodicityRepository struct {
	db *sqldb.DB
}

func NewPeriodicityRepository(db *sqldb.DB) PeriodicityRepository {
	return &periodicityRepository{db: db}
}

const periodicityColumns = `drug_code, peak_count, avg_interval, interval_cv, height_cv, acf_max,
	periodicity_score, feature_vector, computed_at`

func (r *periodicityRepository) Upsert(ctx context.Context, rec domain.PeriodicityRecord) error {
	query := r.db.Rebind(`
		INSERT INTO drug_periodicity (` + periodicityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (drug_code) DO UPDATE SET
			peak_count = excluded.peak_count,
			avg_interval = excluded.avg_interval,
			interval_cv = excluded.interval_cv,
			height_cv = excluded.height_cv,
			acf_max = excluded.acf_max,
			periodicity_score = excluded.periodicity_score,
			feature_vector = excluded.feature_vector,
			computed_at = excluded.computed_at
	`)

	_, err := r.db.ExecContext(ctx, query,
		rec.DrugCode, rec.PeakCount, rec.AvgInterval, rec.IntervalCV, rec.HeightCV,
		rec.ACFMax, rec.PeriodicityScore, rec.FeatureVector, rec.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert periodicity %s: %w", rec.DrugCode, err)
	}
	return nil
}

func (r *periodicityRepository) Get(ctx context.Context, code string) (*domain.PeriodicityRecord, error) {
	var rec domain.PeriodicityRecord
	query := r.db.Rebind(`SELECT ` + periodicityColumns + ` FROM drug_periodicity WHERE drug_code = ?`)
	if err := r.db.GetContext(ctx, &rec, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("periodicity %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting periodicity %s: %w", code, err)
	}
	return &rec, nil
}

func (r *periodicityRepository) List(ctx context.Context) ([]domain.PeriodicityRecord, error) {
	var recs []domain.PeriodicityRecord
	query := `SELECT ` + periodicityColumns + ` FROM drug_periodicity ORDER BY drug_code`
	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("error listing periodicity: %w", err)
	}
	return recs, nil
}

// ListPeriodic returns analysable drugs, highest score first.
func (r *periodicityRepository) ListPeriodic(ctx context.Context, minPeaks int) ([]domain.PeriodicityRecord, error) {
	var recs []domain.PeriodicityRecord
	query := r.db.Rebind(`
		SELECT ` + periodicityColumns + `
		FROM drug_periodicity
		WHERE peak_count >= ? AND periodicity_score IS NOT NULL
		ORDER BY periodicity_score DESC, drug_code
	`)
	if err := r.db.SelectContext(ctx, &recs, query, minPeaks); err != nil {
		return nil, fmt.Errorf("error listing periodic drugs: %w", err)
	}
	return recs, nil
}

// ListNew returns drugs with too few peaks, most peaks first.
func (r *periodicityRepository) ListNew(ctx context.Context, maxPeaks int) ([]domain.PeriodicityRecord, error) {
	var recs []domain.PeriodicityRecord
	query := r.db.Rebind(`
		SELECT ` + periodicityColumns + `
		FROM drug_periodicity
		WHERE peak_count <= ?
		ORDER BY peak_count DESC, drug_code
	`)
	if err := r.db.SelectContext(ctx, &recs, query, maxPeaks); err != nil {
		return nil, fmt.Errorf("error listing new drugs: %w", err)
	}
	return recs, nil
}

func (r *periodicityRepository) FeatureVectors(ctx context.Context, codes []string) (map[string]periodicity.FeatureVector, error) {
	out := make(map[string]periodicity.FeatureVector, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`
		SELECT drug_code, feature_vector
		FROM drug_periodicity
		WHERE drug_code IN (?) AND feature_vector IS NOT NULL
	`, codes)
	if err != nil {
		return nil, fmt.Errorf("build feature vector query: %w", err)
	}

	var rows []struct {
		DrugCode      string                   `db:"drug_code"`
		FeatureVector domain.NullFeatureVector `db:"feature_vector"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("error getting feature vectors: %w", err)
	}

	for _, row := range rows {
		if row.FeatureVector.Valid {
			out[row.DrugCode] = row.FeatureVector.Vector
		}
	}
	return out, nil
}
