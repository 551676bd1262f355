// backend-go/internal/repository/timeseries_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb"
	"github.com/jmoiron/sqlx"
)

type TimeseriesRepository interface {
	Upsert(ctx context.Context, drugs []domain.Drug) error
	Get(ctx context.Context, code string) (*domain.Drug, error)
	List(ctx context.Context) ([]domain.Drug, error)
	Codes(ctx context.Context) ([]string, error)
}

type timeseriesRepository struct {
	db *sqldb.DB
}

func NewTimeseriesRepository(db *sqldb.DB) TimeseriesRepository {
	return &timeseriesRepository{db: db}
}

const drugColumns = `drug_code, drug_name, company, drug_type, monthly_usage, moving_avg_12m, updated_at`

func (r *timeseriesRepository) Upsert(ctx context.Context, drugs []domain.Drug) error {
	if len(drugs) == 0 {
		return nil
	}

	query := r.db.Rebind(`
		INSERT INTO drug_timeseries (` + drugColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (drug_code) DO UPDATE SET
			drug_name = excluded.drug_name,
			company = excluded.company,
			drug_type = excluded.drug_type,
			monthly_usage = excluded.monthly_usage,
			moving_avg_12m = excluded.moving_avg_12m,
			updated_at = excluded.updated_at
	`)

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare drug upsert: %w", err)
		}
		defer stmt.Close()

		for _, d := range drugs {
			if _, err := stmt.ExecContext(ctx, d.Code, d.Name, d.Company, d.DrugType,
				d.MonthlyUsage, d.MovingAvg12M, d.UpdatedAt.UTC()); err != nil {
				return fmt.Errorf("upsert drug %s: %w", d.Code, err)
			}
		}
		return nil
	})
}

func (r *timeseriesRepository) Get(ctx context.Context, code string) (*domain.Drug, error) {
	var d domain.Drug
	query := r.db.Rebind(`SELECT ` + drugColumns + ` FROM drug_timeseries WHERE drug_code = ?`)
	if err := r.db.GetContext(ctx, &d, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("drug %s: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting drug %s: %w", code, err)
	}
	return &d, nil
}

func (r *timeseriesRepository) List(ctx context.Context) ([]domain.Drug, error) {
	var drugs []domain.Drug
	query := `SELECT ` + drugColumns + ` FROM drug_timeseries ORDER BY drug_code`
	if err := r.db.SelectContext(ctx, &drugs, query); err != nil {
		return nil, fmt.Errorf("error listing drugs: %w", err)
	}
	return drugs, nil
}

func (r *timeseriesRepository) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, `SELECT drug_code FROM drug_timeseries ORDER BY drug_code`); err != nil {
		return nil, fmt.Errorf("error listing drug codes: %w", err)
	}
	return codes, nil
}
