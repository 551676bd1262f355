// backend-go/internal/repository/skip_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb"
	"github.com/jmoiron/sqlx"
)

// SkipRepository stores how often each suggestion was skipped.
type SkipRepository interface {
	// Add increments the skip count and returns the new value.
	Add(ctx context.Context, drugCode string) (int, error)
	Reset(ctx context.Context, drugCode string) error
	Get(ctx context.Context, drugCode string) (int, error)
	All(ctx context.Context) (map[string]int, error)
	List(ctx context.Context) ([]domain.SkipRecord, error)
	Clear(ctx context.Context) (int64, error)
}

type skipRepository struct {
	db *sqldb.DB
}

func NewSkipRepository(db *sqldb.DB) SkipRepository {
	return &skipRepository{db: db}
}

func (r *skipRepository) Add(ctx context.Context, drugCode string) (int, error) {
	var count int
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO suggestion_skips (drug_code, skip_count, last_skipped_at)
			VALUES (?, 1, ?)
			ON CONFLICT (drug_code) DO UPDATE SET
				skip_count = suggestion_skips.skip_count + 1,
				last_skipped_at = excluded.last_skipped_at
		`), drugCode, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("add skip %s: %w", drugCode, err)
		}

		return tx.GetContext(ctx, &count,
			tx.Rebind(`SELECT skip_count FROM suggestion_skips WHERE drug_code = ?`), drugCode)
	})
	return count, err
}

func (r *skipRepository) Reset(ctx context.Context, drugCode string) error {
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM suggestion_skips WHERE drug_code = ?`), drugCode); err != nil {
		return fmt.Errorf("reset skip %s: %w", drugCode, err)
	}
	return nil
}

func (r *skipRepository) Get(ctx context.Context, drugCode string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT skip_count FROM suggestion_skips WHERE drug_code = ?`), drugCode)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("error getting skip count %s: %w", drugCode, err)
	}
	return n, nil
}

func (r *skipRepository) All(ctx context.Context) (map[string]int, error) {
	records, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(records))
	for _, rec := range records {
		out[rec.DrugCode] = rec.SkipCount
	}
	return out, nil
}

// List returns skipped drugs, least skipped first.
func (r *skipRepository) List(ctx context.Context) ([]domain.SkipRecord, error) {
	var records []domain.SkipRecord
	query := `
		SELECT drug_code, skip_count, last_skipped_at
		FROM suggestion_skips
		WHERE skip_count > 0
		ORDER BY skip_count, drug_code
	`
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("error listing skips: %w", err)
	}
	return records, nil
}

func (r *skipRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM suggestion_skips`)
	if err != nil {
		return 0, fmt.Errorf("clear skips: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
