// backend-go/internal/repository/patient_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/buffer"
	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb"
	"github.com/andresuchdata/rxstock/backend-go/internal/suggestion"
	"github.com/jmoiron/sqlx"
)

type PatientRepository interface {
	Upsert(ctx context.Context, p domain.Patient) error
	Get(ctx context.Context, id int64) (*domain.Patient, error)
	List(ctx context.Context) ([]domain.Patient, error)
	Delete(ctx context.Context, id int64) error

	// Link ties a patient to a drug, replacing the dosage when already linked.
	Link(ctx context.Context, drugCode string, patientID int64, dosage int) error
	Unlink(ctx context.Context, drugCode string, patientID int64) error
	VisitProfiles(ctx context.Context, drugCode string) ([]buffer.PatientProfile, error)
	DrugsWithPatients(ctx context.Context) ([]string, error)
	RegisteredCounts(ctx context.Context) (map[string]int, error)
	PatientCountForDrug(ctx context.Context, drugCode string) (int, error)
	LinkCounts(ctx context.Context) (suggestion.LinkCounts, error)
}

type patientRepository struct {
	db *sqldb.DB
}

func NewPatientRepository(db *sqldb.DB) PatientRepository {
	return &patientRepository{db: db}
}

const patientColumns = `patient_id, name, birth_prefix, memo, visit_cycle_days, created_at, updated_at`

func (r *patientRepository) Upsert(ctx context.Context, p domain.Patient) error {
	now := time.Now().UTC()
	query := r.db.Rebind(`
		INSERT INTO patients (` + patientColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (patient_id) DO UPDATE SET
			name = excluded.name,
			birth_prefix = excluded.birth_prefix,
			memo = excluded.memo,
			visit_cycle_days = excluded.visit_cycle_days,
			updated_at = excluded.updated_at
	`)

	if _, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.BirthPrefix, p.Memo, p.VisitCycleDays, now, now); err != nil {
		return fmt.Errorf("upsert patient %d: %w", p.ID, err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id int64) (*domain.Patient, error) {
	var p domain.Patient
	query := r.db.Rebind(`SELECT ` + patientColumns + ` FROM patients WHERE patient_id = ?`)
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("patient %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting patient %d: %w", id, err)
	}
	return &p, nil
}

func (r *patientRepository) List(ctx context.Context) ([]domain.Patient, error) {
	var patients []domain.Patient
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY name, patient_id`
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, fmt.Errorf("error listing patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM drug_patient_map WHERE patient_id = ?`), id); err != nil {
			return fmt.Errorf("delete links of patient %d: %w", id, err)
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM patients WHERE patient_id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete patient %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("patient %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (r *patientRepository) Link(ctx context.Context, drugCode string, patientID int64, dosage int) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		err := tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM patients WHERE patient_id = ?`), patientID)
		if err != nil {
			return fmt.Errorf("check patient %d: %w", patientID, err)
		}
		if exists == 0 {
			return fmt.Errorf("patient %d: %w", patientID, ErrNotFound)
		}

		_, err = tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO drug_patient_map (drug_code, patient_id, dosage_per_visit, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (drug_code, patient_id) DO UPDATE SET
				dosage_per_visit = excluded.dosage_per_visit
		`), drugCode, patientID, dosage, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("link %s to patient %d: %w", drugCode, patientID, err)
		}
		return nil
	})
}

func (r *patientRepository) Unlink(ctx context.Context, drugCode string, patientID int64) error {
	res, err := r.db.ExecContext(ctx,
		r.db.Rebind(`DELETE FROM drug_patient_map WHERE drug_code = ? AND patient_id = ?`), drugCode, patientID)
	if err != nil {
		return fmt.Errorf("unlink %s from patient %d: %w", drugCode, patientID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("link %s/%d: %w", drugCode, patientID, ErrNotFound)
	}
	return nil
}

// VisitProfiles returns the linked patients of a drug in link order.
func (r *patientRepository) VisitProfiles(ctx context.Context, drugCode string) ([]buffer.PatientProfile, error) {
	var rows []struct {
		PatientID      int64  `db:"patient_id"`
		Name           string `db:"name"`
		VisitCycleDays int    `db:"visit_cycle_days"`
		DosagePerVisit int    `db:"dosage_per_visit"`
	}
	query := r.db.Rebind(`
		SELECT p.patient_id, p.name, p.visit_cycle_days, m.dosage_per_visit
		FROM drug_patient_map m
		JOIN patients p ON p.patient_id = m.patient_id
		WHERE m.drug_code = ?
		ORDER BY m.created_at, p.patient_id
	`)
	if err := r.db.SelectContext(ctx, &rows, query, drugCode); err != nil {
		return nil, fmt.Errorf("error getting visit profiles for %s: %w", drugCode, err)
	}

	profiles := make([]buffer.PatientProfile, len(rows))
	for i, row := range rows {
		profiles[i] = buffer.PatientProfile{
			PatientID:      row.PatientID,
			Name:           row.Name,
			VisitCycleDays: row.VisitCycleDays,
			DosagePerVisit: row.DosagePerVisit,
		}
	}
	return profiles, nil
}

func (r *patientRepository) DrugsWithPatients(ctx context.Context) ([]string, error) {
	var codes []string
	query := `SELECT DISTINCT drug_code FROM drug_patient_map ORDER BY drug_code`
	if err := r.db.SelectContext(ctx, &codes, query); err != nil {
		return nil, fmt.Errorf("error listing linked drugs: %w", err)
	}
	return codes, nil
}

func (r *patientRepository) RegisteredCounts(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		DrugCode string `db:"drug_code"`
		Count    int    `db:"patient_count"`
	}
	query := `SELECT drug_code, COUNT(*) AS patient_count FROM drug_patient_map GROUP BY drug_code`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("error counting linked patients: %w", err)
	}

	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.DrugCode] = row.Count
	}
	return out, nil
}

func (r *patientRepository) PatientCountForDrug(ctx context.Context, drugCode string) (int, error) {
	var n int
	query := r.db.Rebind(`SELECT COUNT(*) FROM drug_patient_map WHERE drug_code = ?`)
	if err := r.db.GetContext(ctx, &n, query, drugCode); err != nil {
		return 0, fmt.Errorf("error counting patients for %s: %w", drugCode, err)
	}
	return n, nil
}

func (r *patientRepository) LinkCounts(ctx context.Context) (suggestion.LinkCounts, error) {
	var counts struct {
		Patients          int `db:"patients"`
		PatientsWithDrugs int `db:"patients_with_drugs"`
		DrugsWithPatients int `db:"drugs_with_patients"`
	}
	query := `
		SELECT
			(SELECT COUNT(*) FROM patients) AS patients,
			(SELECT COUNT(DISTINCT patient_id) FROM drug_patient_map) AS patients_with_drugs,
			(SELECT COUNT(DISTINCT drug_code) FROM drug_patient_map) AS drugs_with_patients
	`
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return suggestion.LinkCounts{}, fmt.Errorf("error counting links: %w", err)
	}
	return suggestion.LinkCounts{
		Patients:          counts.Patients,
		PatientsWithDrugs: counts.PatientsWithDrugs,
		DrugsWithPatients: counts.DrugsWithPatients,
	}, nil
}
