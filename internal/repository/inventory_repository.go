// backend-go/internal/repository/inventory_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/repository/sqldb"
)

type InventoryRepository interface {
	Upsert(ctx context.Context, item domain.InventoryItem) error
	Get(ctx context.Context, drugCode string) (*domain.InventoryItem, error)
}

type inventoryRepository struct {
	db *sqldb.DB
}

func NewInventoryRepository(db *sqldb.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Upsert(ctx context.Context, item domain.InventoryItem) error {
	query := r.db.Rebind(`
		INSERT INTO inventory (drug_code, drug_name, current_stock, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (drug_code) DO UPDATE SET
			drug_name = excluded.drug_name,
			current_stock = excluded.current_stock,
			updated_at = excluded.updated_at
	`)
	if _, err := r.db.ExecContext(ctx, query, item.DrugCode, item.DrugName, item.CurrentStock, item.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("upsert inventory %s: %w", item.DrugCode, err)
	}
	return nil
}

func (r *inventoryRepository) Get(ctx context.Context, drugCode string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	query := r.db.Rebind(`SELECT drug_code, drug_name, current_stock, updated_at FROM inventory WHERE drug_code = ?`)
	if err := r.db.GetContext(ctx, &item, query, drugCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inventory %s: %w", drugCode, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting inventory %s: %w", drugCode, err)
	}
	return &item, nil
}
