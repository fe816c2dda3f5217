package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

type movementRepository struct {
	db *sql.DB
}

// NewMovementRepository создаёт PostgreSQL-реализацию MovementRepository.
func NewMovementRepository(store *Store) domain.MovementRepository {
	return &movementRepository{db: store.DB()}
}

func (r *movementRepository) Append(movement domain.InventoryMovement) (domain.InventoryMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO movimientos_inventario (
			producto_id, stock_anterior, stock_nuevo, tipo_operacion, motivo
		) VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at
	`,
		movement.ProductID, movement.StockBefore, movement.StockAfter,
		string(movement.Operation), movement.Reason,
	).Scan(&movement.ID, &movement.CreatedAt)
	if err != nil {
		return domain.InventoryMovement{}, fmt.Errorf("insert inventory movement: %w", err)
	}

	return movement, nil
}

func (r *movementRepository) ListByProduct(productID int64, limit int) ([]domain.InventoryMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
		SELECT id, producto_id, stock_anterior, stock_nuevo, tipo_operacion, motivo, created_at
		FROM movimientos_inventario
		WHERE producto_id = $1
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", productID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, productID)
	}
	if err != nil {
		return nil, fmt.Errorf("list inventory movements: %w", err)
	}
	defer rows.Close()

	movements := make([]domain.InventoryMovement, 0)
	for rows.Next() {
		var (
			movement  domain.InventoryMovement
			operation string
		)
		if err := rows.Scan(
			&movement.ID, &movement.ProductID, &movement.StockBefore,
			&movement.StockAfter, &operation, &movement.Reason, &movement.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan inventory movement: %w", err)
		}
		movement.Operation = domain.MovementType(operation)
		movements = append(movements, movement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inventory movements: %w", err)
	}

	return movements, nil
}

var _ domain.MovementRepository = (*movementRepository)(nil)
