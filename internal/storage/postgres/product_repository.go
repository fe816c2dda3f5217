package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

const productColumns = `
	id, sku, descripcion, categoria, precio, unidades, activo, created_at, updated_at
`

func (r *productRepository) Get(id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.queryOne(ctx, `
		SELECT `+productColumns+`
		FROM productos
		WHERE id = $1
	`, id)
}

func (r *productRepository) GetActive(id int64) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.queryOne(ctx, `
		SELECT `+productColumns+`
		FROM productos
		WHERE id = $1 AND activo = TRUE
	`, id)
}

func (r *productRepository) SetStock(id int64, units int) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE productos
		SET unidades = $1,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING `+productColumns,
		units, id,
	)

	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("set product stock: %w", err)
	}

	return product, nil
}

func (r *productRepository) queryOne(ctx context.Context, query string, args ...any) (domain.Product, error) {
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return product, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var product domain.Product
	if err := row.Scan(
		&product.ID, &product.SKU, &product.Description, &product.Category,
		&product.Price, &product.Units, &product.Active,
		&product.CreatedAt, &product.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}

	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
