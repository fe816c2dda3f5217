package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

type gatewayLogRepository struct {
	db *sql.DB
}

// NewGatewayLogRepository создаёт PostgreSQL-реализацию GatewayLogRepository.
func NewGatewayLogRepository(store *Store) domain.GatewayLogRepository {
	return &gatewayLogRepository{db: store.DB()}
}

func (r *gatewayLogRepository) Append(entry domain.GatewayLogEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webpay_log (
			pago_id, operacion, request_data, response_data,
			codigo_respuesta, mensaje, success
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		entry.PaymentID, string(entry.Operation),
		nullJSON(entry.RequestData), nullJSON(entry.ResponseData),
		entry.ResponseCode, entry.Message, entry.Success,
	)
	if err != nil {
		return fmt.Errorf("insert gateway log entry: %w", err)
	}

	return nil
}

func (r *gatewayLogRepository) ListByPayment(paymentID int64) ([]domain.GatewayLogEntry, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pago_id, operacion, request_data, response_data,
		       codigo_respuesta, mensaje, success, created_at
		FROM webpay_log
		WHERE pago_id = $1
		ORDER BY created_at ASC, id ASC
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list gateway log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.GatewayLogEntry, 0)
	for rows.Next() {
		var (
			entry     domain.GatewayLogEntry
			operation string
			request   []byte
			response  []byte
		)
		if err := rows.Scan(
			&entry.ID, &entry.PaymentID, &operation, &request, &response,
			&entry.ResponseCode, &entry.Message, &entry.Success, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan gateway log entry: %w", err)
		}
		entry.Operation = domain.GatewayOperation(operation)
		entry.RequestData = request
		entry.ResponseData = response
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gateway log entries: %w", err)
	}

	return entries, nil
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

var _ domain.GatewayLogRepository = (*gatewayLogRepository)(nil)
