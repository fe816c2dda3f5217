package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

const (
	opTimeout = 5 * time.Second
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

const paymentColumns = `
	id, orden_compra, cliente_id, session_id, monto, moneda, metodo_pago,
	email_comprador, telefono_comprador, descripcion, token_webpay, url_webpay,
	estado, transaction_date, authorization_code, payment_type_code,
	response_code, installments_number, created_at, updated_at
`

func (r *paymentRepository) Create(payment domain.Payment) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	if payment.State == "" {
		payment.State = domain.PaymentStatePending
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO pagos (
			orden_compra, cliente_id, session_id, monto, moneda, metodo_pago,
			email_comprador, telefono_comprador, descripcion, estado, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`,
		payment.OrderRef, nullInt64(payment.CustomerID), payment.SessionID,
		payment.Amount, payment.Currency, payment.Method,
		payment.BuyerEmail, payment.BuyerPhone, payment.Description,
		string(payment.State), payment.CreatedAt, payment.UpdatedAt,
	).Scan(&payment.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Payment{}, fmt.Errorf("insert payment %s: duplicate order ref: %w", payment.OrderRef, err)
		}
		return domain.Payment{}, fmt.Errorf("insert payment: %w", err)
	}

	for i := range payment.Items {
		item := &payment.Items[i]
		item.PaymentID = payment.ID
		if err = tx.QueryRowContext(ctx, `
			INSERT INTO pago_items (
				pago_id, producto_id, cantidad, precio_unitario, subtotal
			) VALUES ($1,$2,$3,$4,$5)
			RETURNING id
		`,
			item.PaymentID, item.ProductID, item.Quantity, item.UnitPrice, item.Subtotal,
		).Scan(&item.ID); err != nil {
			return domain.Payment{}, fmt.Errorf("insert payment item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Payment{}, fmt.Errorf("commit create payment: %w", err)
	}

	return payment, nil
}

func (r *paymentRepository) Get(id int64) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByField(ctx, "id = $1", id)
}

func (r *paymentRepository) GetByToken(token string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByField(ctx, "token_webpay = $1", token)
}

func (r *paymentRepository) GetByOrderRef(ref string) (domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return r.getByField(ctx, "orden_compra = $1", ref)
}

func (r *paymentRepository) getByField(ctx context.Context, where string, arg any) (domain.Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM pagos
		WHERE `+where,
		arg,
	)

	payment, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("select payment: %w", err)
	}

	items, err := r.loadItems(ctx, payment.ID)
	if err != nil {
		return domain.Payment{}, err
	}
	payment.Items = items

	return payment, nil
}

func (r *paymentRepository) AttachGateway(id int64, token, redirectURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE pagos
		SET token_webpay = $1,
		    url_webpay = $2,
		    updated_at = NOW()
		WHERE id = $3
	`, token, redirectURL, id)
	if err != nil {
		return fmt.Errorf("attach gateway token: %w", err)
	}

	return requireAffected(res)
}

func (r *paymentRepository) SetState(id int64, state domain.PaymentState) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE pagos
		SET estado = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, string(state), id)
	if err != nil {
		return fmt.Errorf("set payment state: %w", err)
	}

	return requireAffected(res)
}

// Finalize переводит платёж в терминальное состояние условным обновлением.
// Условие WHERE estado IN ('pending','processing') делает базу единственным
// арбитром: второй конкурентный финализатор получает ErrPaymentAlreadyFinal.
func (r *paymentRepository) Finalize(id int64, state domain.PaymentState, result *domain.GatewayResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = claimTerminal(ctx, tx, id, state, result); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize payment: %w", err)
	}

	return nil
}

// Approve применяет одной транзакцией: условный переход в approved, поля
// результата шлюза, списание остатков по позициям и записи движений склада.
// Остаток блокируется через SELECT ... FOR UPDATE и не опускается ниже нуля.
func (r *paymentRepository) Approve(id int64, result domain.GatewayResult, movementReason string) ([]domain.InventoryMovement, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = claimTerminal(ctx, tx, id, domain.PaymentStateApproved, &result); err != nil {
		return nil, err
	}

	items, err := loadItemsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	movements := make([]domain.InventoryMovement, 0, len(items))
	for _, item := range items {
		var before int
		err = tx.QueryRowContext(ctx, `
			SELECT unidades FROM productos WHERE id = $1 FOR UPDATE
		`, item.ProductID).Scan(&before)
		if errors.Is(err, sql.ErrNoRows) {
			// Товар мог быть удалён из каталога после создания платежа;
			// оплата уже подтверждена шлюзом, поэтому позицию пропускаем.
			err = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lock product %d stock: %w", item.ProductID, err)
		}

		after := before - item.Quantity
		if after < 0 {
			after = 0
		}

		if _, err = tx.ExecContext(ctx, `
			UPDATE productos SET unidades = $1, updated_at = NOW() WHERE id = $2
		`, after, item.ProductID); err != nil {
			return nil, fmt.Errorf("decrement product %d stock: %w", item.ProductID, err)
		}

		movement := domain.InventoryMovement{
			ProductID:   item.ProductID,
			StockBefore: before,
			StockAfter:  after,
			Operation:   domain.MovementSale,
			Reason:      movementReason,
		}
		if err = tx.QueryRowContext(ctx, `
			INSERT INTO movimientos_inventario (
				producto_id, stock_anterior, stock_nuevo, tipo_operacion, motivo
			) VALUES ($1,$2,$3,$4,$5)
			RETURNING id, created_at
		`,
			movement.ProductID, movement.StockBefore, movement.StockAfter,
			string(movement.Operation), movement.Reason,
		).Scan(&movement.ID, &movement.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert inventory movement: %w", err)
		}
		movements = append(movements, movement)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve payment: %w", err)
	}

	return movements, nil
}

// ExpireStale переводит зависшие платежи в expired одним условным UPDATE.
// Условие на estado повторяет claim из Finalize, поэтому гонка с параллельным
// подтверждением исключена на уровне базы.
func (r *paymentRepository) ExpireStale(olderThan time.Time, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		UPDATE pagos
		SET estado = $1,
		    updated_at = NOW()
		WHERE id IN (
			SELECT id FROM pagos
			WHERE estado IN ('pending', 'processing')
			  AND updated_at < $2
			ORDER BY id ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+paymentColumns,
		string(domain.PaymentStateExpired), olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("expire stale payments: %w", err)
	}
	defer rows.Close()

	expired := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired payment: %w", err)
		}
		expired = append(expired, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired payments: %w", err)
	}

	return expired, nil
}

func claimTerminal(ctx context.Context, tx *sql.Tx, id int64, state domain.PaymentState, result *domain.GatewayResult) error {
	var (
		txDate       sql.NullTime
		authCode     sql.NullString
		typeCode     sql.NullString
		responseCode sql.NullInt64
		installments sql.NullInt64
	)
	if result != nil {
		if !result.TransactionDate.IsZero() {
			txDate = sql.NullTime{Time: result.TransactionDate, Valid: true}
		}
		if result.AuthorizationCode != "" {
			authCode = sql.NullString{String: result.AuthorizationCode, Valid: true}
		}
		if result.PaymentTypeCode != "" {
			typeCode = sql.NullString{String: result.PaymentTypeCode, Valid: true}
		}
		responseCode = sql.NullInt64{Int64: int64(result.ResponseCode), Valid: true}
		installments = sql.NullInt64{Int64: int64(result.Installments), Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE pagos
		SET estado = $1,
		    transaction_date = COALESCE($2, transaction_date),
		    authorization_code = COALESCE($3, authorization_code),
		    payment_type_code = COALESCE($4, payment_type_code),
		    response_code = COALESCE($5, response_code),
		    installments_number = COALESCE($6, installments_number),
		    updated_at = NOW()
		WHERE id = $7
		  AND estado IN ('pending', 'processing')
	`,
		string(state), txDate, authCode, typeCode, responseCode, installments, id,
	)
	if err != nil {
		return fmt.Errorf("claim terminal state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := paymentExistsTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrPaymentNotFound
		}
		return domain.ErrPaymentAlreadyFinal
	}

	return nil
}

func (r *paymentRepository) loadItems(ctx context.Context, paymentID int64) ([]domain.PaymentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, pago_id, producto_id, cantidad, precio_unitario, subtotal
		FROM pago_items
		WHERE pago_id = $1
		ORDER BY id ASC
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func loadItemsTx(ctx context.Context, tx *sql.Tx, paymentID int64) ([]domain.PaymentItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, pago_id, producto_id, cantidad, precio_unitario, subtotal
		FROM pago_items
		WHERE pago_id = $1
		ORDER BY id ASC
	`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]domain.PaymentItem, error) {
	items := make([]domain.PaymentItem, 0)
	for rows.Next() {
		var item domain.PaymentItem
		if err := rows.Scan(
			&item.ID, &item.PaymentID, &item.ProductID,
			&item.Quantity, &item.UnitPrice, &item.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("scan payment item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment items: %w", err)
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (domain.Payment, error) {
	var (
		payment      domain.Payment
		state        string
		customerID   sql.NullInt64
		token        sql.NullString
		redirectURL  sql.NullString
		txDate       sql.NullTime
		authCode     sql.NullString
		typeCode     sql.NullString
		responseCode sql.NullInt64
		installments sql.NullInt64
	)

	if err := row.Scan(
		&payment.ID, &payment.OrderRef, &customerID, &payment.SessionID,
		&payment.Amount, &payment.Currency, &payment.Method,
		&payment.BuyerEmail, &payment.BuyerPhone, &payment.Description,
		&token, &redirectURL, &state,
		&txDate, &authCode, &typeCode, &responseCode, &installments,
		&payment.CreatedAt, &payment.UpdatedAt,
	); err != nil {
		return domain.Payment{}, err
	}

	payment.State = domain.PaymentState(state)
	payment.CustomerID = customerID.Int64
	payment.Token = token.String
	payment.RedirectURL = redirectURL.String

	// Результат шлюза присутствует только после попытки commit.
	if responseCode.Valid {
		payment.Result = &domain.GatewayResult{
			TransactionDate:   txDate.Time,
			AuthorizationCode: authCode.String,
			PaymentTypeCode:   typeCode.String,
			ResponseCode:      int(responseCode.Int64),
			Installments:      int(installments.Int64),
		}
	}

	return payment, nil
}

func paymentExistsTx(ctx context.Context, tx *sql.Tx, id int64) (bool, error) {
	var found int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM pagos WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check payment exists: %w", err)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
