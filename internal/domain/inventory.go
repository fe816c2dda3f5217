package domain

import "time"

// MovementType задаёт причину изменения остатка.
type MovementType string

const (
	// MovementSale — списание по подтверждённой оплате.
	MovementSale MovementType = "sale"
	// MovementManualAdjustment — ручная корректировка остатка.
	MovementManualAdjustment MovementType = "manual_adjustment"
	// MovementBatchUpdate — массовое обновление остатков.
	MovementBatchUpdate MovementType = "batch_update"
)

// InventoryMovement фиксирует одно изменение остатка. Журнал append-only:
// записи никогда не изменяются и не удаляются.
type InventoryMovement struct {
	ID          int64
	ProductID   int64
	StockBefore int
	StockAfter  int
	Operation   MovementType
	Reason      string
	CreatedAt   time.Time
}

// Validate проверяет, корректно ли заполнены ключевые поля движения.
func (m *InventoryMovement) Validate() []error {
	var errs []error

	if m.ProductID <= 0 {
		errs = append(errs, ErrProductNotFound)
	}
	if m.StockBefore < 0 || m.StockAfter < 0 {
		errs = append(errs, ErrItemQtyInvalid)
	}
	return errs
}
