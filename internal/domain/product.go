package domain

import "time"

// Product описывает товар каталога в объёме, нужном платёжному ядру:
// живая цена для пересчёта суммы и остаток для контроля стока.
type Product struct {
	ID          int64
	SKU         string
	Description string
	Category    string
	Price       float64
	Units       int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// LowStockThreshold — порог, ниже которого остаток считается низким.
const LowStockThreshold = 5

// LowStock сообщает, пора ли пополнять остаток.
func (p *Product) LowStock() bool {
	return p.Units <= LowStockThreshold
}
