package app

import (
	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// newTestPayment создаёт платёж для использования в тестах пакета.
func newTestPayment(productID int64) domain.Payment {
	return domain.Payment{
		OrderRef:   domain.NewOrderRef(),
		SessionID:  "sess-app-test",
		Amount:     3000,
		Currency:   domain.BaseCurrency,
		Method:     "webpay",
		BuyerEmail: "buyer@example.com",
		State:      domain.PaymentStatePending,
		Items: []domain.PaymentItem{
			{ProductID: productID, Quantity: 3, UnitPrice: 1000, Subtotal: 3000},
		},
	}
}
