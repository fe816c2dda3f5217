package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты API поверх chi.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.CreatePayment)
			// Шлюз возвращает покупателя как GET или POST в зависимости
			// от сценария.
			r.Get("/return", h.PaymentReturn)
			r.Post("/return", h.PaymentReturn)
			r.Get("/error", h.PaymentError)
			r.Post("/error", h.PaymentError)
			r.Post("/verify", h.VerifyPayment)
			r.Get("/{id}", h.GetPayment)
			r.Get("/{id}/log", h.GetPaymentLog)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Post("/batch-update", h.BatchAdjustStock)
			r.Get("/{productID}", h.GetProduct)
			r.Put("/{productID}", h.AdjustStock)
			r.Get("/{productID}/movements", h.GetMovements)
		})

		r.Route("/divisas", func(r chi.Router) {
			r.Get("/rates", h.GetRates)
			r.Get("/rates/{currency}", h.GetRate)
			r.Post("/convert", h.Convert)
		})
	})

	return r
}
