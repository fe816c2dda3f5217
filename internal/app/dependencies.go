package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/storage/memory"
)

// Dependencies содержит репозитории приложения поверх in-memory хранилища.
// Используется в тестах и в demo-режиме без PostgreSQL.
type Dependencies struct {
	Store      *memory.Store
	Payments   domain.PaymentRepository
	Products   domain.ProductRepository
	Movements  domain.MovementRepository
	GatewayLog domain.GatewayLogRepository
	Logger     *log.Entry
}

// NewDependencies создаёт набор in-memory репозиториев над общим Store.
func NewDependencies(logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	store := memory.NewStore()
	return &Dependencies{
		Store:      store,
		Payments:   memory.NewPaymentRepository(store),
		Products:   memory.NewProductRepository(store),
		Movements:  memory.NewMovementRepository(store),
		GatewayLog: memory.NewGatewayLogRepository(store),
		Logger:     logger,
	}
}
