package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/storage/memory"
	"github.com/javipazolea/ferremas-backend/internal/storage/postgres"
)

// runtimeDependencies — репозитории, собранные под выбранный драйвер
// хранилища, плюс ресурсы, требующие закрытия при остановке.
type runtimeDependencies struct {
	payments   domain.PaymentRepository
	products   domain.ProductRepository
	movements  domain.MovementRepository
	gatewayLog domain.GatewayLogRepository

	// pgStore != nil только для драйвера postgres.
	pgStore *postgres.Store
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d.pgStore == nil {
		return
	}
	if err := d.pgStore.Close(); err != nil {
		logger.WithError(err).Warn("failed to close postgres connection")
	}
}

// initRuntimeDependencies собирает репозитории согласно конфигурации.
// Для postgres дополнительно применяются миграции, если включён
// PostgresAutoMigrate.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		return &runtimeDependencies{
			payments:   memory.NewPaymentRepository(store),
			products:   memory.NewProductRepository(store),
			movements:  memory.NewMovementRepository(store),
			gatewayLog: memory.NewGatewayLogRepository(store),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage driver requires POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("migrations applied")
		}
		return &runtimeDependencies{
			payments:   postgres.NewPaymentRepository(store),
			products:   postgres.NewProductRepository(store),
			movements:  postgres.NewMovementRepository(store),
			gatewayLog: postgres.NewGatewayLogRepository(store),
			pgStore:    store,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.StorageDriver)
	}
}
