package app

import (
	"context"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/gateway/webpay"
	healthcheck "github.com/javipazolea/ferremas-backend/internal/health"
	"github.com/javipazolea/ferremas-backend/internal/httpx"
	"github.com/javipazolea/ferremas-backend/internal/service/inventory"
	"github.com/javipazolea/ferremas-backend/internal/service/payments"
	"github.com/javipazolea/ferremas-backend/internal/service/rates"
	"github.com/javipazolea/ferremas-backend/internal/version"
)

// Run собирает зависимости и держит оба HTTP-сервера до отмены контекста.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() { _ = redisClient.Close() }()
		logger.WithField("addr", cfg.RedisAddr).Info("redis connected")
	}

	gateway := buildGateway(cfg, logger)
	orchestrator, confirmer := createPaymentServices(cfg, deps, gateway, kafkaProducer, logger)

	expiryOptions := []payments.ExpiryOption{
		payments.WithExpiryLogger(logger.WithField("component", "payment-expiry-worker")),
	}
	if cfg.PaymentExpiryInterval > 0 {
		expiryOptions = append(expiryOptions, payments.WithExpiryInterval(cfg.PaymentExpiryInterval))
	}
	if cfg.PaymentMaxAge > 0 {
		expiryOptions = append(expiryOptions, payments.WithExpiryMaxAge(cfg.PaymentMaxAge))
	}
	if kafkaProducer != nil {
		expiryOptions = append(expiryOptions, payments.WithExpiryKafka(kafkaProducer))
	}
	expiryWorker := payments.NewExpiryWorker(deps.payments, expiryOptions...)
	go expiryWorker.Run(ctx)

	var inventorySvc *inventory.Service
	if kafkaProducer != nil {
		inventorySvc = inventory.NewServiceWithKafka(deps.products, deps.movements, kafkaProducer, logger)
	} else {
		inventorySvc = inventory.NewService(deps.products, deps.movements, logger)
	}

	ratesSvc := buildRatesService(cfg, redisClient, logger)

	handler := httpx.NewHandler(
		orchestrator,
		confirmer,
		inventorySvc,
		ratesSvc,
		deps.payments,
		deps.gatewayLog,
		logger.WithField("layer", "http"),
	)
	router := httpx.NewRouter(handler)

	healthHandler := healthcheck.NewHandler(version.ServiceName, version.GetVersion())
	if deps.pgStore != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewDatabaseChecker(deps.pgStore.DB()))
	}
	if redisClient != nil {
		healthHandler.RegisterChecker("redis", healthcheck.NewRedisChecker(redisClient))
	}
	if kafkaProducer != nil {
		healthHandler.RegisterChecker("kafka", healthcheck.NewKafkaChecker(splitBrokers(cfg.KafkaBrokers)))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	errCh := make(chan error, 1)
	apiSrv := startAPIServer(cfg.HTTPAddr, router, logger, errCh)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP servers")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return err
	}
}

// buildGateway выбирает адаптер шлюза: mock для dev-режима, иначе REST-клиент
// Webpay. Без явных учётных данных используется интеграционное окружение
// Transbank.
func buildGateway(cfg Config, logger *log.Entry) domain.GatewayClient {
	if cfg.WebpayMock {
		logger.Warn("webpay gateway is running in mock mode")
		return webpay.NewMockClient()
	}

	gwCfg := webpay.IntegrationConfig()
	if cfg.WebpayBaseURL != "" {
		gwCfg.BaseURL = cfg.WebpayBaseURL
	}
	if cfg.WebpayCommerceCode != "" {
		gwCfg.CommerceCode = cfg.WebpayCommerceCode
	}
	if cfg.WebpayAPIKey != "" {
		gwCfg.APIKey = cfg.WebpayAPIKey
	}
	return webpay.NewClient(gwCfg)
}

// buildRatesService собирает сервис курсов: источник БЦЧ и кэш в Redis,
// либо в памяти, когда Redis не настроен.
func buildRatesService(cfg Config, redisClient *redis.Client, logger *log.Entry) *rates.Service {
	source := rates.NewBCCHSource(rates.BCCHConfig{
		User:     cfg.BCCHUser,
		Password: cfg.BCCHPassword,
	}, logger.WithField("component", "bcch-source"))

	var cache domain.RateCache
	if redisClient != nil {
		cache = rates.NewRedisCache(redisClient)
	} else {
		cache = rates.NewMemoryCache()
	}
	return rates.NewService(source, cache, logger.WithField("component", "rates"))
}
