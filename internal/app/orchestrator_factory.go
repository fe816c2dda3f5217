package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/messaging/kafka"
	"github.com/javipazolea/ferremas-backend/internal/service/payments"
)

// createPaymentServices собирает оркестратор создания и обработчик
// подтверждений с общим guard. Kafka подключается, если producer не nil.
func createPaymentServices(
	cfg Config,
	deps *runtimeDependencies,
	gateway domain.GatewayClient,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) (*payments.Orchestrator, *payments.Confirmer) {
	guard := payments.NewTokenGuard()

	var orchestrator *payments.Orchestrator
	var confirmer *payments.Confirmer

	if kafkaProducer != nil {
		orchestrator = payments.NewOrchestratorWithKafka(
			deps.payments,
			deps.products,
			deps.gatewayLog,
			gateway,
			kafkaProducer,
			logger,
		)
		confirmer = payments.NewConfirmerWithKafka(
			deps.payments,
			deps.gatewayLog,
			gateway,
			guard,
			kafkaProducer,
			logger,
		)
	} else {
		orchestrator = payments.NewOrchestrator(
			deps.payments,
			deps.products,
			deps.gatewayLog,
			gateway,
			logger,
		)
		confirmer = payments.NewConfirmer(
			deps.payments,
			deps.gatewayLog,
			gateway,
			guard,
			logger,
		)
	}

	orchestrator.SetReturnURL(cfg.ReturnURL)
	return orchestrator, confirmer
}
