package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/gateway/webpay"
	"github.com/javipazolea/ferremas-backend/internal/httpx"
	"github.com/javipazolea/ferremas-backend/internal/service/inventory"
	"github.com/javipazolea/ferremas-backend/internal/service/payments"
	"github.com/javipazolea/ferremas-backend/internal/storage/memory"
)

// PaymentLifecycleTestSuite гоняет полный жизненный цикл платежа через
// реальный HTTP-сервер: создание, возврат покупателя, подтверждение
// и списание остатков.
type PaymentLifecycleTestSuite struct {
	suite.Suite
	server   *httptest.Server
	client   *http.Client
	store    *memory.Store
	payments domain.PaymentRepository
	products domain.ProductRepository
	gateway  *webpay.MockClient
	product  domain.Product
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (suite *PaymentLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	suite.store = memory.NewStore()
	suite.payments = memory.NewPaymentRepository(suite.store)
	suite.products = memory.NewProductRepository(suite.store)
	movements := memory.NewMovementRepository(suite.store)
	gatewayLog := memory.NewGatewayLogRepository(suite.store)
	suite.gateway = webpay.NewMockClient()

	suite.product = suite.store.SeedProduct(domain.Product{
		SKU:         "FER-TALADRO-01",
		Description: "Taladro percutor 650W",
		Price:       49990,
		Units:       10,
		Active:      true,
	})

	guard := payments.NewTokenGuardWithDelay(10 * time.Millisecond)
	orchestrator := payments.NewOrchestratorWithoutMetrics(suite.payments, suite.products, gatewayLog, suite.gateway, logger)
	confirmer := payments.NewConfirmerWithoutMetrics(suite.payments, gatewayLog, suite.gateway, guard, logger)
	inventorySvc := inventory.NewService(suite.products, movements, logger)

	handler := httpx.NewHandler(orchestrator, confirmer, inventorySvc, nil, suite.payments, gatewayLog, logger)
	suite.server = httptest.NewServer(httpx.NewRouter(handler))
	suite.client = suite.server.Client()
}

func (suite *PaymentLifecycleTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *PaymentLifecycleTestSuite) TestSuccessfulPaymentLifecycle() {
	// 1. Создаем платеж на два таладра
	payment := suite.createPayment(2)
	require.Equal(suite.T(), domain.PaymentStatePending, payment.State)
	require.NotEmpty(suite.T(), payment.Token)
	require.Equal(suite.T(), float64(99980), payment.Amount)

	// 2. Покупатель возвращается из Webpay
	rec := suite.get(fmt.Sprintf("/api/payments/return?token_ws=%s", payment.Token))
	require.Equal(suite.T(), http.StatusOK, rec.code, rec.body)

	stored, err := suite.payments.Get(payment.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.PaymentStateProcessing, stored.State)

	// 3. Подтверждаем платеж
	rec = suite.postJSON("/api/payments/verify", map[string]string{"token": payment.Token})
	require.Equal(suite.T(), http.StatusOK, rec.code, rec.body)
	require.True(suite.T(), rec.env.Success)

	stored, err = suite.payments.Get(payment.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.PaymentStateApproved, stored.State)
	require.Equal(suite.T(), 1, suite.gateway.CommitCalls)

	// 4. Остаток списан ровно один раз
	product, err := suite.products.Get(suite.product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 8, product.Units)

	// 5. Журнал шлюза содержит create и commit
	rec = suite.get(fmt.Sprintf("/api/payments/%d/log", payment.ID))
	require.Equal(suite.T(), http.StatusOK, rec.code, rec.body)

	var entries []map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(rec.env.Data, &entries))
	require.GreaterOrEqual(suite.T(), len(entries), 2)
}

func (suite *PaymentLifecycleTestSuite) TestVerifyIsIdempotent() {
	payment := suite.createPayment(1)
	suite.get(fmt.Sprintf("/api/payments/return?token_ws=%s", payment.Token))

	rec := suite.postJSON("/api/payments/verify", map[string]string{"token": payment.Token})
	require.Equal(suite.T(), http.StatusOK, rec.code, rec.body)

	// Повторное подтверждение не трогает ни шлюз, ни склад. Guard
	// удерживает токен еще некоторое время после первой попытки,
	// поэтому дожидаемся его освобождения.
	rec = suite.verifyWhenGuardReleased(payment.Token)
	require.Equal(suite.T(), http.StatusOK, rec.code, rec.body)
	require.Contains(suite.T(), rec.env.Message, "ya procesado")
	require.Equal(suite.T(), 1, suite.gateway.CommitCalls)

	product, err := suite.products.Get(suite.product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 9, product.Units)
}

func (suite *PaymentLifecycleTestSuite) TestConcurrentVerifyCommitsOnce() {
	payment := suite.createPayment(1)
	suite.get(fmt.Sprintf("/api/payments/return?token_ws=%s", payment.Token))

	const attempts = 8
	codes := make([]int, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			rec := suite.postJSON("/api/payments/verify", map[string]string{"token": payment.Token})
			codes[slot] = rec.code
		}(i)
	}
	wg.Wait()

	approved := 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			approved++
		case http.StatusConflict, http.StatusTooManyRequests:
		default:
			suite.T().Fatalf("unexpected status %d", code)
		}
	}
	require.GreaterOrEqual(suite.T(), approved, 1)
	require.Equal(suite.T(), 1, suite.gateway.CommitCalls)

	product, err := suite.products.Get(suite.product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 9, product.Units)
}

func (suite *PaymentLifecycleTestSuite) TestBuyerAbortsPayment() {
	payment := suite.createPayment(1)

	rec := suite.get(fmt.Sprintf("/api/payments/return?TBK_TOKEN=%s&TBK_ORDEN_COMPRA=%s", payment.Token, payment.OrderRef))
	require.Equal(suite.T(), http.StatusOK, rec.code, rec.body)
	require.Contains(suite.T(), rec.env.Message, "cancelado")

	stored, err := suite.payments.Get(payment.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.PaymentStateCancelled, stored.State)
	require.Equal(suite.T(), 0, suite.gateway.CommitCalls)

	// Остаток не тронут
	product, err := suite.products.Get(suite.product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 10, product.Units)
}

func (suite *PaymentLifecycleTestSuite) TestRejectedPaymentKeepsStock() {
	suite.gateway.CommitResp = domain.GatewayCommitResponse{
		Status:       "FAILED",
		ResponseCode: -1,
	}

	payment := suite.createPayment(3)
	suite.get(fmt.Sprintf("/api/payments/return?token_ws=%s", payment.Token))

	rec := suite.postJSON("/api/payments/verify", map[string]string{"token": payment.Token})
	require.Equal(suite.T(), http.StatusBadRequest, rec.code, rec.body)
	require.False(suite.T(), rec.env.Success)

	stored, err := suite.payments.Get(payment.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), domain.PaymentStateRejected, stored.State)

	product, err := suite.products.Get(suite.product.ID)
	require.NoError(suite.T(), err)
	require.Equal(suite.T(), 10, product.Units)
}

func (suite *PaymentLifecycleTestSuite) TestInsufficientStockRejectsCreation() {
	rec := suite.postJSON("/api/payments", map[string]interface{}{
		"session_id":  "sess-int-stock",
		"amount":      float64(20) * suite.product.Price,
		"method":      "webpay",
		"buyer_email": "cliente@ferremas.cl",
		"items": []map[string]interface{}{
			{"product_id": suite.product.ID, "quantity": 20},
		},
	})
	require.Equal(suite.T(), http.StatusBadRequest, rec.code, rec.body)
	require.False(suite.T(), rec.env.Success)
	require.Equal(suite.T(), 0, suite.gateway.CreateCalls)
}

// Вспомогательные методы

type httpResult struct {
	code int
	body string
	env  apiEnvelope
}

func (suite *PaymentLifecycleTestSuite) createPayment(quantity int) domain.Payment {
	suite.T().Helper()

	rec := suite.postJSON("/api/payments", map[string]interface{}{
		"session_id":  fmt.Sprintf("sess-int-%d", time.Now().UnixNano()),
		"amount":      float64(quantity) * suite.product.Price,
		"method":      "webpay",
		"buyer_email": "cliente@ferremas.cl",
		"items": []map[string]interface{}{
			{"product_id": suite.product.ID, "quantity": quantity},
		},
	})
	require.Equal(suite.T(), http.StatusCreated, rec.code, rec.body)
	require.True(suite.T(), rec.env.Success)

	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(suite.T(), json.Unmarshal(rec.env.Data, &created))

	payment, err := suite.payments.Get(created.ID)
	require.NoError(suite.T(), err)
	return payment
}

// verifyWhenGuardReleased повторяет verify, пока guard не отпустит токен.
func (suite *PaymentLifecycleTestSuite) verifyWhenGuardReleased(token string) httpResult {
	suite.T().Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := suite.postJSON("/api/payments/verify", map[string]string{"token": token})
		if rec.code != http.StatusTooManyRequests || time.Now().After(deadline) {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (suite *PaymentLifecycleTestSuite) get(path string) httpResult {
	suite.T().Helper()

	resp, err := suite.client.Get(suite.server.URL + path)
	require.NoError(suite.T(), err)
	return suite.readResult(resp)
}

func (suite *PaymentLifecycleTestSuite) postJSON(path string, body interface{}) httpResult {
	suite.T().Helper()

	raw, err := json.Marshal(body)
	require.NoError(suite.T(), err)

	resp, err := suite.client.Post(suite.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(suite.T(), err)
	return suite.readResult(resp)
}

func (suite *PaymentLifecycleTestSuite) readResult(resp *http.Response) httpResult {
	suite.T().Helper()
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(suite.T(), err)

	result := httpResult{code: resp.StatusCode, body: buf.String()}
	if buf.Len() > 0 {
		require.NoError(suite.T(), json.Unmarshal(buf.Bytes(), &result.env))
	}
	return result
}

func TestPaymentLifecycle(t *testing.T) {
	suite.Run(t, new(PaymentLifecycleTestSuite))
}
