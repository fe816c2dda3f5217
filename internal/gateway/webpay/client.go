package webpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// Интеграционное окружение Transbank: публичные тестовые реквизиты.
const (
	IntegrationBaseURL      = "https://webpay3gint.transbank.cl"
	IntegrationCommerceCode = "597055555532"
	IntegrationAPIKey       = "579B532A7440BB0C9079DED94D31EA1615BACEB56610332264630D42D0A36B1C"

	transactionsPath = "/rswebpaytransaction/api/webpay/v1.2/transactions"

	defaultHTTPTimeout = 15 * time.Second
)

// Config задаёт параметры REST-клиента Webpay Plus.
type Config struct {
	BaseURL      string
	CommerceCode string
	APIKey       string
	Timeout      time.Duration
}

// IntegrationConfig возвращает конфигурацию тестового окружения Transbank.
func IntegrationConfig() Config {
	return Config{
		BaseURL:      IntegrationBaseURL,
		CommerceCode: IntegrationCommerceCode,
		APIKey:       IntegrationAPIKey,
		Timeout:      defaultHTTPTimeout,
	}
}

// Client — REST-адаптер Webpay Plus. Классификация отказов шлюза выполняется
// здесь, на границе адаптера: наружу уходят ошибки, сопоставимые с
// sentinel-ошибками домена через errors.Is.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *log.Entry
}

// NewClient создаёт клиента Webpay Plus поверх переданной конфигурации.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.WithField("component", "webpay-client"),
	}
}

type createRequestBody struct {
	BuyOrder  string `json:"buy_order"`
	SessionID string `json:"session_id"`
	Amount    int    `json:"amount"`
	ReturnURL string `json:"return_url"`
}

type createResponseBody struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type commitResponseBody struct {
	VCI               string  `json:"vci"`
	Amount            float64 `json:"amount"`
	Status            string  `json:"status"`
	BuyOrder          string  `json:"buy_order"`
	SessionID         string  `json:"session_id"`
	AccountingDate    string  `json:"accounting_date"`
	TransactionDate   string  `json:"transaction_date"`
	AuthorizationCode string  `json:"authorization_code"`
	PaymentTypeCode   string  `json:"payment_type_code"`
	ResponseCode      int     `json:"response_code"`
	InstallmentsNum   int     `json:"installments_number"`
}

type errorResponseBody struct {
	ErrorMessage string `json:"error_message"`
}

// Create открывает транзакцию Webpay Plus и возвращает токен с redirect URL.
func (c *Client) Create(ctx context.Context, req domain.GatewayCreateRequest) (domain.GatewayCreateResponse, error) {
	body := createRequestBody{
		BuyOrder:  req.BuyOrder,
		SessionID: req.SessionID,
		Amount:    req.Amount,
		ReturnURL: req.ReturnURL,
	}

	var resp createResponseBody
	if err := c.do(ctx, http.MethodPost, transactionsPath, body, &resp); err != nil {
		return domain.GatewayCreateResponse{}, fmt.Errorf("webpay create %s: %w", req.BuyOrder, err)
	}

	c.logger.WithFields(log.Fields{
		"buy_order": req.BuyOrder,
		"amount":    req.Amount,
	}).Info("webpay transaction created")

	return domain.GatewayCreateResponse{Token: resp.Token, URL: resp.URL}, nil
}

// Commit подтверждает транзакцию по токену.
func (c *Client) Commit(ctx context.Context, token string) (domain.GatewayCommitResponse, error) {
	var resp commitResponseBody
	if err := c.do(ctx, http.MethodPut, transactionsPath+"/"+token, nil, &resp); err != nil {
		return domain.GatewayCommitResponse{}, fmt.Errorf("webpay commit: %w", err)
	}

	txDate, err := parseTransactionDate(resp.TransactionDate)
	if err != nil {
		c.logger.WithError(err).Warn("failed to parse transaction_date, using current time")
		txDate = time.Now().UTC()
	}

	return domain.GatewayCommitResponse{
		Status:            resp.Status,
		ResponseCode:      resp.ResponseCode,
		AuthorizationCode: resp.AuthorizationCode,
		TransactionDate:   txDate,
		PaymentTypeCode:   resp.PaymentTypeCode,
		Installments:      resp.InstallmentsNum,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Tbk-Api-Key-Id", c.cfg.CommerceCode)
	req.Header.Set("Tbk-Api-Key-Secret", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyGatewayError(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// classifyGatewayError переводит текст ошибки шлюза в типизированную ошибку.
// Webpay сообщает о причинах только текстом error_message, поэтому
// сопоставление по подстрокам выполняется ровно один раз — здесь.
func classifyGatewayError(status int, raw []byte) error {
	var body errorResponseBody
	_ = json.Unmarshal(raw, &body)

	message := strings.ToLower(body.ErrorMessage)
	if message == "" {
		message = strings.ToLower(string(raw))
	}

	switch {
	case strings.Contains(message, "aborted"):
		return fmt.Errorf("%w: %s", domain.ErrGatewayAborted, body.ErrorMessage)
	case strings.Contains(message, "invalid finished state"):
		return fmt.Errorf("%w: %s", domain.ErrGatewayInvalidState, body.ErrorMessage)
	case strings.Contains(message, "timeout"):
		return fmt.Errorf("%w: %s", domain.ErrGatewayTimeout, body.ErrorMessage)
	case status >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, status)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrGatewayUnavailable, status, body.ErrorMessage)
	}
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
}

func parseTransactionDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty transaction date")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported transaction date format: %s", value)
}

var _ domain.GatewayClient = (*Client)(nil)
