package httpx

import (
	"encoding/json"
	"time"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/service/inventory"
	"github.com/javipazolea/ferremas-backend/internal/service/payments"
	"github.com/javipazolea/ferremas-backend/internal/service/rates"
)

type createPaymentRequest struct {
	SessionID   string             `json:"session_id"`
	CustomerID  int64              `json:"customer_id,omitempty"`
	Amount      float64            `json:"amount"`
	Currency    string             `json:"currency,omitempty"`
	Method      string             `json:"method"`
	BuyerEmail  string             `json:"buyer_email"`
	BuyerPhone  string             `json:"buyer_phone,omitempty"`
	Description string             `json:"description,omitempty"`
	ReturnURL   string             `json:"return_url,omitempty"`
	Items       []paymentItemInput `json:"items"`
}

type paymentItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (r createPaymentRequest) toServiceRequest() payments.CreateRequest {
	items := make([]payments.CreateItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, payments.CreateItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return payments.CreateRequest{
		SessionID:   r.SessionID,
		CustomerID:  r.CustomerID,
		Amount:      r.Amount,
		Currency:    r.Currency,
		Method:      r.Method,
		BuyerEmail:  r.BuyerEmail,
		BuyerPhone:  r.BuyerPhone,
		Description: r.Description,
		ReturnURL:   r.ReturnURL,
		Items:       items,
	}
}

type paymentResponse struct {
	ID          int64                  `json:"id"`
	OrderRef    string                 `json:"order_ref"`
	CustomerID  int64                  `json:"customer_id,omitempty"`
	SessionID   string                 `json:"session_id"`
	Amount      float64                `json:"amount"`
	Currency    string                 `json:"currency"`
	Method      string                 `json:"method"`
	State       string                 `json:"state"`
	Token       string                 `json:"token,omitempty"`
	RedirectURL string                 `json:"redirect_url,omitempty"`
	Result      *gatewayResultResponse `json:"gateway_result,omitempty"`
	Items       []paymentItemResponse  `json:"items"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type gatewayResultResponse struct {
	TransactionDate   time.Time `json:"transaction_date"`
	AuthorizationCode string    `json:"authorization_code"`
	PaymentTypeCode   string    `json:"payment_type_code"`
	ResponseCode      int       `json:"response_code"`
	Installments      int       `json:"installments"`
}

type paymentItemResponse struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

func mapPayment(p domain.Payment) paymentResponse {
	resp := paymentResponse{
		ID:          p.ID,
		OrderRef:    p.OrderRef,
		CustomerID:  p.CustomerID,
		SessionID:   p.SessionID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Method:      p.Method,
		State:       string(p.State),
		Token:       p.Token,
		RedirectURL: p.RedirectURL,
		Items:       make([]paymentItemResponse, 0, len(p.Items)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Result != nil {
		resp.Result = &gatewayResultResponse{
			TransactionDate:   p.Result.TransactionDate,
			AuthorizationCode: p.Result.AuthorizationCode,
			PaymentTypeCode:   p.Result.PaymentTypeCode,
			ResponseCode:      p.Result.ResponseCode,
			Installments:      p.Result.Installments,
		}
	}
	for _, it := range p.Items {
		resp.Items = append(resp.Items, paymentItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return resp
}

type verifyResponse struct {
	Payment          paymentResponse    `json:"payment"`
	AlreadyProcessed bool               `json:"already_processed"`
	Movements        []movementResponse `json:"movements,omitempty"`
}

func mapVerifyResult(r payments.VerifyResult) verifyResponse {
	resp := verifyResponse{
		Payment:          mapPayment(r.Payment),
		AlreadyProcessed: r.AlreadyProcessed,
	}
	for _, m := range r.Movements {
		resp.Movements = append(resp.Movements, mapMovement(m))
	}
	return resp
}

type gatewayLogResponse struct {
	ID           int64           `json:"id"`
	Operation    string          `json:"operation"`
	RequestData  json.RawMessage `json:"request_data,omitempty"`
	ResponseData json.RawMessage `json:"response_data,omitempty"`
	ResponseCode string          `json:"response_code,omitempty"`
	Message      string          `json:"message,omitempty"`
	Success      bool            `json:"success"`
	CreatedAt    time.Time       `json:"created_at"`
}

func mapGatewayLog(entries []domain.GatewayLogEntry) []gatewayLogResponse {
	out := make([]gatewayLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, gatewayLogResponse{
			ID:           e.ID,
			Operation:    string(e.Operation),
			RequestData:  e.RequestData,
			ResponseData: e.ResponseData,
			ResponseCode: e.ResponseCode,
			Message:      e.Message,
			Success:      e.Success,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}

type adjustStockRequest struct {
	Units     int    `json:"units"`
	Reason    string `json:"reason,omitempty"`
	Operation string `json:"operation,omitempty"`
}

type batchStockRequest struct {
	Items []batchStockItem `json:"items"`
}

type batchStockItem struct {
	ProductID int64  `json:"product_id"`
	Units     int    `json:"units"`
	Reason    string `json:"reason,omitempty"`
}

type productResponse struct {
	ID          int64   `json:"id"`
	SKU         string  `json:"sku"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
	Price       float64 `json:"price"`
	Units       int     `json:"units"`
	Active      bool    `json:"active"`
}

func mapProduct(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		SKU:         p.SKU,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Units:       p.Units,
		Active:      p.Active,
	}
}

type movementResponse struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	StockBefore int       `json:"stock_before"`
	StockAfter  int       `json:"stock_after"`
	Operation   string    `json:"operation"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

func mapMovement(m domain.InventoryMovement) movementResponse {
	return movementResponse{
		ID:          m.ID,
		ProductID:   m.ProductID,
		StockBefore: m.StockBefore,
		StockAfter:  m.StockAfter,
		Operation:   string(m.Operation),
		Reason:      m.Reason,
		CreatedAt:   m.CreatedAt,
	}
}

type adjustResultResponse struct {
	Product  productResponse  `json:"product"`
	Movement movementResponse `json:"movement"`
	Delta    int              `json:"delta"`
}

func mapAdjustResult(r inventory.AdjustResult) adjustResultResponse {
	return adjustResultResponse{
		Product:  mapProduct(r.Product),
		Movement: mapMovement(r.Movement),
		Delta:    r.Delta,
	}
}

type batchResultResponse struct {
	Applied []adjustResultResponse `json:"applied"`
	Errors  []batchErrorResponse   `json:"errors,omitempty"`
}

type batchErrorResponse struct {
	ProductID int64  `json:"product_id"`
	Message   string `json:"message"`
}

func mapBatchResult(r inventory.BatchResult) batchResultResponse {
	out := batchResultResponse{Applied: make([]adjustResultResponse, 0, len(r.Applied))}
	for _, a := range r.Applied {
		out.Applied = append(out.Applied, mapAdjustResult(a))
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, batchErrorResponse{ProductID: e.ProductID, Message: e.Message})
	}
	return out
}

type rateResponse struct {
	Currency  string    `json:"currency"`
	Value     float64   `json:"value"`
	Date      string    `json:"date,omitempty"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

func mapRate(r domain.Rate) rateResponse {
	return rateResponse{
		Currency:  r.Currency,
		Value:     r.Value,
		Date:      r.Date,
		Source:    r.Source,
		FetchedAt: r.FetchedAt,
	}
}

type convertRequest struct {
	Amount float64 `json:"amount"`
	From   string  `json:"from"`
	To     string  `json:"to"`
}

type conversionResponse struct {
	Amount    float64 `json:"amount"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Converted float64 `json:"converted"`
	Rate      float64 `json:"rate"`
	Date      string  `json:"date,omitempty"`
}

func mapConversion(c rates.Conversion) conversionResponse {
	return conversionResponse{
		Amount:    c.Amount,
		From:      c.From,
		To:        c.To,
		Converted: c.Converted,
		Rate:      c.Rate,
		Date:      c.Date,
	}
}
