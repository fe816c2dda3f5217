package webpay

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// MockClient — конфигурируемая заглушка GatewayClient для тестов и dev-режима.
type MockClient struct {
	CreateErr  error
	CommitResp domain.GatewayCommitResponse
	CommitErr  error

	CreateCalls int
	CommitCalls int

	LastCreate domain.GatewayCreateRequest
	LastToken  string
}

// NewMockClient возвращает mock с одобренным сценарием по умолчанию.
func NewMockClient() *MockClient {
	return &MockClient{
		CommitResp: domain.GatewayCommitResponse{
			Status:            "AUTHORIZED",
			ResponseCode:      0,
			AuthorizationCode: "1213",
			TransactionDate:   time.Now().UTC(),
			PaymentTypeCode:   "VD",
			Installments:      1,
		},
	}
}

// Create возвращает свежий токен и считает вызовы.
func (m *MockClient) Create(ctx context.Context, req domain.GatewayCreateRequest) (domain.GatewayCreateResponse, error) {
	m.CreateCalls++
	m.LastCreate = req
	if m.CreateErr != nil {
		return domain.GatewayCreateResponse{}, m.CreateErr
	}

	token := "mock-" + uuid.NewString()
	return domain.GatewayCreateResponse{
		Token: token,
		URL:   "https://webpay.mock/init/" + token,
	}, nil
}

// Commit возвращает заранее настроенный результат и считает вызовы.
func (m *MockClient) Commit(ctx context.Context, token string) (domain.GatewayCommitResponse, error) {
	m.CommitCalls++
	m.LastToken = token
	if m.CommitErr != nil {
		return domain.GatewayCommitResponse{}, m.CommitErr
	}
	return m.CommitResp, nil
}

var _ domain.GatewayClient = (*MockClient)(nil)
