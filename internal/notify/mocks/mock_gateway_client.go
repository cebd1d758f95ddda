package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nibog-labs/notifyd/internal/gateway"
)

// MockGatewayClient is a mock implementation of notify.GatewayClient.
type MockGatewayClient struct {
	mock.Mock
}

//nolint:revive
func (m *MockGatewayClient) SendTemplateMessage(ctx context.Context, phone, templateName, templateLanguage string, params []string) (*gateway.Response, error) {
	args := m.Called(ctx, phone, templateName, templateLanguage, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Response), args.Error(1)
}

//nolint:revive
func (m *MockGatewayClient) SendTextMessage(ctx context.Context, phone, message string) (*gateway.Response, error) {
	args := m.Called(ctx, phone, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Response), args.Error(1)
}

//nolint:revive
func (m *MockGatewayClient) SendTestMessage(ctx context.Context, phone string) (*gateway.Response, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Response), args.Error(1)
}

//nolint:revive
func (m *MockGatewayClient) ListTemplates(ctx context.Context) ([]gateway.Template, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gateway.Template), args.Error(1)
}
