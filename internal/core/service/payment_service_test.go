package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/core/domain"
	"github.com/swisspay/postfinance-payments/internal/core/ports"
)

func testGateway() config.GatewayConfig {
	return config.GatewayConfig{
		PSPID:             "testshop",
		APIUser:           "apiuser",
		APIPassword:       "apipswd",
		SHASecret:         "Mysecretsig1875!?",
		SHAWithSecret:     true,
		Currency:          "CHF",
		AllowedCurrencies: []string{"CHF", "EUR"},
		AllowMaxAmount:    1000,
		PaymentMethods:    []string{"CreditCard", "PayPal"},
		Language:          "fr_FR",
		Paths: config.PathTable{
			Order:       "/ncol/test/orderdirect.asp",
			Maintenance: "/ncol/test/maintenancedirect.asp",
			Query:       "/ncol/test/querydirect.asp",
			Ecommerce:   "/ncol/test/orderstandard.asp",
		},
	}
}

type mockClient struct {
	requests []ports.Request
	fields   map[string]string
	err      error
}

func (m *mockClient) Execute(_ context.Context, req ports.Request) (*ports.Response, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &ports.Response{Status: 200, Fields: m.fields}, nil
}

func newTestService(client ports.TransportClient) *PaymentService {
	return NewPaymentService(client, testGateway(), zap.NewNop())
}

func validCardOptions() domain.CardOptions {
	return domain.CardOptions{
		Number: "4111111111111111",
		CSC:    "123",
		Expiry: "09/29",
		Name:   "Jean Dupont",
	}
}

func TestChargePurchase(t *testing.T) {
	client := &mockClient{fields: map[string]string{
		"PAYID": "3011229363", "ORDERID": "order-1", "STATUS": "9",
		"ACCEPTANCE": "test123", "NCERROR": "0",
	}}
	svc := newTestService(client)

	result, err := svc.Charge(context.Background(), validCardOptions(), domain.TransactionOptions{
		Operation: domain.OpPurchase,
		Amount:    decimal.RequireFromString("130.00"),
		OrderID:   "order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "3011229363", result.PayID)
	assert.Equal(t, "9", result.Status)
	assert.Equal(t, "payment requested", result.StatusText)
	assert.Equal(t, "test123", result.Acceptance)

	req := client.requests[0]
	assert.Equal(t, "SAL", req.Payload["OPERATION"])
	assert.Equal(t, "13000", req.Payload["AMOUNT"])
}

func TestChargeRejectsInvalidCardLocally(t *testing.T) {
	client := &mockClient{fields: map[string]string{}}
	svc := newTestService(client)

	opts := validCardOptions()
	opts.Number = "4111111111111112" // fails Luhn
	_, err := svc.Charge(context.Background(), opts, domain.TransactionOptions{
		Operation: domain.OpPurchase,
		Amount:    decimal.NewFromInt(10),
	})
	assert.True(t, domain.IsSystem(err))
	assert.Empty(t, client.requests)
}

func TestChargeRejectsExpiredCardLocally(t *testing.T) {
	client := &mockClient{fields: map[string]string{}}
	svc := newTestService(client)

	opts := validCardOptions()
	opts.Expiry = "01/20"
	_, err := svc.Charge(context.Background(), opts, domain.TransactionOptions{
		Operation: domain.OpPurchase,
		Amount:    decimal.NewFromInt(10),
	})
	assert.True(t, domain.IsSystem(err))
	assert.Empty(t, client.requests)
}

func TestChargeRejectsMaintenanceOperations(t *testing.T) {
	svc := newTestService(&mockClient{})
	_, err := svc.Charge(context.Background(), validCardOptions(), domain.TransactionOptions{
		Operation: domain.OpRefund,
		Amount:    decimal.NewFromInt(10),
	})
	assert.True(t, domain.IsSystem(err))
}

func TestCaptureSettlesForLowerAmount(t *testing.T) {
	client := &mockClient{fields: map[string]string{
		"PAYID": "3011229363", "STATUS": "9", "NCERROR": "0",
	}}
	svc := newTestService(client)

	result, err := svc.Capture(context.Background(), "3011229363", "order-1",
		decimal.RequireFromString("120.00"))
	require.NoError(t, err)
	assert.Equal(t, "3011229363", result.PayID)

	req := client.requests[0]
	assert.Equal(t, "SAL", req.Payload["OPERATION"])
	assert.Equal(t, "12000", req.Payload["AMOUNT"])
	assert.Equal(t, "3011229363", req.Payload["PAYID"])
}

func TestCancelAndRefundUseMaintenanceEndpoint(t *testing.T) {
	client := &mockClient{fields: map[string]string{
		"PAYID": "3011229363", "STATUS": "8", "NCERROR": "0",
	}}
	svc := newTestService(client)

	// cancel without an amount acts on the full payment: no AMOUNT on the wire
	_, err := svc.Cancel(context.Background(), "3011229363", "order-1", decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, ports.CategoryMaintenance, client.requests[0].Category)
	assert.Equal(t, "SAS", client.requests[0].Payload["OPERATION"])
	_, hasAmount := client.requests[0].Payload["AMOUNT"]
	assert.False(t, hasAmount)

	_, err = svc.Refund(context.Background(), "3011229363", "order-1", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Equal(t, "RFD", client.requests[1].Payload["OPERATION"])
}

func TestMaintenanceRequiresPayID(t *testing.T) {
	client := &mockClient{fields: map[string]string{}}
	svc := newTestService(client)

	_, err := svc.Refund(context.Background(), "", "order-1", decimal.NewFromInt(50))
	assert.True(t, domain.IsSystem(err))
	assert.Empty(t, client.requests)
}

func TestRegisterAndLoadAlias(t *testing.T) {
	client := &mockClient{fields: map[string]string{
		"ALIAS": "alias-77", "PAYID": "3011229363", "STATUS": "5", "NCERROR": "0",
	}}
	svc := newTestService(client)

	result, err := svc.RegisterAlias(context.Background(), validCardOptions(),
		"alias-77", "recurring billing")
	require.NoError(t, err)
	assert.Equal(t, "alias-77", result.Alias)
	assert.Equal(t, "411111XXXXXX1111", result.MaskedNumber)

	req := client.requests[0]
	assert.Equal(t, "alias-77", req.Payload["ALIAS"])
	assert.Equal(t, "recurring billing", req.Payload["ALIASUSAGE"])
	assert.Equal(t, "RES", req.Payload["OPERATION"])

	client.fields = map[string]string{
		"ALIAS": "alias-77", "CARDNO": "XXXXXXXXXXXX1111", "BRAND": "VISA", "ED": "0929",
	}
	loaded, err := svc.LoadAlias(context.Background(), "alias-77")
	require.NoError(t, err)
	assert.Equal(t, "XXXXXXXXXXXX1111", loaded.MaskedNumber)
	assert.Equal(t, "VISA", loaded.Issuer)
	assert.Equal(t, 9, loaded.ExpiryMonth)
	assert.Equal(t, 29, loaded.ExpiryYear)
}

func TestRedactAlias(t *testing.T) {
	client := &mockClient{fields: map[string]string{"ALIAS": "alias-77", "NCERROR": "0"}}
	svc := newTestService(client)

	require.NoError(t, svc.RedactAlias(context.Background(), "alias-77"))
	require.Len(t, client.requests, 1)
	assert.Equal(t, "4111111111111111", client.requests[0].Payload["CARDNO"])
}

func TestPrepareEcommerce(t *testing.T) {
	svc := newTestService(&mockClient{})

	form, err := svc.PrepareEcommerce(
		domain.CardOptions{PaymentMethod: "PayPal", Name: "Jean Dupont"},
		domain.TransactionOptions{
			Amount:  decimal.RequireFromString("42.50"),
			OrderID: "order-3",
		})
	require.NoError(t, err)
	assert.Equal(t, "/ncol/test/orderstandard.asp", form.Path)
	assert.Equal(t, "SAL", form.Fields["OPERATION"])
	assert.Equal(t, "4250", form.Fields["AMOUNT"])
	assert.NotEmpty(t, form.Fields["SHASIGN"])

	_, err = svc.PrepareEcommerce(
		domain.CardOptions{PaymentMethod: "PayPal"},
		domain.TransactionOptions{Amount: decimal.NewFromInt(10), Currency: "GBP"})
	assert.True(t, domain.IsSystem(err))
}
