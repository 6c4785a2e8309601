package postfinance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/core/domain"
	"github.com/swisspay/postfinance-payments/internal/core/ports"
)

func newTestClient(serverURL string) *Client {
	return NewClient(config.GatewayConfig{
		BaseURL: serverURL,
		Paths: config.PathTable{
			Order:       "/ncol/test/orderdirect.asp",
			Maintenance: "/ncol/test/maintenancedirect.asp",
			Query:       "/ncol/test/querydirect.asp",
			Ecommerce:   "/ncol/test/orderstandard.asp",
		},
	}, zap.NewNop())
}

func TestExecuteParsesSuccessResponse(t *testing.T) {
	var gotPath, gotContentType, gotOrderID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotOrderID = r.PostFormValue("ORDERID")
		w.Write([]byte(`<?xml version="1.0"?><ncresponse
	orderID="order-1"
	PAYID="3011229363"
	NCERROR="0"
	STATUS="5"
	ACCEPTANCE="test123"
	NCSTATUS="0"/>`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Execute(context.Background(), ports.Request{
		Category: ports.CategoryOrder,
		Payload:  map[string]string{"ORDERID": "order-1", "OPERATION": "RES"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/ncol/test/orderdirect.asp", gotPath)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	assert.Equal(t, "order-1", gotOrderID)

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "3011229363", resp.Fields["PAYID"])
	assert.Equal(t, "5", resp.Fields["STATUS"])
	assert.Equal(t, "test123", resp.Fields["ACCEPTANCE"])
}

func TestExecuteClassifiesGatewayDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<ncresponse PAYID="0" NCERROR="50001111" STATUS="0"/>`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.Execute(context.Background(), ports.Request{
		Category: ports.CategoryOrder,
		Payload:  map[string]string{"ORDERID": "order-1"},
	})

	require.Error(t, err)
	assert.True(t, domain.IsGateway(err))

	var pe *domain.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 50001111, pe.Code)

	// the parsed response still travels with the error
	require.NotNil(t, resp)
	assert.Equal(t, "50001111", resp.Fields["NCERROR"])
}

func TestExecuteRejectsNonSuccessHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance window", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Execute(context.Background(), ports.Request{
		Category: ports.CategoryQuery,
		Payload:  map[string]string{},
	})
	assert.True(t, domain.IsSystem(err))
}

func TestExecuteRefusesEcommerceCategory(t *testing.T) {
	client := newTestClient("http://gateway.invalid")
	_, err := client.Execute(context.Background(), ports.Request{
		Category: ports.CategoryEcommerce,
	})
	assert.True(t, domain.IsSystem(err))
}

func TestExecuteRoutesMaintenanceCategory(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`<ncresponse PAYID="3011229363" NCERROR="0" STATUS="8"/>`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Execute(context.Background(), ports.Request{
		Category: ports.CategoryMaintenance,
		Payload:  map[string]string{"OPERATION": "RFD", "PAYID": "3011229363"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/ncol/test/maintenancedirect.asp", gotPath)
}
