// Package postfinance implements the DirectLink transport: signed payloads
// are posted form-urlencoded to the endpoint selected by the request
// category, and the single-tag response body is parsed into a flat field map.
package postfinance

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/core/domain"
	"github.com/swisspay/postfinance-payments/internal/core/ports"
	"github.com/swisspay/postfinance-payments/internal/wire"
)

// Client posts requests to the Postfinance gateway. It implements
// ports.TransportClient.
type Client struct {
	baseURL    string
	paths      config.PathTable
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a gateway client from the configured endpoints.
func NewClient(gw config.GatewayConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(gw.BaseURL, "/"),
		paths:   gw.Paths,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// path resolves the endpoint for a request category. The ecommerce endpoint
// is browser-posted only.
func (c *Client) path(category ports.Category) (string, error) {
	switch category {
	case ports.CategoryOrder:
		return c.paths.Order, nil
	case ports.CategoryMaintenance:
		return c.paths.Maintenance, nil
	case ports.CategoryQuery:
		return c.paths.Query, nil
	case ports.CategoryEcommerce:
		return "", domain.NewSystemError("ecommerce requests are posted by the browser, not the server", "")
	default:
		return "", domain.NewSystemError("unknown request category", string(category))
	}
}

// Execute posts one signed payload and parses the reply. A transport or
// HTTP-level failure is a system error; a non-zero NCERROR in an otherwise
// successful exchange is a gateway error, returned alongside the parsed
// response.
func (c *Client) Execute(ctx context.Context, req ports.Request) (*ports.Response, error) {
	path, err := c.path(req.Category)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	for k, v := range req.Payload {
		form.Set(k, v)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, domain.WrapSystemError("error building gateway request", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("gateway request",
		zap.String("path", path),
		zap.String("operation", req.Payload["OPERATION"]),
		zap.String("orderId", req.Payload["ORDERID"]),
		zap.String("amount", req.Payload["AMOUNT"]),
		zap.String("currency", req.Payload["CURRENCY"]))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.WrapSystemError("error communicating with the gateway", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, domain.WrapSystemError("error reading gateway response", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		c.logger.Warn("gateway returned non-success status",
			zap.Int("status", httpResp.StatusCode),
			zap.String("path", path))
		return nil, domain.NewSystemError("gateway returned HTTP "+httpResp.Status, string(body))
	}

	resp := &ports.Response{
		Status:  httpResp.StatusCode,
		Headers: flattenHeaders(httpResp.Header),
		Fields:  wire.ParseAttributes(string(body)),
		Body:    string(body),
	}

	if err := wire.Classify(resp.Fields, req.Payload["ORDERID"]); err != nil {
		c.logger.Info("gateway declined operation",
			zap.String("ncerror", resp.Fields["NCERROR"]),
			zap.String("status", resp.Fields["STATUS"]),
			zap.String("payId", resp.Fields["PAYID"]))
		return resp, err
	}

	c.logger.Debug("gateway response",
		zap.String("status", resp.Fields["STATUS"]),
		zap.String("payId", resp.Fields["PAYID"]))
	return resp, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
