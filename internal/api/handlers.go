// Package api contains the HTTP handlers and routing for the payment service.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/core/domain"
	"github.com/swisspay/postfinance-payments/internal/core/service"
	"github.com/swisspay/postfinance-payments/internal/sign"
)

// Handler contains the HTTP handlers for the payment API.
type Handler struct {
	paymentService *service.PaymentService
	gw             config.GatewayConfig
	logger         *zap.Logger
}

// NewHandler creates a new API handler with the payment service.
func NewHandler(paymentService *service.PaymentService, gw config.GatewayConfig, logger *zap.Logger) *Handler {
	return &Handler{
		paymentService: paymentService,
		gw:             gw,
		logger:         logger,
	}
}

// CardRequest is the payment-method part of a request body. Exactly one of
// alias, payment_method, or the raw card fields should be set.
type CardRequest struct {
	Alias         string `json:"alias,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`

	Number string `json:"number,omitempty"`
	CSC    string `json:"csc,omitempty"`
	Expiry string `json:"expiry,omitempty"`

	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Address1 string `json:"address1,omitempty"`
	City     string `json:"city,omitempty"`
	Zip      string `json:"zip,omitempty"`
}

func (r CardRequest) options() domain.CardOptions {
	return domain.CardOptions{
		Alias:         r.Alias,
		PaymentMethod: r.PaymentMethod,
		Number:        r.Number,
		CSC:           r.CSC,
		Expiry:        r.Expiry,
		Name:          r.Name,
		Email:         r.Email,
		Address1:      r.Address1,
		City:          r.City,
		Zip:           r.Zip,
	}
}

// PaymentRequest is the JSON body for creating a payment.
type PaymentRequest struct {
	Operation string      `json:"operation" binding:"required,oneof=authorize purchase"`
	Amount    string      `json:"amount" binding:"required"`
	Currency  string      `json:"currency,omitempty"`
	OrderID   string      `json:"order_id,omitempty"`
	Email     string      `json:"email,omitempty"`
	GroupID   string      `json:"group_id,omitempty"`
	Card      CardRequest `json:"card" binding:"required"`
}

// PaymentResponse is the outcome of a processed payment.
type PaymentResponse struct {
	Success    bool   `json:"success"`
	PayID      string `json:"pay_id,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Status     string `json:"status,omitempty"`
	StatusText string `json:"status_text,omitempty"`
	Acceptance string `json:"acceptance,omitempty"`
	Alias      string `json:"alias,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Category string `json:"category,omitempty"`
	NCError  int    `json:"ncerror,omitempty"`
}

// CreatePayment handles POST /api/v1/payments.
func (h *Handler) CreatePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(c, "Invalid amount: "+req.Amount)
		return
	}

	result, err := h.paymentService.Charge(c.Request.Context(), req.Card.options(),
		domain.TransactionOptions{
			Operation: domain.Operation(req.Operation),
			Amount:    amount,
			Currency:  req.Currency,
			OrderID:   req.OrderID,
			Email:     req.Email,
			GroupID:   req.GroupID,
		})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, chargeResponse(result))
}

// MaintenanceRequest is the JSON body for capture, cancel and refund. The
// amount is optional for cancel and refund; omitting it acts on the full
// payment.
type MaintenanceRequest struct {
	Amount  string `json:"amount,omitempty"`
	OrderID string `json:"order_id" binding:"required"`
}

func (h *Handler) maintenance(c *gin.Context, run func(payID, orderID string, amount decimal.Decimal) (*service.ChargeResult, error)) {
	var req MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount := decimal.Zero
	if req.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(req.Amount)
		if err != nil {
			badRequest(c, "Invalid amount: "+req.Amount)
			return
		}
	}

	result, err := run(c.Param("payId"), req.OrderID, amount)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, chargeResponse(result))
}

// CapturePayment handles POST /api/v1/payments/:payId/capture.
func (h *Handler) CapturePayment(c *gin.Context) {
	h.maintenance(c, func(payID, orderID string, amount decimal.Decimal) (*service.ChargeResult, error) {
		return h.paymentService.Capture(c.Request.Context(), payID, orderID, amount)
	})
}

// CancelPayment handles POST /api/v1/payments/:payId/cancel.
func (h *Handler) CancelPayment(c *gin.Context) {
	h.maintenance(c, func(payID, orderID string, amount decimal.Decimal) (*service.ChargeResult, error) {
		return h.paymentService.Cancel(c.Request.Context(), payID, orderID, amount)
	})
}

// RefundPayment handles POST /api/v1/payments/:payId/refund.
func (h *Handler) RefundPayment(c *gin.Context) {
	h.maintenance(c, func(payID, orderID string, amount decimal.Decimal) (*service.ChargeResult, error) {
		return h.paymentService.Refund(c.Request.Context(), payID, orderID, amount)
	})
}

// AliasRequest is the JSON body for storing a payment method.
type AliasRequest struct {
	Alias      string      `json:"alias" binding:"required"`
	AliasUsage string      `json:"alias_usage,omitempty"`
	Card       CardRequest `json:"card" binding:"required"`
}

// AliasResponse describes a stored payment method.
type AliasResponse struct {
	Success      bool   `json:"success"`
	Alias        string `json:"alias"`
	PayID        string `json:"pay_id,omitempty"`
	MaskedNumber string `json:"masked_number,omitempty"`
	Issuer       string `json:"issuer,omitempty"`
	ExpiryMonth  int    `json:"expiry_month,omitempty"`
	ExpiryYear   int    `json:"expiry_year,omitempty"`
}

// CreateAlias handles POST /api/v1/aliases.
func (h *Handler) CreateAlias(c *gin.Context) {
	var req AliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.paymentService.RegisterAlias(c.Request.Context(),
		req.Card.options(), req.Alias, req.AliasUsage)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, aliasResponse(result))
}

// GetAlias handles GET /api/v1/aliases/:alias.
func (h *Handler) GetAlias(c *gin.Context) {
	result, err := h.paymentService.LoadAlias(c.Request.Context(), c.Param("alias"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, aliasResponse(result))
}

// DeleteAlias handles DELETE /api/v1/aliases/:alias.
func (h *Handler) DeleteAlias(c *gin.Context) {
	if err := h.paymentService.RedactAlias(c.Request.Context(), c.Param("alias")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// CheckoutRequest is the JSON body for preparing a hosted payment page form.
type CheckoutRequest struct {
	Amount   string      `json:"amount" binding:"required"`
	Currency string      `json:"currency,omitempty"`
	OrderID  string      `json:"order_id,omitempty"`
	Email    string      `json:"email,omitempty"`
	Card     CardRequest `json:"card" binding:"required"`
}

// CheckoutResponse carries the signed form the browser posts to the gateway.
type CheckoutResponse struct {
	Success bool              `json:"success"`
	Path    string            `json:"path"`
	Fields  map[string]string `json:"fields"`
	Query   string            `json:"query"`
}

// CreateCheckout handles POST /api/v1/checkout.
func (h *Handler) CreateCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		badRequest(c, "Invalid amount: "+req.Amount)
		return
	}

	form, err := h.paymentService.PrepareEcommerce(req.Card.options(),
		domain.TransactionOptions{
			Amount:   amount,
			Currency: req.Currency,
			OrderID:  req.OrderID,
			Email:    req.Email,
		})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, CheckoutResponse{
		Success: true,
		Path:    form.Path,
		Fields:  form.Fields,
		Query:   form.Query,
	})
}

// HandleCallback handles POST /callbacks/postfinance. The gateway posts the
// transaction outcome form-urlencoded; the SHASIGN over the fields proves it
// came from the gateway.
func (h *Handler) HandleCallback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		badRequest(c, "Invalid callback form")
		return
	}

	fields := make(map[string]string, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		fields[k] = c.Request.PostForm.Get(k)
	}

	if !sign.Verify(fields, h.gw.SHASecret, h.gw.SHAWithSecret, sign.HMACSHA256) {
		h.logger.Warn("callback signature verification failed",
			zap.String("orderId", fields["orderID"]),
			zap.String("payId", fields["PAYID"]))
		c.JSON(http.StatusForbidden, ErrorResponse{
			Success: false,
			Error:   "Invalid callback signature",
		})
		return
	}

	h.logger.Info("callback verified",
		zap.String("orderId", fields["orderID"]),
		zap.String("payId", fields["PAYID"]),
		zap.String("status", fields["STATUS"]))

	c.JSON(http.StatusOK, gin.H{"status": "processed"})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "postfinance-payments",
	})
}

func chargeResponse(result *service.ChargeResult) PaymentResponse {
	return PaymentResponse{
		Success:    true,
		PayID:      result.PayID,
		OrderID:    result.OrderID,
		Status:     result.Status,
		StatusText: result.StatusText,
		Acceptance: result.Acceptance,
		Alias:      result.Alias,
	}
}

func aliasResponse(result *service.AliasResult) AliasResponse {
	return AliasResponse{
		Success:      true,
		Alias:        result.Alias,
		PayID:        result.PayID,
		MaskedNumber: result.MaskedNumber,
		Issuer:       result.Issuer,
		ExpiryMonth:  result.ExpiryMonth,
		ExpiryYear:   result.ExpiryYear,
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   message,
	})
}

// handleServiceError maps the error taxonomy to HTTP responses: system
// errors are the caller's problem, gateway declines carry the NCERROR code.
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	var paymentErr *domain.PaymentError
	if errors.As(err, &paymentErr) {
		status := http.StatusBadRequest
		if paymentErr.Category == domain.CategoryGateway {
			status = http.StatusPaymentRequired
		}
		c.JSON(status, ErrorResponse{
			Success:  false,
			Error:    paymentErr.Message,
			Category: string(paymentErr.Category),
			NCError:  paymentErr.Code,
		})
		return
	}

	h.logger.Error("unhandled service error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   "Internal server error",
	})
}
