// Package service implements the core business logic: it orchestrates
// payment methods and transactions against the gateway transport.
package service

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/core/domain"
	"github.com/swisspay/postfinance-payments/internal/core/ports"
	"github.com/swisspay/postfinance-payments/internal/wire"
)

// PaymentService orchestrates payment operations.
type PaymentService struct {
	client ports.TransportClient
	gw     config.GatewayConfig
	logger *zap.Logger
}

// NewPaymentService creates a new payment service.
func NewPaymentService(client ports.TransportClient, gw config.GatewayConfig, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		client: client,
		gw:     gw,
		logger: logger,
	}
}

// ChargeResult is the outcome of a processed transaction.
type ChargeResult struct {
	PayID      string
	OrderID    string
	Status     string
	StatusText string
	Acceptance string
	Alias      string
}

// Charge runs an authorization or purchase for the given payment method.
// Raw card details are validated locally before any network call so common
// input errors never reach the gateway.
func (s *PaymentService) Charge(ctx context.Context, cardOpts domain.CardOptions, txOpts domain.TransactionOptions) (*ChargeResult, error) {
	if txOpts.Operation != domain.OpAuthorize && txOpts.Operation != domain.OpPurchase {
		return nil, domain.NewSystemError("charge supports authorize and purchase only", string(txOpts.Operation))
	}

	card, err := domain.NewCard(s.gw, cardOpts)
	if err != nil {
		return nil, err
	}
	if card.Variant() == domain.VariantRaw {
		if !card.IsValid() {
			return nil, domain.NewSystemError("card number or csc failed local validation", card.HiddenNumber())
		}
		if card.IsExpired() {
			return nil, domain.NewSystemError("card is expired", card.HiddenNumber())
		}
	}

	tx, err := domain.NewTransaction(s.gw, txOpts)
	if err != nil {
		return nil, err
	}

	if err := tx.Process(ctx, s.client, card, s.gw); err != nil {
		return nil, err
	}

	s.logger.Info("charge processed",
		zap.String("operation", string(tx.Operation())),
		zap.String("payId", tx.PayID()),
		zap.String("orderId", tx.OrderID()),
		zap.String("status", tx.Status))

	return s.result(tx, card), nil
}

// Capture settles a prior authorization, optionally for a lower amount.
func (s *PaymentService) Capture(ctx context.Context, payID, orderID string, amount decimal.Decimal) (*ChargeResult, error) {
	tx, err := domain.NewTransaction(s.gw, domain.TransactionOptions{
		Operation: domain.OpAuthorize,
		Amount:    amount,
		OrderID:   orderID,
		PayID:     payID,
	})
	if err != nil {
		return nil, err
	}
	if err := tx.Update(s.gw, domain.TransactionOptions{Operation: domain.OpCapture}); err != nil {
		return nil, err
	}
	return s.maintain(ctx, tx, payID, orderID)
}

// Cancel voids an authorized payment.
func (s *PaymentService) Cancel(ctx context.Context, payID, orderID string, amount decimal.Decimal) (*ChargeResult, error) {
	tx, err := domain.NewTransaction(s.gw, domain.TransactionOptions{
		Operation: domain.OpCancel,
		Amount:    amount,
		OrderID:   orderID,
		PayID:     payID,
	})
	if err != nil {
		return nil, err
	}
	return s.maintain(ctx, tx, payID, orderID)
}

// Refund returns funds for a captured payment.
func (s *PaymentService) Refund(ctx context.Context, payID, orderID string, amount decimal.Decimal) (*ChargeResult, error) {
	tx, err := domain.NewTransaction(s.gw, domain.TransactionOptions{
		Operation: domain.OpRefund,
		Amount:    amount,
		OrderID:   orderID,
		PayID:     payID,
	})
	if err != nil {
		return nil, err
	}
	return s.maintain(ctx, tx, payID, orderID)
}

func (s *PaymentService) maintain(ctx context.Context, tx *domain.Transaction, payID, orderID string) (*ChargeResult, error) {
	card, err := domain.NewCard(s.gw, domain.CardOptions{PayID: payID, OrderID: orderID})
	if err != nil {
		return nil, err
	}

	if err := tx.Process(ctx, s.client, card, s.gw); err != nil {
		return nil, err
	}

	s.logger.Info("maintenance processed",
		zap.String("operation", string(tx.Operation())),
		zap.String("payId", tx.PayID()),
		zap.String("status", tx.Status))

	return s.result(tx, card), nil
}

func (s *PaymentService) result(tx *domain.Transaction, card *domain.Card) *ChargeResult {
	return &ChargeResult{
		PayID:      tx.PayID(),
		OrderID:    tx.OrderID(),
		Status:     tx.Status,
		StatusText: wire.StatusText(tx.Status),
		Acceptance: tx.Acceptance,
		Alias:      card.Alias,
	}
}

// AliasResult is the stored-payment-method view returned by the alias
// operations. The card number is the gateway-masked form.
type AliasResult struct {
	Alias        string
	PayID        string
	MaskedNumber string
	Issuer       string
	ExpiryMonth  int
	ExpiryYear   int
}

// RegisterAlias stores the payment method under the given alias. The
// gateway validates the card by running the minimal probe charge.
func (s *PaymentService) RegisterAlias(ctx context.Context, cardOpts domain.CardOptions, alias, aliasUsage string) (*AliasResult, error) {
	card, err := domain.NewCard(s.gw, cardOpts)
	if err != nil {
		return nil, err
	}

	extra := map[string]any{"alias": alias, "operation": domain.OpAuthorize.Code()}
	if aliasUsage != "" {
		extra["aliasUsage"] = aliasUsage
	}
	if _, err := card.Publish(ctx, s.client, s.gw, extra); err != nil {
		return nil, err
	}

	s.logger.Info("alias registered", zap.String("alias", card.Alias))
	return s.aliasResult(card), nil
}

// LoadAlias fetches the payment method stored under alias.
func (s *PaymentService) LoadAlias(ctx context.Context, alias string) (*AliasResult, error) {
	card, err := domain.NewCard(s.gw, domain.CardOptions{Alias: alias})
	if err != nil {
		return nil, err
	}
	if err := card.Load(ctx, s.client, s.gw); err != nil {
		return nil, err
	}
	return s.aliasResult(card), nil
}

// RedactAlias invalidates the payment method stored under alias by
// overwriting it with throwaway card data.
func (s *PaymentService) RedactAlias(ctx context.Context, alias string) error {
	card, err := domain.NewCard(s.gw, domain.CardOptions{Alias: alias})
	if err != nil {
		return err
	}
	if err := card.Redact(ctx, s.client, s.gw); err != nil {
		return err
	}
	s.logger.Info("alias redacted", zap.String("alias", alias))
	return nil
}

func (s *PaymentService) aliasResult(card *domain.Card) *AliasResult {
	// locally built cards carry the mask next to the full number; cards
	// loaded from the gateway only ever hold the masked form
	masked := card.HiddenNumber()
	if masked == "" {
		masked = card.Number()
	}
	return &AliasResult{
		Alias:        card.Alias,
		PayID:        card.PayID,
		MaskedNumber: masked,
		Issuer:       card.Issuer(),
		ExpiryMonth:  card.Month(),
		ExpiryYear:   card.Year(),
	}
}

// PrepareEcommerce builds the signed form for the hosted payment page.
func (s *PaymentService) PrepareEcommerce(cardOpts domain.CardOptions, txOpts domain.TransactionOptions) (*domain.EcommerceForm, error) {
	card, err := domain.NewCard(s.gw, cardOpts)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(txOpts.Amount, s.gw.AllowMaxAmount); err != nil {
		return nil, err
	}

	currency := txOpts.Currency
	if currency == "" {
		currency = s.gw.Currency
	}
	if !s.gw.AllowsCurrency(currency) {
		return nil, domain.NewSystemError("currency is not supported", currency)
	}

	op := txOpts.Operation
	if op == "" {
		op = domain.OpPurchase
	}
	extra := map[string]any{
		"operation": op.Code(),
		"amount":    txOpts.Amount,
		"currency":  currency,
	}
	if txOpts.OrderID != "" {
		extra["orderId"] = txOpts.OrderID
	}
	if txOpts.Email != "" {
		extra["email"] = txOpts.Email
	}
	return card.PublishForEcommerce(s.gw, extra)
}
