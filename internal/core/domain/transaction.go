package domain

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/core/ports"
)

// Operation is a transaction lifecycle operation. Each maps to a wire
// operation code; the zero value is invalid.
type Operation string

const (
	OpAuthorize Operation = "authorize"
	OpPurchase  Operation = "purchase"
	OpCapture   Operation = "capture"
	OpCancel    Operation = "cancel"
	OpRefund    Operation = "refund"
)

// operationCodes maps lifecycle operations to DirectLink operation codes. A
// capture of a prior authorization is a SAL against the original PAYID.
var operationCodes = map[Operation]string{
	OpAuthorize: "RES",
	OpPurchase:  "SAL",
	OpCapture:   "SAL",
	OpCancel:    "SAS",
	OpRefund:    "RFD",
}

// Valid reports whether o is one of the known lifecycle operations.
func (o Operation) Valid() bool {
	_, ok := operationCodes[o]
	return ok
}

// Maintenance reports whether the operation acts on an existing payment and
// therefore requires a PAYID.
func (o Operation) Maintenance() bool {
	return o == OpCancel || o == OpRefund
}

// Code returns the wire operation code.
func (o Operation) Code() string {
	return operationCodes[o]
}

// Transaction is one lifecycle step against the gateway: an authorization, a
// purchase, a capture of a prior authorization, a cancellation, or a refund.
// A transaction is built, optionally updated, then processed; a processed
// authorization can be promoted to a capture and processed again against the
// same payId.
type Transaction struct {
	operation Operation
	payID     string
	orderID   string

	Amount   decimal.Decimal
	Currency string
	Email    string
	GroupID  string

	// Result fields absorbed from the gateway response.
	Status     string
	Acceptance string

	processed bool
}

// TransactionOptions are the construction options for a transaction.
type TransactionOptions struct {
	Operation Operation
	Amount    decimal.Decimal
	Currency  string
	Email     string
	GroupID   string
	OrderID   string
	PayID     string
}

// NewTransaction validates the options and builds a transaction. New charges
// require an order identifier and a positive amount; maintenance operations
// require a PAYID and may omit the amount to act on the full payment. Any
// given amount is checked against the configured ceiling and the
// two-fractional-digit rule.
func NewTransaction(gw config.GatewayConfig, opts TransactionOptions) (*Transaction, error) {
	if !opts.Operation.Valid() {
		return nil, NewSystemError("operation is not valid", string(opts.Operation))
	}
	if opts.Operation.Maintenance() {
		if opts.PayID == "" {
			return nil, NewSystemError("operation requires a payId", string(opts.Operation))
		}
	} else {
		if opts.OrderID == "" {
			return nil, NewSystemError("order identifier is required", string(opts.Operation))
		}
		if !opts.Amount.IsPositive() {
			return nil, NewSystemError("amount must be positive", opts.Amount.String())
		}
	}
	if !opts.Amount.IsZero() {
		if err := ValidateAmount(opts.Amount, gw.AllowMaxAmount); err != nil {
			return nil, err
		}
	}

	currency := opts.Currency
	if currency == "" {
		currency = gw.Currency
	}

	return &Transaction{
		operation: opts.Operation,
		payID:     opts.PayID,
		orderID:   opts.OrderID,
		Amount:    opts.Amount,
		Currency:  currency,
		Email:     opts.Email,
		GroupID:   opts.GroupID,
	}, nil
}

// Operation returns the current lifecycle operation.
func (t *Transaction) Operation() Operation { return t.operation }

// PayID returns the gateway payment reference, empty until processed.
func (t *Transaction) PayID() string { return t.payID }

// OrderID returns the merchant order reference.
func (t *Transaction) OrderID() string { return t.orderID }

// Processed reports whether the transaction already went through the gateway.
func (t *Transaction) Processed() bool { return t.processed }

// transactionJSON is the flat serialized shape of a transaction: operation
// and references first, then the caller-facing data fields. Gateway result
// fields are not part of the round trip.
type transactionJSON struct {
	Operation Operation `json:"operation"`
	PayID     string    `json:"payId,omitempty"`
	OrderID   string    `json:"orderId,omitempty"`
	Amount    string    `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Email     string    `json:"email,omitempty"`
	GroupID   string    `json:"groupId,omitempty"`
}

// ToJSON serializes the transaction so it can be persisted between the
// authorize and capture steps and rebuilt with ParseTransaction.
func (t *Transaction) ToJSON() ([]byte, error) {
	stored := transactionJSON{
		Operation: t.operation,
		PayID:     t.payID,
		OrderID:   t.orderID,
		Currency:  t.Currency,
		Email:     t.Email,
		GroupID:   t.GroupID,
	}
	if !t.Amount.IsZero() {
		stored.Amount = t.Amount.String()
	}
	return json.Marshal(stored)
}

// ParseTransaction rebuilds a transaction from its ToJSON form, running the
// same validation as NewTransaction.
func ParseTransaction(gw config.GatewayConfig, raw []byte) (*Transaction, error) {
	var stored transactionJSON
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, WrapSystemError("transaction payload is not valid JSON", err)
	}

	amount := decimal.Zero
	if stored.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(stored.Amount)
		if err != nil {
			return nil, WrapSystemError("transaction amount is not a valid decimal", err)
		}
	}

	return NewTransaction(gw, TransactionOptions{
		Operation: stored.Operation,
		Amount:    amount,
		Currency:  stored.Currency,
		Email:     stored.Email,
		GroupID:   stored.GroupID,
		OrderID:   stored.OrderID,
		PayID:     stored.PayID,
	})
}

// Update mutates the transaction in place. The only supported promotion is
// authorize to capture; promoting a processed authorization reopens it for
// the capture round trip against the same payId. Any other change to an
// already-processed transaction is an error, and a new amount goes through
// the same validation as construction.
func (t *Transaction) Update(gw config.GatewayConfig, opts TransactionOptions) error {
	if opts.Operation != "" && opts.Operation != t.operation {
		if t.operation != OpAuthorize || opts.Operation != OpCapture {
			return NewSystemError("operation cannot be changed",
				string(t.operation)+" to "+string(opts.Operation))
		}
		t.operation = opts.Operation
		t.processed = false
	} else if t.processed {
		return NewSystemError("transaction has already been processed", t.payID)
	}
	if !opts.Amount.IsZero() {
		if err := ValidateAmount(opts.Amount, gw.AllowMaxAmount); err != nil {
			return err
		}
		t.Amount = opts.Amount
	}
	if opts.Currency != "" {
		t.Currency = opts.Currency
	}
	if opts.Email != "" {
		t.Email = opts.Email
	}
	if opts.GroupID != "" {
		t.GroupID = opts.GroupID
	}
	if opts.OrderID != "" {
		t.orderID = opts.OrderID
	}
	return nil
}

// payload builds the extra wire options merged into the card payload. An
// amount-less maintenance operation sends no AMOUNT field at all, which the
// gateway reads as acting on the full payment; the empty override suppresses
// the payment method's probe default.
func (t *Transaction) payload() map[string]any {
	extra := map[string]any{
		"operation": t.operation.Code(),
		"currency":  t.Currency,
	}
	if t.Amount.IsPositive() {
		extra["amount"] = t.Amount
	} else {
		extra["amount"] = ""
	}
	if t.orderID != "" {
		extra["orderId"] = t.orderID
	}
	if t.payID != "" {
		extra["payId"] = t.payID
	}
	if t.Email != "" {
		extra["email"] = t.Email
	}
	if t.GroupID != "" {
		extra["groupId"] = t.GroupID
	}
	return extra
}

// Process submits the transaction through the card's publish primitive and
// absorbs the gateway's references. The currency must be in the configured
// allow-list; processing twice is an error.
func (t *Transaction) Process(ctx context.Context, client ports.TransportClient, card *Card, gw config.GatewayConfig) error {
	if t.processed {
		return NewSystemError("transaction has already been processed", t.payID)
	}
	if !gw.AllowsCurrency(t.Currency) {
		return NewSystemError("currency is not supported", t.Currency)
	}
	if t.operation.Maintenance() && t.payID == "" {
		return NewSystemError("operation requires a payId", string(t.operation))
	}

	resp, err := card.Publish(ctx, client, gw, t.payload())
	if err != nil {
		return err
	}

	if payID := resp.Fields["PAYID"]; payID != "" {
		t.payID = payID
	}
	if orderID := resp.Fields["ORDERID"]; orderID != "" {
		t.orderID = orderID
	}
	t.Status = resp.Fields["STATUS"]
	t.Acceptance = resp.Fields["ACCEPTANCE"]
	t.processed = true
	return nil
}

// Cancel voids an authorized payment. Requires the payment and order
// references absorbed from a prior Process.
func (t *Transaction) Cancel(ctx context.Context, client ports.TransportClient, card *Card, gw config.GatewayConfig) error {
	return t.maintain(ctx, client, card, gw, OpCancel)
}

// Refund returns funds for a captured payment.
func (t *Transaction) Refund(ctx context.Context, client ports.TransportClient, card *Card, gw config.GatewayConfig) error {
	return t.maintain(ctx, client, card, gw, OpRefund)
}

func (t *Transaction) maintain(ctx context.Context, client ports.TransportClient, card *Card, gw config.GatewayConfig, op Operation) error {
	if t.payID == "" || t.orderID == "" {
		return NewSystemError("operation requires a processed payment", string(op))
	}
	t.operation = op
	t.processed = false
	return t.Process(ctx, client, card, gw)
}
