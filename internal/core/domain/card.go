package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/swisspay/postfinance-payments/config"
	"github.com/swisspay/postfinance-payments/internal/check"
	"github.com/swisspay/postfinance-payments/internal/core/ports"
	"github.com/swisspay/postfinance-payments/internal/sign"
)

// Variant identifies how a Card was constructed. Exactly one variant is
// active per instance.
type Variant string

const (
	// VariantAlias references a gateway-stored payment method by alias.
	VariantAlias Variant = "alias"
	// VariantForm prepares a browser-posted payment page submission.
	VariantForm Variant = "form"
	// VariantRaw carries full card details for a server-to-server charge.
	VariantRaw Variant = "raw"
)

// CardOptions are the caller-supplied construction options. Which variant is
// built depends on which group of fields is set: Alias wins over
// PaymentMethod, which wins over raw card details.
type CardOptions struct {
	// Alias variant
	Alias      string
	AliasUsage string
	OrderID    string
	PayID      string

	// Form variant
	PaymentMethod string

	// Raw-card variant
	Number string
	CSC    string
	Year   string
	Month  string
	// Expiry is the combined form "MM/YY", "MM/YYYY" or "MMYY"; when set it
	// takes the place of Year/Month.
	Expiry string

	// Billing details, shared by the form and raw variants. Name, when set,
	// is split into first/last on the first space.
	Name      string
	FirstName string
	LastName  string
	Email     string
	Address1  string
	Address2  string
	City      string
	State     string
	Zip       string

	// Custom is an opaque JSON-serializable blob carried as COMPLUS.
	Custom any
}

// Card represents a payment method: a gateway alias, a form-based method, or
// raw card details. It builds the signed wire payload and tracks which
// fields changed since the last successful gateway round trip.
type Card struct {
	variant Variant

	number       string
	issuer       string
	hiddenNumber string
	year         int // offset from 2000; zero means unset
	month        int // 1..12; zero means unset

	CSC       string
	FirstName string
	LastName  string
	Email     string
	Address1  string
	Address2  string
	City      string
	State     string
	Zip       string

	paymentMethod string
	customJSON    string

	Alias      string
	AliasUsage string
	OrderID    string
	PayID      string

	// Amount in major units; only meaningful when the caller charges the
	// card directly instead of driving it through a Transaction.
	Amount decimal.Decimal

	baseline map[string]string
}

var expirySeparator = regexp.MustCompile(`[/ -]`)

// NewCard builds a payment method from the given options, picking the
// variant and normalizing fields. Raw-card construction without a number or
// CSC is a system error.
func NewCard(gw config.GatewayConfig, opts CardOptions) (*Card, error) {
	c := &Card{}

	switch {
	case opts.Alias != "" || opts.PayID != "":
		c.variant = VariantAlias
		c.Alias = opts.Alias
		c.AliasUsage = opts.AliasUsage
		c.OrderID = opts.OrderID
		if c.OrderID == "" && c.Alias != "" {
			c.OrderID = generateOrderID()
		}
		c.PayID = opts.PayID

	case opts.PaymentMethod != "":
		if !gw.AllowsPaymentMethod(opts.PaymentMethod) {
			return nil, NewSystemError("payment method is not valid", opts.PaymentMethod)
		}
		c.variant = VariantForm
		c.paymentMethod = opts.PaymentMethod
		c.issuer = opts.PaymentMethod
		c.setNames(opts)
		c.setBilling(opts)
		c.SetCustom(opts.Custom)

	default:
		c.variant = VariantRaw
		c.paymentMethod = "CreditCard"
		c.SetNumber(opts.Number)
		c.CSC = opts.CSC
		if c.number == "" {
			return nil, NewSystemError("card number is required", "")
		}
		if c.CSC == "" {
			return nil, NewSystemError("csc is required", "")
		}
		if opts.Expiry != "" {
			if err := c.SetExpiry(opts.Expiry); err != nil {
				return nil, err
			}
		} else {
			c.setYearString(opts.Year)
			c.setMonthString(opts.Month)
		}
		c.setNames(opts)
		c.setBilling(opts)
		c.SetCustom(opts.Custom)
	}

	c.ResetDirty()
	return c, nil
}

func (c *Card) setNames(opts CardOptions) {
	if opts.Name != "" {
		parts := strings.SplitN(opts.Name, " ", 2)
		c.FirstName = parts[0]
		if len(parts) > 1 {
			c.LastName = parts[1]
		}
		return
	}
	c.FirstName = opts.FirstName
	c.LastName = opts.LastName
}

func (c *Card) setBilling(opts CardOptions) {
	c.Email = opts.Email
	c.Address1 = opts.Address1
	c.Address2 = opts.Address2
	c.City = opts.City
	c.State = opts.State
	c.Zip = opts.Zip
}

func generateOrderID() string {
	return "AS" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Variant returns the active variant of this payment method.
func (c *Card) Variant() Variant { return c.variant }

// Number returns the stored card number.
func (c *Card) Number() string { return c.number }

// Issuer returns the detected (or declared) card issuer.
func (c *Card) Issuer() string { return c.issuer }

// HiddenNumber returns the masked display form of the card number.
func (c *Card) HiddenNumber() string { return c.hiddenNumber }

// PaymentMethod returns the PM label sent to the gateway.
func (c *Card) PaymentMethod() string { return c.paymentMethod }

// Year returns the normalized expiry year (offset from 2000), zero if unset.
func (c *Card) Year() int { return c.year }

// Month returns the expiry month in 1..12, zero if unset.
func (c *Card) Month() int { return c.month }

// SetNumber assigns the card number. For alias-identified instances the raw
// value is stored untouched, since it is presumed pre-validated by the
// gateway. Otherwise non-digit characters are stripped and the issuer and
// masked display number are derived.
func (c *Card) SetNumber(value string) {
	if c.variant == VariantAlias {
		c.number = value
		return
	}
	c.number = check.ExtractDigits(value)
	c.issuer = check.Issuer(value)
	c.hiddenNumber = check.MaskNumber(value)
}

// SetYear normalizes and stores the expiry year. Values below 10 are taken
// as the Nth year of the current decade, values in [10,100) as the Nth year
// of the current century; full years in [2000,2050) collapse to their
// offset from 2000. Zero or negative input leaves the year unset.
func (c *Card) SetYear(year int) {
	if year <= 0 {
		return
	}
	now := time.Now().Year()
	switch {
	case year < 10:
		year = now/10*10 + year
	case year < 100:
		year = now/100*100 + year
	}
	if year >= 2000 && year < 2050 {
		year -= 2000
	}
	c.year = year
}

// SetMonth stores the expiry month. Out-of-range values silently unset the
// month instead of failing; the expiration check treats an unset month as
// expired.
func (c *Card) SetMonth(month int) {
	if month < 1 || month > 12 {
		c.month = 0
		return
	}
	c.month = month
}

func (c *Card) setYearString(s string) {
	if y, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		c.SetYear(y)
	}
}

func (c *Card) setMonthString(s string) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		c.month = 0
		return
	}
	c.SetMonth(m)
}

// SetExpiry parses a combined expiry string: "MM/YY" or "MM/YYYY" (also with
// space or dash separators), or the 4-digit "MMYY" form. Anything else is a
// system error.
func (c *Card) SetExpiry(expiry string) error {
	s := strings.TrimSpace(expiry)
	parts := expirySeparator.Split(s, -1)
	if len(parts) == 2 {
		c.setMonthString(parts[0])
		c.setYearString(parts[1])
		return nil
	}
	if len(s) != 4 {
		return NewSystemError("expiry date is not well formed", expiry)
	}
	c.setMonthString(s[:2])
	c.setYearString(s[2:])
	return nil
}

// SetCustom stores an opaque JSON-serializable blob. Values that cannot be
// serialized are silently dropped.
func (c *Card) SetCustom(value any) {
	if value == nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.customJSON = string(b)
}

// Custom unmarshals the stored custom blob into out.
func (c *Card) Custom(out any) error {
	if c.customJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(c.customJSON), out)
}

// IsValid reports whether the card number passes the Luhn check and the CSC
// has the issuer-appropriate length. Both checks are delegated to the check
// package.
func (c *Card) IsValid() bool {
	if !check.Luhn(c.number) {
		return false
	}
	return check.CSCCheck(c.number, c.CSC)
}

// IsExpired reports whether the card expiry lies strictly before the current
// month. An unset year or month counts as expired.
func (c *Card) IsExpired() bool {
	if c.year == 0 || c.month == 0 {
		return true
	}
	now := time.Now()
	curYear := now.Year() - 2000
	curMonth := int(now.Month())
	if c.year < curYear {
		return true
	}
	return c.year == curYear && c.month < curMonth
}

// tracked returns the snapshot of fields covered by dirty tracking.
func (c *Card) tracked() map[string]string {
	year := ""
	if c.year != 0 {
		year = strconv.Itoa(c.year)
	}
	month := ""
	if c.month != 0 {
		month = strconv.Itoa(c.month)
	}
	return map[string]string{
		"number":        c.number,
		"csc":           c.CSC,
		"year":          year,
		"month":         month,
		"firstName":     c.FirstName,
		"lastName":      c.LastName,
		"address1":      c.Address1,
		"address2":      c.Address2,
		"city":          c.City,
		"state":         c.State,
		"zip":           c.Zip,
		"paymentMethod": c.paymentMethod,
		"custom":        c.customJSON,
	}
}

// Dirty returns the names of fields changed since the last checkpoint. The
// set is recomputed from the baseline on every call.
func (c *Card) Dirty() []string {
	current := c.tracked()
	var dirty []string
	for field, value := range current {
		if value != c.baseline[field] {
			dirty = append(dirty, field)
		}
	}
	return dirty
}

// ResetDirty replaces the baseline with the current field values, marking
// every field clean. Called after each successful gateway round trip.
func (c *Card) ResetDirty() {
	c.baseline = c.tracked()
}

// extraFieldSchema is the allow-list of caller-supplied payload options.
// Each entry names the wire field and the transform applied to the value;
// options outside this table are rejected with a system error.
var extraFieldSchema = map[string]struct {
	wire      string
	transform func(any) (string, error)
}{
	"orderId":     {"ORDERID", asString},
	"payId":       {"PAYID", asString},
	"PAYID":       {"PAYID", asString},
	"groupId":     {"GLOBORDERID", asString},
	"GLOBORDERID": {"GLOBORDERID", asString},
	"email":       {"EMAIL", asString},
	"operation":   {"OPERATION", asString},
	"OPERATION":   {"OPERATION", asString},
	"currency":    {"CURRENCY", asString},
	"amount":      {"AMOUNT", asMinorUnits},
	"com":         {"COM", asJSON},
	"alias":       {"ALIAS", asString},
	"aliasUsage":  {"ALIASUSAGE", asString},
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}

func asMinorUnits(v any) (string, error) {
	switch amount := v.(type) {
	case decimal.Decimal:
		return strconv.FormatInt(MinorUnits(amount), 10), nil
	case float64:
		return asMinorUnits(decimal.NewFromFloat(amount))
	case int:
		return asMinorUnits(decimal.NewFromInt(int64(amount)))
	case int64:
		return asMinorUnits(decimal.NewFromInt(amount))
	case string:
		// empty amount stays empty, so it is dropped from the payload
		if amount == "" {
			return "", nil
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return "", err
		}
		return asMinorUnits(d)
	default:
		return "", fmt.Errorf("unsupported amount type %T", v)
	}
}

func asJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Payload builds the canonical unsigned wire map for this payment method,
// merged with the caller-supplied extra options. Falsy/empty fields are
// dropped; unknown extra keys are a system error.
func (c *Card) Payload(gw config.GatewayConfig, extra map[string]any) (map[string]string, error) {
	fields := map[string]string{
		"USERID":       gw.APIUser,
		"PSPID":        gw.PSPID,
		"PSWD":         gw.APIPassword,
		"ORDERID":      c.OrderID,
		"AMOUNT":       strconv.FormatInt(c.amountMinorUnits(), 10),
		"CURRENCY":     gw.Currency,
		"CARDNO":       c.number,
		"CVC":          c.CSC,
		"COMPLUS":      c.customJSON,
		"ALIAS":        c.Alias,
		"ALIASUSAGE":   c.AliasUsage,
		"PM":           c.paymentMethod,
		"LANGUAGE":     gw.Language,
		"EMAIL":        c.Email,
		"OWNERZIP":     c.Zip,
		"OWNERCITY":    c.City,
		"OWNERADDRESS": c.Address1,
		"PAYID":        c.PayID,
	}

	if c.FirstName != "" && c.LastName != "" {
		fields["CN"] = c.FirstName + " " + c.LastName
	}
	if c.month != 0 && c.year != 0 {
		fields["ED"] = fmt.Sprintf("%02d%02d", c.month, c.year)
	}

	for key, value := range extra {
		schema, ok := extraFieldSchema[key]
		if !ok {
			return nil, NewSystemError("error preparing payment request", "unauthorized field: "+key)
		}
		rendered, err := schema.transform(value)
		if err != nil {
			return nil, WrapSystemError("error preparing payment request", err)
		}
		fields[schema.wire] = rendered
	}

	for key, value := range fields {
		if value == "" {
			delete(fields, key)
		}
	}
	return fields, nil
}

// amountMinorUnits returns the card amount in minor units, defaulting to the
// gateway's conventional 1.00 probe amount when none is set (alias
// registration charges the minimum).
func (c *Card) amountMinorUnits() int64 {
	if c.Amount.IsZero() {
		return 100
	}
	return MinorUnits(c.Amount)
}

// SignedPayload builds the payload and signs it with the configured secret.
// Outbound request signing uses the plain SHA-256 digest variant.
func (c *Card) SignedPayload(gw config.GatewayConfig, extra map[string]any) (map[string]string, error) {
	fields, err := c.Payload(gw, extra)
	if err != nil {
		return nil, err
	}
	return sign.Sign(fields, gw.SHASecret, gw.SHAWithSecret, sign.SHA256), nil
}

// operationCategories maps wire operation codes to the gateway path
// category. Codes absent from the table (including an empty OPERATION)
// default to the order endpoint.
var operationCategories = map[string]ports.Category{
	"RES": ports.CategoryOrder,
	"SAL": ports.CategoryOrder,
	"SAS": ports.CategoryMaintenance,
	"RFD": ports.CategoryMaintenance,
	"RFS": ports.CategoryMaintenance,
	"DES": ports.CategoryMaintenance,
	"DEL": ports.CategoryMaintenance,
	"REN": ports.CategoryMaintenance,
}

// OperationCategory returns the request category for a wire operation code.
func OperationCategory(code string) ports.Category {
	if cat, ok := operationCategories[code]; ok {
		return cat
	}
	return ports.CategoryOrder
}

// Publish submits the signed payload to the gateway and absorbs the
// resulting ALIAS/PAYID. It is the single round-trip primitive behind
// transaction processing and alias registration.
func (c *Card) Publish(ctx context.Context, client ports.TransportClient, gw config.GatewayConfig, extra map[string]any) (*ports.Response, error) {
	_, registersAlias := extra["alias"]
	if !registersAlias && c.number == "" && c.OrderID == "" && c.PayID == "" {
		return nil, NewSystemError("card is not ready to use", "")
	}
	if registersAlias && c.OrderID == "" {
		c.OrderID = generateOrderID()
	}

	payload, err := c.SignedPayload(gw, extra)
	if err != nil {
		return nil, err
	}

	resp, err := client.Execute(ctx, ports.Request{
		Category: OperationCategory(payload["OPERATION"]),
		Method:   "POST",
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	if alias := resp.Fields["ALIAS"]; alias != "" {
		c.Alias = alias
	}
	c.PayID = resp.Fields["PAYID"]
	c.ResetDirty()
	return resp, nil
}

// EcommerceForm is the prepared browser submission for the hosted payment
// page: the gateway path, the signed fields, and their urlencoded form.
type EcommerceForm struct {
	Path   string
	Fields map[string]string
	Query  string
}

// PublishForEcommerce prepares the signed payload for the hosted payment
// page. No network call is made; the browser posts the form.
func (c *Card) PublishForEcommerce(gw config.GatewayConfig, extra map[string]any) (*EcommerceForm, error) {
	if _, ok := extra["alias"]; ok && c.OrderID == "" {
		c.OrderID = generateOrderID()
	}

	payload, err := c.SignedPayload(gw, extra)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	for k, v := range payload {
		values.Set(k, v)
	}
	return &EcommerceForm{
		Path:   gw.Paths.Ecommerce,
		Fields: payload,
		Query:  values.Encode(),
	}, nil
}

// Load queries the gateway for the stored payment method and refreshes the
// card fields from the response. A response echoing a different alias than
// the one requested is an integrity failure, not a silent success.
func (c *Card) Load(ctx context.Context, client ports.TransportClient, gw config.GatewayConfig) error {
	if c.Alias == "" && c.PayID == "" {
		return NewSystemError("cannot load payment method without alias or payId", "")
	}

	payload, err := c.SignedPayload(gw, nil)
	if err != nil {
		return err
	}

	resp, err := client.Execute(ctx, ports.Request{
		Category: ports.CategoryQuery,
		Method:   "POST",
		Payload:  payload,
	})
	if err != nil {
		return err
	}

	if echoed := resp.Fields["ALIAS"]; c.Alias != "" && echoed != "" && echoed != c.Alias {
		return NewSystemError("loaded alias does not match the alias that was requested", echoed)
	}

	c.SetNumber(resp.Fields["CARDNO"])
	if brand := resp.Fields["BRAND"]; brand != "" {
		c.issuer = brand
	}
	if ed := resp.Fields["ED"]; len(ed) == 4 {
		c.setMonthString(ed[:2])
		c.setYearString(ed[2:])
	}
	c.ResetDirty()
	return nil
}

// Update republishes the card data under its alias. When no tracked field
// changed since the last checkpoint, Update succeeds without any network
// call.
func (c *Card) Update(ctx context.Context, client ports.TransportClient, gw config.GatewayConfig) error {
	if len(c.Dirty()) == 0 {
		return nil
	}
	if c.Alias == "" {
		return NewSystemError("cannot update payment method without alias", "")
	}
	_, err := c.Publish(ctx, client, gw, map[string]any{"alias": c.Alias})
	return err
}

// Redact invalidates the stored alias. DirectLink cannot delete an alias, so
// the stored card is overwritten with the sandbox test card expiring at the
// end of the current month and republished.
func (c *Card) Redact(ctx context.Context, client ports.TransportClient, gw config.GatewayConfig) error {
	if c.Alias == "" {
		return NewSystemError("cannot redact payment method without alias", "")
	}

	now := time.Now()
	c.variant = VariantRaw
	c.SetNumber("4111-1111-1111-1111")
	c.CSC = "111"
	c.SetYear(now.Year())
	c.SetMonth(int(now.Month()))
	c.FirstName = "Vault"
	c.LastName = strconv.FormatInt(now.UnixMilli(), 10)

	_, err := c.Publish(ctx, client, gw, map[string]any{"alias": c.Alias})
	return err
}
