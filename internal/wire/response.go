// Package wire parses Postfinance gateway responses. The DirectLink response
// body is a single XML-like tag carrying every result field as an attribute;
// it is not a general XML document, so the fields are scraped with an
// attribute scanner rather than an XML parser.
package wire

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/swisspay/postfinance-payments/internal/core/domain"
)

var attrRe = regexp.MustCompile(`([A-Za-z0-9_]+)\s*=\s*"([^"]*)"`)

// ParseAttributes extracts name="value" pairs from the response body.
// Embedded newlines and extra whitespace are tolerated, and attributes with
// empty values are dropped.
func ParseAttributes(body string) map[string]string {
	node := strings.NewReplacer("\n", " ", "\r", " ").Replace(body)
	fields := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(node, -1) {
		if m[2] != "" {
			fields[m[1]] = m[2]
		}
	}
	return fields
}

// Classify inspects the NCERROR field of a parsed response. A value of "0"
// (or an absent field) means the business operation succeeded and nil is
// returned. Any other value yields a gateway error carrying the numeric code
// and the local description, concatenated with the caller-supplied context.
func Classify(fields map[string]string, context string) error {
	ncerror, ok := fields["NCERROR"]
	if !ok || ncerror == "0" {
		return nil
	}

	code, err := strconv.Atoi(ncerror)
	if err != nil {
		return domain.NewSystemError("gateway returned a malformed NCERROR value", ncerror)
	}
	if code == 0 {
		return nil
	}

	message := ErrorMessage(code)
	if context != "" {
		message = message + ": " + context
	}
	return domain.NewGatewayError(code, message)
}

// ncErrorMessages maps well-known NCERROR codes to descriptions. Codes not
// listed fall back to a generic message; the numeric code always travels on
// the error itself.
var ncErrorMessages = map[int]string{
	50001111: "data validation error",
	50001113: "payment already processed",
	50001119: "wrong expiry date",
	50001186: "authentication failed",
	30001001: "card number check failed",
	30001002: "payment method not activated",
	30001010: "card expired",
	30001011: "csc check failed",
	30141001: "transaction declined by acquirer",
	40001134: "authentication failed, please retry",
}

// ErrorMessage returns the local description for an NCERROR code.
func ErrorMessage(code int) string {
	if msg, ok := ncErrorMessages[code]; ok {
		return msg
	}
	return "gateway refused the operation"
}

// statusText maps the STATUS attribute to its meaning. See the DirectLink
// integration guide, "Transaction status" appendix.
var statusText = map[string]string{
	"0":  "invalid or incomplete",
	"1":  "cancelled by customer",
	"2":  "authorisation declined",
	"5":  "authorised",
	"6":  "authorised and cancelled",
	"7":  "payment deleted",
	"8":  "refund",
	"9":  "payment requested",
	"46": "waiting for identification",
	"51": "authorisation waiting",
	"91": "payment processing",
	"92": "payment uncertain",
	"93": "payment refused",
}

// StatusText returns a human-readable meaning for a STATUS value, or the raw
// value when it is not in the table.
func StatusText(status string) string {
	if txt, ok := statusText[status]; ok {
		return txt
	}
	return status
}
