// Package check contains pure credit-card checks: the Luhn Mod-10 checksum,
// issuer detection from the card number, and the issuer-dependent CSC length
// check. These run locally before any gateway round trip so common input
// errors are caught without spending a request.
package check

import (
	"regexp"
	"strings"
)

// IssuerInfo describes a detected card issuer and the patterns used to
// validate numbers and security codes for that issuer.
type IssuerInfo struct {
	Name   string
	Number *regexp.Regexp
	CSC    *regexp.Regexp
}

// issuers lists the detectable card networks. The patterns catch the major
// networks well enough to pick the right CSC rule; they are not a substitute
// for the gateway-side brand check. China UnionPay numbers fail Luhn.
var issuers = []IssuerInfo{
	{"Visa", regexp.MustCompile(`^4(\d{12}|\d{15})$`), regexp.MustCompile(`^\d{3}$`)},
	{"MasterCard", regexp.MustCompile(`^5[1-5]\d{14}$`), regexp.MustCompile(`^\d{3}$`)},
	{"American Express", regexp.MustCompile(`^3[47]\d{13}$`), regexp.MustCompile(`^\d{4}$`)},
	{"Diners Club", regexp.MustCompile(`^3(00|05|6\d|8\d)\d{11}$`), regexp.MustCompile(`^\d{3}$`)},
	{"Discover", regexp.MustCompile(`^(622[1-9]|6011|64[4-9]\d|65\d{2})\d{12}$`), regexp.MustCompile(`^\d{3}$`)},
	{"JCB", regexp.MustCompile(`^35(28|29|[3-8]\d)\d{12}$`), regexp.MustCompile(`^\d{3}$`)},
	{"China UnionPay", regexp.MustCompile(`^62\d{14}`), regexp.MustCompile(`^\d{3}$`)},
}

// unknownIssuer is returned when no pattern matches; it keeps the default
// 3-digit CSC rule.
var unknownIssuer = IssuerInfo{
	Name:   "Unknown",
	Number: regexp.MustCompile(`^\d{16}$`),
	CSC:    regexp.MustCompile(`^\d{3}$`),
}

// ExtractDigits strips all non-digit characters from s.
func ExtractDigits(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// Issuer returns the issuer name for the given card number, or "Unknown".
// The number is stripped of non-digit characters before matching.
func Issuer(number string) string {
	return IssuerDetails(number).Name
}

// IssuerDetails returns the full issuer record for the given card number.
func IssuerDetails(number string) IssuerInfo {
	card := ExtractDigits(number)
	if card == "" {
		return unknownIssuer
	}
	match := unknownIssuer
	for _, iss := range issuers {
		if iss.Number.MatchString(card) {
			match = iss
		}
	}
	return match
}

// Luhn checks the card number with the Luhn Mod-10 algorithm. Non-digit
// characters are stripped first. An empty or non-numeric input fails.
func Luhn(number string) bool {
	card := ExtractDigits(number)
	if card == "" {
		return false
	}

	sum := 0
	double := len(card)%2 == 0
	for i := 0; i < len(card); i++ {
		digit := int(card[i] - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}
	return sum%10 == 0
}

// CSCCheck validates the card security code against the issuer rule derived
// from the card number. American Express uses 4 digits, everything else 3.
func CSCCheck(number, csc string) bool {
	code := ExtractDigits(csc)
	if code == "" {
		return false
	}
	return IssuerDetails(number).CSC.MatchString(code)
}

// MaskNumber produces the display form of a card number: the issuer prefix
// and last four digits are kept, everything in between is replaced with X.
// Short inputs are masked entirely.
func MaskNumber(number string) string {
	card := ExtractDigits(number)
	n := len(card)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("X", n)
	}
	if n < 10 {
		return strings.Repeat("X", n-4) + card[n-4:]
	}
	return card[:6] + strings.Repeat("X", n-10) + card[n-4:]
}
