// Package sign implements the SHASIGN scheme used by the Postfinance
// gateway: request fields are canonicalized into a deterministic string and
// hashed, and inbound callback payloads are verified with the exact same
// canonicalization.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Field name carrying the signature. It is always excluded from its own input.
const FieldName = "SHASIGN"

// Algorithm selects how the canonical string is hashed.
type Algorithm int

const (
	// SHA256 hashes the canonical string with a plain SHA-256 digest.
	// This is the algorithm used for outbound DirectLink requests.
	SHA256 Algorithm = iota
	// HMACSHA256 hashes with a keyed HMAC-SHA-256 using the secret as key.
	HMACSHA256
)

// Canonical builds the string that gets hashed: fields with empty values are
// dropped, remaining keys are sorted in ordinal order, and each entry is
// rendered as KEY=value followed by the secret when appendSecret is set.
// There is no delimiter between entries. The SHASIGN field itself never
// participates. The concatenation operates on the raw UTF-8 bytes of the
// values.
func Canonical(fields map[string]string, secret string, appendSecret bool) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == "" || strings.EqualFold(k, FieldName) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	suffix := ""
	if appendSecret {
		suffix = secret
	}

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(fields[k])
		sb.WriteString(suffix)
	}
	return sb.String()
}

// Sign computes the signature for the given fields and returns a copy of the
// map with the SHASIGN field set. Fields with empty values are not part of
// the signature input; callers drop them from the transmitted payload too.
func Sign(fields map[string]string, secret string, appendSecret bool, algo Algorithm) map[string]string {
	signed := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		signed[k] = v
	}
	signed[FieldName] = Compute(fields, secret, appendSecret, algo)
	return signed
}

// Compute returns the upper-case hex signature of the canonical string.
func Compute(fields map[string]string, secret string, appendSecret bool, algo Algorithm) string {
	canonical := Canonical(fields, secret, appendSecret)

	var sum []byte
	switch algo {
	case HMACSHA256:
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(canonical))
		sum = mac.Sum(nil)
	default:
		digest := sha256.Sum256([]byte(canonical))
		sum = digest[:]
	}
	return strings.ToUpper(hex.EncodeToString(sum))
}

// Verify recomputes the signature over fields and compares it with the
// SHASIGN value they carry, case-insensitively. Missing SHASIGN fails.
func Verify(fields map[string]string, secret string, appendSecret bool, algo Algorithm) bool {
	var got string
	for k, v := range fields {
		if strings.EqualFold(k, FieldName) {
			got = v
			break
		}
	}
	if got == "" {
		return false
	}
	want := Compute(fields, secret, appendSecret, algo)
	return strings.EqualFold(got, want)
}
