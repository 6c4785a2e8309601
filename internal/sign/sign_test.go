package sign

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalSortsAndAppendsSecret(t *testing.T) {
	fields := map[string]string{"b": "2", "a": "1"}
	assert.Equal(t, "a=1Sb=2S", Canonical(fields, "S", true))
	assert.Equal(t, "a=1b=2", Canonical(fields, "S", false))
}

func TestCanonicalDropsEmptyAndSHASIGN(t *testing.T) {
	fields := map[string]string{
		"AMOUNT":  "12300",
		"CARDNO":  "",
		"SHASIGN": "DEADBEEF",
		"shasign": "deadbeef",
	}
	assert.Equal(t, "AMOUNT=12300S", Canonical(fields, "S", true))
}

func TestSignMatchesLiteralDigest(t *testing.T) {
	fields := map[string]string{"a": "1", "b": "2"}
	signed := Sign(fields, "S", true, SHA256)

	digest := sha256.Sum256([]byte("a=1Sb=2S"))
	want := strings.ToUpper(hex.EncodeToString(digest[:]))
	assert.Equal(t, want, signed[FieldName])

	// input map is not mutated
	_, ok := fields[FieldName]
	assert.False(t, ok)
}

func TestSignDeterministicAcrossInsertionOrder(t *testing.T) {
	a := map[string]string{}
	a["ORDERID"] = "X"
	a["AMOUNT"] = "13000"
	a["PSPID"] = "shop"

	b := map[string]string{}
	b["PSPID"] = "shop"
	b["AMOUNT"] = "13000"
	b["ORDERID"] = "X"

	assert.Equal(t,
		Compute(a, "secret", true, SHA256),
		Compute(b, "secret", true, SHA256))
}

func TestVerify(t *testing.T) {
	fields := map[string]string{"ORDERID": "X", "AMOUNT": "13000"}
	signed := Sign(fields, "secret", true, HMACSHA256)
	assert.True(t, Verify(signed, "secret", true, HMACSHA256))

	// case-insensitive comparison
	signed[FieldName] = strings.ToLower(signed[FieldName])
	assert.True(t, Verify(signed, "secret", true, HMACSHA256))

	// wrong secret, tampered value, missing signature
	assert.False(t, Verify(signed, "other", true, HMACSHA256))
	signed["AMOUNT"] = "1"
	assert.False(t, Verify(signed, "secret", true, HMACSHA256))
	assert.False(t, Verify(fields, "secret", true, HMACSHA256))
}

func TestEmptyFieldDoesNotChangeSignature(t *testing.T) {
	with := map[string]string{"a": "1", "b": ""}
	without := map[string]string{"a": "1"}
	assert.Equal(t,
		Compute(with, "S", true, SHA256),
		Compute(without, "S", true, SHA256))
}
