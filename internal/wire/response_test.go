package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swisspay/postfinance-payments/internal/core/domain"
)

const sampleResponse = `<?xml version="1.0"?>
<ncresponse
	orderID="order-1"
	PAYID="3011229363"
	NCSTATUS="0"
	NCERROR="0"
	ACCEPTANCE="test123"
	STATUS="5"
	amount="130"
	currency="CHF"
	ALIAS="alias-77"
	NCERRORPLUS=""/>`

func TestParseAttributes(t *testing.T) {
	fields := ParseAttributes(sampleResponse)

	assert.Equal(t, "order-1", fields["orderID"])
	assert.Equal(t, "3011229363", fields["PAYID"])
	assert.Equal(t, "0", fields["NCERROR"])
	assert.Equal(t, "5", fields["STATUS"])
	assert.Equal(t, "alias-77", fields["ALIAS"])

	// empty attributes are dropped
	_, ok := fields["NCERRORPLUS"]
	assert.False(t, ok)
}

func TestParseAttributesToleratesSingleLine(t *testing.T) {
	fields := ParseAttributes(`<ncresponse PAYID="1" NCERROR="0" STATUS="9"/>`)
	assert.Equal(t, "1", fields["PAYID"])
	assert.Equal(t, "9", fields["STATUS"])
}

func TestClassifySuccess(t *testing.T) {
	assert.NoError(t, Classify(map[string]string{"NCERROR": "0"}, ""))
	assert.NoError(t, Classify(map[string]string{"STATUS": "5"}, ""))
}

func TestClassifyDecline(t *testing.T) {
	err := Classify(map[string]string{"NCERROR": "50001111"}, "order-1")
	require.Error(t, err)
	assert.True(t, domain.IsGateway(err))

	var pe *domain.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 50001111, pe.Code)
	assert.Contains(t, pe.Message, "data validation error")
	assert.Contains(t, pe.Message, "order-1")
}

func TestClassifyUnknownCodeKeepsNumber(t *testing.T) {
	err := Classify(map[string]string{"NCERROR": "99999999"}, "")
	require.Error(t, err)

	var pe *domain.PaymentError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 99999999, pe.Code)
}

func TestClassifyMalformedNCERROR(t *testing.T) {
	err := Classify(map[string]string{"NCERROR": "not-a-number"}, "")
	assert.True(t, domain.IsSystem(err))
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "authorised", StatusText("5"))
	assert.Equal(t, "payment requested", StatusText("9"))
	assert.Equal(t, "17", StatusText("17"))
}
