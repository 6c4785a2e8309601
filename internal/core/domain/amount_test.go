package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("123.00"), 1000))
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("999.99"), 1000))
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("1000"), 1000))

	err := ValidateAmount(decimal.RequireFromString("1000.01"), 1000)
	assert.True(t, IsSystem(err))

	err = ValidateAmount(decimal.RequireFromString("10.125"), 1000)
	assert.True(t, IsSystem(err))
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(12300), MinorUnits(decimal.RequireFromString("123.00")))
	assert.Equal(t, int64(12345), MinorUnits(decimal.RequireFromString("123.45")))
	assert.Equal(t, int64(100), MinorUnits(decimal.NewFromInt(1)))
	assert.Equal(t, int64(0), MinorUnits(decimal.Zero))
}
