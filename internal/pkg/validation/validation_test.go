package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAmountRejectsNonPositive(t *testing.T) {
	assert.Error(t, ValidateAmount("0"))
	assert.Error(t, ValidateAmount("-5.00"))
	assert.Error(t, ValidateAmount("abc"))
	assert.NoError(t, ValidateAmount("10.50"))
}

func TestValidateOwnerNameBounds(t *testing.T) {
	assert.Error(t, ValidateOwnerName("A"))
	assert.Error(t, ValidateOwnerName(""))
	assert.NoError(t, ValidateOwnerName("Ada Lovelace"))
	assert.Error(t, ValidateOwnerName("Ada123"))
}

func TestValidateCurrencyKnownOnly(t *testing.T) {
	assert.NoError(t, ValidateCurrency("usd"))
	assert.NoError(t, ValidateCurrency("KES"))
	assert.Error(t, ValidateCurrency("XYZ"))
}
