package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoundsToScale(t *testing.T) {
	m, err := New("100.505")
	require.NoError(t, err)
	assert.Equal(t, "100.51", m.String())
}

func TestNewRejectsGarbage(t *testing.T) {
	_, err := New("not-a-number")
	assert.Error(t, err)
}

func TestAddSubRoundTrip(t *testing.T) {
	a, _ := New("10.00")
	b, _ := New("3.25")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "13.25", sum.String())

	diff, err := sum.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, "10.00", diff.String())
}

func TestCmpAndSignHelpers(t *testing.T) {
	zero := Zero
	assert.True(t, zero.IsZero())
	assert.False(t, zero.IsPositive())
	assert.False(t, zero.IsNegative())

	pos, _ := New("1.00")
	assert.True(t, pos.IsPositive())
	assert.Equal(t, 1, pos.Cmp(zero))
	assert.Equal(t, -1, zero.Cmp(pos))
}

func TestTooManyDigitsRejected(t *testing.T) {
	_, err := New("1234567890123456789.00")
	assert.ErrorIs(t, err, errTooManyDigits)
}

func TestJSONRoundTripFromString(t *testing.T) {
	m, _ := New("42.40")
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"42.40"`, string(raw))

	var decoded Money
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 0, m.Cmp(decoded))
}

func TestJSONUnmarshalFromFloat(t *testing.T) {
	var decoded Money
	require.NoError(t, json.Unmarshal([]byte(`19.99`), &decoded))
	assert.Equal(t, "19.99", decoded.String())
}

func TestScanFromNumericColumnTypes(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("75.00"))
	assert.Equal(t, "75.00", m.String())

	var fromBytes Money
	require.NoError(t, fromBytes.Scan([]byte("12.34")))
	assert.Equal(t, "12.34", fromBytes.String())

	var fromNil Money
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())
}

func TestValueProducesDecimalString(t *testing.T) {
	m, _ := New("5")
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "5.00", v)
}
