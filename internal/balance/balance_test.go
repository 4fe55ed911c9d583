package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_CurrencyFirst(t *testing.T) {
	b, err := Parse("CHF 100.00")
	require.NoError(t, err)
	assert.Equal(t, "CHF", b.Currency)
	assert.Equal(t, "100.00", b.Amount.StringFixed(2))
}

func TestParse_CurrencyLast(t *testing.T) {
	b, err := Parse("100.00 CHF")
	require.NoError(t, err)
	assert.Equal(t, "CHF", b.Currency)
	assert.Equal(t, "100.00", b.Amount.StringFixed(2))
}

func TestParse_NoSpace(t *testing.T) {
	b, err := Parse("CHF100.00")
	require.NoError(t, err)
	assert.Equal(t, "CHF", b.Currency)
	assert.Equal(t, "100.00", b.Amount.StringFixed(2))
}

func TestParse_BareNumber(t *testing.T) {
	b, err := Parse("-42.7")
	require.NoError(t, err)
	assert.Empty(t, b.Currency)
	assert.Equal(t, "-42.70", b.Amount.StringFixed(2))
}

func TestParse_ThousandsSeparators(t *testing.T) {
	b, err := Parse("CHF 1,234,567.89")
	require.NoError(t, err)
	assert.Equal(t, "1234567.89", b.Amount.StringFixed(2))
}

func TestParse_NegativeWithCurrency(t *testing.T) {
	b, err := Parse("EUR -15.50")
	require.NoError(t, err)
	assert.Equal(t, "EUR", b.Currency)
	assert.True(t, b.Amount.IsNegative())
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse("not a balance")
	assert.Error(t, err)

	_, err = Parse("")
	assert.Error(t, err)
}

func TestMatch_Equal(t *testing.T) {
	a, err := Parse("CHF 100.00")
	require.NoError(t, err)
	b, err := Parse("CHF 100.00")
	require.NoError(t, err)

	ok, err := Match(a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_OffByOneCent(t *testing.T) {
	a, err := Parse("CHF 100.00")
	require.NoError(t, err)
	b, err := Parse("CHF 100.01")
	require.NoError(t, err)

	ok, err := Match(a, b)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatch_SubEpsilon(t *testing.T) {
	a, err := Parse("CHF 100.000")
	require.NoError(t, err)
	b, err := Parse("CHF 100.005")
	require.NoError(t, err)

	ok, err := Match(a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_OneUntagged(t *testing.T) {
	a, err := Parse("CHF 100.00")
	require.NoError(t, err)
	b, err := Parse("100.00")
	require.NoError(t, err)

	ok, err := Match(a, b)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatch_CurrencyMismatch(t *testing.T) {
	a, err := Parse("CHF 100.00")
	require.NoError(t, err)
	b, err := Parse("EUR 100.00")
	require.NoError(t, err)

	_, err = Match(a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "currency mismatch")
}

func TestDiff(t *testing.T) {
	expected, err := Parse("CHF 100.00")
	require.NoError(t, err)
	actual, err := Parse("CHF 105.50")
	require.NoError(t, err)

	diff, err := Diff(expected, actual)
	require.NoError(t, err)
	assert.Equal(t, "CHF +5.50", diff)
}

func TestDiff_Negative(t *testing.T) {
	expected, err := Parse("CHF 105.50")
	require.NoError(t, err)
	actual, err := Parse("CHF 100.00")
	require.NoError(t, err)

	diff, err := Diff(expected, actual)
	require.NoError(t, err)
	assert.Equal(t, "CHF -5.50", diff)
}

func TestDiff_NoCurrency(t *testing.T) {
	expected, err := Parse("10")
	require.NoError(t, err)
	actual, err := Parse("12.5")
	require.NoError(t, err)

	diff, err := Diff(expected, actual)
	require.NoError(t, err)
	assert.Equal(t, "+2.50", diff)
}

func TestDiff_CurrencyMismatch(t *testing.T) {
	expected, err := Parse("CHF 100.00")
	require.NoError(t, err)
	actual, err := Parse("EUR 100.00")
	require.NoError(t, err)

	_, err = Diff(expected, actual)
	assert.Error(t, err)
}

func TestBalanceString(t *testing.T) {
	b, err := Parse("CHF 100.5")
	require.NoError(t, err)
	assert.Equal(t, "CHF 100.50", b.String())

	b, err = Parse("-3")
	require.NoError(t, err)
	assert.Equal(t, "-3.00", b.String())
}
