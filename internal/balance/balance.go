// Package balance implements the statement-balance arithmetic used to
// verify an import: parsing currency-tagged amounts, comparing them, and
// formatting signed differences.
package balance

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Balance is a currency-tagged amount. Currency may be empty when the
// source string carried only a bare number.
type Balance struct {
	Currency string
	Amount   decimal.Decimal
}

// epsilon is the tolerance below which two amounts are considered equal.
var epsilon = decimal.RequireFromString("0.01")

var (
	currencyFirstRe = regexp.MustCompile(`^([A-Za-z]{1,10})\s*([-+]?\d+(?:\.\d+)?)$`)
	currencyLastRe  = regexp.MustCompile(`^([-+]?\d+(?:\.\d+)?)\s+([A-Za-z]{1,10})$`)
	bareAmountRe    = regexp.MustCompile(`^[-+]?\d+(?:\.\d+)?$`)
)

// Parse reads a balance in any of the forms "CHF 100.00", "100.00 CHF",
// "CHF100.00", or a bare signed decimal. Thousands separators are
// stripped before numeric parsing.
func Parse(s string) (Balance, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return Balance{}, fmt.Errorf("empty balance string")
	}

	var currency, amount string
	switch {
	case bareAmountRe.MatchString(s):
		amount = s
	case currencyFirstRe.MatchString(s):
		m := currencyFirstRe.FindStringSubmatch(s)
		currency, amount = m[1], m[2]
	case currencyLastRe.MatchString(s):
		m := currencyLastRe.FindStringSubmatch(s)
		amount, currency = m[1], m[2]
	default:
		return Balance{}, fmt.Errorf("unparseable balance %q", s)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Balance{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	return Balance{Currency: currency, Amount: d}, nil
}

// Match reports whether two balances are equal: currencies must be
// compatible and the absolute difference below epsilon. A mismatch
// between two specified currencies is a hard error, never coerced.
func Match(a, b Balance) (bool, error) {
	if err := checkCurrencies(a, b); err != nil {
		return false, err
	}
	return a.Amount.Sub(b.Amount).Abs().LessThan(epsilon), nil
}

// Diff formats actual minus expected with an explicit sign and the
// shared (or either available) currency code, e.g. "CHF +5.50".
func Diff(expected, actual Balance) (string, error) {
	if err := checkCurrencies(expected, actual); err != nil {
		return "", err
	}

	d := actual.Amount.Sub(expected.Amount)
	sign := "+"
	if d.IsNegative() {
		sign = "-"
	}

	currency := expected.Currency
	if currency == "" {
		currency = actual.Currency
	}
	if currency == "" {
		return sign + d.Abs().StringFixed(2), nil
	}
	return fmt.Sprintf("%s %s%s", currency, sign, d.Abs().StringFixed(2)), nil
}

func checkCurrencies(a, b Balance) error {
	if a.Currency != "" && b.Currency != "" && a.Currency != b.Currency {
		return fmt.Errorf("currency mismatch: %s vs %s", a.Currency, b.Currency)
	}
	return nil
}

// String renders a Balance the way Parse accepts it.
func (b Balance) String() string {
	if b.Currency == "" {
		return b.Amount.StringFixed(2)
	}
	return b.Currency + " " + b.Amount.StringFixed(2)
}
