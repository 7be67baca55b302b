package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// zeroDecimalCurrencies have no minor unit; every other currency uses two decimals.
var zeroDecimalCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "HUF": true,
	"JPY": true, "KMF": true, "KRW": true, "PYG": true, "RWF": true,
	"TWD": true, "UGX": true, "VND": true, "VUV": true, "XAF": true,
	"XOF": true, "XPF": true,
}

// Money is an amount in minor units tagged with an ISO-4217 currency code.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) (Money, error) {
	if amount < 0 {
		return Money{}, ErrInvalidAmount
	}
	code, err := NormalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: amount, Currency: code}, nil
}

// NormalizeCurrency upper-cases a currency code and checks its shape.
func NormalizeCurrency(currency string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if !currencyPattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	return code, nil
}

// Add sums two amounts of the same currency. A sum outside int64 fails with ErrInvalidAmount.
func Add(a, b Money) (Money, error) {
	if a.Currency != b.Currency {
		return Money{}, mismatch(a.Currency, b.Currency)
	}
	if (b.Amount > 0 && a.Amount > math.MaxInt64-b.Amount) ||
		(b.Amount < 0 && a.Amount < math.MinInt64-b.Amount) {
		return Money{}, overflow(a, "+", b.Amount)
	}
	return Money{Amount: a.Amount + b.Amount, Currency: a.Currency}, nil
}

// Multiply scales m by quantity. A product outside int64 fails with ErrInvalidAmount.
func Multiply(m Money, quantity int) (Money, error) {
	q := int64(quantity)
	if m.Amount != 0 && q != 0 {
		p := m.Amount * q
		if p/q != m.Amount || (q == -1 && m.Amount == math.MinInt64) {
			return Money{}, overflow(m, "x", q)
		}
	}
	return Money{Amount: m.Amount * q, Currency: m.Currency}, nil
}

func Equals(a, b Money) (bool, error) {
	if a.Currency != b.Currency {
		return false, mismatch(a.Currency, b.Currency)
	}
	return a.Amount == b.Amount, nil
}

// Format renders money for display, e.g. "25.00 USD".
func Format(m Money) string {
	return m.Decimal() + " " + m.Currency
}

func (m Money) String() string { return Format(m) }

// Decimal renders the amount in major units with the currency's precision.
func (m Money) Decimal() string {
	exp := exponent(m.Currency)
	return decimal.New(m.Amount, -exp).StringFixed(exp)
}

// ParseMoney converts a decimal string such as "25.00" into minor units.
func ParseMoney(value, currency string) (Money, error) {
	code, err := NormalizeCurrency(currency)
	if err != nil {
		return Money{}, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return Money{}, fmt.Errorf("parse amount %q: %w", value, err)
	}
	minor := d.Shift(exponent(code))
	if !minor.Equal(minor.Truncate(0)) {
		return Money{}, fmt.Errorf("%w: %q has more precision than %s allows", ErrInvalidAmount, value, code)
	}
	return NewMoney(minor.IntPart(), code)
}

func exponent(currency string) int32 {
	if zeroDecimalCurrencies[currency] {
		return 0
	}
	return 2
}

func overflow(m Money, op string, n int64) error {
	return fmt.Errorf("%w: %d %s %d overflows %s", ErrInvalidAmount, m.Amount, op, n, m.Currency)
}

func mismatch(a, b string) error {
	return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a, b)
}
