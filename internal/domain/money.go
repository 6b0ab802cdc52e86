package domain

import "fmt"

// DefaultCurrency is applied when a request omits the currency code.
const DefaultCurrency = "ETB"

// BreakdownTolerance is the allowed drift, in minor units, between a
// reported net amount and the amount recomputed from the breakdown.
const BreakdownTolerance = 1

// Money is an amount in minor units (cents/santim) plus an ISO 4217
// currency code. Arithmetic stays in int64 so fee math never touches
// floats.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(amount int64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: amount, Currency: currency}
}

func (m Money) IsZero() bool     { return m.Amount == 0 }
func (m Money) IsPositive() bool { return m.Amount > 0 }

// SameCurrency reports whether both amounts share a currency code.
func (m Money) SameCurrency(o Money) bool { return m.Currency == o.Currency }

func (m Money) String() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, a/100, a%100, m.Currency)
}

// Breakdown decomposes a payment's gross amount into fees, tax and the
// net payout. All legs must share the payment's currency.
type Breakdown struct {
	Gross         Money `json:"gross"`
	PlatformFee   Money `json:"platformFee"`
	ProcessingFee Money `json:"processingFee"`
	Tax           Money `json:"tax"`
	Net           Money `json:"net"`
}

// Validate checks net == gross - platformFee - processingFee - tax
// within BreakdownTolerance minor units, and that every leg carries the
// same currency.
func (b Breakdown) Validate() error {
	for _, leg := range []Money{b.PlatformFee, b.ProcessingFee, b.Tax, b.Net} {
		if !b.Gross.SameCurrency(leg) {
			return &BreakdownMismatchError{Want: b.Gross, Got: leg, Reason: "currency mismatch"}
		}
	}
	want := b.Gross.Amount - b.PlatformFee.Amount - b.ProcessingFee.Amount - b.Tax.Amount
	diff := want - b.Net.Amount
	if diff < 0 {
		diff = -diff
	}
	if diff > BreakdownTolerance {
		return &BreakdownMismatchError{
			Want:   NewMoney(want, b.Gross.Currency),
			Got:    b.Net,
			Reason: "net does not equal gross minus fees and tax",
		}
	}
	return nil
}
