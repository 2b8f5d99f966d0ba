package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// Money is an amount in the smallest unit of its currency (yen, cents, ...).
type Money struct {
	AmountMinor int64
	Currency    currency.Unit
}

func (m Money) Validate() error {
	if m.AmountMinor < 0 {
		return errors.New("amount is negative")
	}

	if m.Currency == (currency.Unit{}) {
		return errors.New("currency is empty")
	}

	return nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.AmountMinor, m.Currency)
}

// PlatformFee returns round(amountMinor * feeRate), rounding half away from zero.
func PlatformFee(amountMinor int64, feeRate decimal.Decimal) int64 {
	return decimal.NewFromInt(amountMinor).Mul(feeRate).Round(0).IntPart()
}

// SplitFee divides a price into the platform fee and the seller's net.
// fee + net == amountMinor always holds.
func SplitFee(amountMinor int64, feeRate decimal.Decimal) (fee int64, net int64) {
	fee = PlatformFee(amountMinor, feeRate)
	return fee, amountMinor - fee
}

func ValidateFeeRate(feeRate decimal.Decimal) error {
	if feeRate.IsNegative() {
		return errors.New("fee rate is negative")
	}

	if feeRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("fee rate is greater than 1")
	}

	return nil
}

// ParseCurrency accepts ISO 4217 codes in any case, e.g. "jpy" as sent by the gateway.
func ParseCurrency(s string) (currency.Unit, error) {
	unit, err := currency.ParseISO(s)
	if err != nil {
		return currency.Unit{}, fmt.Errorf("currency[%s] is not valid: %w", s, err)
	}

	return unit, nil
}
