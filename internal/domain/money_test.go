package domain_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func TestPlatformFee(t *testing.T) {
	tests := []struct {
		name        string
		amountMinor int64
		feeRate     string
		want        int64
	}{
		{name: "exact", amountMinor: 1000, feeRate: "0.15", want: 150},
		{name: "rounds up", amountMinor: 333, feeRate: "0.15", want: 50},
		{name: "rounds down", amountMinor: 331, feeRate: "0.15", want: 50},
		{name: "half away from zero", amountMinor: 25, feeRate: "0.1", want: 3},
		{name: "free note", amountMinor: 0, feeRate: "0.15", want: 0},
		{name: "no fee", amountMinor: 999, feeRate: "0", want: 0},
		{name: "full fee", amountMinor: 999, feeRate: "1", want: 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee := domain.PlatformFee(tt.amountMinor, decimal.RequireFromString(tt.feeRate))
			assert.Equal(t, tt.want, fee)
		})
	}
}

func TestSplitFee_Conserves(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("fee + net == amount and both stay within [0, amount]", prop.ForAll(
		func(amountMinor int64, basisPoints int) bool {
			feeRate := decimal.New(int64(basisPoints), -4)

			fee, net := domain.SplitFee(amountMinor, feeRate)

			return fee+net == amountMinor &&
				fee >= 0 && fee <= amountMinor &&
				net >= 0 && net <= amountMinor
		},
		gen.Int64Range(0, 1_000_000_000),
		gen.IntRange(0, 10_000),
	))

	properties.TestingRun(t)
}

func TestValidateFeeRate(t *testing.T) {
	tests := []struct {
		name      string
		feeRate   string
		wantError string
	}{
		{name: "zero", feeRate: "0"},
		{name: "typical", feeRate: "0.15"},
		{name: "one", feeRate: "1"},
		{name: "negative: error", feeRate: "-0.01", wantError: "fee rate is negative"},
		{name: "above one: error", feeRate: "1.01", wantError: "fee rate is greater than 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateFeeRate(decimal.RequireFromString(tt.feeRate))
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestMoney_Validate(t *testing.T) {
	require.NoError(t, domain.Money{AmountMinor: 0, Currency: currency.JPY}.Validate())

	err := domain.Money{AmountMinor: -1, Currency: currency.JPY}.Validate()
	require.EqualError(t, err, "amount is negative")

	err = domain.Money{AmountMinor: 100}.Validate()
	require.EqualError(t, err, "currency is empty")
}

func TestParseCurrency(t *testing.T) {
	unit, err := domain.ParseCurrency("jpy")
	require.NoError(t, err)
	assert.Equal(t, currency.JPY, unit)

	_, err = domain.ParseCurrency("XX")
	require.ErrorContains(t, err, "currency[XX] is not valid")
}
