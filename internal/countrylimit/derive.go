// Package countrylimit converts plan investment ranges into round amounts in
// each target country's currency.
package countrylimit

import (
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/plan"
	"github.com/zjoart/varlixo/pkg/apperr"
)

type step struct {
	below decimal.Decimal
	size  decimal.Decimal
}

var (
	steps = []step{
		{decimal.NewFromInt(100), decimal.NewFromInt(1)},
		{decimal.NewFromInt(1_000), decimal.NewFromInt(5)},
		{decimal.NewFromInt(5_000), decimal.NewFromInt(10)},
		{decimal.NewFromInt(20_000), decimal.NewFromInt(50)},
		{decimal.NewFromInt(100_000), decimal.NewFromInt(100)},
		{decimal.NewFromInt(500_000), decimal.NewFromInt(500)},
		{decimal.NewFromInt(2_000_000), decimal.NewFromInt(1_000)},
		{decimal.NewFromInt(10_000_000), decimal.NewFromInt(5_000)},
	}
	largestStep = decimal.NewFromInt(10_000)
)

// StepFor returns the rounding granularity for a local amount.
func StepFor(local decimal.Decimal) decimal.Decimal {
	for _, s := range steps {
		if local.LessThan(s.below) {
			return s.size
		}
	}
	return largestStep
}

func roundUp(local decimal.Decimal) decimal.Decimal {
	size := StepFor(local)
	return local.Div(size).Ceil().Mul(size)
}

func roundDown(local decimal.Decimal) decimal.Decimal {
	size := StepFor(local)
	return local.Div(size).Floor().Mul(size)
}

// Derive computes a plan's limits in a currency trading at rate units per USD.
// The minimum rounds up and the maximum rounds down; a maximum that falls
// below the minimum collapses onto it.
func Derive(currency string, minUSD, maxUSD, rate decimal.Decimal) (plan.CountryLimit, error) {
	if !rate.IsPositive() {
		return plan.CountryLimit{}, apperr.Validation("exchange rate must be greater than zero")
	}
	if minUSD.IsNegative() || maxUSD.LessThan(minUSD) {
		return plan.CountryLimit{}, apperr.Validation("plan range is invalid")
	}

	localMin := roundUp(minUSD.Mul(rate))
	localMax := roundDown(maxUSD.Mul(rate))
	if localMax.LessThan(localMin) {
		localMax = localMin
	}

	return plan.CountryLimit{
		Currency:      currency,
		Rate:          rate,
		LocalMin:      localMin,
		LocalMax:      localMax,
		MinInvestment: localMin.Div(rate).Round(2),
		MaxInvestment: localMax.Div(rate).Round(2),
	}, nil
}
