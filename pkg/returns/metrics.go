// Package returns derives return metrics, the composite deal score and the
// internal rate of return from a projected rental.
package returns

import (
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// ROI returns annual cash flow as a percentage of the initial investment.
// ok is false when the investment is zero, in which case the value is 0.
func ROI(annualCashFlow, initialInvestment float64) (value float64, ok bool) {
	if initialInvestment == 0 || !mathutil.AllFinite(annualCashFlow, initialInvestment) {
		return 0, false
	}
	return annualCashFlow / initialInvestment * 100, true
}

// CashOnCash is ROI measured on a single year's cash flow.
func CashOnCash(annualCashFlow, initialInvestment float64) (float64, bool) {
	return ROI(annualCashFlow, initialInvestment)
}

// CapRate returns annual NOI as a percentage of the purchase price.
func CapRate(noiAnnual, purchasePrice float64) (value float64, ok bool) {
	if purchasePrice == 0 || !mathutil.AllFinite(noiAnnual, purchasePrice) {
		return 0, false
	}
	return noiAnnual / purchasePrice * 100, true
}

// AnnualizedReturn spreads a cumulative gain evenly over the holding period
// and expresses it as a yearly percentage of the investment.
func AnnualizedReturn(gain, initialInvestment float64, years int) (float64, bool) {
	if years <= 0 {
		return 0, false
	}
	total, ok := ROI(gain, initialInvestment)
	if !ok {
		return 0, false
	}
	return total / float64(years), true
}
