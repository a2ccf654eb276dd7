// Package tax applies simplified depreciation, tax savings and sale proceeds
// to a projected rental. It is an estimate, not a tax engine.
package tax

import (
	"errors"
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// ErrInvalidAssumptions is returned for out-of-range tax or sale settings.
var ErrInvalidAssumptions = errors.New("invalid tax assumptions")

// AnnualDepreciation is straight-line depreciation of the building portion of the price.
// A land share of 100% leaves nothing to depreciate.
func AnnualDepreciation(price, landPct float64) float64 {
	building := price * (1 - landPct/constants.PercentageMultiplier)
	if building <= 0 {
		return 0
	}
	return building / constants.DepreciationYears
}

// Savings is the tax shield produced by depreciation at the given marginal rate.
func Savings(depreciation, taxRatePct float64) float64 {
	return mathutil.ApplyPercentage(depreciation, taxRatePct)
}

// AfterTaxCashFlow adds the depreciation tax shield to a pre-tax cash flow.
func AfterTaxCashFlow(cashFlow, savings float64) float64 {
	return cashFlow + savings
}

// SaleAssumptions configures the terminal sale.
type SaleAssumptions struct {
	SellingCostPct   float64 `json:"sellingCostPct" yaml:"sellingCostPct" mapstructure:"sellingCostPct"`
	CapitalGainsRate float64 `json:"capitalGainsRate" yaml:"capitalGainsRate" mapstructure:"capitalGainsRate"`
}

// DefaultSaleAssumptions returns 6% selling costs and a 15% capital gains rate.
func DefaultSaleAssumptions() SaleAssumptions {
	return SaleAssumptions{
		SellingCostPct:   constants.DefaultSellingCostPct,
		CapitalGainsRate: constants.DefaultCapitalGainsRate,
	}
}

// Validate checks both percentages lie in [0, 100].
func (a SaleAssumptions) Validate() error {
	if !mathutil.AllFinite(a.SellingCostPct, a.CapitalGainsRate) ||
		a.SellingCostPct < 0 || a.SellingCostPct > 100 ||
		a.CapitalGainsRate < 0 || a.CapitalGainsRate > 100 {
		return fmt.Errorf("%w: selling costs %.2f%% and capital gains rate %.2f%% must be within 0-100",
			ErrInvalidAssumptions, a.SellingCostPct, a.CapitalGainsRate)
	}
	return nil
}

// Sale breaks down the proceeds of selling the property.
type Sale struct {
	Year             int     `json:"year"`
	SaleValue        float64 `json:"saleValue"`
	SellingCosts     float64 `json:"sellingCosts"`
	RemainingBalance float64 `json:"remainingBalance"`
	CapitalGain      float64 `json:"capitalGain"`
	CapitalGainsTax  float64 `json:"capitalGainsTax"`
	NetProceeds      float64 `json:"netProceeds"`
}

// SaleProceeds nets selling costs, the loan payoff and an approximate capital
// gains tax out of the sale value. Losses are not taxed.
func SaleProceeds(saleValue, purchasePrice, remainingBalance float64, a SaleAssumptions) Sale {
	sellingCosts := mathutil.ApplyPercentage(saleValue, a.SellingCostPct)
	gain := mathutil.Max(0, saleValue-purchasePrice)
	cgt := mathutil.ApplyPercentage(gain, a.CapitalGainsRate)
	return Sale{
		SaleValue:        saleValue,
		SellingCosts:     sellingCosts,
		RemainingBalance: remainingBalance,
		CapitalGain:      gain,
		CapitalGainsTax:  cgt,
		NetProceeds:      saleValue - sellingCosts - remainingBalance - cgt,
	}
}
