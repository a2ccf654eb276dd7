// Package validation provides configuration validation utilities.
package validation

import "fmt"

// ValidateGrowth warns when expenses compound faster than rent.
func ValidateGrowth(dealName string, rentPct, expensePct float64) string {
	if expensePct > rentPct {
		return fmt.Sprintf("deal %s: expenses grow faster than rent (%.2f%% vs %.2f%%)", dealName, expensePct, rentPct)
	}
	return ""
}

// ValidateSaleYear warns when the sale happens before the end of the projection.
func ValidateSaleYear(dealName string, saleYear, holdYears int) string {
	if saleYear > 0 && saleYear < holdYears {
		return fmt.Sprintf("deal %s: sale in year %d precedes the %d-year horizon; later years are ignored for exit metrics",
			dealName, saleYear, holdYears)
	}
	return ""
}

// ValidateRent warns about a priced deal with no rental income.
func ValidateRent(dealName string, purchasePrice, monthlyRent float64) string {
	if purchasePrice > 0 && monthlyRent == 0 {
		return fmt.Sprintf("deal %s has no rent", dealName)
	}
	return ""
}

// DealChecks carries the fields the deal-level checks look at.
type DealChecks struct {
	Name          string
	PurchasePrice float64
	MonthlyRent   float64
	RentGrowth    float64
	ExpenseGrowth float64
	HoldYears     int
	SaleYear      int
}

// ValidateDeal runs every deal-level check and returns the warnings raised.
func ValidateDeal(d DealChecks) []string {
	var warnings []string
	for _, w := range []string{
		ValidateGrowth(d.Name, d.RentGrowth, d.ExpenseGrowth),
		ValidateSaleYear(d.Name, d.SaleYear, d.HoldYears),
		ValidateRent(d.Name, d.PurchasePrice, d.MonthlyRent),
	} {
		if w != "" {
			warnings = append(warnings, w)
		}
	}
	return warnings
}
