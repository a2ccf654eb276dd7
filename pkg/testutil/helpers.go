// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/iwvelando/rental-forecast/internal/analysis"
)

// FindResult finds a deal result by name in the results slice.
// Returns nil if not found.
func FindResult(results []*analysis.Result, name string) *analysis.Result {
	for _, r := range results {
		if r != nil && r.Name == name {
			return r
		}
	}
	return nil
}

// SampleRequest returns a conventionally financed single-family deal that
// cash flows positively from year one.
func SampleRequest(name string) analysis.Request {
	return analysis.Request{
		Name:            name,
		PurchasePrice:   250000,
		DownPaymentPct:  20,
		InterestRate:    6.5,
		TermYears:       30,
		MonthlyRent:     2200,
		MonthlyExpenses: 800,
		HoldYears:       5,
		Growth: analysis.Growth{
			RentPct:         2,
			ExpensePct:      2,
			AppreciationPct: 3,
		},
	}
}
