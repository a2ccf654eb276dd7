package analysis

import (
	"errors"
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// ExpenseAssumptions itemizes operating costs. Taxes and insurance are an
// annual percentage of the price; the rest are percentages of monthly rent.
type ExpenseAssumptions struct {
	TaxesInsurancePct float64 `json:"taxesInsurancePct" yaml:"taxesInsurancePct" mapstructure:"taxesInsurancePct"`
	MaintenancePct    float64 `json:"maintenancePct" yaml:"maintenancePct" mapstructure:"maintenancePct"`
	ManagementPct     float64 `json:"managementPct" yaml:"managementPct" mapstructure:"managementPct"`
	VacancyPct        float64 `json:"vacancyPct" yaml:"vacancyPct" mapstructure:"vacancyPct"`
}

// Validate requires every percentage to lie in [0, 100].
func (a ExpenseAssumptions) Validate() error {
	values := map[string]float64{
		"taxesInsurancePct": a.TaxesInsurancePct,
		"maintenancePct":    a.MaintenancePct,
		"managementPct":     a.ManagementPct,
		"vacancyPct":        a.VacancyPct,
	}
	var errs []error
	for _, name := range []string{"taxesInsurancePct", "maintenancePct", "managementPct", "vacancyPct"} {
		v := values[name]
		if !mathutil.IsFinite(v) || v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("%s must be within 0-100, got %v", name, v))
		}
	}
	return errors.Join(errs...)
}

// ExpenseBreakdown is the monthly view of an itemized deal.
type ExpenseBreakdown struct {
	Mortgage       float64 `json:"mortgage"`
	TaxesInsurance float64 `json:"taxesInsurance"`
	Maintenance    float64 `json:"maintenance"`
	Management     float64 `json:"management"`
	VacancyLoss    float64 `json:"vacancyLoss"`
	Other          float64 `json:"other"`
	Operating      float64 `json:"operating"`
	Total          float64 `json:"total"`
	CashFlow       float64 `json:"cashFlow"`
}

// Breakdown itemizes monthly costs for a deal. other is any fixed monthly
// expense not covered by the assumptions.
func Breakdown(price, monthlyRent, monthlyMortgage, other float64, a ExpenseAssumptions) ExpenseBreakdown {
	b := ExpenseBreakdown{
		Mortgage:       monthlyMortgage,
		TaxesInsurance: mathutil.ApplyPercentage(price, a.TaxesInsurancePct) / constants.MonthsPerYear,
		Maintenance:    mathutil.ApplyPercentage(monthlyRent, a.MaintenancePct),
		Management:     mathutil.ApplyPercentage(monthlyRent, a.ManagementPct),
		VacancyLoss:    mathutil.ApplyPercentage(monthlyRent, a.VacancyPct),
		Other:          other,
	}
	b.Operating = b.TaxesInsurance + b.Maintenance + b.Management + b.VacancyLoss + b.Other
	b.Total = b.Operating + b.Mortgage
	b.CashFlow = monthlyRent - b.Total
	return b
}

// RentSharePct is the part of each rent dollar consumed by rent-proportional costs.
func (a ExpenseAssumptions) RentSharePct() float64 {
	return a.MaintenancePct + a.ManagementPct + a.VacancyPct
}
