// Package projection turns acquisition terms and growth assumptions into a
// year-indexed table of rent, expenses, cash flow, property value and equity.
package projection

import (
	"errors"
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// ErrInvalidInputs is returned when projection inputs are inconsistent.
var ErrInvalidInputs = errors.New("invalid projection inputs")

// EquityBasis selects how equity is measured by the metrics that consume it.
type EquityBasis string

const (
	// EquityGross is property value minus loan balance.
	EquityGross EquityBasis = "gross"
	// EquityNetOfInvestment additionally subtracts the down payment.
	EquityNetOfInvestment EquityBasis = "netOfInvestment"
)

// ParseEquityBasis accepts the canonical names plus a few spellings seen in deal files.
func ParseEquityBasis(value string) (EquityBasis, error) {
	switch value {
	case "", string(EquityNetOfInvestment), "net", "net_of_investment", "netofinvestment":
		return EquityNetOfInvestment, nil
	case string(EquityGross), "raw":
		return EquityGross, nil
	default:
		return "", fmt.Errorf("%w: unknown equity basis %q", ErrInvalidInputs, value)
	}
}

// Inputs holds everything the projector needs for one run.
type Inputs struct {
	PurchasePrice      float64
	DownPayment        float64
	MonthlyRent        float64
	MonthlyExpenses    float64
	MonthlyDebtService float64
	LoanTermYears      int
	RentGrowthPct      float64
	ExpenseGrowthPct   float64
	AppreciationPct    float64
	Years              int
}

// YearRecord is one projected year. Amounts are annual; balances and values are at year end.
type YearRecord struct {
	Year               int     `json:"year"`
	Rent               float64 `json:"rent"`
	Expenses           float64 `json:"expenses"`
	NOI                float64 `json:"noi"`
	DebtService        float64 `json:"debtService"`
	CashFlow           float64 `json:"cashFlow"`
	CumulativeCashFlow float64 `json:"cumulativeCashFlow"`
	InterestPaid       float64 `json:"interestPaid"`
	PrincipalPaid      float64 `json:"principalPaid"`
	LoanBalance        float64 `json:"loanBalance"`
	PropertyValue      float64 `json:"propertyValue"`
	Equity             float64 `json:"equity"`
	NetEquity          float64 `json:"netEquity"`
}

// EquityFor returns the record's equity measured on the given basis.
func (r YearRecord) EquityFor(basis EquityBasis) float64 {
	if basis == EquityGross {
		return r.Equity
	}
	return r.NetEquity
}

// Validate checks the inputs once so nothing non-finite enters the loop.
func (in Inputs) Validate() error {
	var errs []error
	if !mathutil.AllFinite(in.PurchasePrice, in.DownPayment, in.MonthlyRent, in.MonthlyExpenses,
		in.MonthlyDebtService, in.RentGrowthPct, in.ExpenseGrowthPct, in.AppreciationPct) {
		errs = append(errs, errors.New("all amounts and rates must be finite"))
	}
	if in.PurchasePrice < 0 {
		errs = append(errs, fmt.Errorf("purchase price must not be negative, got %.2f", in.PurchasePrice))
	}
	if in.DownPayment < 0 {
		errs = append(errs, fmt.Errorf("down payment must not be negative, got %.2f", in.DownPayment))
	}
	if in.MonthlyDebtService < 0 {
		errs = append(errs, fmt.Errorf("debt service must not be negative, got %.2f", in.MonthlyDebtService))
	}
	if in.Years <= 0 || in.Years > constants.MaxHoldYears {
		errs = append(errs, fmt.Errorf("years must be between 1 and %d, got %d", constants.MaxHoldYears, in.Years))
	}
	if in.LoanTermYears < 0 {
		errs = append(errs, fmt.Errorf("loan term must not be negative, got %d", in.LoanTermYears))
	}
	for _, g := range []float64{in.RentGrowthPct, in.ExpenseGrowthPct, in.AppreciationPct} {
		if g <= -constants.PercentageMultiplier {
			errs = append(errs, fmt.Errorf("growth rates must be above -100%%, got %.2f", g))
			break
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInputs, errors.Join(errs...))
	}
	return nil
}

// CashFlowYear is the income side of one projected year.
type CashFlowYear struct {
	Year        int
	Rent        float64
	Expenses    float64
	DebtService float64
	CashFlow    float64
}

// DebtServiceMonths returns how many loan payments fall in the given year.
func DebtServiceMonths(year, termYears int) int {
	remaining := termYears*constants.MonthsPerYear - (year-1)*constants.MonthsPerYear
	switch {
	case remaining <= 0:
		return 0
	case remaining > constants.MonthsPerYear:
		return constants.MonthsPerYear
	default:
		return remaining
	}
}

// ProjectCashFlows records each year at its current rent and expense levels
// and only then applies growth, so year 1 uses the starting values.
func ProjectCashFlows(in Inputs) []CashFlowYear {
	years := make([]CashFlowYear, 0, in.Years)
	rent := in.MonthlyRent
	expenses := in.MonthlyExpenses
	rentFactor := mathutil.GrowthFactor(in.RentGrowthPct)
	expenseFactor := mathutil.GrowthFactor(in.ExpenseGrowthPct)

	for year := 1; year <= in.Years; year++ {
		var cashFlow, debtService float64
		months := DebtServiceMonths(year, in.LoanTermYears)
		if months == constants.MonthsPerYear {
			cashFlow = (rent - expenses - in.MonthlyDebtService) * constants.MonthsPerYear
			debtService = in.MonthlyDebtService * constants.MonthsPerYear
		} else {
			debtService = in.MonthlyDebtService * float64(months)
			cashFlow = (rent-expenses)*constants.MonthsPerYear - debtService
		}
		years = append(years, CashFlowYear{
			Year:        year,
			Rent:        rent * constants.MonthsPerYear,
			Expenses:    expenses * constants.MonthsPerYear,
			DebtService: debtService,
			CashFlow:    cashFlow,
		})
		rent *= rentFactor
		expenses *= expenseFactor
	}
	return years
}

// PropertyValues compounds the purchase price once per year; element y-1 is
// the value at the end of year y.
func PropertyValues(price, appreciationPct float64, years int) []float64 {
	values := make([]float64, years)
	value := price
	factor := mathutil.GrowthFactor(appreciationPct)
	for i := range values {
		value *= factor
		values[i] = value
	}
	return values
}

// Project combines the cash flow series, the appreciated value and the loan
// trajectory. balances must cover at least in.Years years.
func Project(in Inputs, balances []loans.YearSummary) ([]YearRecord, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if len(balances) < in.Years {
		return nil, fmt.Errorf("%w: loan trajectory covers %d years, need %d", ErrInvalidInputs, len(balances), in.Years)
	}

	flows := ProjectCashFlows(in)
	values := PropertyValues(in.PurchasePrice, in.AppreciationPct, in.Years)

	records := make([]YearRecord, in.Years)
	cumulative := 0.0
	for i, flow := range flows {
		loan := balances[i]
		cumulative += flow.CashFlow
		equity := values[i] - loan.EndingBalance
		records[i] = YearRecord{
			Year:               flow.Year,
			Rent:               flow.Rent,
			Expenses:           flow.Expenses,
			NOI:                flow.Rent - flow.Expenses,
			DebtService:        flow.DebtService,
			CashFlow:           flow.CashFlow,
			CumulativeCashFlow: cumulative,
			InterestPaid:       loan.Interest,
			PrincipalPaid:      loan.Principal,
			LoanBalance:        loan.EndingBalance,
			PropertyValue:      values[i],
			Equity:             equity,
			NetEquity:          equity - in.DownPayment,
		}
	}
	return records, nil
}
