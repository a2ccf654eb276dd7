// Package loans provides fixed-rate mortgage amortization utilities.
package loans

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// ErrInvalidLoan is returned when loan terms cannot describe a real loan.
var ErrInvalidLoan = errors.New("invalid loan terms")

// payoffEpsilon retires a loan whose remaining balance is below half a cent.
const payoffEpsilon = constants.CurrencyTolerance / 2

// Payment holds the values for a given payment.
type Payment struct {
	Month              int     `json:"month"`
	Payment            float64 `json:"payment"`
	Principal          float64 `json:"principal"`
	Interest           float64 `json:"interest"`
	RemainingPrincipal float64 `json:"remainingPrincipal"`
}

// YearSummary aggregates twelve payments.
type YearSummary struct {
	Year          int     `json:"year"`
	Payments      float64 `json:"payments"`
	Principal     float64 `json:"principal"`
	Interest      float64 `json:"interest"`
	EndingBalance float64 `json:"endingBalance"`
}

// Terms describes a fixed-rate loan. Rates are annual percentages.
type Terms struct {
	Principal  float64 `json:"principal"`
	AnnualRate float64 `json:"annualRate"`
	TermYears  int     `json:"termYears"`
}

// NewTerms derives loan terms from a purchase price and a down payment percentage.
func NewTerms(price, downPaymentPct, annualRate float64, termYears int) (Terms, error) {
	if !mathutil.AllFinite(price, downPaymentPct) || price < 0 || downPaymentPct < 0 || downPaymentPct > 100 {
		return Terms{}, fmt.Errorf("%w: price %.2f with down payment %.2f%%", ErrInvalidLoan, price, downPaymentPct)
	}
	terms := Terms{
		Principal:  price - mathutil.ApplyPercentage(price, downPaymentPct),
		AnnualRate: annualRate,
		TermYears:  termYears,
	}
	if err := terms.Validate(); err != nil {
		return Terms{}, err
	}
	return terms, nil
}

// Validate rejects terms that would produce a meaningless payment.
func (t Terms) Validate() error {
	return validate(t.Principal, t.AnnualRate, t.TermYears)
}

// Months returns the number of scheduled payments.
func (t Terms) Months() int {
	return t.TermYears * constants.MonthsPerYear
}

// MonthlyRate returns the periodic rate as a fraction.
func (t Terms) MonthlyRate() float64 {
	return MonthlyInterestRate(t.AnnualRate)
}

// MonthlyPayment returns the fixed payment for the terms.
func (t Terms) MonthlyPayment() (float64, error) {
	return MonthlyPayment(t.Principal, t.AnnualRate, t.TermYears)
}

func validate(principal, annualRate float64, termYears int) error {
	switch {
	case !mathutil.AllFinite(principal, annualRate):
		return fmt.Errorf("%w: principal and rate must be finite", ErrInvalidLoan)
	case termYears <= 0:
		return fmt.Errorf("%w: term must be positive, got %d years", ErrInvalidLoan, termYears)
	case annualRate < 0:
		return fmt.Errorf("%w: rate must not be negative, got %.4f%%", ErrInvalidLoan, annualRate)
	}
	return nil
}

// MonthlyInterestRate converts an annual percentage rate into a monthly fraction.
func MonthlyInterestRate(annualRate float64) float64 {
	return annualRate / (constants.PercentageMultiplier * constants.MonthsPerYear)
}

// MonthlyPayment calculates the monthly payment for a loan using the standard amortization formula.
// A zero-principal loan needs no debt service.
func MonthlyPayment(principal, annualRate float64, termYears int) (float64, error) {
	if err := validate(principal, annualRate, termYears); err != nil {
		return 0, err
	}
	if principal <= 0 {
		return 0, nil
	}

	termMonths := float64(termYears * constants.MonthsPerYear)
	if annualRate == 0 {
		// For zero interest, simply divide the principal by term
		return principal / termMonths, nil
	}

	r := MonthlyInterestRate(annualRate)
	return principal * r / (1 - math.Pow(1+r, -termMonths)), nil
}

// AmortizeOneMonth applies one payment to balance. The principal portion is
// capped at the balance so the loan never goes negative; a retired loan
// (balance <= 0) returns all zeros.
func AmortizeOneMonth(balance, monthlyRate, payment float64) (interest, principal, newBalance float64) {
	if balance <= 0 {
		return 0, 0, 0
	}
	interest = balance * monthlyRate
	principal = payment - interest
	if principal >= balance || balance-principal < payoffEpsilon {
		principal = balance
	}
	newBalance = balance - principal
	if newBalance <= 0 {
		newBalance = 0
	}
	return interest, principal, newBalance
}

// AmortizationScheduleGenerator provides utilities for generating loan amortization schedules
type AmortizationScheduleGenerator struct {
	logger *zap.Logger
}

// NewAmortizationScheduleGenerator creates a new generator instance
func NewAmortizationScheduleGenerator(logger *zap.Logger) *AmortizationScheduleGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AmortizationScheduleGenerator{logger: logger}
}

// GenerateSchedule creates the month-by-month schedule for the full term.
func (g *AmortizationScheduleGenerator) GenerateSchedule(terms Terms) ([]Payment, error) {
	payment, err := terms.MonthlyPayment()
	if err != nil {
		return nil, err
	}

	schedule := make([]Payment, 0, terms.Months())
	balance := terms.Principal
	rate := terms.MonthlyRate()
	for month := 1; month <= terms.Months(); month++ {
		interest, principal, remaining := AmortizeOneMonth(balance, rate, payment)
		schedule = append(schedule, Payment{
			Month:              month,
			Payment:            interest + principal,
			Principal:          principal,
			Interest:           interest,
			RemainingPrincipal: remaining,
		})
		balance = remaining
	}

	if !mathutil.IsZero(balance) {
		g.logger.Warn("amortization schedule ended with residual balance",
			zap.String("op", "loans.GenerateSchedule"),
			zap.Float64("balance", balance),
		)
	}
	return schedule, nil
}

// YearEndBalances steps the loan twelve months per year for the given number
// of years. Years beyond the term report a retired loan.
func (g *AmortizationScheduleGenerator) YearEndBalances(terms Terms, years int) ([]YearSummary, error) {
	if years < 0 {
		return nil, fmt.Errorf("%w: horizon must not be negative, got %d years", ErrInvalidLoan, years)
	}
	payment, err := terms.MonthlyPayment()
	if err != nil {
		return nil, err
	}

	summaries := make([]YearSummary, 0, years)
	balance := terms.Principal
	if balance < 0 {
		balance = 0
	}
	rate := terms.MonthlyRate()
	retiredLogged := balance == 0
	for year := 1; year <= years; year++ {
		summary := YearSummary{Year: year}
		for m := 0; m < constants.MonthsPerYear; m++ {
			interest, principal, remaining := AmortizeOneMonth(balance, rate, payment)
			summary.Interest += interest
			summary.Principal += principal
			summary.Payments += interest + principal
			balance = remaining
		}
		summary.EndingBalance = balance
		summaries = append(summaries, summary)

		if balance == 0 && !retiredLogged {
			g.logger.Debug(fmt.Sprintf("loan retired in year %d", year),
				zap.String("op", "loans.YearEndBalances"),
			)
			retiredLogged = true
		}
	}
	return summaries, nil
}
