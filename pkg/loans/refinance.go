package loans

import (
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// RefinanceOptions describes replacing an existing loan. When Original is
// set the balance is taken from its schedule after AfterMonths payments;
// otherwise Balance is used as given.
type RefinanceOptions struct {
	Original     *Terms  `json:"original,omitempty"`
	AfterMonths  int     `json:"afterMonths,omitempty"`
	Balance      float64 `json:"balance,omitempty"`
	CashOut      float64 `json:"cashOut"`
	NewRate      float64 `json:"newRate"`
	NewTermYears int     `json:"newTermYears"`
}

// Refinance is the outcome of a refinance.
type Refinance struct {
	Balance        float64  `json:"balance"`
	CashOut        float64  `json:"cashOut"`
	NewPrincipal   float64  `json:"newPrincipal"`
	NewPayment     float64  `json:"newPayment"`
	CurrentPayment *float64 `json:"currentPayment,omitempty"`
	PaymentChange  *float64 `json:"paymentChange,omitempty"`
}

// BalanceAfter returns the remaining principal after the given number of payments.
func BalanceAfter(terms Terms, months int) (float64, error) {
	if months < 0 {
		return 0, fmt.Errorf("%w: months must not be negative, got %d", ErrInvalidLoan, months)
	}
	payment, err := terms.MonthlyPayment()
	if err != nil {
		return 0, err
	}
	balance := terms.Principal
	rate := terms.MonthlyRate()
	for m := 0; m < months && balance > 0; m++ {
		_, _, balance = AmortizeOneMonth(balance, rate, payment)
	}
	return balance, nil
}

// NewRefinance rolls the remaining balance plus any cash-out into a new loan.
// A negative cash-out pays the balance down.
func NewRefinance(opts RefinanceOptions) (Refinance, error) {
	if !mathutil.AllFinite(opts.Balance, opts.CashOut) {
		return Refinance{}, fmt.Errorf("%w: balance and cash-out must be finite", ErrInvalidLoan)
	}

	balance := opts.Balance
	var current *float64
	if opts.Original != nil {
		var err error
		if balance, err = BalanceAfter(*opts.Original, opts.AfterMonths); err != nil {
			return Refinance{}, err
		}
		payment, err := opts.Original.MonthlyPayment()
		if err != nil {
			return Refinance{}, err
		}
		current = &payment
	} else if balance < 0 {
		return Refinance{}, fmt.Errorf("%w: balance must not be negative, got %.2f", ErrInvalidLoan, balance)
	}

	principal := balance + opts.CashOut
	if principal < 0 {
		return Refinance{}, fmt.Errorf("%w: cash-out %.2f exceeds the balance %.2f", ErrInvalidLoan, -opts.CashOut, balance)
	}
	payment, err := MonthlyPayment(principal, opts.NewRate, opts.NewTermYears)
	if err != nil {
		return Refinance{}, err
	}

	refi := Refinance{
		Balance:        balance,
		CashOut:        opts.CashOut,
		NewPrincipal:   principal,
		NewPayment:     payment,
		CurrentPayment: current,
	}
	if current != nil {
		change := payment - *current
		refi.PaymentChange = &change
	}
	return refi, nil
}
