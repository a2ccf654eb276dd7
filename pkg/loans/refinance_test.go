package loans

import (
	"errors"
	"math"
	"testing"
)

func TestBalanceAfter(t *testing.T) {
	terms := Terms{Principal: 200000, AnnualRate: 6.5, TermYears: 30}

	tests := []struct {
		name     string
		months   int
		expected float64
	}{
		{"No payments", 0, 200000},
		{"Five years", 60, 187221.95},
		{"Full term", 360, 0},
		{"Past the term", 400, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance, err := BalanceAfter(terms, tt.months)
			if err != nil {
				t.Fatalf("BalanceAfter() error = %v", err)
			}
			if math.Abs(balance-tt.expected) > 0.01 {
				t.Errorf("BalanceAfter(%d) = %.2f, expected %.2f", tt.months, balance, tt.expected)
			}
		})
	}

	if _, err := BalanceAfter(terms, -1); !errors.Is(err, ErrInvalidLoan) {
		t.Errorf("expected ErrInvalidLoan for negative months, got %v", err)
	}
}

func TestNewRefinanceFromBalance(t *testing.T) {
	refi, err := NewRefinance(RefinanceOptions{Balance: 240000, NewRate: 5, NewTermYears: 30})
	if err != nil {
		t.Fatalf("NewRefinance() error = %v", err)
	}
	if refi.NewPrincipal != 240000 {
		t.Errorf("NewPrincipal = %v, expected 240000", refi.NewPrincipal)
	}
	if math.Abs(refi.NewPayment-1288.37) > 0.01 {
		t.Errorf("NewPayment = %.2f, expected 1288.37", refi.NewPayment)
	}
	if refi.CurrentPayment != nil || refi.PaymentChange != nil {
		t.Error("expected no payment comparison without original terms")
	}
}

func TestNewRefinanceFromOriginalLoan(t *testing.T) {
	original := Terms{Principal: 200000, AnnualRate: 6.5, TermYears: 30}
	refi, err := NewRefinance(RefinanceOptions{
		Original:     &original,
		AfterMonths:  60,
		CashOut:      20000,
		NewRate:      5,
		NewTermYears: 30,
	})
	if err != nil {
		t.Fatalf("NewRefinance() error = %v", err)
	}
	if math.Abs(refi.Balance-187221.95) > 0.01 {
		t.Errorf("Balance = %.2f, expected 187221.95", refi.Balance)
	}
	if math.Abs(refi.NewPrincipal-(refi.Balance+20000)) > 1e-9 {
		t.Errorf("NewPrincipal = %.2f, expected balance plus cash-out", refi.NewPrincipal)
	}
	if math.Abs(refi.NewPayment-1112.41) > 0.01 {
		t.Errorf("NewPayment = %.2f, expected 1112.41", refi.NewPayment)
	}
	if refi.CurrentPayment == nil || math.Abs(*refi.CurrentPayment-1264.14) > 0.01 {
		t.Fatalf("CurrentPayment = %v, expected 1264.14", refi.CurrentPayment)
	}
	if refi.PaymentChange == nil || math.Abs(*refi.PaymentChange+151.72) > 0.01 {
		t.Errorf("PaymentChange = %v, expected -151.72", refi.PaymentChange)
	}
}

func TestNewRefinanceInvalid(t *testing.T) {
	tests := []struct {
		name string
		opts RefinanceOptions
	}{
		{"Negative balance", RefinanceOptions{Balance: -1, NewRate: 5, NewTermYears: 30}},
		{"Cash-out beyond balance", RefinanceOptions{Balance: 1000, CashOut: -2000, NewRate: 5, NewTermYears: 30}},
		{"Zero term", RefinanceOptions{Balance: 1000, NewRate: 5}},
		{"Negative rate", RefinanceOptions{Balance: 1000, NewRate: -1, NewTermYears: 15}},
		{"Infinite cash-out", RefinanceOptions{Balance: 1000, CashOut: math.Inf(1), NewRate: 5, NewTermYears: 15}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRefinance(tt.opts); !errors.Is(err, ErrInvalidLoan) {
				t.Errorf("NewRefinance() error = %v, expected ErrInvalidLoan", err)
			}
		})
	}
}
