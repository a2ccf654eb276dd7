// Package lending evaluates a deal against common lender qualification ratios
// and estimates tenant affordability.
package lending

import (
	"errors"
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// ErrInvalidInput is returned for unusable lending or affordability inputs.
var ErrInvalidInput = errors.New("invalid lending input")

// Thresholds are the limits a conventional investment loan must meet.
type Thresholds struct {
	MinDSCR float64 `json:"minDscr" yaml:"minDscr" mapstructure:"minDscr"`
	MaxDTI  float64 `json:"maxDti" yaml:"maxDti" mapstructure:"maxDti"`
	MaxLTV  float64 `json:"maxLtv" yaml:"maxLtv" mapstructure:"maxLtv"`
}

// DefaultThresholds returns 1.2 DSCR, 43% DTI and 80% LTV.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDSCR: constants.DefaultMinDSCR,
		MaxDTI:  constants.DefaultMaxDTI,
		MaxLTV:  constants.DefaultMaxLTV,
	}
}

// OrDefault substitutes the default for each unset limit.
func (t Thresholds) OrDefault() Thresholds {
	d := DefaultThresholds()
	if t.MinDSCR == 0 {
		t.MinDSCR = d.MinDSCR
	}
	if t.MaxDTI == 0 {
		t.MaxDTI = d.MaxDTI
	}
	if t.MaxLTV == 0 {
		t.MaxLTV = d.MaxLTV
	}
	return t
}

// Borrower describes the applicant. Amounts are monthly.
type Borrower struct {
	MonthlyIncome    float64 `json:"monthlyIncome" yaml:"monthlyIncome" mapstructure:"monthlyIncome"`
	OtherMonthlyDebt float64 `json:"otherMonthlyDebt" yaml:"otherMonthlyDebt" mapstructure:"otherMonthlyDebt"`
	CreditScore      int     `json:"creditScore" yaml:"creditScore" mapstructure:"creditScore"`
}

// Request holds a deal and a borrower.
type Request struct {
	PurchasePrice   float64    `json:"purchasePrice" yaml:"purchasePrice" mapstructure:"purchasePrice"`
	DownPaymentPct  float64    `json:"downPaymentPct" yaml:"downPaymentPct" mapstructure:"downPaymentPct"`
	InterestRate    float64    `json:"interestRate" yaml:"interestRate" mapstructure:"interestRate"`
	TermYears       int        `json:"termYears" yaml:"termYears" mapstructure:"termYears"`
	MonthlyRent     float64    `json:"monthlyRent" yaml:"monthlyRent" mapstructure:"monthlyRent"`
	MonthlyExpenses float64    `json:"monthlyExpenses" yaml:"monthlyExpenses" mapstructure:"monthlyExpenses"`
	Borrower        Borrower   `json:"borrower" yaml:"borrower" mapstructure:"borrower"`
	Thresholds      Thresholds `json:"thresholds,omitempty" yaml:"thresholds" mapstructure:"thresholds"`
	EvaluateFHA     bool       `json:"evaluateFha,omitempty" yaml:"evaluateFha" mapstructure:"evaluateFha"`
}

// Validate reports every invalid field at once.
func (r Request) Validate() error {
	var errs []error
	if !mathutil.AllFinite(r.PurchasePrice, r.DownPaymentPct, r.InterestRate, r.MonthlyRent,
		r.MonthlyExpenses, r.Borrower.MonthlyIncome, r.Borrower.OtherMonthlyDebt,
		r.Thresholds.MinDSCR, r.Thresholds.MaxDTI, r.Thresholds.MaxLTV) {
		errs = append(errs, errors.New("all amounts and rates must be finite numbers"))
	}
	if r.PurchasePrice <= 0 {
		errs = append(errs, fmt.Errorf("purchasePrice must be positive, got %v", r.PurchasePrice))
	}
	if r.DownPaymentPct < 0 || r.DownPaymentPct > 100 {
		errs = append(errs, fmt.Errorf("downPaymentPct must be between 0 and 100, got %v", r.DownPaymentPct))
	}
	if r.MonthlyRent < 0 || r.MonthlyExpenses < 0 {
		errs = append(errs, errors.New("monthlyRent and monthlyExpenses must not be negative"))
	}
	if r.Borrower.MonthlyIncome <= 0 {
		errs = append(errs, fmt.Errorf("borrower.monthlyIncome must be positive, got %v", r.Borrower.MonthlyIncome))
	}
	if r.Borrower.OtherMonthlyDebt < 0 {
		errs = append(errs, fmt.Errorf("borrower.otherMonthlyDebt must not be negative, got %v", r.Borrower.OtherMonthlyDebt))
	}
	if r.Thresholds.MinDSCR < 0 || r.Thresholds.MaxDTI < 0 || r.Thresholds.MaxLTV < 0 {
		errs = append(errs, errors.New("thresholds must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// Check is one ratio measured against its limit.
type Check struct {
	Value float64 `json:"value"`
	Limit float64 `json:"limit"`
	Pass  bool    `json:"pass"`
}

// FHAResult is the outcome of the FHA screen. MIP amounts are in dollars.
type FHAResult struct {
	CreditOK            bool    `json:"creditOk"`
	DTIOK               bool    `json:"dtiOk"`
	LTVOK               bool    `json:"ltvOk"`
	DownPaymentOK       bool    `json:"downPaymentOk"`
	Qualifies           bool    `json:"qualifies"`
	UpfrontMIP          float64 `json:"upfrontMip"`
	MonthlyMIP          float64 `json:"monthlyMip"`
	TotalMonthlyPayment float64 `json:"totalMonthlyPayment"`
}

// Result is the qualification snapshot.
type Result struct {
	LoanAmount     float64    `json:"loanAmount"`
	MonthlyPayment float64    `json:"monthlyPayment"`
	NOI            float64    `json:"noi"`
	DSCR           Check      `json:"dscr"`
	DSCRDefined    bool       `json:"dscrDefined"`
	DTI            Check      `json:"dti"`
	LTV            Check      `json:"ltv"`
	Qualifies      bool       `json:"qualifies"`
	FHA            *FHAResult `json:"fha,omitempty"`
}

// Evaluate computes DSCR (rent over principal and interest), DTI and LTV and
// compares them with the request thresholds. A loan-free purchase has no DSCR
// and passes that check.
func Evaluate(logger *zap.Logger, req Request) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	limits := req.Thresholds.OrDefault()

	terms, err := loans.NewTerms(req.PurchasePrice, req.DownPaymentPct, req.InterestRate, req.TermYears)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	payment, err := terms.MonthlyPayment()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	res := &Result{
		LoanAmount:     terms.Principal,
		MonthlyPayment: payment,
		NOI:            req.MonthlyRent - req.MonthlyExpenses,
	}

	res.DSCR = Check{Limit: limits.MinDSCR, Pass: true}
	if payment > 0 {
		res.DSCR.Value = req.MonthlyRent / payment
		res.DSCR.Pass = res.DSCR.Value >= limits.MinDSCR
		res.DSCRDefined = true
	}

	dti := mathutil.CalculatePercentage(payment+req.Borrower.OtherMonthlyDebt, req.Borrower.MonthlyIncome)
	res.DTI = Check{Value: dti, Limit: limits.MaxDTI, Pass: dti <= limits.MaxDTI}

	ltv := mathutil.CalculatePercentage(terms.Principal, req.PurchasePrice)
	res.LTV = Check{Value: ltv, Limit: limits.MaxLTV, Pass: ltv <= limits.MaxLTV}

	res.Qualifies = res.DSCR.Pass && res.DTI.Pass && res.LTV.Pass
	if req.EvaluateFHA {
		res.FHA = evaluateFHA(req, terms.Principal, payment, dti, ltv)
	}

	logger.Debug("evaluated lending ratios",
		zap.String("op", "lending.Evaluate"),
		zap.Float64("dscr", res.DSCR.Value),
		zap.Float64("dti", dti),
		zap.Float64("ltv", ltv),
		zap.Bool("qualifies", res.Qualifies),
	)
	return res, nil
}

func evaluateFHA(req Request, loanAmount, payment, dti, ltv float64) *FHAResult {
	annualMIP := mathutil.ApplyPercentage(loanAmount, constants.FHAAnnualMIPPct)
	fha := &FHAResult{
		CreditOK:      req.Borrower.CreditScore >= constants.FHAMinCreditScore,
		DTIOK:         dti <= constants.FHAMaxDTI,
		LTVOK:         ltv <= constants.FHAMaxLTV,
		DownPaymentOK: req.DownPaymentPct >= constants.FHAMinDownPaymentPct,
		UpfrontMIP:    mathutil.ApplyPercentage(loanAmount, constants.FHAUpfrontMIPPct),
		MonthlyMIP:    annualMIP / constants.MonthsPerYear,
	}
	fha.TotalMonthlyPayment = payment + fha.MonthlyMIP
	fha.Qualifies = fha.CreditOK && fha.DTIOK && fha.LTVOK && fha.DownPaymentOK
	return fha
}
