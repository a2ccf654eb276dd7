// Package analysis runs the full rental projection pipeline: amortization,
// cash flow, equity, tax adjustments, return metrics and IRR. Analyze is a
// pure function of its Request.
package analysis

import (
	"errors"
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"github.com/iwvelando/rental-forecast/pkg/projection"
	"github.com/iwvelando/rental-forecast/pkg/returns"
	"github.com/iwvelando/rental-forecast/pkg/tax"
	"go.uber.org/zap"
)

// YearResult is a projected year plus the metrics derived from it.
type YearResult struct {
	projection.YearRecord
	CashOnCash          float64 `json:"cashOnCash"`
	CapRate             float64 `json:"capRate"`
	Depreciation        float64 `json:"depreciation"`
	TaxSavings          float64 `json:"taxSavings"`
	AfterTaxCashFlow    float64 `json:"afterTaxCashFlow"`
	AfterTaxCashOnCash  float64 `json:"afterTaxCashOnCash"`
	EquityROIAnnualized float64 `json:"equityRoiAnnualized"`
	TotalROIAnnualized  float64 `json:"totalRoiAnnualized"`
}

// IRRResult carries an IRR in percent, or the reason it is unavailable.
type IRRResult struct {
	Percent *float64          `json:"percent,omitempty"`
	Status  returns.IRRStatus `json:"status"`
}

// Available reports whether the IRR was solved.
func (r IRRResult) Available() bool {
	return r.Percent != nil
}

// Exit summarizes the position at the sale year.
type Exit struct {
	SaleYear              int       `json:"saleYear"`
	Sale                  tax.Sale  `json:"sale"`
	TotalCashFlow         float64   `json:"totalCashFlow"`
	TotalAfterTaxCashFlow float64   `json:"totalAfterTaxCashFlow"`
	TotalProfit           float64   `json:"totalProfit"`
	TotalReturnPct        float64   `json:"totalReturnPct"`
	ProfitPct             float64   `json:"profitPct"`
	ROIDefined            bool      `json:"roiDefined"`
	PreTaxIRR             IRRResult `json:"preTaxIrr"`
	AfterTaxIRR           IRRResult `json:"afterTaxIrr"`
	PreTaxCashFlows       []float64 `json:"preTaxCashFlows"`
	AfterTaxCashFlows     []float64 `json:"afterTaxCashFlows"`
}

// Result is the output of one analysis.
type Result struct {
	Name              string                 `json:"name,omitempty"`
	EquityBasis       projection.EquityBasis `json:"equityBasis"`
	PurchasePrice     float64                `json:"purchasePrice"`
	DownPayment       float64                `json:"downPayment"`
	InitialInvestment float64                `json:"initialInvestment"`
	LoanAmount        float64                `json:"loanAmount"`
	MonthlyPayment    float64                `json:"monthlyPayment"`
	MonthlyRent       float64                `json:"monthlyRent"`
	MonthlyExpenses   float64                `json:"monthlyExpenses"`
	Expenses          *ExpenseBreakdown      `json:"expenses,omitempty"`
	AnnualCashFlow    float64                `json:"annualCashFlow"`
	NOI               float64                `json:"noi"`
	ROI               float64                `json:"roi"`
	ROIDefined        bool                   `json:"roiDefined"`
	CapRate           float64                `json:"capRate"`
	CapRateDefined    bool                   `json:"capRateDefined"`
	Score             float64                `json:"score"`
	Verdict           returns.Verdict        `json:"verdict"`
	ScoreBreakdown    returns.ScoreBreakdown `json:"scoreBreakdown"`
	Years             []YearResult           `json:"years"`
	Exit              Exit                   `json:"exit"`
}

// Analyze validates req and runs the pipeline once. It holds no state between calls.
func Analyze(logger *zap.Logger, req Request) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	basis, err := projection.ParseEquityBasis(req.EquityBasis)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	terms, err := loans.NewTerms(req.PurchasePrice, req.DownPaymentPct, req.InterestRate, req.TermYears)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	payment, err := terms.MonthlyPayment()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	downPayment := req.PurchasePrice - terms.Principal
	investment := downPayment + req.ClosingCosts

	monthlyExpenses := req.MonthlyExpenses
	var breakdown *ExpenseBreakdown
	if req.Expenses != nil {
		b := Breakdown(req.PurchasePrice, req.MonthlyRent, payment, req.MonthlyExpenses, *req.Expenses)
		breakdown = &b
		monthlyExpenses = b.Operating
	}

	balances, err := loans.NewAmortizationScheduleGenerator(logger).YearEndBalances(terms, req.HoldYears)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	records, err := projection.Project(projection.Inputs{
		PurchasePrice:      req.PurchasePrice,
		DownPayment:        investment,
		MonthlyRent:        req.MonthlyRent,
		MonthlyExpenses:    monthlyExpenses,
		MonthlyDebtService: payment,
		LoanTermYears:      req.TermYears,
		RentGrowthPct:      req.Growth.RentPct,
		ExpenseGrowthPct:   req.Growth.ExpensePct,
		AppreciationPct:    req.Growth.AppreciationPct,
		Years:              req.HoldYears,
	}, balances)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	years := make([]YearResult, len(records))
	for i, rec := range records {
		years[i] = deriveYear(rec, req, basis, investment)
	}

	first := years[0]
	result := &Result{
		Name:              req.Name,
		EquityBasis:       basis,
		PurchasePrice:     req.PurchasePrice,
		DownPayment:       downPayment,
		InitialInvestment: investment,
		LoanAmount:        terms.Principal,
		MonthlyPayment:    payment,
		MonthlyRent:       req.MonthlyRent,
		MonthlyExpenses:   monthlyExpenses,
		Expenses:          breakdown,
		AnnualCashFlow:    first.CashFlow,
		NOI:               first.NOI,
		Years:             years,
	}
	result.ROI, result.ROIDefined = returns.ROI(first.CashFlow, investment)
	result.CapRate, result.CapRateDefined = returns.CapRate(first.NOI, req.PurchasePrice)
	result.Score = returns.Score(result.ROI, result.CapRate, first.CashFlow, req.Weights)
	result.Verdict = returns.VerdictFor(result.Score)
	result.ScoreBreakdown = returns.Breakdown(result.ROI, result.CapRate, first.CashFlow, req.Weights)
	result.Exit = exitAt(logger, years, req, investment)

	logger.Debug("analysis complete",
		zap.String("op", "analysis.Analyze"),
		zap.String("deal", req.Name),
		zap.Float64("monthlyPayment", payment),
		zap.Float64("score", result.Score),
		zap.String("irrStatus", string(result.Exit.AfterTaxIRR.Status)),
	)
	return result, nil
}

func deriveYear(rec projection.YearRecord, req Request, basis projection.EquityBasis, investment float64) YearResult {
	y := YearResult{YearRecord: rec}
	y.CashOnCash, _ = returns.CashOnCash(rec.CashFlow, investment)
	y.CapRate, _ = returns.CapRate(rec.NOI, req.PurchasePrice)
	y.Depreciation = tax.AnnualDepreciation(req.PurchasePrice, req.LandPct)
	y.TaxSavings = tax.Savings(y.Depreciation, req.TaxRatePct)
	y.AfterTaxCashFlow = tax.AfterTaxCashFlow(rec.CashFlow, y.TaxSavings)
	y.AfterTaxCashOnCash, _ = returns.CashOnCash(y.AfterTaxCashFlow, investment)
	equity := rec.EquityFor(basis)
	y.EquityROIAnnualized, _ = returns.AnnualizedReturn(equity, investment, rec.Year)
	y.TotalROIAnnualized, _ = returns.AnnualizedReturn(rec.CumulativeCashFlow+equity, investment, rec.Year)
	return y
}

func exitAt(logger *zap.Logger, years []YearResult, req Request, investment float64) Exit {
	saleYear := req.SaleYear
	rec := years[saleYear-1]

	sale := tax.SaleProceeds(rec.PropertyValue, req.PurchasePrice, rec.LoanBalance, *req.Sale)
	sale.Year = saleYear

	preTax := make([]float64, 0, saleYear+1)
	afterTax := make([]float64, 0, saleYear+1)
	preTax = append(preTax, -investment)
	afterTax = append(afterTax, -investment)
	exit := Exit{SaleYear: saleYear, Sale: sale}
	for _, y := range years[:saleYear] {
		preTax = append(preTax, y.CashFlow)
		afterTax = append(afterTax, y.AfterTaxCashFlow)
		exit.TotalCashFlow += y.CashFlow
		exit.TotalAfterTaxCashFlow += y.AfterTaxCashFlow
	}
	preTax[saleYear] += sale.NetProceeds
	afterTax[saleYear] += sale.NetProceeds
	exit.PreTaxCashFlows = preTax
	exit.AfterTaxCashFlows = afterTax

	exit.TotalProfit = exit.TotalCashFlow + sale.NetProceeds - investment
	exit.TotalReturnPct, exit.ROIDefined = returns.ROI(exit.TotalCashFlow+sale.NetProceeds, investment)
	exit.ProfitPct, _ = returns.ROI(exit.TotalProfit, investment)

	exit.PreTaxIRR = solveIRR(logger, req.Name, "preTax", preTax)
	exit.AfterTaxIRR = solveIRR(logger, req.Name, "afterTax", afterTax)
	return exit
}

func solveIRR(logger *zap.Logger, deal, basis string, cashFlows []float64) IRRResult {
	rate, err := returns.IRR(cashFlows)
	status := returns.StatusOf(err)
	switch {
	case err == nil:
		pct := rate * 100
		if mathutil.IsFinite(pct) {
			return IRRResult{Percent: &pct, Status: status}
		}
		status = returns.IRRStatusUndefined
	case errors.Is(err, returns.ErrIRRNotConverged):
		logger.Warn("irr solver did not converge",
			zap.String("op", "analysis.solveIRR"),
			zap.String("deal", deal),
			zap.String("basis", basis),
			zap.Int("periods", len(cashFlows)),
		)
	default:
		logger.Debug("irr unavailable",
			zap.String("op", "analysis.solveIRR"),
			zap.String("deal", deal),
			zap.String("basis", basis),
			zap.Error(err),
		)
	}
	return IRRResult{Status: status}
}
