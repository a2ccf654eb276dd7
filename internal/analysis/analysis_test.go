package analysis

import (
	"math"
	"testing"

	"github.com/iwvelando/rental-forecast/pkg/projection"
	"github.com/iwvelando/rental-forecast/pkg/returns"
	"github.com/iwvelando/rental-forecast/pkg/tax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func exampleRequest() Request {
	return Request{
		Name:            "starter duplex",
		PurchasePrice:   250000,
		DownPaymentPct:  20,
		InterestRate:    6.5,
		TermYears:       30,
		MonthlyRent:     2200,
		MonthlyExpenses: 1400,
		Growth:          Growth{AppreciationPct: 3},
		HoldYears:       5,
		LandPct:         20,
	}
}

func TestAnalyzeExampleScenario(t *testing.T) {
	res, err := Analyze(zap.NewNop(), exampleRequest())
	require.NoError(t, err)

	assert.InDelta(t, 1264.14, res.MonthlyPayment, 0.01)
	assert.InDelta(t, 50000, res.DownPayment, 1e-6)
	assert.InDelta(t, 200000, res.LoanAmount, 1e-6)

	expectedCashFlow := (2200 - 1400 - res.MonthlyPayment) * 12
	assert.Equal(t, expectedCashFlow, res.AnnualCashFlow)
	assert.InDelta(t, -7369.7, res.AnnualCashFlow, 0.1)

	assert.True(t, res.ROIDefined)
	assert.Less(t, res.ROI, 0.0)
	assert.InDelta(t, 3.84, res.CapRate, 1e-9)
	assert.Equal(t, 0.0, res.Score)
	assert.Equal(t, returns.VerdictRisky, res.Verdict)
	assert.Len(t, res.Years, 5)
}

func TestAnalyzeScoreAppliesCashFlowPenalty(t *testing.T) {
	req := exampleRequest()
	req.Weights = returns.Weights{ROIWeight: 0, ROICap: 20, CapRateWeight: 30, CapRateCap: 10, CashFlowBonus: 10}

	res, err := Analyze(nil, req)
	require.NoError(t, err)

	// 3.84/10*30 = 11.52 less the 10 point penalty for negative cash flow.
	assert.InDelta(t, 1.52, res.Score, 1e-9)
}

func TestAnalyzeSaleYearAdjustment(t *testing.T) {
	req := exampleRequest()
	req.Sale = &tax.SaleAssumptions{SellingCostPct: 6, CapitalGainsRate: 0}

	res, err := Analyze(zap.NewNop(), req)
	require.NoError(t, err)

	exit := res.Exit
	assert.Equal(t, 5, exit.SaleYear)
	assert.InDelta(t, 289819, exit.Sale.SaleValue, 1)
	assert.InDelta(t, 17389, exit.Sale.SellingCosts, 1)

	remaining := res.Years[4].LoanBalance
	assert.InDelta(t, exit.Sale.SaleValue-exit.Sale.SellingCosts-remaining, exit.Sale.NetProceeds, 1e-9)

	require.Len(t, exit.PreTaxCashFlows, 6)
	assert.Equal(t, -res.InitialInvestment, exit.PreTaxCashFlows[0])
	assert.InDelta(t, res.Years[4].CashFlow+exit.Sale.NetProceeds, exit.PreTaxCashFlows[5], 1e-9)
}

func TestAnalyzeIRR(t *testing.T) {
	req := exampleRequest()
	req.MonthlyExpenses = 600
	req.TaxRatePct = 24

	res, err := Analyze(zap.NewNop(), req)
	require.NoError(t, err)

	require.True(t, res.Exit.PreTaxIRR.Available())
	require.True(t, res.Exit.AfterTaxIRR.Available())
	assert.Equal(t, returns.IRRStatusOK, res.Exit.AfterTaxIRR.Status)
	assert.Greater(t, *res.Exit.AfterTaxIRR.Percent, *res.Exit.PreTaxIRR.Percent)

	npv := returns.NPV(*res.Exit.PreTaxIRR.Percent/100, res.Exit.PreTaxCashFlows)
	assert.InDelta(t, 0, npv, 1e-3)
}

func TestAnalyzeTruncatesCashFlowsAtSaleYear(t *testing.T) {
	req := exampleRequest()
	req.HoldYears = 10
	req.SaleYear = 4

	res, err := Analyze(nil, req)
	require.NoError(t, err)

	assert.Len(t, res.Years, 10)
	assert.Len(t, res.Exit.AfterTaxCashFlows, 5)
	assert.InDelta(t, res.Years[3].PropertyValue, res.Exit.Sale.SaleValue, 1e-9)
}

func TestAnalyzeTaxAdjustments(t *testing.T) {
	req := exampleRequest()
	req.TaxRatePct = 24

	res, err := Analyze(nil, req)
	require.NoError(t, err)

	first := res.Years[0]
	depreciation := 250000 * 0.8 / 27.5
	assert.InDelta(t, depreciation, first.Depreciation, 1e-9)
	assert.InDelta(t, depreciation*0.24, first.TaxSavings, 1e-9)
	assert.InDelta(t, first.CashFlow+first.TaxSavings, first.AfterTaxCashFlow, 1e-9)

	req.LandPct = 100
	res, err = Analyze(nil, req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Years[0].TaxSavings)
	assert.Equal(t, res.Years[0].CashFlow, res.Years[0].AfterTaxCashFlow)
}

func TestAnalyzeEquityBasis(t *testing.T) {
	req := exampleRequest()
	req.EquityBasis = string(projection.EquityGross)
	gross, err := Analyze(nil, req)
	require.NoError(t, err)

	req.EquityBasis = string(projection.EquityNetOfInvestment)
	net, err := Analyze(nil, req)
	require.NoError(t, err)

	for i := range gross.Years {
		year := float64(gross.Years[i].Year)
		diff := gross.Years[i].EquityROIAnnualized - net.Years[i].EquityROIAnnualized
		// The bases differ by the whole investment spread over the holding period.
		assert.InDelta(t, 100/year, diff, 1e-9)
	}

	def, err := Analyze(nil, exampleRequest())
	require.NoError(t, err)
	assert.Equal(t, projection.EquityNetOfInvestment, def.EquityBasis)
}

func TestAnalyzeAllCashPurchase(t *testing.T) {
	req := exampleRequest()
	req.DownPaymentPct = 100

	res, err := Analyze(nil, req)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.LoanAmount)
	assert.Equal(t, 0.0, res.MonthlyPayment)
	assert.InDelta(t, (2200-1400)*12, res.AnnualCashFlow, 1e-9)
	for _, y := range res.Years {
		assert.Equal(t, 0.0, y.LoanBalance)
		assert.Equal(t, y.PropertyValue, y.Equity)
	}
}

func TestAnalyzeZeroDownHasUndefinedROI(t *testing.T) {
	req := exampleRequest()
	req.DownPaymentPct = 0

	res, err := Analyze(nil, req)
	require.NoError(t, err)

	assert.False(t, res.ROIDefined)
	assert.Equal(t, 0.0, res.ROI)
	assert.False(t, res.Exit.ROIDefined)
	assert.False(t, math.IsNaN(res.Score))
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Request)
		message string
	}{
		{"Negative price", func(r *Request) { r.PurchasePrice = -1 }, "purchasePrice"},
		{"Negative rate", func(r *Request) { r.InterestRate = -0.5 }, "interestRate"},
		{"Zero term", func(r *Request) { r.TermYears = 0 }, "termYears"},
		{"Down payment over 100", func(r *Request) { r.DownPaymentPct = 101 }, "downPaymentPct"},
		{"Land over 100", func(r *Request) { r.LandPct = 150 }, "landPct"},
		{"Sale after hold", func(r *Request) { r.SaleYear = 6 }, "saleYear"},
		{"NaN rent", func(r *Request) { r.MonthlyRent = math.NaN() }, "finite"},
		{"Infinite growth", func(r *Request) { r.Growth.RentPct = math.Inf(1) }, "finite"},
		{"Unknown basis", func(r *Request) { r.EquityBasis = "sideways" }, "equityBasis"},
		{"Bad weights", func(r *Request) { r.Weights = returns.Weights{ROIWeight: -5} }, "weights"},
		{"Bad sale", func(r *Request) { r.Sale = &tax.SaleAssumptions{SellingCostPct: -1} }, "sale"},
		{"Bad expenses", func(r *Request) { r.Expenses = &ExpenseAssumptions{VacancyPct: 200} }, "vacancyPct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := exampleRequest()
			tt.mutate(&req)

			res, err := Analyze(zap.NewNop(), req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestAnalyzeReportsEveryInvalidField(t *testing.T) {
	req := exampleRequest()
	req.PurchasePrice = -1
	req.TermYears = -5

	_, err := Analyze(nil, req)
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "purchasePrice")
	assert.Contains(t, err.Error(), "termYears")
}

func TestAnalyzeAppliesDefaults(t *testing.T) {
	req := exampleRequest()
	req.HoldYears = 0

	res, err := Analyze(nil, req)
	require.NoError(t, err)
	assert.Len(t, res.Years, 10)
	assert.Equal(t, 10, res.Exit.SaleYear)
	assert.InDelta(t, res.Exit.Sale.SaleValue*0.06, res.Exit.Sale.SellingCosts, 1e-9)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	a, err := Analyze(nil, exampleRequest())
	require.NoError(t, err)
	b, err := Analyze(nil, exampleRequest())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAnalyzeWithExpenseBreakdown(t *testing.T) {
	req := exampleRequest()
	req.MonthlyExpenses = 0
	req.Expenses = &ExpenseAssumptions{TaxesInsurancePct: 1.2, MaintenancePct: 10, ManagementPct: 8, VacancyPct: 5}

	res, err := Analyze(nil, req)
	require.NoError(t, err)
	require.NotNil(t, res.Expenses)

	assert.InDelta(t, 250, res.Expenses.TaxesInsurance, 1e-9)
	assert.InDelta(t, 220, res.Expenses.Maintenance, 1e-9)
	assert.InDelta(t, 176, res.Expenses.Management, 1e-9)
	assert.InDelta(t, 110, res.Expenses.VacancyLoss, 1e-9)
	assert.InDelta(t, 756, res.MonthlyExpenses, 1e-9)
	assert.InDelta(t, 2200-756-res.MonthlyPayment, res.Expenses.CashFlow, 1e-9)
}

func TestAnalyzeDepreciatesEveryYearOfLongHold(t *testing.T) {
	req := exampleRequest()
	req.HoldYears = 30
	req.TaxRatePct = 24

	res, err := Analyze(nil, req)
	require.NoError(t, err)
	require.Len(t, res.Years, 30)

	depreciation := tax.AnnualDepreciation(250000, 20)
	assert.InDelta(t, 7272.73, depreciation, 0.01)
	for _, y := range res.Years {
		assert.InDelta(t, depreciation, y.Depreciation, 1e-9, "year %d", y.Year)
		assert.InDelta(t, depreciation*0.24, y.TaxSavings, 1e-9, "year %d", y.Year)
	}
}

func TestAnalyzeScoreBreakdown(t *testing.T) {
	req := exampleRequest()
	req.MonthlyExpenses = 600

	res, err := Analyze(nil, req)
	require.NoError(t, err)

	b := res.ScoreBreakdown
	require.Len(t, b.Contributions, 3)
	assert.Equal(t, res.Score, b.Score)
	assert.Equal(t, res.Verdict, b.Verdict)
	assert.Equal(t, returns.FactorROI, b.Contributions[0].Factor)
	assert.Equal(t, res.ROI, b.Contributions[0].Value)
	assert.Equal(t, res.CapRate, b.Contributions[1].Value)
	assert.Equal(t, 10.0, b.Contributions[2].Points)

	sum := 0.0
	for _, c := range b.Contributions {
		sum += c.Points
	}
	assert.InDelta(t, res.Score, sum, 1e-9)

	weak, err := Analyze(nil, exampleRequest())
	require.NoError(t, err)
	assert.Len(t, weak.ScoreBreakdown.Suggestions, 3)
}
