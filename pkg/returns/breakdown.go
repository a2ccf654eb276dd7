package returns

import (
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// Score factors.
const (
	FactorROI      = "roi"
	FactorCapRate  = "capRate"
	FactorCashFlow = "cashFlow"
)

// Contribution is one factor's share of the deal score.
type Contribution struct {
	Factor string  `json:"factor"`
	Value  float64 `json:"value"`
	Cap    float64 `json:"cap,omitempty"`
	Weight float64 `json:"weight"`
	Points float64 `json:"points"`
}

// ScoreBreakdown explains a score factor by factor.
type ScoreBreakdown struct {
	Contributions []Contribution `json:"contributions"`
	Score         float64        `json:"score"`
	Verdict       Verdict        `json:"verdict"`
	Suggestions   []string       `json:"suggestions,omitempty"`
}

// Breakdown splits Score into its ROI, cap rate and cash flow terms. The
// points sum to the score before it is clamped to 0-100.
func Breakdown(roi, capRate, annualCashFlow float64, w Weights) ScoreBreakdown {
	score := Score(roi, capRate, annualCashFlow, w)
	b := ScoreBreakdown{
		Contributions: []Contribution{
			{Factor: FactorROI, Value: roi, Cap: w.ROICap, Weight: w.ROIWeight},
			{Factor: FactorCapRate, Value: capRate, Cap: w.CapRateCap, Weight: w.CapRateWeight},
			{Factor: FactorCashFlow, Value: annualCashFlow, Weight: w.CashFlowBonus},
		},
		Score:       score,
		Verdict:     VerdictFor(score),
		Suggestions: Suggestions(roi, capRate, annualCashFlow),
	}
	if !mathutil.AllFinite(roi, capRate, annualCashFlow) {
		return b
	}

	b.Contributions[0].Points = mathutil.Min(roi, w.ROICap) / w.ROICap * w.ROIWeight
	b.Contributions[1].Points = mathutil.Min(capRate, w.CapRateCap) / w.CapRateCap * w.CapRateWeight
	if annualCashFlow > 0 {
		b.Contributions[2].Points = w.CashFlowBonus
	} else {
		b.Contributions[2].Points = -w.CashFlowBonus
	}
	return b
}

// Suggestions lists the changes most likely to lift a weak score.
func Suggestions(roi, capRate, annualCashFlow float64) []string {
	var tips []string
	if !(roi >= constants.SuggestROIBelow) {
		tips = append(tips, "increase ROI: reduce the down payment or raise the rent")
	}
	if !(capRate >= constants.SuggestCapRateBelow) {
		tips = append(tips, "improve the cap rate: lower expenses or negotiate a better price")
	}
	if !(annualCashFlow >= 0) {
		tips = append(tips, "cash flow is negative: raise the rent or cut operating costs")
	}
	return tips
}
