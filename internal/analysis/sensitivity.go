package analysis

import (
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"go.uber.org/zap"
)

// DefaultSensitivityPct is the swing applied to rent and expenses by StandardSensitivity.
const DefaultSensitivityPct = 20.0

// Snapshot is the headline of an analysis, used to compare scenarios.
type Snapshot struct {
	MonthlyRent     float64 `json:"monthlyRent"`
	MonthlyExpenses float64 `json:"monthlyExpenses"`
	AnnualCashFlow  float64 `json:"annualCashFlow"`
	ROI             float64 `json:"roi"`
	CapRate         float64 `json:"capRate"`
	Score           float64 `json:"score"`
}

func snapshotOf(r *Result) Snapshot {
	return Snapshot{
		MonthlyRent:     r.MonthlyRent,
		MonthlyExpenses: r.MonthlyExpenses,
		AnnualCashFlow:  r.AnnualCashFlow,
		ROI:             r.ROI,
		CapRate:         r.CapRate,
		Score:           r.Score,
	}
}

// SensitivityCase is one rerun with adjusted rent and expenses.
type SensitivityCase struct {
	Label           string   `json:"label"`
	RentDeltaPct    float64  `json:"rentDeltaPct"`
	ExpenseDeltaPct float64  `json:"expenseDeltaPct"`
	Result          Snapshot `json:"result"`
	CashFlowChange  float64  `json:"cashFlowChange"`
	ScoreChange     float64  `json:"scoreChange"`
}

// SensitivityReport compares a base case against its adjusted reruns.
type SensitivityReport struct {
	Base  Snapshot          `json:"base"`
	Cases []SensitivityCase `json:"cases"`
}

// Sensitivity reruns req with rent and starting expenses scaled by the given
// percentages (positive raises, negative lowers).
func Sensitivity(logger *zap.Logger, req Request, rentDeltaPct, expenseDeltaPct float64) (*SensitivityCase, *Snapshot, error) {
	base, err := Analyze(logger, req)
	if err != nil {
		return nil, nil, err
	}
	baseSnap := snapshotOf(base)
	c, err := sensitivityCase(logger, req, baseSnap, rentDeltaPct, expenseDeltaPct)
	if err != nil {
		return nil, nil, err
	}
	return &c, &baseSnap, nil
}

// StandardSensitivity swings rent and expenses up and down by DefaultSensitivityPct.
func StandardSensitivity(logger *zap.Logger, req Request) (*SensitivityReport, error) {
	base, err := Analyze(logger, req)
	if err != nil {
		return nil, err
	}
	report := &SensitivityReport{Base: snapshotOf(base)}
	deltas := []struct{ rent, expense float64 }{
		{DefaultSensitivityPct, 0},
		{-DefaultSensitivityPct, 0},
		{0, DefaultSensitivityPct},
		{0, -DefaultSensitivityPct},
	}
	for _, d := range deltas {
		c, err := sensitivityCase(logger, req, report.Base, d.rent, d.expense)
		if err != nil {
			return nil, err
		}
		report.Cases = append(report.Cases, c)
	}
	return report, nil
}

func sensitivityCase(logger *zap.Logger, req Request, base Snapshot, rentDeltaPct, expenseDeltaPct float64) (SensitivityCase, error) {
	adjusted := req
	adjusted.MonthlyRent = req.MonthlyRent * mathutil.GrowthFactor(rentDeltaPct)
	adjusted.MonthlyExpenses = req.MonthlyExpenses * mathutil.GrowthFactor(expenseDeltaPct)

	res, err := Analyze(logger, adjusted)
	if err != nil {
		return SensitivityCase{}, fmt.Errorf("sensitivity rent %+.0f%% expenses %+.0f%%: %w", rentDeltaPct, expenseDeltaPct, err)
	}
	snap := snapshotOf(res)
	return SensitivityCase{
		Label:           fmt.Sprintf("rent %+.0f%% / expenses %+.0f%%", rentDeltaPct, expenseDeltaPct),
		RentDeltaPct:    rentDeltaPct,
		ExpenseDeltaPct: expenseDeltaPct,
		Result:          snap,
		CashFlowChange:  snap.AnnualCashFlow - base.AnnualCashFlow,
		ScoreChange:     snap.Score - base.Score,
	}, nil
}
