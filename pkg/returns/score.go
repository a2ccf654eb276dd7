package returns

import (
	"errors"
	"fmt"
	"math"

	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// Weights configures the composite deal score. ROI and cap rate are capped
// before weighting; the cash flow term is a flat bonus or penalty.
type Weights struct {
	ROIWeight     float64 `json:"roiWeight" yaml:"roiWeight" mapstructure:"roiWeight"`
	ROICap        float64 `json:"roiCap" yaml:"roiCap" mapstructure:"roiCap"`
	CapRateWeight float64 `json:"capRateWeight" yaml:"capRateWeight" mapstructure:"capRateWeight"`
	CapRateCap    float64 `json:"capRateCap" yaml:"capRateCap" mapstructure:"capRateCap"`
	CashFlowBonus float64 `json:"cashFlowBonus" yaml:"cashFlowBonus" mapstructure:"cashFlowBonus"`
}

// DefaultWeights returns the 60/30/±10 weighting.
func DefaultWeights() Weights {
	return Weights{
		ROIWeight:     constants.DefaultROIWeight,
		ROICap:        constants.DefaultROICap,
		CapRateWeight: constants.DefaultCapRateWeight,
		CapRateCap:    constants.DefaultCapRateCap,
		CashFlowBonus: constants.DefaultCashFlowBonus,
	}
}

// IsZero reports whether no weight has been configured.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// OrDefault substitutes the default weights for an unset value. A partly
// configured value keeps its weights and takes the default for any unset cap.
func (w Weights) OrDefault() Weights {
	if w.IsZero() {
		return DefaultWeights()
	}
	def := DefaultWeights()
	if w.ROICap == 0 {
		w.ROICap = def.ROICap
	}
	if w.CapRateCap == 0 {
		w.CapRateCap = def.CapRateCap
	}
	return w
}

// Inherit fills every unset field of w from base.
func (w Weights) Inherit(base Weights) Weights {
	if w.ROIWeight == 0 {
		w.ROIWeight = base.ROIWeight
	}
	if w.ROICap == 0 {
		w.ROICap = base.ROICap
	}
	if w.CapRateWeight == 0 {
		w.CapRateWeight = base.CapRateWeight
	}
	if w.CapRateCap == 0 {
		w.CapRateCap = base.CapRateCap
	}
	if w.CashFlowBonus == 0 {
		w.CashFlowBonus = base.CashFlowBonus
	}
	return w
}

// Validate checks that every weight is finite and non-negative and that the caps are positive.
func (w Weights) Validate() error {
	if !mathutil.AllFinite(w.ROIWeight, w.ROICap, w.CapRateWeight, w.CapRateCap, w.CashFlowBonus) {
		return errors.New("score weights must be finite")
	}
	if w.ROICap <= 0 || w.CapRateCap <= 0 {
		return fmt.Errorf("score caps must be positive, got roiCap=%.2f capRateCap=%.2f", w.ROICap, w.CapRateCap)
	}
	if w.ROIWeight < 0 || w.CapRateWeight < 0 || w.CashFlowBonus < 0 {
		return errors.New("score weights must not be negative")
	}
	return nil
}

// Score computes the bounded 0-100 deal score. Non-finite inputs score 0.
func Score(roi, capRate, annualCashFlow float64, w Weights) float64 {
	if !mathutil.AllFinite(roi, capRate, annualCashFlow) {
		return 0
	}
	score := mathutil.Min(roi, w.ROICap)/w.ROICap*w.ROIWeight +
		mathutil.Min(capRate, w.CapRateCap)/w.CapRateCap*w.CapRateWeight
	if annualCashFlow > 0 {
		score += w.CashFlowBonus
	} else {
		score -= w.CashFlowBonus
	}
	if math.IsNaN(score) {
		return 0
	}
	return mathutil.Clamp(score, 0, constants.MaxDealScore)
}

// Verdict is a coarse label for a deal score.
type Verdict string

const (
	VerdictGreat            Verdict = "great"
	VerdictSolid            Verdict = "solid"
	VerdictNeedsImprovement Verdict = "needs improvement"
	VerdictRisky            Verdict = "risky"
)

// VerdictFor maps a score to its band.
func VerdictFor(score float64) Verdict {
	switch {
	case score >= constants.VerdictGreatThreshold:
		return VerdictGreat
	case score >= constants.VerdictSolidThreshold:
		return VerdictSolid
	case score >= constants.VerdictFairThreshold:
		return VerdictNeedsImprovement
	default:
		return VerdictRisky
	}
}
