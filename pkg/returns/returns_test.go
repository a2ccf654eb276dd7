package returns

import (
	"errors"
	"math"
	"testing"
)

func TestROI(t *testing.T) {
	tests := []struct {
		name       string
		cashFlow   float64
		investment float64
		expected   float64
		expectedOK bool
	}{
		{"Positive return", 5000, 50000, 10, true},
		{"Negative return", -7369.68, 50000, -14.73936, true},
		{"Zero investment", 5000, 0, 0, false},
		{"NaN cash flow", math.NaN(), 50000, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := ROI(tt.cashFlow, tt.investment)
			if ok != tt.expectedOK {
				t.Fatalf("ROI() ok = %v, expected %v", ok, tt.expectedOK)
			}
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ROI() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestCapRate(t *testing.T) {
	result, ok := CapRate(9600, 250000)
	if !ok || math.Abs(result-3.84) > 1e-9 {
		t.Errorf("CapRate() = %v (%v), expected 3.84", result, ok)
	}
	if result, ok := CapRate(9600, 0); ok || result != 0 {
		t.Errorf("CapRate() with zero price = %v (%v), expected 0 and not ok", result, ok)
	}
}

func TestAnnualizedReturn(t *testing.T) {
	result, ok := AnnualizedReturn(25000, 50000, 5)
	if !ok || math.Abs(result-10) > 1e-9 {
		t.Errorf("AnnualizedReturn() = %v (%v), expected 10", result, ok)
	}
	if _, ok := AnnualizedReturn(25000, 50000, 0); ok {
		t.Error("expected zero years to be undefined")
	}
}

func TestScoreExampleScenario(t *testing.T) {
	// $250,000 purchase, $2,200 rent, $1,400 expenses, 20% down at 6.5%.
	roi, _ := ROI(-7369.68, 50000)
	capRate, _ := CapRate(9600, 250000)

	score := Score(roi, capRate, -7369.68, DefaultWeights())
	// ROI term is negative, cap rate term is 3.84/10*30 = 11.52, penalty is -10.
	expected := -14.73936/20*60 + 11.52 - 10
	if expected > 0 {
		t.Fatalf("test setup expected a negative raw score, got %v", expected)
	}
	if score != 0 {
		t.Errorf("Score() = %v, expected clamp to 0", score)
	}
	if VerdictFor(score) != VerdictRisky {
		t.Errorf("VerdictFor(%v) = %q, expected %q", score, VerdictFor(score), VerdictRisky)
	}
}

func TestScoreComponents(t *testing.T) {
	tests := []struct {
		name     string
		roi      float64
		capRate  float64
		cashFlow float64
		expected float64
	}{
		{"Capped maximum", 50, 25, 1000, 100},
		{"Half of each cap with bonus", 10, 5, 1, 30 + 15 + 10},
		{"Half of each cap with penalty", 10, 5, -1, 30 + 15 - 10},
		{"Zero cash flow is penalized", 10, 5, 0, 30 + 15 - 10},
		{"Floor", -100, -100, -1, 0},
		{"NaN", math.NaN(), 5, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Score(tt.roi, tt.capRate, tt.cashFlow, DefaultWeights())
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("Score() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestScoreMonotoneAndBounded(t *testing.T) {
	weights := DefaultWeights()
	for _, capRate := range []float64{-5, 0, 4, 10, 30} {
		for _, cashFlow := range []float64{-1000, 1000} {
			previous := -1.0
			for roi := -200.0; roi <= 200; roi += 0.5 {
				score := Score(roi, capRate, cashFlow, weights)
				if score < 0 || score > 100 {
					t.Fatalf("Score(%v, %v, %v) = %v out of bounds", roi, capRate, cashFlow, score)
				}
				if score < previous {
					t.Fatalf("Score decreased at roi %v: %v < %v", roi, score, previous)
				}
				previous = score
			}
		}
	}

}

func TestScoreNonFiniteInputs(t *testing.T) {
	weights := DefaultWeights()
	tests := []struct {
		name     string
		roi      float64
		capRate  float64
		cashFlow float64
	}{
		{"Infinite ROI", math.Inf(1), 5, 100},
		{"Negative infinite cap rate", 10, math.Inf(-1), 100},
		{"NaN cash flow", 10, 5, math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s := Score(tt.roi, tt.capRate, tt.cashFlow, weights); s != 0 {
				t.Errorf("Score() = %v, expected 0", s)
			}
		})
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	bad := DefaultWeights()
	bad.ROICap = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected zero ROI cap to be rejected")
	}
	if (Weights{}).OrDefault() != DefaultWeights() {
		t.Error("expected zero weights to fall back to defaults")
	}
	partial := Weights{ROIWeight: 80}.OrDefault()
	if partial.ROICap != 20 || partial.CapRateCap != 10 || partial.CapRateWeight != 0 {
		t.Errorf("partial weights resolved to %+v", partial)
	}
	if err := partial.Validate(); err != nil {
		t.Errorf("partial weights invalid: %v", err)
	}
}

func TestWeightsInherit(t *testing.T) {
	base := Weights{ROIWeight: 50, ROICap: 15, CapRateWeight: 40, CapRateCap: 8, CashFlowBonus: 5}
	got := Weights{ROIWeight: 70}.Inherit(base)
	expected := Weights{ROIWeight: 70, ROICap: 15, CapRateWeight: 40, CapRateCap: 8, CashFlowBonus: 5}
	if got != expected {
		t.Errorf("Inherit() = %+v, expected %+v", got, expected)
	}
	if (Weights{}).Inherit(Weights{}) != (Weights{}) {
		t.Error("expected inheriting from zero weights to stay zero")
	}
}

func TestVerdictFor(t *testing.T) {
	tests := []struct {
		score    float64
		expected Verdict
	}{
		{95, VerdictGreat},
		{85, VerdictGreat},
		{70, VerdictSolid},
		{50, VerdictNeedsImprovement},
		{49.9, VerdictRisky},
	}
	for _, tt := range tests {
		if got := VerdictFor(tt.score); got != tt.expected {
			t.Errorf("VerdictFor(%v) = %q, expected %q", tt.score, got, tt.expected)
		}
	}
}

func TestIRRRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		cashFlows []float64
		expected  float64
	}{
		{"Single period 10%", []float64{-1000, 1100}, 0.1},
		{"Annuity at 8%", annuity(1000, 0.08, 5), 0.08},
		{"Negative return", []float64{-1000, 900}, -0.1},
		{"High return", []float64{-100, 400}, 3},
		{"Bullet at 12%", []float64{-1000, 0, 0, 1000 * math.Pow(1.12, 3)}, 0.12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := IRR(tt.cashFlows)
			if err != nil {
				t.Fatalf("IRR() error = %v", err)
			}
			if math.Abs(result-tt.expected) > 1e-6*math.Abs(tt.expected) {
				t.Errorf("IRR() = %.10f, expected %.10f", result, tt.expected)
			}
			if npv := NPV(result, tt.cashFlows); math.Abs(npv) > 1e-4 {
				t.Errorf("NPV at solved rate = %v, expected ~0", npv)
			}
		})
	}
}

// annuity builds an investment followed by equal payments worth it at rate.
func annuity(investment, rate float64, periods int) []float64 {
	payment := investment * rate / (1 - math.Pow(1+rate, -float64(periods)))
	flows := []float64{-investment}
	for i := 0; i < periods; i++ {
		flows = append(flows, payment)
	}
	return flows
}

func TestIRRUndefined(t *testing.T) {
	tests := []struct {
		name      string
		cashFlows []float64
	}{
		{"All negative", []float64{-1000, -100, -100}},
		{"All positive", []float64{1000, 100}},
		{"All zero", []float64{0, 0, 0}},
		{"Too short", []float64{-1000}},
		{"Non-finite", []float64{-1000, math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IRR(tt.cashFlows)
			if !errors.Is(err, ErrIRRUndefined) {
				t.Errorf("expected ErrIRRUndefined, got %v", err)
			}
			if StatusOf(err) != IRRStatusUndefined {
				t.Errorf("StatusOf() = %q, expected %q", StatusOf(err), IRRStatusUndefined)
			}
		})
	}
}

func TestIRRNotConvergedIsDistinct(t *testing.T) {
	_, err := IRRWithOptions([]float64{-1000, 300, 300, 300, 300}, IRROptions{MaxIterations: 1})
	if !errors.Is(err, ErrIRRNotConverged) {
		t.Fatalf("expected ErrIRRNotConverged, got %v", err)
	}
	if errors.Is(err, ErrIRRUndefined) {
		t.Error("non-convergence must not be reported as undefined")
	}
	if StatusOf(err) != IRRStatusNotConverged {
		t.Errorf("StatusOf() = %q, expected %q", StatusOf(err), IRRStatusNotConverged)
	}
}

func TestIRRFallsBackToBisection(t *testing.T) {
	// A guess far from the root sends Newton outside the search range.
	flows := []float64{-1000, 300, 300, 300, 300}
	result, err := IRRWithOptions(flows, IRROptions{Guess: 9.5})
	if err != nil {
		t.Fatalf("IRRWithOptions() error = %v", err)
	}
	if math.Abs(NPV(result, flows)) > 1e-4 {
		t.Errorf("NPV at %v = %v, expected ~0", result, NPV(result, flows))
	}
}
