package returns

import (
	"errors"
	"math"

	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

var (
	// ErrIRRUndefined means the cash flows have no real rate of return in the searched range.
	ErrIRRUndefined = errors.New("irr undefined")
	// ErrIRRNotConverged means the solver exhausted its iteration budget.
	ErrIRRNotConverged = errors.New("irr did not converge")
)

// IRRStatus reports the outcome of an IRR solve in a serializable form.
type IRRStatus string

const (
	IRRStatusOK           IRRStatus = "ok"
	IRRStatusUndefined    IRRStatus = "undefined"
	IRRStatusNotConverged IRRStatus = "not_converged"
)

// StatusOf converts an error returned by IRR into a status.
func StatusOf(err error) IRRStatus {
	switch {
	case err == nil:
		return IRRStatusOK
	case errors.Is(err, ErrIRRNotConverged):
		return IRRStatusNotConverged
	default:
		return IRRStatusUndefined
	}
}

const (
	defaultIRRGuess         = 0.1
	defaultIRRTolerance     = 1e-10
	defaultIRRMaxIterations = 100
	minIRR                  = -0.9999
	maxIRR                  = 10.0
)

// bracketGrid is scanned for a sign change when Newton-Raphson fails.
var bracketGrid = []float64{minIRR, -0.99, -0.9, -0.75, -0.5, -0.25, 0, 0.05, 0.1, 0.2, 0.35, 0.5, 0.75, 1, 1.5, 2, 3, 5, maxIRR}

// IRROptions tunes the solver; zero values select the defaults.
type IRROptions struct {
	Guess         float64
	Tolerance     float64
	MaxIterations int
}

func (o IRROptions) normalize() IRROptions {
	if o.Guess == 0 || o.Guess <= -1 || !mathutil.IsFinite(o.Guess) {
		o.Guess = defaultIRRGuess
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaultIRRTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = defaultIRRMaxIterations
	}
	return o
}

// NPV discounts cashFlows at rate; cashFlows[0] is undiscounted.
func NPV(rate float64, cashFlows []float64) float64 {
	npv, _ := npvAndDerivative(rate, cashFlows)
	return npv
}

func npvAndDerivative(rate float64, cashFlows []float64) (npv, derivative float64) {
	discount := 1.0
	base := 1 + rate
	for t, cf := range cashFlows {
		npv += cf / discount
		if t > 0 {
			derivative -= float64(t) * cf / (discount * base)
		}
		discount *= base
	}
	return npv, derivative
}

// IRR solves NPV(r) = 0 for cashFlows, where cashFlows[0] is normally the
// negative initial investment. The rate is a fraction (0.1 is 10%).
func IRR(cashFlows []float64) (float64, error) {
	return IRRWithOptions(cashFlows, IRROptions{})
}

// IRRWithOptions is IRR with explicit solver settings. Newton-Raphson runs
// first; bisection over a bracketed sign change is the fallback.
func IRRWithOptions(cashFlows []float64, opts IRROptions) (float64, error) {
	opts = opts.normalize()
	if len(cashFlows) < 2 || !mathutil.AllFinite(cashFlows...) || !hasSignChange(cashFlows) {
		return 0, ErrIRRUndefined
	}

	scale := 0.0
	for _, cf := range cashFlows {
		scale += math.Abs(cf)
	}
	tolerance := opts.Tolerance * scale

	if rate, ok := newton(cashFlows, opts, tolerance); ok {
		return rate, nil
	}

	lo, hi, found := bracket(cashFlows)
	if !found {
		return 0, ErrIRRUndefined
	}
	return bisect(cashFlows, lo, hi, opts, tolerance)
}

func hasSignChange(cashFlows []float64) bool {
	var pos, neg bool
	for _, cf := range cashFlows {
		if cf > 0 {
			pos = true
		} else if cf < 0 {
			neg = true
		}
	}
	return pos && neg
}

func newton(cashFlows []float64, opts IRROptions, tolerance float64) (float64, bool) {
	rate := opts.Guess
	for i := 0; i < opts.MaxIterations; i++ {
		npv, derivative := npvAndDerivative(rate, cashFlows)
		if !mathutil.AllFinite(npv, derivative) {
			return 0, false
		}
		if math.Abs(npv) <= tolerance {
			return rate, true
		}
		if derivative == 0 {
			return 0, false
		}
		next := rate - npv/derivative
		if !mathutil.IsFinite(next) || next <= minIRR || next > maxIRR {
			return 0, false
		}
		if math.Abs(next-rate) <= opts.Tolerance*(1+math.Abs(rate)) {
			return next, true
		}
		rate = next
	}
	return 0, false
}

func bracket(cashFlows []float64) (lo, hi float64, found bool) {
	prevRate := bracketGrid[0]
	prevNPV := NPV(prevRate, cashFlows)
	for _, rate := range bracketGrid[1:] {
		npv := NPV(rate, cashFlows)
		if prevNPV == 0 {
			return prevRate, prevRate, true
		}
		if math.Signbit(prevNPV) != math.Signbit(npv) || npv == 0 {
			return prevRate, rate, true
		}
		prevRate, prevNPV = rate, npv
	}
	return 0, 0, false
}

func bisect(cashFlows []float64, lo, hi float64, opts IRROptions, tolerance float64) (float64, error) {
	if lo == hi {
		return lo, nil
	}
	loNPV := NPV(lo, cashFlows)
	for i := 0; i < opts.MaxIterations; i++ {
		mid := (lo + hi) / 2
		midNPV := NPV(mid, cashFlows)
		if math.Abs(midNPV) <= tolerance || (hi-lo)/2 <= opts.Tolerance*(1+math.Abs(mid)) {
			return mid, nil
		}
		if math.Signbit(midNPV) == math.Signbit(loNPV) {
			lo, loNPV = mid, midNPV
		} else {
			hi = mid
		}
	}
	return 0, ErrIRRNotConverged
}
