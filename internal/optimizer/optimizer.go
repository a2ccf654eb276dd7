// Package optimizer searches a single deal input for the value at which the
// first-year monthly cash flow meets a floor.
package optimizer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/rental-forecast/internal/analysis"
	"github.com/iwvelando/rental-forecast/pkg/format"
	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"github.com/iwvelando/rental-forecast/pkg/optimization"
	"go.uber.org/zap"
)

const (
	FieldRent          = "rent"
	FieldPurchasePrice = "purchasePrice"

	defaultTolerance     = 0.01
	defaultMaxIterations = 100

	// Default upper bounds when none are configured.
	defaultRentCeilingPct = 10.0
	defaultPriceCeiling   = 10.0
)

// ErrInvalidConfig is returned for unsupported or inconsistent search settings.
var ErrInvalidConfig = errors.New("invalid optimizer configuration")

// Config defines a single-parameter break-even search.
type Config struct {
	Field          string   `json:"field,omitempty" yaml:"field,omitempty" mapstructure:"field"`
	Min            *float64 `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min"`
	Max            *float64 `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max"`
	TargetCashFlow float64  `json:"targetCashFlow,omitempty" yaml:"targetCashFlow,omitempty" mapstructure:"targetCashFlow"`
	Tolerance      float64  `json:"tolerance,omitempty" yaml:"tolerance,omitempty" mapstructure:"tolerance"`
	MaxIterations  int      `json:"maxIterations,omitempty" yaml:"maxIterations,omitempty" mapstructure:"maxIterations"`
}

// CanonicalField returns the canonical identifier for a search field.
func CanonicalField(value string) string {
	trimmed := strings.TrimSpace(value)
	switch strings.ToLower(trimmed) {
	case "", "rent", "monthlyrent", "monthly_rent":
		return FieldRent
	case "purchaseprice", "purchase_price", "price":
		return FieldPurchasePrice
	default:
		return strings.ToLower(trimmed)
	}
}

// Normalize applies defaults. Bounds left unset are derived from req.
func (c *Config) Normalize(req analysis.Request) {
	c.Field = CanonicalField(c.Field)
	if c.Tolerance <= 0 {
		c.Tolerance = defaultTolerance
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.Min == nil {
		zero := 0.0
		c.Min = &zero
	}
	if c.Max == nil {
		var upper float64
		switch c.Field {
		case FieldRent:
			upper = mathutil.ApplyPercentage(req.PurchasePrice, defaultRentCeilingPct)
		case FieldPurchasePrice:
			upper = req.PurchasePrice * defaultPriceCeiling
		}
		c.Max = &upper
	}
}

// Validate returns an error when the configuration is unsupported.
func (c Config) Validate() error {
	switch c.Field {
	case FieldRent, FieldPurchasePrice:
	default:
		return fmt.Errorf("%w: field %q is not supported", ErrInvalidConfig, c.Field)
	}
	if c.Min == nil || c.Max == nil {
		return fmt.Errorf("%w: search requires minimum and maximum bounds", ErrInvalidConfig)
	}
	if !mathutil.AllFinite(*c.Min, *c.Max, c.TargetCashFlow, c.Tolerance) {
		return fmt.Errorf("%w: bounds and target must be finite", ErrInvalidConfig)
	}
	if *c.Min < 0 {
		return fmt.Errorf("%w: minimum %.2f must not be negative", ErrInvalidConfig, *c.Min)
	}
	if *c.Min >= *c.Max {
		return fmt.Errorf("%w: minimum %.2f must be less than maximum %.2f", ErrInvalidConfig, *c.Min, *c.Max)
	}
	return nil
}

type evaluation struct {
	value    float64
	cashFlow float64
	floor    float64
}

func (e evaluation) feasible() bool {
	return e.cashFlow >= e.floor
}

func (e evaluation) headroom() float64 {
	return e.cashFlow - e.floor
}

// Runner performs break-even searches.
type Runner struct {
	logger *zap.Logger
}

// NewRunner constructs a Runner.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{logger: logger}
}

// MonthlyCashFlow returns rent less mortgage and operating costs for the
// first month of req, with itemized expenses applied when present.
func MonthlyCashFlow(req analysis.Request) (float64, error) {
	terms, err := loans.NewTerms(req.PurchasePrice, req.DownPaymentPct, req.InterestRate, req.TermYears)
	if err != nil {
		return 0, err
	}
	payment, err := terms.MonthlyPayment()
	if err != nil {
		return 0, err
	}
	var assumptions analysis.ExpenseAssumptions
	if req.Expenses != nil {
		assumptions = *req.Expenses
	}
	b := analysis.Breakdown(req.PurchasePrice, req.MonthlyRent, payment, req.MonthlyExpenses, assumptions)
	return b.CashFlow, nil
}

// Run searches cfg.Field between its bounds. Rent is minimized and purchase
// price is maximized subject to monthly cash flow >= cfg.TargetCashFlow.
func (r *Runner) Run(req analysis.Request, cfg Config) (optimization.Summary, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return optimization.Summary{}, err
	}
	cfg.Normalize(req)
	if err := cfg.Validate(); err != nil {
		return optimization.Summary{}, err
	}

	original := fieldValue(req, cfg.Field)
	minVal, maxVal := *cfg.Min, *cfg.Max

	lowerEval, err := evaluate(req, cfg, minVal)
	if err != nil {
		return optimization.Summary{}, err
	}
	upperEval, err := evaluate(req, cfg, maxVal)
	if err != nil {
		return optimization.Summary{}, err
	}

	summary := optimization.Summary{
		TargetName:      req.Name,
		Field:           cfg.Field,
		Original:        original,
		OriginalDisplay: format.Currency(original),
		Floor:           cfg.TargetCashFlow,
	}

	iterations := 0
	converged := false
	var final evaluation
	switch {
	case !lowerEval.feasible() && !upperEval.feasible():
		final = upperEval
		if lowerEval.headroom() > upperEval.headroom() {
			final = lowerEval
		}
		summary.Notes = append(summary.Notes, fmt.Sprintf(
			"unable to reach cash flow %s within bounds %s to %s",
			format.Currency(cfg.TargetCashFlow), format.Currency(minVal), format.Currency(maxVal),
		))

	case lowerEval.feasible() && upperEval.feasible():
		final = lowerEval
		if cfg.Field == FieldPurchasePrice {
			final = upperEval
		}
		converged = true
		summary.Notes = append(summary.Notes, fmt.Sprintf(
			"cash flow floor met across bounds; answer is pinned at %s", format.Currency(final.value),
		))

	case lowerEval.feasible():
		// Feasible side is the lower bound; push it up while it stays feasible.
		final = lowerEval
		lower, upper := lowerEval.value, upperEval.value
		for iterations < cfg.MaxIterations && math.Abs(upper-lower) > cfg.Tolerance {
			mid := lower + (upper-lower)/2
			evalMid, err := evaluate(req, cfg, mid)
			if err != nil {
				return optimization.Summary{}, err
			}
			iterations++
			if evalMid.feasible() {
				final = evalMid
				lower = mid
			} else {
				upper = mid
			}
		}
		converged = math.Abs(upper-lower) <= cfg.Tolerance
		if !converged {
			summary.Notes = append(summary.Notes, fmt.Sprintf("stopped after %d iterations", iterations))
		}

	default:
		final = upperEval
		lower, upper := lowerEval.value, upperEval.value
		for iterations < cfg.MaxIterations && math.Abs(upper-lower) > cfg.Tolerance {
			mid := lower + (upper-lower)/2
			evalMid, err := evaluate(req, cfg, mid)
			if err != nil {
				return optimization.Summary{}, err
			}
			iterations++
			if evalMid.feasible() {
				final = evalMid
				upper = mid
			} else {
				lower = mid
			}
		}
		converged = math.Abs(upper-lower) <= cfg.Tolerance
		if !converged {
			summary.Notes = append(summary.Notes, fmt.Sprintf("stopped after %d iterations", iterations))
		}
	}

	summary.Value = final.value
	summary.ValueDisplay = format.Currency(final.value)
	summary.CashFlow = final.cashFlow
	summary.Headroom = final.headroom()
	summary.Iterations = iterations
	summary.Converged = converged && final.feasible()

	r.logger.Info("optimizer searched break-even value",
		zap.String("op", "optimizer.Run"),
		zap.String("deal", req.Name),
		zap.String("field", cfg.Field),
		zap.Float64("original", original),
		zap.Float64("value", summary.Value),
		zap.Float64("cashFlow", summary.CashFlow),
		zap.Float64("headroom", summary.Headroom),
		zap.Int("iterations", iterations),
		zap.Bool("converged", summary.Converged),
	)
	return summary, nil
}

func evaluate(req analysis.Request, cfg Config, value float64) (evaluation, error) {
	switch cfg.Field {
	case FieldRent:
		req.MonthlyRent = value
	case FieldPurchasePrice:
		req.PurchasePrice = value
	}
	cashFlow, err := MonthlyCashFlow(req)
	if err != nil {
		return evaluation{}, fmt.Errorf("optimizer evaluation at %.2f failed: %w", value, err)
	}
	return evaluation{value: value, cashFlow: cashFlow, floor: cfg.TargetCashFlow}, nil
}

func fieldValue(req analysis.Request, field string) float64 {
	if field == FieldPurchasePrice {
		return req.PurchasePrice
	}
	return req.MonthlyRent
}
