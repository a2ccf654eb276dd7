package analysis

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"github.com/iwvelando/rental-forecast/pkg/projection"
	"github.com/iwvelando/rental-forecast/pkg/returns"
	"github.com/iwvelando/rental-forecast/pkg/tax"
)

// ErrInvalidRequest wraps every input violation found before a run starts.
var ErrInvalidRequest = errors.New("invalid analysis request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Growth holds annual growth rates in percent.
type Growth struct {
	RentPct         float64 `json:"rentPct" yaml:"rentPct" mapstructure:"rentPct" validate:"gt=-100,lte=100"`
	ExpensePct      float64 `json:"expensePct" yaml:"expensePct" mapstructure:"expensePct" validate:"gt=-100,lte=100"`
	AppreciationPct float64 `json:"appreciationPct" yaml:"appreciationPct" mapstructure:"appreciationPct" validate:"gt=-100,lte=100"`
}

// Inherit fills every zero rate of g from base.
func (g Growth) Inherit(base Growth) Growth {
	if g.RentPct == 0 {
		g.RentPct = base.RentPct
	}
	if g.ExpensePct == 0 {
		g.ExpensePct = base.ExpensePct
	}
	if g.AppreciationPct == 0 {
		g.AppreciationPct = base.AppreciationPct
	}
	return g
}

// Request is the full set of inputs for one analysis. Percentages are whole
// numbers (6.5 means 6.5%).
type Request struct {
	Name            string               `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	PurchasePrice   float64              `json:"purchasePrice" yaml:"purchasePrice" mapstructure:"purchasePrice" validate:"gte=0"`
	DownPaymentPct  float64              `json:"downPaymentPct" yaml:"downPaymentPct" mapstructure:"downPaymentPct" validate:"gte=0,lte=100"`
	ClosingCosts    float64              `json:"closingCosts,omitempty" yaml:"closingCosts" mapstructure:"closingCosts" validate:"gte=0"`
	InterestRate    float64              `json:"interestRate" yaml:"interestRate" mapstructure:"interestRate" validate:"gte=0,lte=100"`
	TermYears       int                  `json:"termYears" yaml:"termYears" mapstructure:"termYears" validate:"gt=0,lte=50"`
	MonthlyRent     float64              `json:"monthlyRent" yaml:"monthlyRent" mapstructure:"monthlyRent" validate:"gte=0"`
	MonthlyExpenses float64              `json:"monthlyExpenses" yaml:"monthlyExpenses" mapstructure:"monthlyExpenses" validate:"gte=0"`
	Expenses        *ExpenseAssumptions  `json:"expenses,omitempty" yaml:"expenses" mapstructure:"expenses"`
	Growth          Growth               `json:"growth" yaml:"growth" mapstructure:"growth"`
	GrowthPreset    string               `json:"growthPreset,omitempty" yaml:"growthPreset" mapstructure:"growthPreset" validate:"omitempty,oneof=conservative base aggressive"`
	HoldYears       int                  `json:"holdYears" yaml:"holdYears" mapstructure:"holdYears" validate:"gt=0,lte=100"`
	SaleYear        int                  `json:"saleYear,omitempty" yaml:"saleYear" mapstructure:"saleYear" validate:"gte=0,ltefield=HoldYears"`
	TaxRatePct      float64              `json:"taxRatePct" yaml:"taxRatePct" mapstructure:"taxRatePct" validate:"gte=0,lte=100"`
	LandPct         float64              `json:"landPct" yaml:"landPct" mapstructure:"landPct" validate:"gte=0,lte=100"`
	EquityBasis     string               `json:"equityBasis,omitempty" yaml:"equityBasis" mapstructure:"equityBasis" validate:"omitempty,oneof=gross netOfInvestment"`
	Weights         returns.Weights      `json:"weights,omitempty" yaml:"weights" mapstructure:"weights"`
	Sale            *tax.SaleAssumptions `json:"sale,omitempty" yaml:"sale" mapstructure:"sale"`
}

// WithDefaults fills optional fields. It does not modify r.
func (r Request) WithDefaults() Request {
	r = r.ApplyPreset()
	if r.HoldYears == 0 {
		r.HoldYears = constants.DefaultHoldYears
	}
	if r.SaleYear == 0 {
		r.SaleYear = r.HoldYears
	}
	if r.EquityBasis == "" {
		r.EquityBasis = string(projection.EquityNetOfInvestment)
	}
	r.Weights = r.Weights.OrDefault()
	if r.Sale == nil {
		sale := tax.DefaultSaleAssumptions()
		r.Sale = &sale
	}
	return r
}

// Validate reports every violated constraint at once, wrapped in ErrInvalidRequest.
func (r Request) Validate() error {
	var errs []error

	if !mathutil.AllFinite(r.PurchasePrice, r.DownPaymentPct, r.ClosingCosts, r.InterestRate,
		r.MonthlyRent, r.MonthlyExpenses, r.Growth.RentPct, r.Growth.ExpensePct,
		r.Growth.AppreciationPct, r.TaxRatePct, r.LandPct) {
		errs = append(errs, errors.New("all amounts and rates must be finite numbers"))
	}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}

	if err := r.Weights.OrDefault().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("weights: %w", err))
	}
	if r.Sale != nil {
		if err := r.Sale.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("sale: %w", err))
		}
	}
	if r.Expenses != nil {
		if err := r.Expenses.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("expenses: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, errors.Join(errs...))
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "gte":
		return fmt.Errorf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Errorf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Errorf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "ltefield":
		return fmt.Errorf("%s must not exceed %s, got %v", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %s validation", field, fe.Tag())
	}
}
