package lending

import (
	"fmt"

	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
)

// IncomePeriod says whether an income figure is monthly or annual.
type IncomePeriod string

const (
	Monthly IncomePeriod = "monthly"
	Annual  IncomePeriod = "annual"
)

// Income is a figure expressed in both periods.
type Income struct {
	Monthly float64 `json:"monthly"`
	Annual  float64 `json:"annual"`
}

// AffordabilityRequest asks for either the income a rent requires (Rent set)
// or the rent an income supports (Income set).
type AffordabilityRequest struct {
	Rent            float64      `json:"rent,omitempty" yaml:"rent" mapstructure:"rent"`
	Income          float64      `json:"income,omitempty" yaml:"income" mapstructure:"income"`
	Period          IncomePeriod `json:"period,omitempty" yaml:"period" mapstructure:"period"`
	RentToIncomePct float64      `json:"rentToIncomePct,omitempty" yaml:"rentToIncomePct" mapstructure:"rentToIncomePct"`
}

// AffordabilityResult carries whichever direction was requested.
type AffordabilityResult struct {
	RentToIncomePct float64  `json:"rentToIncomePct"`
	RequiredIncome  *Income  `json:"requiredIncome,omitempty"`
	MaxRent         *float64 `json:"maxRent,omitempty"`
}

func ratioOrDefault(ratioPct float64) (float64, error) {
	if ratioPct == 0 {
		return constants.DefaultRentToIncomeRatio, nil
	}
	if !mathutil.IsFinite(ratioPct) || ratioPct < 0 || ratioPct > constants.PercentageMultiplier {
		return 0, fmt.Errorf("%w: rent-to-income ratio must be in (0, 100], got %v", ErrInvalidInput, ratioPct)
	}
	return ratioPct, nil
}

// RequiredIncome returns the income at which rent is ratioPct of gross
// monthly income. A zero ratio uses the 30% rule.
func RequiredIncome(rent, ratioPct float64) (Income, error) {
	ratio, err := ratioOrDefault(ratioPct)
	if err != nil {
		return Income{}, err
	}
	if !mathutil.IsFinite(rent) || rent < 0 {
		return Income{}, fmt.Errorf("%w: rent must be a non-negative number, got %v", ErrInvalidInput, rent)
	}
	monthly := rent / (ratio / constants.PercentageMultiplier)
	return Income{Monthly: monthly, Annual: monthly * constants.MonthsPerYear}, nil
}

// MaxRent returns the monthly rent an income supports.
func MaxRent(income float64, period IncomePeriod, ratioPct float64) (float64, error) {
	ratio, err := ratioOrDefault(ratioPct)
	if err != nil {
		return 0, err
	}
	if !mathutil.IsFinite(income) || income < 0 {
		return 0, fmt.Errorf("%w: income must be a non-negative number, got %v", ErrInvalidInput, income)
	}
	switch period {
	case Monthly, "":
	case Annual:
		income /= constants.MonthsPerYear
	default:
		return 0, fmt.Errorf("%w: period must be monthly or annual, got %q", ErrInvalidInput, period)
	}
	return mathutil.ApplyPercentage(income, ratio), nil
}

// Affordability dispatches on which of Rent or Income is set.
func Affordability(req AffordabilityRequest) (*AffordabilityResult, error) {
	ratio, err := ratioOrDefault(req.RentToIncomePct)
	if err != nil {
		return nil, err
	}
	res := &AffordabilityResult{RentToIncomePct: ratio}
	switch {
	case req.Rent < 0 || req.Income < 0:
		return nil, fmt.Errorf("%w: rent and income must not be negative", ErrInvalidInput)
	case req.Rent > 0 && req.Income > 0:
		return nil, fmt.Errorf("%w: set either rent or income, not both", ErrInvalidInput)
	case req.Income > 0:
		maxRent, err := MaxRent(req.Income, req.Period, ratio)
		if err != nil {
			return nil, err
		}
		res.MaxRent = &maxRent
	default:
		income, err := RequiredIncome(req.Rent, ratio)
		if err != nil {
			return nil, err
		}
		res.RequiredIncome = &income
	}
	return res, nil
}
