// Package config defines the data structures related to configuration and
// includes functions for loading and resolving the deal file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/iwvelando/rental-forecast/internal/analysis"
	"github.com/iwvelando/rental-forecast/internal/lending"
	"github.com/iwvelando/rental-forecast/internal/montecarlo"
	"github.com/iwvelando/rental-forecast/internal/optimizer"
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/returns"
	"github.com/iwvelando/rental-forecast/pkg/tax"
	"github.com/iwvelando/rental-forecast/pkg/validation"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for rental-forecast.
type Configuration struct {
	Common     Common           `yaml:"common" mapstructure:"common"`
	Deals      []Deal           `yaml:"deals" mapstructure:"deals"`
	Simulation SimulationConfig `yaml:"simulation,omitempty" mapstructure:"simulation"`
	Lending    LendingConfig    `yaml:"lending,omitempty" mapstructure:"lending"`
	Logging    LoggingConfig    `yaml:"logging,omitempty" mapstructure:"logging"`
	Output     OutputConfig     `yaml:"output,omitempty" mapstructure:"output"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" mapstructure:"level"`           // debug, info, warn, error
	Format     string `yaml:"format,omitempty" mapstructure:"format"`         // json, console
	OutputFile string `yaml:"outputFile,omitempty" mapstructure:"outputFile"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty" mapstructure:"format"` // pretty, json, yaml
}

// Common holds assumptions shared by every deal. A deal overrides any of them
// by setting its own value.
type Common struct {
	TermYears    int                          `yaml:"termYears" mapstructure:"termYears"`
	HoldYears    int                          `yaml:"holdYears" mapstructure:"holdYears"`
	Growth       analysis.Growth              `yaml:"growth" mapstructure:"growth"`
	GrowthPreset string                       `yaml:"growthPreset" mapstructure:"growthPreset"`
	TaxRatePct   float64                      `yaml:"taxRatePct" mapstructure:"taxRatePct"`
	LandPct      float64                      `yaml:"landPct" mapstructure:"landPct"`
	EquityBasis  string                       `yaml:"equityBasis" mapstructure:"equityBasis"`
	Expenses     *analysis.ExpenseAssumptions `yaml:"expenses" mapstructure:"expenses"`
	Sale         *tax.SaleAssumptions         `yaml:"sale" mapstructure:"sale"`
	Weights      returns.Weights              `yaml:"weights" mapstructure:"weights"`
}

// Deal is one property under analysis.
type Deal struct {
	analysis.Request `yaml:",inline" mapstructure:",squash"`
	Active           bool               `yaml:"active" mapstructure:"active"`
	Simulation       *montecarlo.Ranges `yaml:"simulation,omitempty" mapstructure:"simulation"`
	BreakEven        *optimizer.Config  `yaml:"breakEven,omitempty" mapstructure:"breakEven"`
}

// SimulationConfig holds Monte Carlo settings and the default growth ranges.
type SimulationConfig struct {
	montecarlo.Config `yaml:",inline" mapstructure:",squash"`
	Ranges            *montecarlo.Ranges `yaml:"ranges,omitempty" mapstructure:"ranges"`
}

// LendingConfig describes the borrower evaluated against every active deal.
type LendingConfig struct {
	Borrower    lending.Borrower   `yaml:"borrower" mapstructure:"borrower"`
	Thresholds  lending.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`
	EvaluateFHA bool               `yaml:"evaluateFha" mapstructure:"evaluateFha"`
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading env file %s: %w", path, err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yml")
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Scalar settings may be overridden through RENTAL_*
// environment variables (e.g. RENTAL_OUTPUT_FORMAT).
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config, %w", err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Configuration, error) {
	// AutomaticEnv only reaches keys viper already knows about.
	for _, key := range []string{"output.format", "logging.level", "logging.format", "logging.outputFile", "simulation.trials", "simulation.seed", "simulation.workers"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("unable to bind %s, %w", key, err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &configuration, nil
}

// Resolve fills unset deal fields from Common and applies request defaults.
func (c *Configuration) Resolve(deal Deal) analysis.Request {
	req := deal.Request
	common := c.Common
	if req.TermYears == 0 {
		req.TermYears = common.TermYears
	}
	if req.HoldYears == 0 {
		req.HoldYears = common.HoldYears
	}
	if req.GrowthPreset == "" {
		req.GrowthPreset = common.GrowthPreset
	}
	req = req.ApplyPreset()
	req.Growth = req.Growth.Inherit(common.Growth)
	if req.TaxRatePct == 0 {
		req.TaxRatePct = common.TaxRatePct
	}
	if req.LandPct == 0 {
		req.LandPct = common.LandPct
	}
	if req.EquityBasis == "" {
		req.EquityBasis = common.EquityBasis
	}
	if req.Expenses == nil && common.Expenses != nil {
		expenses := *common.Expenses
		req.Expenses = &expenses
	}
	if req.Sale == nil && common.Sale != nil {
		sale := *common.Sale
		req.Sale = &sale
	}
	req.Weights = req.Weights.Inherit(common.Weights)
	return req.WithDefaults()
}

// ActiveDeals returns the resolved requests of every active deal in file order.
func (c *Configuration) ActiveDeals() []analysis.Request {
	var out []analysis.Request
	for _, deal := range c.Deals {
		if deal.Active {
			out = append(out, c.Resolve(deal))
		}
	}
	return out
}

// FindDeal returns the named deal, active or not.
func (c *Configuration) FindDeal(name string) (Deal, bool) {
	for _, deal := range c.Deals {
		if deal.Name == name {
			return deal, true
		}
	}
	return Deal{}, false
}

// SimulationRanges returns the deal's ranges, else the shared ranges, else
// degenerate ranges at the deal's own growth rates.
func (c *Configuration) SimulationRanges(deal Deal) montecarlo.Ranges {
	if deal.Simulation != nil {
		return *deal.Simulation
	}
	if c.Simulation.Ranges != nil {
		return *c.Simulation.Ranges
	}
	g := c.Resolve(deal).Growth
	return montecarlo.Ranges{
		RentGrowth:    montecarlo.Fixed(g.RentPct),
		ExpenseGrowth: montecarlo.Fixed(g.ExpensePct),
		Appreciation:  montecarlo.Fixed(g.AppreciationPct),
	}
}

// LendingRequest pairs a resolved deal with the configured borrower.
func (c *Configuration) LendingRequest(req analysis.Request) lending.Request {
	return lending.Request{
		PurchasePrice:   req.PurchasePrice,
		DownPaymentPct:  req.DownPaymentPct,
		InterestRate:    req.InterestRate,
		TermYears:       req.TermYears,
		MonthlyRent:     req.MonthlyRent,
		MonthlyExpenses: req.MonthlyExpenses,
		Borrower:        c.Lending.Borrower,
		Thresholds:      c.Lending.Thresholds,
		EvaluateFHA:     c.Lending.EvaluateFHA,
	}
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if len(c.Deals) == 0 {
		return append(warnings, "no deals are defined")
	}

	seen := make(map[string]bool)
	active := 0
	for i, deal := range c.Deals {
		name := deal.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i+1)
			warnings = append(warnings, fmt.Sprintf("deal %s has no name", name))
		} else if seen[name] {
			warnings = append(warnings, fmt.Sprintf("deal name %q is used more than once", name))
		}
		seen[name] = true

		if !deal.Active {
			continue
		}
		active++

		req := c.Resolve(deal)
		if err := req.Validate(); err != nil {
			warnings = append(warnings, fmt.Sprintf("deal %s is invalid: %v", name, err))
			continue
		}
		warnings = append(warnings, validation.ValidateDeal(validation.DealChecks{
			Name:          name,
			PurchasePrice: req.PurchasePrice,
			MonthlyRent:   req.MonthlyRent,
			RentGrowth:    req.Growth.RentPct,
			ExpenseGrowth: req.Growth.ExpensePct,
			HoldYears:     req.HoldYears,
			SaleYear:      req.SaleYear,
		})...)
		if ranges := c.SimulationRanges(deal); ranges.Validate() != nil {
			warnings = append(warnings, fmt.Sprintf("deal %s has invalid simulation ranges: %v", name, ranges.Validate()))
		}
		if deal.BreakEven != nil {
			cfg := *deal.BreakEven
			cfg.Normalize(req)
			if err := cfg.Validate(); err != nil {
				warnings = append(warnings, fmt.Sprintf("deal %s: %v", name, err))
			}
		}
	}
	if active == 0 {
		warnings = append(warnings, "no deals are active")
	}

	sim := c.Simulation.Config
	sim.Normalize()
	if err := sim.Validate(); err != nil {
		warnings = append(warnings, fmt.Sprintf("simulation: %v", err))
	}
	return warnings
}
