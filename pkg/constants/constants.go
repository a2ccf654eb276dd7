// Package constants provides shared constants for the rental-forecast application.
package constants

// Financial constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// DecimalPrecision is the precision for currency rounding (2 decimal places)
	DecimalPrecision = 100

	// DepreciationYears is the straight-line recovery period for residential rental property
	DepreciationYears = 27.5

	// DefaultSellingCostPct is the share of the sale price lost to commissions and closing
	DefaultSellingCostPct = 6.0

	// DefaultCapitalGainsRate approximates the long-term capital gains rate applied at sale
	DefaultCapitalGainsRate = 15.0

	// DefaultHoldYears is the projection horizon used when none is given
	DefaultHoldYears = 10

	// MaxHoldYears bounds projection horizons
	MaxHoldYears = 100

	// DefaultDownPaymentPct and DefaultTermYears seed the rehab and refinance calculators
	DefaultDownPaymentPct = 20.0
	DefaultTermYears      = 30
)

// Deal score defaults
const (
	DefaultROIWeight      = 60.0
	DefaultROICap         = 20.0
	DefaultCapRateWeight  = 30.0
	DefaultCapRateCap     = 10.0
	DefaultCashFlowBonus  = 10.0
	MaxDealScore          = 100.0
	VerdictGreatThreshold = 85.0
	VerdictSolidThreshold = 70.0
	VerdictFairThreshold  = 50.0

	// Below these levels the score breakdown suggests an improvement
	SuggestROIBelow     = 10.0
	SuggestCapRateBelow = 5.0
)

// Growth presets in percent per year: rent, expenses, appreciation
const (
	ConservativeRentGrowth    = 1.5
	ConservativeExpenseGrowth = 3.0
	ConservativeAppreciation  = 2.0

	BaseRentGrowth    = 2.5
	BaseExpenseGrowth = 2.0
	BaseAppreciation  = 3.0

	AggressiveRentGrowth    = 4.0
	AggressiveExpenseGrowth = 1.5
	AggressiveAppreciation  = 5.0
)

// Simulation defaults
const (
	// DefaultTrials is the Monte Carlo trial count used when none is given
	DefaultTrials = 500

	// MaxTrials bounds a single simulation request
	MaxTrials = 20000

	// DefaultHistogramBins is the number of buckets used for distribution charts
	DefaultHistogramBins = 50
)

// Lending defaults
const (
	DefaultMinDSCR           = 1.2
	DefaultMaxDTI            = 43.0
	DefaultMaxLTV            = 80.0
	FHAMinCreditScore        = 580
	FHAMaxDTI                = 57.0
	FHAMaxLTV                = 96.5
	FHAMinDownPaymentPct     = 3.5
	FHAUpfrontMIPPct         = 1.75
	FHAAnnualMIPPct          = 0.55
	DefaultRentToIncomeRatio = 30.0
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"

	// OutputFormatYAML is the YAML output format
	OutputFormatYAML = "yaml"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "deals.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment overrides
	EnvPrefix = "RENTAL"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultCacheTTLSeconds is how long cached analysis responses live
	DefaultCacheTTLSeconds = 300

	// ServiceName identifies this process in traces and metrics
	ServiceName = "rental-forecast"
)

// Validation constants
const (
	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0
)
