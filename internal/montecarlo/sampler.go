// Package montecarlo reruns the analysis pipeline with growth rates drawn
// from uniform ranges and summarizes the resulting ROI and IRR distributions.
package montecarlo

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/iwvelando/rental-forecast/internal/analysis"
	"github.com/iwvelando/rental-forecast/internal/metrics"
	"github.com/iwvelando/rental-forecast/internal/tracing"
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"github.com/iwvelando/rental-forecast/pkg/returns"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidSimulation is returned for unusable ranges or settings.
var ErrInvalidSimulation = errors.New("invalid simulation")

// Range is an inclusive uniform range in percent.
type Range struct {
	Low  float64 `json:"low" yaml:"low" mapstructure:"low"`
	High float64 `json:"high" yaml:"high" mapstructure:"high"`
}

// Fixed returns a degenerate range at value.
func Fixed(value float64) Range {
	return Range{Low: value, High: value}
}

func (r Range) validate(name string) error {
	if !mathutil.AllFinite(r.Low, r.High) {
		return fmt.Errorf("%s range must be finite", name)
	}
	if r.Low > r.High {
		return fmt.Errorf("%s range low %.2f exceeds high %.2f", name, r.Low, r.High)
	}
	if r.Low <= -constants.PercentageMultiplier || r.High > constants.PercentageMultiplier {
		return fmt.Errorf("%s range must lie within (-100%%, 100%%], got %.2f to %.2f", name, r.Low, r.High)
	}
	return nil
}

func (r Range) draw(rng *rand.Rand) float64 {
	return r.Low + (r.High-r.Low)*rng.Float64()
}

// Ranges holds the sampled growth parameters.
type Ranges struct {
	RentGrowth    Range `json:"rentGrowth" yaml:"rentGrowth" mapstructure:"rentGrowth"`
	ExpenseGrowth Range `json:"expenseGrowth" yaml:"expenseGrowth" mapstructure:"expenseGrowth"`
	Appreciation  Range `json:"appreciation" yaml:"appreciation" mapstructure:"appreciation"`
}

// Validate checks every range.
func (r Ranges) Validate() error {
	return errors.Join(
		r.RentGrowth.validate("rentGrowth"),
		r.ExpenseGrowth.validate("expenseGrowth"),
		r.Appreciation.validate("appreciation"),
	)
}

// Config controls a simulation run.
type Config struct {
	Trials        int    `json:"trials" yaml:"trials" mapstructure:"trials"`
	Seed          uint64 `json:"seed" yaml:"seed" mapstructure:"seed"`
	Workers       int    `json:"workers,omitempty" yaml:"workers" mapstructure:"workers"`
	HistogramBins int    `json:"histogramBins,omitempty" yaml:"histogramBins" mapstructure:"histogramBins"`
}

// Normalize applies defaults to unset fields.
func (c *Config) Normalize() {
	if c.Trials == 0 {
		c.Trials = constants.DefaultTrials
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.HistogramBins <= 0 {
		c.HistogramBins = constants.DefaultHistogramBins
	}
}

// Validate bounds the trial count.
func (c Config) Validate() error {
	if c.Trials <= 0 || c.Trials > constants.MaxTrials {
		return fmt.Errorf("trials must be between 1 and %d, got %d", constants.MaxTrials, c.Trials)
	}
	return nil
}

// Trial is one full pipeline run with its sampled parameters.
type Trial struct {
	Index            int               `json:"index"`
	RentGrowthPct    float64           `json:"rentGrowthPct"`
	ExpenseGrowthPct float64           `json:"expenseGrowthPct"`
	AppreciationPct  float64           `json:"appreciationPct"`
	ROI              float64           `json:"roi"`
	ROIDefined       bool              `json:"roiDefined"`
	IRR              *float64          `json:"irr,omitempty"`
	IRRStatus        returns.IRRStatus `json:"irrStatus"`
}

// Result is an immutable simulation outcome.
type Result struct {
	ID             string       `json:"id"`
	Trials         []Trial      `json:"trials"`
	ROI            Distribution `json:"roi"`
	IRR            Distribution `json:"irr"`
	IRRUnavailable int          `json:"irrUnavailable"`
	ROIHistogram   Histogram    `json:"roiHistogram"`
	IRRHistogram   Histogram    `json:"irrHistogram"`
}

// ROIs returns the ROI of every trial with a defined investment.
func (r *Result) ROIs() []float64 {
	out := make([]float64, 0, len(r.Trials))
	for _, t := range r.Trials {
		if t.ROIDefined {
			out = append(out, t.ROI)
		}
	}
	return out
}

// IRRs returns the IRR of every trial where one was solved.
func (r *Result) IRRs() []float64 {
	out := make([]float64, 0, len(r.Trials))
	for _, t := range r.Trials {
		if t.IRR != nil {
			out = append(out, *t.IRR)
		}
	}
	return out
}

// ProgressFunc is called after each completed trial. Calls are serialized.
type ProgressFunc func(completed, total int)

// Sampler runs simulations.
type Sampler struct {
	logger *zap.Logger
	cfg    Config
}

// NewSampler constructs a Sampler with normalized configuration.
func NewSampler(logger *zap.Logger, cfg Config) (*Sampler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSimulation, err)
	}
	return &Sampler{logger: logger, cfg: cfg}, nil
}

// Config returns the effective configuration.
func (s *Sampler) Config() Config {
	return s.cfg
}

// Run draws one parameter set per trial and holds it for the whole horizon.
// Each trial seeds its own generator from (seed, index) so the result does not
// depend on scheduling.
func (s *Sampler) Run(ctx context.Context, base analysis.Request, ranges Ranges, progress ProgressFunc) (*Result, error) {
	ctx, span := tracing.Tracer().Start(ctx, "montecarlo.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("trials", s.cfg.Trials),
		attribute.Int("workers", s.cfg.Workers),
	)

	if err := ranges.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSimulation, err)
	}
	// Fail fast on the base deal before spawning workers.
	if _, err := analysis.Analyze(zap.NewNop(), base); err != nil {
		return nil, err
	}

	trials := make([]Trial, s.cfg.Trials)
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := range trials {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			trial, err := s.runTrial(base, ranges, i)
			if err != nil {
				return err
			}
			trials[i] = trial
			metrics.SimulationTrials.Inc()

			if progress != nil {
				mu.Lock()
				completed++
				progress(completed, len(trials))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{ID: uuid.NewString(), Trials: trials}
	roi := result.ROIs()
	irr := result.IRRs()
	result.ROI = Summarize(roi)
	result.IRR = Summarize(irr)
	result.IRRUnavailable = len(trials) - len(irr)
	result.ROIHistogram = NewHistogram(roi, s.cfg.HistogramBins)
	result.IRRHistogram = NewHistogram(irr, s.cfg.HistogramBins)

	s.logger.Info("simulation complete",
		zap.String("op", "montecarlo.Run"),
		zap.String("id", result.ID),
		zap.Int("trials", len(trials)),
		zap.Int("irrUnavailable", result.IRRUnavailable),
		zap.Float64("roiP50", result.ROI.P50),
	)
	return result, nil
}

func (s *Sampler) runTrial(base analysis.Request, ranges Ranges, index int) (Trial, error) {
	rng := rand.New(rand.NewPCG(s.cfg.Seed, uint64(index)))
	req := base
	req.GrowthPreset = ""
	req.Growth = analysis.Growth{
		RentPct:         ranges.RentGrowth.draw(rng),
		ExpensePct:      ranges.ExpenseGrowth.draw(rng),
		AppreciationPct: ranges.Appreciation.draw(rng),
	}

	res, err := analysis.Analyze(s.logger, req)
	if err != nil {
		return Trial{}, fmt.Errorf("trial %d: %w", index, err)
	}

	trial := Trial{
		Index:            index,
		RentGrowthPct:    req.Growth.RentPct,
		ExpenseGrowthPct: req.Growth.ExpensePct,
		AppreciationPct:  req.Growth.AppreciationPct,
		ROI:              res.Exit.TotalReturnPct,
		ROIDefined:       res.Exit.ROIDefined,
		IRR:              res.Exit.PreTaxIRR.Percent,
		IRRStatus:        res.Exit.PreTaxIRR.Status,
	}
	if trial.IRR == nil {
		metrics.IRRUnavailable.WithLabelValues(string(trial.IRRStatus)).Inc()
	}
	return trial, nil
}
