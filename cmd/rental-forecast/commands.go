package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/iwvelando/rental-forecast/internal/analysis"
	"github.com/iwvelando/rental-forecast/internal/config"
	"github.com/iwvelando/rental-forecast/internal/lending"
	"github.com/iwvelando/rental-forecast/internal/montecarlo"
	"github.com/iwvelando/rental-forecast/internal/optimizer"
	"github.com/iwvelando/rental-forecast/internal/server"
	"github.com/iwvelando/rental-forecast/internal/tracing"
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/format"
	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/iwvelando/rental-forecast/pkg/optimization"
	"github.com/iwvelando/rental-forecast/pkg/output"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// selectDeals returns the named deal, or every active deal when name is empty.
func (c *cli) selectDeals(name string) ([]config.Deal, error) {
	if name != "" {
		deal, ok := c.conf.FindDeal(name)
		if !ok {
			return nil, fmt.Errorf("deal %q not found in %s", name, c.configPath)
		}
		return []config.Deal{deal}, nil
	}

	var deals []config.Deal
	for _, deal := range c.conf.Deals {
		if deal.Active {
			deals = append(deals, deal)
		}
	}
	if len(deals) == 0 {
		return nil, fmt.Errorf("no active deals in %s", c.configPath)
	}
	return deals, nil
}

type namedSensitivity struct {
	Name   string                      `json:"name"`
	Report *analysis.SensitivityReport `json:"report"`
}

type analyzeOutput struct {
	Results     []*analysis.Result `json:"results"`
	Sensitivity []namedSensitivity `json:"sensitivity,omitempty"`
}

func newAnalyzeCmd(c *cli) *cobra.Command {
	var dealName, preset string
	var sensitivity bool
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Project cash flow, equity and returns for each deal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			defer c.sync()

			deals, err := c.selectDeals(dealName)
			if err != nil {
				return err
			}

			var presetGrowth analysis.Growth
			if preset != "" {
				var ok bool
				if presetGrowth, ok = analysis.PresetGrowth(preset); !ok {
					return fmt.Errorf("unknown growth preset %q, expected one of %v", preset, analysis.PresetNames())
				}
			}

			out := analyzeOutput{Results: make([]*analysis.Result, 0, len(deals))}
			for _, deal := range deals {
				req := c.conf.Resolve(deal)
				if preset != "" {
					req.GrowthPreset = preset
					req.Growth = presetGrowth
				}
				res, err := analysis.Analyze(c.logger, req)
				if err != nil {
					return fmt.Errorf("deal %s: %w", req.Name, err)
				}
				out.Results = append(out.Results, res)

				if sensitivity {
					report, err := analysis.StandardSensitivity(c.logger, req)
					if err != nil {
						return fmt.Errorf("deal %s: %w", req.Name, err)
					}
					out.Sensitivity = append(out.Sensitivity, namedSensitivity{Name: req.Name, Report: report})
				}
			}

			var payload any = out.Results
			if sensitivity {
				payload = out
			}
			return output.Render(cmd.OutOrStdout(), c.format, payload, func(w io.Writer) error {
				if err := output.PrettyAnalysis(w, out.Results); err != nil {
					return err
				}
				for _, s := range out.Sensitivity {
					_, _ = fmt.Fprintln(w)
					if err := output.PrettySensitivity(w, s.Name, s.Report); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dealName, "deal", "", "analyze only the named deal")
	cmd.Flags().BoolVar(&sensitivity, "sensitivity", false, "rerun each deal with rent and expenses shifted")
	cmd.Flags().StringVar(&preset, "preset", "", "replace each deal's growth with a preset: conservative, base or aggressive")
	return cmd
}

type namedSimulation struct {
	Name   string             `json:"name"`
	Result *montecarlo.Result `json:"result"`
}

func newSimulateCmd(c *cli) *cobra.Command {
	var dealName string
	var trials, workers int
	var seed uint64
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a Monte Carlo simulation over growth assumptions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			defer c.sync()

			simCfg := c.conf.Simulation.Config
			if cmd.Flags().Changed("trials") {
				simCfg.Trials = trials
			}
			if cmd.Flags().Changed("seed") {
				simCfg.Seed = seed
			}
			if cmd.Flags().Changed("workers") {
				simCfg.Workers = workers
			}
			sampler, err := montecarlo.NewSampler(c.logger, simCfg)
			if err != nil {
				return err
			}

			deals, err := c.selectDeals(dealName)
			if err != nil {
				return err
			}

			results := make([]namedSimulation, 0, len(deals))
			for _, deal := range deals {
				req := c.conf.Resolve(deal)
				res, err := sampler.Run(cmd.Context(), req, c.conf.SimulationRanges(deal), progressLogger(c.logger, req.Name))
				if err != nil {
					return fmt.Errorf("deal %s: %w", req.Name, err)
				}
				results = append(results, namedSimulation{Name: req.Name, Result: res})
			}

			return output.Render(cmd.OutOrStdout(), c.format, results, func(w io.Writer) error {
				for i, r := range results {
					if i > 0 {
						_, _ = fmt.Fprintln(w)
					}
					if err := output.PrettySimulation(w, r.Name, r.Result); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dealName, "deal", "", "simulate only the named deal")
	cmd.Flags().IntVar(&trials, "trials", constants.DefaultTrials, "number of trials")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent trials (default GOMAXPROCS)")
	return cmd
}

// progressLogger logs every tenth of the run at debug level.
func progressLogger(logger *zap.Logger, deal string) montecarlo.ProgressFunc {
	return func(completed, total int) {
		step := total / 10
		if step == 0 || completed%step == 0 || completed == total {
			logger.Debug("simulation progress",
				zap.String("op", "main.simulate"),
				zap.String("deal", deal),
				zap.Int("completed", completed),
				zap.Int("total", total),
			)
		}
	}
}

func newBreakEvenCmd(c *cli) *cobra.Command {
	var dealName, field string
	cmd := &cobra.Command{
		Use:   "breakeven",
		Short: "Find the rent or price at which monthly cash flow breaks even",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			defer c.sync()

			deals, err := c.selectDeals(dealName)
			if err != nil {
				return err
			}

			runner := optimizer.NewRunner(c.logger)
			summaries := make([]optimization.Summary, 0, len(deals))
			for _, deal := range deals {
				var cfg optimizer.Config
				if deal.BreakEven != nil {
					cfg = *deal.BreakEven
				}
				if field != "" {
					cfg.Field = field
				}
				req := c.conf.Resolve(deal)
				summary, err := runner.Run(req, cfg)
				if err != nil {
					return fmt.Errorf("deal %s: %w", req.Name, err)
				}
				summaries = append(summaries, summary)
			}

			return output.Render(cmd.OutOrStdout(), c.format, summaries, func(w io.Writer) error {
				return output.PrettyBreakEven(w, summaries)
			})
		},
	}
	cmd.Flags().StringVar(&dealName, "deal", "", "search only the named deal")
	cmd.Flags().StringVar(&field, "field", "", "field to solve for: rent or purchasePrice")
	return cmd
}

type namedLending struct {
	Name   string          `json:"name"`
	Result *lending.Result `json:"result"`
}

func newLendingCmd(c *cli) *cobra.Command {
	var dealName string
	var fha bool
	cmd := &cobra.Command{
		Use:   "lending",
		Short: "Check DSCR, DTI and LTV against lender thresholds",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.load(); err != nil {
				return err
			}
			defer c.sync()

			deals, err := c.selectDeals(dealName)
			if err != nil {
				return err
			}

			results := make([]namedLending, 0, len(deals))
			for _, deal := range deals {
				resolved := c.conf.Resolve(deal)
				req := c.conf.LendingRequest(resolved)
				if cmd.Flags().Changed("fha") {
					req.EvaluateFHA = fha
				}
				res, err := lending.Evaluate(c.logger, req)
				if err != nil {
					return fmt.Errorf("deal %s: %w", resolved.Name, err)
				}
				results = append(results, namedLending{Name: resolved.Name, Result: res})
			}

			return output.Render(cmd.OutOrStdout(), c.format, results, func(w io.Writer) error {
				for i, r := range results {
					if i > 0 {
						_, _ = fmt.Fprintln(w)
					}
					if err := output.PrettyLending(w, r.Name, r.Result); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dealName, "deal", "", "evaluate only the named deal")
	cmd.Flags().BoolVar(&fha, "fha", false, "also screen against FHA requirements")
	return cmd
}

func newAffordabilityCmd(c *cli) *cobra.Command {
	var req lending.AffordabilityRequest
	var period string
	cmd := &cobra.Command{
		Use:   "affordability",
		Short: "Convert between a rent and the tenant income it requires",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat, err := c.standaloneFormat()
			if err != nil {
				return err
			}

			req.Period = lending.IncomePeriod(period)
			res, err := lending.Affordability(req)
			if err != nil {
				return err
			}

			return output.Render(cmd.OutOrStdout(), outputFormat, res, func(w io.Writer) error {
				_, _ = fmt.Fprintf(w, "Rent-to-income ratio: %s\n", format.Percent(res.RentToIncomePct))
				if res.RequiredIncome != nil {
					_, _ = fmt.Fprintf(w, "Required income: %s/mo (%s/yr)\n",
						format.Currency(res.RequiredIncome.Monthly), format.Currency(res.RequiredIncome.Annual))
				}
				if res.MaxRent != nil {
					_, _ = fmt.Fprintf(w, "Maximum rent: %s/mo\n", format.Currency(*res.MaxRent))
				}
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&req.Rent, "rent", 0, "monthly rent to qualify for")
	cmd.Flags().Float64Var(&req.Income, "income", 0, "tenant gross income")
	cmd.Flags().StringVar(&period, "period", string(lending.Monthly), "income period: monthly or annual")
	cmd.Flags().Float64Var(&req.RentToIncomePct, "ratio", 0, "rent-to-income ratio in percent (default 30)")
	return cmd
}

func newRehabCmd(c *cli) *cobra.Command {
	var req analysis.RehabRequest
	var loanBalance float64
	cmd := &cobra.Command{
		Use:   "rehab",
		Short: "Estimate equity and return after a renovation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat, err := c.standaloneFormat()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("loan-balance") {
				req.LoanBalance = &loanBalance
			}
			res, err := analysis.Rehab(req)
			if err != nil {
				return err
			}

			return output.Render(cmd.OutOrStdout(), outputFormat, res, func(w io.Writer) error {
				return output.PrettyRehab(w, res)
			})
		},
	}
	cmd.Flags().Float64Var(&req.PurchasePrice, "price", 0, "purchase price")
	cmd.Flags().Float64Var(&req.DownPaymentPct, "down", constants.DefaultDownPaymentPct, "down payment in percent")
	cmd.Flags().Float64Var(&req.RehabCost, "rehab-cost", 0, "renovation cost")
	cmd.Flags().Float64Var(&loanBalance, "loan-balance", 0, "outstanding loan balance (default: the financed share of the price)")
	cmd.Flags().Float64Var(&req.AfterRepairValue, "arv", 0, "after-repair value")
	return cmd
}

func newRefinanceCmd(c *cli) *cobra.Command {
	var opts loans.RefinanceOptions
	var dealName string
	cmd := &cobra.Command{
		Use:   "refinance",
		Short: "Price a refinance of a deal's loan or of a given balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat := ""
			if dealName != "" {
				if err := c.load(); err != nil {
					return err
				}
				defer c.sync()

				deals, err := c.selectDeals(dealName)
				if err != nil {
					return err
				}
				req := c.conf.Resolve(deals[0])
				terms, err := loans.NewTerms(req.PurchasePrice, req.DownPaymentPct, req.InterestRate, req.TermYears)
				if err != nil {
					return fmt.Errorf("deal %s: %w", req.Name, err)
				}
				opts.Original = &terms
				outputFormat = c.format
			} else {
				var err error
				if outputFormat, err = c.standaloneFormat(); err != nil {
					return err
				}
			}

			res, err := loans.NewRefinance(opts)
			if err != nil {
				return err
			}

			return output.Render(cmd.OutOrStdout(), outputFormat, res, func(w io.Writer) error {
				return output.PrettyRefinance(w, res)
			})
		},
	}
	cmd.Flags().StringVar(&dealName, "deal", "", "refinance the named deal's loan")
	cmd.Flags().IntVar(&opts.AfterMonths, "after-months", 0, "payments made on the deal's loan before refinancing")
	cmd.Flags().Float64Var(&opts.Balance, "balance", 0, "balance to refinance when no deal is given")
	cmd.Flags().Float64Var(&opts.CashOut, "cash-out", 0, "cash taken out (negative pays the balance down)")
	cmd.Flags().Float64Var(&opts.NewRate, "rate", 0, "new annual interest rate in percent")
	cmd.Flags().IntVar(&opts.NewTermYears, "term", constants.DefaultTermYears, "new term in years")
	return cmd
}

func newPresetsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the growth presets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputFormat, err := c.standaloneFormat()
			if err != nil {
				return err
			}

			presets := make(map[string]analysis.Growth)
			for _, name := range analysis.PresetNames() {
				g, _ := analysis.PresetGrowth(name)
				presets[name] = g
			}
			return output.Render(cmd.OutOrStdout(), outputFormat, presets, func(w io.Writer) error {
				return output.PrettyPresets(w, presets)
			})
		},
	}
}

func newServeCmd(c *cli) *cobra.Command {
	var serverConfigPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadEnvFile(c.envFile); err != nil {
				return err
			}
			cfg, err := server.LoadConfig(serverConfigPath)
			if err != nil {
				return err
			}
			logger, err := initializeLogger(cfg.Logging, c.logLevel)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			ctx := cmd.Context()
			shutdown, err := tracing.Init(ctx, logger, cfg.Tracing, version)
			if err != nil {
				return err
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(flushCtx); err != nil {
					logger.Warn("failed to flush traces",
						zap.String("op", "main.serve"),
						zap.Error(err),
					)
				}
			}()

			api, err := server.NewWebAPI(ctx, logger, cfg, version)
			if err != nil {
				return err
			}
			return api.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&serverConfigPath, "server-config", constants.DefaultServerConfigFile, "path to the server configuration file")
	return cmd
}
