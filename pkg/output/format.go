// Package output provides utilities for formatting and displaying analysis results.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/iwvelando/rental-forecast/internal/analysis"
	"github.com/iwvelando/rental-forecast/internal/lending"
	"github.com/iwvelando/rental-forecast/internal/montecarlo"
	"github.com/iwvelando/rental-forecast/pkg/constants"
	"github.com/iwvelando/rental-forecast/pkg/format"
	"github.com/iwvelando/rental-forecast/pkg/loans"
	"github.com/iwvelando/rental-forecast/pkg/optimization"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// Render writes v in the requested format. pretty is used for the pretty format.
func Render(w io.Writer, outputFormat string, v any, pretty func(io.Writer) error) error {
	switch outputFormat {
	case constants.OutputFormatJSON:
		return JSON(w, v)
	case constants.OutputFormatYAML:
		return YAML(w, v)
	case constants.OutputFormatPretty, "":
		return pretty(w)
	default:
		return fmt.Errorf("unsupported output format %q", outputFormat)
	}
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// YAML writes v as block-style YAML keyed by the same names as the JSON output.
func YAML(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	blockStyle(&node)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// blockStyle drops the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

func optionalPct(value float64, defined bool) string {
	if !defined {
		return "n/a"
	}
	return format.Percent(value)
}

func irrText(r analysis.IRRResult) string {
	if r.Percent == nil {
		return "n/a (" + string(r.Status) + ")"
	}
	return format.Percent(*r.Percent)
}

// PrettyAnalysis outputs a human-readable report per deal.
func PrettyAnalysis(w io.Writer, results []*analysis.Result) error {
	p := message.NewPrinter(language.English)
	for i, r := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintf(w, "--- Results for deal %s ---\n", r.Name)
		_, _ = p.Fprintf(w, "Purchase price:     %s (loan %s, invested %s)\n",
			format.Currency(r.PurchasePrice), format.Currency(r.LoanAmount), format.Currency(r.InitialInvestment))
		_, _ = p.Fprintf(w, "Monthly payment:    %s\n", format.Currency(r.MonthlyPayment))
		_, _ = p.Fprintf(w, "Monthly rent:       %s, expenses %s\n", format.Currency(r.MonthlyRent), format.Currency(r.MonthlyExpenses))
		_, _ = p.Fprintf(w, "Annual cash flow:   %s (NOI %s)\n", format.Currency(r.AnnualCashFlow), format.Currency(r.NOI))
		_, _ = p.Fprintf(w, "ROI:                %s\n", optionalPct(r.ROI, r.ROIDefined))
		_, _ = p.Fprintf(w, "Cap rate:           %s\n", optionalPct(r.CapRate, r.CapRateDefined))
		_, _ = p.Fprintf(w, "Deal score:         %.2f/100 (%s)\n", r.Score, r.Verdict)
		for _, c := range r.ScoreBreakdown.Contributions {
			_, _ = p.Fprintf(w, "  %-9s %+7.2f points (weight %.0f)\n", c.Factor, c.Points, c.Weight)
		}
		for _, tip := range r.ScoreBreakdown.Suggestions {
			_, _ = fmt.Fprintf(w, "  suggestion: %s\n", tip)
		}

		if r.Expenses != nil {
			e := r.Expenses
			_, _ = fmt.Fprintf(w, "Expense breakdown:  mortgage %s | taxes+insurance %s | maintenance %s | management %s | vacancy %s | other %s\n",
				format.Currency(e.Mortgage), format.Currency(e.TaxesInsurance), format.Currency(e.Maintenance),
				format.Currency(e.Management), format.Currency(e.VacancyLoss), format.Currency(e.Other))
		}

		_, _ = fmt.Fprintf(w, "Year | Rent | Expenses | Cash Flow | After Tax | Loan Balance | Value | Equity\n")
		_, _ = fmt.Fprintf(w, "____ | ____ | ________ | _________ | _________ | ____________ | _____ | ______\n")
		basis := r.EquityBasis
		for _, y := range r.Years {
			_, _ = p.Fprintf(w, "%4d | %s | %s | %s | %s | %s | %s | %s\n",
				y.Year,
				format.Currency(y.Rent),
				format.Currency(y.Expenses),
				format.Currency(y.CashFlow),
				format.Currency(y.AfterTaxCashFlow),
				format.Currency(y.LoanBalance),
				format.Currency(y.PropertyValue),
				format.Currency(y.EquityFor(basis)),
			)
		}

		x := r.Exit
		_, _ = fmt.Fprintf(w, "Exit in year %d: sale %s, net proceeds %s, total profit %s, total return %s\n",
			x.SaleYear, format.Currency(x.Sale.SaleValue), format.Currency(x.Sale.NetProceeds),
			format.Currency(x.TotalProfit), optionalPct(x.TotalReturnPct, x.ROIDefined))
		_, _ = fmt.Fprintf(w, "IRR: pre-tax %s, after-tax %s\n", irrText(x.PreTaxIRR), irrText(x.AfterTaxIRR))
	}
	return nil
}

// PrettySensitivity outputs the base snapshot and each adjusted case.
func PrettySensitivity(w io.Writer, name string, report *analysis.SensitivityReport) error {
	_, _ = fmt.Fprintf(w, "--- Sensitivity for deal %s ---\n", name)
	_, _ = fmt.Fprintf(w, "base: cash flow %s, score %.2f\n", format.Currency(report.Base.AnnualCashFlow), report.Base.Score)
	for _, c := range report.Cases {
		_, _ = fmt.Fprintf(w, "%s: cash flow %s (%s), score %.2f (%+.2f)\n",
			c.Label, format.Currency(c.Result.AnnualCashFlow), format.Currency(c.CashFlowChange), c.Result.Score, c.ScoreChange)
	}
	return nil
}

// PrettySimulation outputs ROI and IRR percentiles for a simulation.
func PrettySimulation(w io.Writer, name string, res *montecarlo.Result) error {
	_, _ = fmt.Fprintf(w, "--- Simulation for deal %s (%d trials) ---\n", name, len(res.Trials))
	_, _ = fmt.Fprintf(w, "Metric | P10 | P50 | P90 | Mean\n")
	_, _ = fmt.Fprintf(w, "______ | ___ | ___ | ___ | ____\n")
	writeDistribution(w, "ROI", res.ROI)
	if res.IRR.Count > 0 {
		writeDistribution(w, "IRR", res.IRR)
	}
	if res.IRRUnavailable > 0 {
		_, _ = fmt.Fprintf(w, "IRR unavailable in %d of %d trials\n", res.IRRUnavailable, len(res.Trials))
	}
	return nil
}

func writeDistribution(w io.Writer, label string, d montecarlo.Distribution) {
	_, _ = fmt.Fprintf(w, "%s | %s | %s | %s | %s\n",
		label, format.Percent(d.P10), format.Percent(d.P50), format.Percent(d.P90), format.Percent(d.Mean))
}

// PrettyBreakEven outputs one line per search.
func PrettyBreakEven(w io.Writer, summaries []optimization.Summary) error {
	for _, s := range summaries {
		status := "converged"
		if !s.Converged {
			status = "not converged"
		}
		_, _ = fmt.Fprintf(w, "%s: break-even %s %s (was %s), cash flow %s/mo, %d iterations, %s\n",
			s.TargetName, s.Field, s.ValueDisplay, s.OriginalDisplay, format.Currency(s.CashFlow), s.Iterations, status)
		if len(s.Notes) > 0 {
			_, _ = fmt.Fprintf(w, "  notes: %s\n", strings.Join(s.Notes, "; "))
		}
	}
	return nil
}

func passMark(pass bool) string {
	if pass {
		return "pass"
	}
	return "fail"
}

// PrettyLending outputs the qualification ratios for a deal.
func PrettyLending(w io.Writer, name string, res *lending.Result) error {
	_, _ = fmt.Fprintf(w, "--- Lending for deal %s ---\n", name)
	_, _ = fmt.Fprintf(w, "Loan %s, payment %s/mo, NOI %s/mo\n",
		format.Currency(res.LoanAmount), format.Currency(res.MonthlyPayment), format.Currency(res.NOI))
	if res.DSCRDefined {
		_, _ = fmt.Fprintf(w, "DSCR %.2f (min %.2f) %s\n", res.DSCR.Value, res.DSCR.Limit, passMark(res.DSCR.Pass))
	} else {
		_, _ = fmt.Fprintf(w, "DSCR n/a (no loan) pass\n")
	}
	_, _ = fmt.Fprintf(w, "DTI %s (max %s) %s\n", format.Percent(res.DTI.Value), format.Percent(res.DTI.Limit), passMark(res.DTI.Pass))
	_, _ = fmt.Fprintf(w, "LTV %s (max %s) %s\n", format.Percent(res.LTV.Value), format.Percent(res.LTV.Limit), passMark(res.LTV.Pass))
	if res.Qualifies {
		_, _ = fmt.Fprintln(w, "Likely to qualify for a standard investment loan")
	} else {
		_, _ = fmt.Fprintln(w, "One or more loan requirements not met")
	}
	if f := res.FHA; f != nil {
		_, _ = fmt.Fprintf(w, "FHA: credit %s, DTI %s, LTV %s, down payment %s; upfront MIP %s, monthly MIP %s, total payment %s/mo\n",
			passMark(f.CreditOK), passMark(f.DTIOK), passMark(f.LTVOK), passMark(f.DownPaymentOK),
			format.Currency(f.UpfrontMIP), format.Currency(f.MonthlyMIP), format.Currency(f.TotalMonthlyPayment))
		if f.Qualifies {
			_, _ = fmt.Fprintln(w, "FHA: appears to qualify (assuming owner occupancy)")
		} else {
			_, _ = fmt.Fprintln(w, "FHA: does not meet all requirements")
		}
	}
	return nil
}

// PrettyRehab outputs the position after a renovation.
func PrettyRehab(w io.Writer, res *analysis.RehabResult) error {
	_, _ = fmt.Fprintf(w, "Total invested:     %s (down payment %s)\n", format.Currency(res.Invested), format.Currency(res.DownPayment))
	_, _ = fmt.Fprintf(w, "Equity after rehab: %s (loan balance %s)\n", format.Currency(res.Equity), format.Currency(res.LoanBalance))
	_, _ = fmt.Fprintf(w, "Post-rehab ROI:     %s\n", optionalPct(res.ROI, res.ROIDefined))
	return nil
}

// PrettyRefinance outputs the new loan and, when known, the payment change.
func PrettyRefinance(w io.Writer, res loans.Refinance) error {
	_, _ = fmt.Fprintf(w, "Balance refinanced: %s\n", format.Currency(res.Balance))
	_, _ = fmt.Fprintf(w, "Cash out:           %s\n", format.Currency(res.CashOut))
	_, _ = fmt.Fprintf(w, "New loan amount:    %s\n", format.Currency(res.NewPrincipal))
	_, _ = fmt.Fprintf(w, "New payment:        %s/mo\n", format.Currency(res.NewPayment))
	if res.CurrentPayment != nil && res.PaymentChange != nil {
		_, _ = fmt.Fprintf(w, "Current payment:    %s/mo (change %s/mo)\n", format.Currency(*res.CurrentPayment), format.Currency(*res.PaymentChange))
	}
	return nil
}

// PrettyPresets outputs one line per growth preset.
func PrettyPresets(w io.Writer, presets map[string]analysis.Growth) error {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	_, _ = fmt.Fprintf(w, "Preset | Rent | Expenses | Appreciation\n")
	_, _ = fmt.Fprintf(w, "______ | ____ | ________ | ____________\n")
	for _, name := range names {
		g := presets[name]
		_, _ = fmt.Fprintf(w, "%s | %s | %s | %s\n", name,
			format.Percent(g.RentPct), format.Percent(g.ExpensePct), format.Percent(g.AppreciationPct))
	}
	return nil
}
