// Package optimization provides shared data structures for optimization results.
package optimization

// Summary captures the result of a single break-even search.
type Summary struct {
	TargetName      string   `json:"targetName,omitempty" yaml:"targetName,omitempty"`
	Field           string   `json:"field" yaml:"field"`
	Original        float64  `json:"original" yaml:"original"`
	Value           float64  `json:"value" yaml:"value"`
	Floor           float64  `json:"floor" yaml:"floor"`
	CashFlow        float64  `json:"cashFlow" yaml:"cashFlow"`
	Headroom        float64  `json:"headroom" yaml:"headroom"`
	Iterations      int      `json:"iterations" yaml:"iterations"`
	Converged       bool     `json:"converged" yaml:"converged"`
	Notes           []string `json:"notes,omitempty" yaml:"notes,omitempty"`
	OriginalDisplay string   `json:"originalDisplay,omitempty" yaml:"originalDisplay,omitempty"`
	ValueDisplay    string   `json:"valueDisplay,omitempty" yaml:"valueDisplay,omitempty"`
}

// Feasible reports whether the chosen value meets the cash flow floor.
func (s Summary) Feasible() bool {
	return s.Converged && s.Headroom >= 0
}
