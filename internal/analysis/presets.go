package analysis

import (
	"sort"

	"github.com/iwvelando/rental-forecast/pkg/constants"
)

// Growth presets selectable by name.
const (
	PresetConservative = "conservative"
	PresetBase         = "base"
	PresetAggressive   = "aggressive"
)

var presets = map[string]Growth{
	PresetConservative: {
		RentPct:         constants.ConservativeRentGrowth,
		ExpensePct:      constants.ConservativeExpenseGrowth,
		AppreciationPct: constants.ConservativeAppreciation,
	},
	PresetBase: {
		RentPct:         constants.BaseRentGrowth,
		ExpensePct:      constants.BaseExpenseGrowth,
		AppreciationPct: constants.BaseAppreciation,
	},
	PresetAggressive: {
		RentPct:         constants.AggressiveRentGrowth,
		ExpensePct:      constants.AggressiveExpenseGrowth,
		AppreciationPct: constants.AggressiveAppreciation,
	},
}

// PresetGrowth returns the rates of a named preset.
func PresetGrowth(name string) (Growth, bool) {
	g, ok := presets[name]
	return g, ok
}

// PresetNames lists the known presets in alphabetical order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset fills every zero growth rate from the request's preset. Rates
// set explicitly win over the preset; an unknown preset is left for Validate.
func (r Request) ApplyPreset() Request {
	if g, ok := PresetGrowth(r.GrowthPreset); ok {
		r.Growth = r.Growth.Inherit(g)
	}
	return r
}
