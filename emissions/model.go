package emissions

import (
	"fmt"

	"github.com/boyangli/landfillmap-producer/models"
)

// Bracket assigns Value to areas up to and including MaxAreaM2
type Bracket struct {
	MaxAreaM2 float64 `yaml:"max_area_m2" json:"max_area_m2"`
	Value     float64 `yaml:"value" json:"value"`
}

// BreakpointTable is a step function of surface area. Areas larger than the
// last bracket get Above.
type BreakpointTable struct {
	Brackets []Bracket `yaml:"brackets" json:"brackets"`
	Above    float64   `yaml:"above" json:"above"`
}

// Lookup returns the value of the first bracket that contains area
func (t BreakpointTable) Lookup(area float64) float64 {
	for _, b := range t.Brackets {
		if area <= b.MaxAreaM2 {
			return b.Value
		}
	}
	return t.Above
}

func (t BreakpointTable) validate(name string) error {
	prevMax, prevValue := 0.0, 0.0
	for i, b := range t.Brackets {
		if b.Value <= 0 {
			return fmt.Errorf("%s bracket %d: value must be positive", name, i)
		}
		if i > 0 && b.MaxAreaM2 <= prevMax {
			return fmt.Errorf("%s bracket %d: max_area_m2 must increase", name, i)
		}
		if b.Value < prevValue {
			return fmt.Errorf("%s bracket %d: values must not decrease with area", name, i)
		}
		prevMax, prevValue = b.MaxAreaM2, b.Value
	}
	if t.Above < prevValue || t.Above <= 0 {
		return fmt.Errorf("%s: above value must be positive and not below the last bracket", name)
	}
	return nil
}

// MCFRule is the depth step used for the methane correction factor
type MCFRule struct {
	DeepThresholdM float64 `yaml:"deep_threshold_m" json:"deep_threshold_m"`
	Deep           float64 `yaml:"deep" json:"deep"`
	Shallow        float64 `yaml:"shallow" json:"shallow"`
}

// Factor returns the methane correction factor for a fill depth
func (r MCFRule) Factor(depth float64) float64 {
	if depth >= r.DeepThresholdM {
		return r.Deep
	}
	return r.Shallow
}

// Model holds every constant of the emission estimate. Downstream reporting
// recomputes CO2-equivalent from the same values, so none of them are
// inlined in the estimator.
type Model struct {
	// MethanePotential (L0) is the methane yield per tonne of waste
	MethanePotential float64 `yaml:"methane_potential" json:"methane_potential"`
	// GWPMethane converts tonnes of CH4 to tonnes of CO2-equivalent
	GWPMethane float64 `yaml:"gwp_ch4" json:"gwp_ch4"`

	Depth          map[models.LandfillCategory]BreakpointTable `yaml:"depth" json:"depth"`
	Density        map[models.LandfillCategory]BreakpointTable `yaml:"density" json:"density"`
	DefaultDepth   float64                                     `yaml:"default_depth" json:"default_depth"`
	DefaultDensity float64                                     `yaml:"default_density" json:"default_density"`

	MCF MCFRule `yaml:"mcf" json:"mcf"`

	DecayRates       map[models.Region]float64 `yaml:"decay_rates" json:"decay_rates"`
	DefaultDecayRate float64                   `yaml:"default_decay_rate" json:"default_decay_rate"`
}

// DefaultModel returns the calibrated constants used in production
func DefaultModel() Model {
	return Model{
		MethanePotential: 0.1,
		GWPMethane:       25.0,
		Depth: map[models.LandfillCategory]BreakpointTable{
			models.CategoryIllegal: {
				Brackets: []Bracket{{1_000, 1.0}, {5_000, 1.5}, {20_000, 2.5}},
				Above:    3.5,
			},
			models.CategoryNonSanitary: {
				Brackets: []Bracket{{5_000, 2.0}, {20_000, 2.5}, {50_000, 3.5}},
				Above:    4.5,
			},
			models.CategorySanitary: {
				Brackets: []Bracket{{10_000, 2.0}, {30_000, 3.0}, {100_000, 4.0}, {300_000, 5.0}},
				Above:    6.0,
			},
		},
		Density: map[models.LandfillCategory]BreakpointTable{
			models.CategoryIllegal: {
				Brackets: []Bracket{{1_000, 0.50}, {5_000, 0.55}},
				Above:    0.60,
			},
			models.CategoryNonSanitary: {
				Brackets: []Bracket{{5_000, 0.60}, {50_000, 0.65}},
				Above:    0.70,
			},
			models.CategorySanitary: {
				Brackets: []Bracket{{10_000, 0.70}, {100_000, 0.75}},
				Above:    0.80,
			},
		},
		DefaultDepth:   2.0,
		DefaultDensity: 0.7,
		MCF:            MCFRule{DeepThresholdM: 6.0, Deep: 0.8, Shallow: 0.5},
		DecayRates: map[models.Region]float64{
			models.RegionVojvodina:          0.065,
			models.RegionBelgrade:           0.06,
			models.RegionWesternSerbia:      0.055,
			models.RegionEasternSerbia:      0.055,
			models.RegionSouthernSerbia:     0.058,
			models.RegionSumadijaPomoravlje: 0.06,
			models.RegionKosovoMetohija:     0.058,
		},
		DefaultDecayRate: 0.06,
	}
}

// Validate checks the model for values that would break the estimate
func (m Model) Validate() error {
	if m.MethanePotential <= 0 {
		return fmt.Errorf("methane_potential must be positive")
	}
	if m.GWPMethane <= 0 {
		return fmt.Errorf("gwp_ch4 must be positive")
	}
	if m.DefaultDepth <= 0 || m.DefaultDensity <= 0 {
		return fmt.Errorf("default_depth and default_density must be positive")
	}
	if m.DefaultDecayRate <= 0 {
		return fmt.Errorf("default_decay_rate must be positive")
	}
	for category, table := range m.Depth {
		if err := table.validate(fmt.Sprintf("depth[%s]", category)); err != nil {
			return err
		}
	}
	for category, table := range m.Density {
		if err := table.validate(fmt.Sprintf("density[%s]", category)); err != nil {
			return err
		}
	}
	for region, k := range m.DecayRates {
		if k <= 0 {
			return fmt.Errorf("decay_rates[%s] must be positive", region)
		}
	}
	return nil
}

// DecayRate returns the decay constant k for a region, or the default when
// the region is unknown
func (m Model) DecayRate(region *models.Region) float64 {
	if region == nil {
		return m.DefaultDecayRate
	}
	if k, ok := m.DecayRates[*region]; ok {
		return k
	}
	return m.DefaultDecayRate
}

func (m Model) depth(area float64, category models.LandfillCategory) float64 {
	if table, ok := m.Depth[category]; ok {
		return table.Lookup(area)
	}
	return m.DefaultDepth
}

func (m Model) density(area float64, category models.LandfillCategory) float64 {
	if table, ok := m.Density[category]; ok {
		return table.Lookup(area)
	}
	return m.DefaultDensity
}
