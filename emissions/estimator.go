// Package emissions estimates deposited waste mass and annual methane output
// of a landfill from its surface area, category and region.
package emissions

import (
	"math"

	"github.com/boyangli/landfillmap-producer/models"
)

// Result is the emission estimate for one site
type Result struct {
	DepthM             float64 `json:"depth_m"`
	DensityTPerM3      float64 `json:"density_t_per_m3"`
	VolumeM3           float64 `json:"volume_m3"`
	MassTonnes         float64 `json:"mass_tonnes"`
	MCF                float64 `json:"mcf"`
	DecayRate          float64 `json:"decay_rate"`
	CH4TonnesPerYear   float64 `json:"ch4_tonnes_per_year"`
	CO2eqTonnesPerYear float64 `json:"co2eq_tonnes_per_year"`
}

// Estimator applies a Model to individual sites
type Estimator struct {
	model Model
}

// NewEstimator validates the model and returns an estimator for it
func NewEstimator(m Model) (*Estimator, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{model: m}, nil
}

// Model returns the constants the estimator was built with
func (e *Estimator) Model() Model {
	return e.model
}

// Estimate derives depth and density from the area bracket, the deposited
// mass, and the annual CH4 and CO2-equivalent generation. A non-positive
// area yields a zero Result.
func (e *Estimator) Estimate(area float64, category models.LandfillCategory, region *models.Region) Result {
	if !(area > 0) || math.IsInf(area, 0) {
		return Result{}
	}

	depth := e.model.depth(area, category)
	density := e.model.density(area, category)
	mass := area * depth * density
	k := e.model.DecayRate(region)
	ch4 := mass * e.model.MethanePotential * k

	return Result{
		DepthM:             depth,
		DensityTPerM3:      density,
		VolumeM3:           area * depth,
		MassTonnes:         mass,
		MCF:                e.model.MCF.Factor(depth),
		DecayRate:          k,
		CH4TonnesPerYear:   ch4,
		CO2eqTonnesPerYear: e.CO2Equivalent(ch4),
	}
}

// CO2Equivalent converts tonnes of CH4 to tonnes of CO2-equivalent
func (e *Estimator) CO2Equivalent(ch4Tonnes float64) float64 {
	return ch4Tonnes * e.model.GWPMethane
}

// CumulativeCH4 sums first-order-decay methane generation over a site's
// active years, weighted by the MCF. Generation starts after the first year,
// so fewer than two active years yield 0. The year count is passed in rather
// than derived from the clock so repeated runs stay identical.
func (e *Estimator) CumulativeCH4(r Result, yearsActive int) float64 {
	if yearsActive < 2 || r.MassTonnes <= 0 {
		return 0
	}
	k := r.DecayRate
	sum := 0.0
	for i := 1; i < yearsActive; i++ {
		sum += r.MassTonnes * e.model.MethanePotential * k * math.Exp(-k*float64(yearsActive-i)) * r.MCF
	}
	return sum
}
