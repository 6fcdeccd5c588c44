/*
Copyright © 2024 the B-TIM authors.
This file is part of B-TIM.

B-TIM is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

B-TIM is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with B-TIM.  If not, see <http://www.gnu.org/licenses/>.
*/

package btim

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// State holds the prognostic snowpack fields, plus the snow water equivalent
// [kg/m2] derived from them.
type State struct {
	Depth   *sparse.DenseArray // m snow
	Density *sparse.DenseArray // kg/m3
	SWE     *sparse.DenseArray // kg/m2 (mm water)
}

// NewState returns a snow-free state with the given grid shape: depth zero
// and density at the minimum allowed value.
func NewState(p Params, shape ...int) *State {
	return &State{
		Depth:   sparse.ZerosDense(shape...),
		Density: fill(p.RhoMin, shape...),
		SWE:     sparse.ZerosDense(shape...),
	}
}

// Copy returns a deep copy of s.
func (s *State) Copy() *State {
	o := &State{Depth: s.Depth.Copy(), Density: s.Density.Copy()}
	if s.SWE != nil {
		o.SWE = s.SWE.Copy()
	}
	return o
}

// updateSWE recomputes SWE from depth and density.
func (s *State) updateSWE() {
	s.SWE = sparse.ZerosDense(s.Depth.Shape...)
	for i, d := range s.Depth.Elements {
		s.SWE.Elements[i] = d * s.Density.Elements[i]
	}
}

// HourStep advances snow density and depth by one hour. w is the time weight
// of the hour (0.5 for the first and last sample of an interval, otherwise 1),
// melt is the hourly melt rate [mm w.e. h-1 K-1], t the temperature [°C] and
// precip the hour's precipitation [m water]. Land-cover precipitation
// reduction is not applied here. The inputs are not modified; new density
// and depth grids are returned.
func HourStep(w float64, melt, t, precip, density, depth *sparse.DenseArray, lc *LandCover, p Params) (newDensity, newDepth *sparse.DenseArray, err error) {
	if err = checkShapes([]string{"melt rate", "temperature", "precipitation", "density", "depth"},
		melt, t, precip, density, depth); err != nil {
		return nil, nil, err
	}
	if err = lc.check(len(depth.Elements)); err != nil {
		return nil, nil, err
	}
	newDensity = sparse.ZerosDense(density.Shape...)
	newDepth = sparse.ZerosDense(depth.Shape...)
	calculations(len(depth.Elements), func(i int) {
		newDensity.Elements[i], newDepth.Elements[i] = hourStepCell(w, melt.Elements[i], t.Elements[i],
			precip.Elements[i], density.Elements[i], depth.Elements[i], lc.coldAgingC2(i), p)
	})
	return newDensity, newDepth, nil
}

// MeltRate returns the hourly melt rate grid for the given density and land
// cover.
func MeltRate(density *sparse.DenseArray, lc *LandCover) (*sparse.DenseArray, error) {
	if err := lc.check(len(density.Elements)); err != nil {
		return nil, err
	}
	o := sparse.ZerosDense(density.Shape...)
	for i, rho := range density.Elements {
		o.Elements[i] = HourlyMeltRate(rho, lc.boreal(i))
	}
	return o, nil
}

// ReducePrecip returns a copy of precip scaled by the land-cover
// precipitation reduction factors.
func ReducePrecip(precip *sparse.DenseArray, lc *LandCover, p Params) (*sparse.DenseArray, error) {
	if err := lc.check(len(precip.Elements)); err != nil {
		return nil, err
	}
	o := precip.Copy()
	for i := range o.Elements {
		o.Elements[i] *= lc.precipScale(i, p)
	}
	return o, nil
}

// trapezoidWeight returns the time weight of hourly sample i out of n.
func trapezoidWeight(i, n int) float64 {
	if i == 0 || i == n-1 {
		return 0.5
	}
	return 1
}

// Brasnett advances the snowpack across one forcing interval, following the
// scheme of Brasnett (1999). temps holds the N+1 hourly temperatures [°C]
// spanning an N-hour interval, including both boundaries, and precip the
// precipitation [m water] per hour. The melt rate and the land-cover
// precipitation reduction are computed once, and then HourStep integrates
// the hours in order with the trapezoidal rule.
//
// Cells where both boundary temperatures are above the upper mixed
// precipitation threshold and there is no snow at the start of the interval
// are reset to zero depth and minimum density.
func Brasnett(s *State, temps []*sparse.DenseArray, precip *sparse.DenseArray, lc *LandCover, p Params) (*State, error) {
	if len(temps) < 2 {
		return nil, fmt.Errorf("btim: an interval needs at least 2 hourly temperatures but has %d", len(temps))
	}
	names := make([]string, 0, len(temps)+3)
	names = append(names, "depth", "density", "precipitation")
	for i := range temps {
		names = append(names, fmt.Sprintf("temperature[%d]", i))
	}
	if err := checkShapes(names, append([]*sparse.DenseArray{s.Depth, s.Density, precip}, temps...)...); err != nil {
		return nil, err
	}
	if err := lc.check(len(s.Depth.Elements)); err != nil {
		return nil, err
	}

	density := sparse.ZerosDense(s.Density.Shape...)
	for i, rho := range s.Density.Elements {
		density.Elements[i] = p.clampDensity(rho)
	}
	melt, err := MeltRate(density, lc)
	if err != nil {
		return nil, err
	}
	pr, err := ReducePrecip(precip, lc, p)
	if err != nil {
		return nil, err
	}
	depth := s.Depth
	n := len(temps)
	for h, t := range temps {
		if density, depth, err = HourStep(trapezoidWeight(h, n), melt, t, pr, density, depth, lc, p); err != nil {
			return nil, err
		}
	}

	o := &State{Depth: depth, Density: density}
	upper := p.Mixed.Upper
	for i, d := range o.Depth.Elements {
		o.Depth.Elements[i] = math.Min(d, p.MaxDepth)
		if temps[0].Elements[i] > upper && temps[n-1].Elements[i] > upper && s.Depth.Elements[i] <= noSnowDepth {
			o.Depth.Elements[i], o.Density.Elements[i] = 0, p.RhoMin
		}
	}
	o.updateSWE()
	return o, nil
}
