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

// IntervalSnowfall returns the snowfall [m water] during one forcing
// interval, before land-cover precipitation reduction: the trapezoid-weighted
// sum over the hourly temperatures of precip times the snow fraction.
func IntervalSnowfall(temps []*sparse.DenseArray, precip *sparse.DenseArray, p Params) (*sparse.DenseArray, error) {
	if len(temps) < 2 {
		return nil, fmt.Errorf("btim: an interval needs at least 2 hourly temperatures but has %d", len(temps))
	}
	o := sparse.ZerosDense(precip.Shape...)
	n := len(temps)
	for h, t := range temps {
		if !sameShape(t.Shape, precip.Shape) {
			return nil, fmt.Errorf("btim: temperature shape %v does not match precipitation shape %v", t.Shape, precip.Shape)
		}
		w := trapezoidWeight(h, n)
		for i, v := range t.Elements {
			o.Elements[i] += w * precip.Elements[i] * SnowFraction(v, p)
		}
	}
	return o, nil
}

// Accumulators hold the season totals.
type Accumulators struct {
	TotalPrecip   *sparse.DenseArray // m water
	TotalSnowfall *sparse.DenseArray // m water
	MaxSWE        *sparse.DenseArray // kg/m2 (mm water)
}

// NewAccumulators returns zeroed accumulators with the given grid shape.
func NewAccumulators(shape ...int) *Accumulators {
	return &Accumulators{
		TotalPrecip:   sparse.ZerosDense(shape...),
		TotalSnowfall: sparse.ZerosDense(shape...),
		MaxSWE:        sparse.ZerosDense(shape...),
	}
}

// Add adds one interval's precipitation and snowfall to the running totals
// and updates the running maximum SWE.
func (a *Accumulators) Add(precip, snowfall, swe *sparse.DenseArray) error {
	if err := checkShapes([]string{"total precipitation", "precipitation", "snowfall", "SWE"},
		a.TotalPrecip, precip, snowfall, swe); err != nil {
		return err
	}
	for i := range a.TotalPrecip.Elements {
		a.TotalPrecip.Elements[i] += precip.Elements[i]
		a.TotalSnowfall.Elements[i] += snowfall.Elements[i]
		a.MaxSWE.Elements[i] = math.Max(a.MaxSWE.Elements[i], swe.Elements[i])
	}
	return nil
}
