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

package rescale

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/sparse"
)

// axis is a grid coordinate axis sorted in increasing order.
type axis struct {
	vals     []float64 // sorted coordinate values
	index    []int     // index of each sorted value in the original axis
	periodic bool      // longitude axis wrapping at 360 degrees
}

func newAxis(coords []float64, periodic bool) (*axis, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("rescale: empty coordinate axis")
	}
	a := &axis{vals: make([]float64, len(coords)), index: make([]int, len(coords)), periodic: periodic}
	for i := range a.index {
		a.index[i] = i
	}
	v := make([]float64, len(coords))
	for i, c := range coords {
		if periodic {
			c = lon360(c)
		}
		v[i] = c
	}
	sort.Slice(a.index, func(i, j int) bool { return v[a.index[i]] < v[a.index[j]] })
	for i, j := range a.index {
		a.vals[i] = v[j]
	}
	return a, nil
}

func lon360(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}

// locate returns the original indices of the axis points bracketing x and
// the fractional distance of x from the first.
func (a *axis) locate(x float64) (i0, i1 int, frac float64) {
	n := len(a.vals)
	if n == 1 {
		return a.index[0], a.index[0], 0
	}
	if a.periodic {
		x = lon360(x)
		if x < a.vals[0] || x >= a.vals[n-1] {
			// between the last point and the first point plus 360.
			lo, hi := a.vals[n-1], a.vals[0]+360
			if x < a.vals[0] {
				x += 360
			}
			return a.index[n-1], a.index[0], (x - lo) / (hi - lo)
		}
	} else {
		if x <= a.vals[0] {
			return a.index[0], a.index[0], 0
		}
		if x >= a.vals[n-1] {
			return a.index[n-1], a.index[n-1], 0
		}
	}
	k := sort.SearchFloat64s(a.vals, x) // a.vals[k-1] < x <= a.vals[k]
	if k == 0 {
		k = 1
	}
	lo, hi := a.vals[k-1], a.vals[k]
	return a.index[k-1], a.index[k], (x - lo) / (hi - lo)
}

// bilinear interpolates data, a [lat, lon] field on the grid with the given
// coordinates, to the points of the grid with coordinates toLat and toLon.
// Longitude is periodic; latitudes beyond the source grid take the value of
// the nearest row.
func bilinear(data *sparse.DenseArray, lat, lon, toLat, toLon []float64) (*sparse.DenseArray, error) {
	if len(data.Shape) != 2 || data.Shape[0] != len(lat) || data.Shape[1] != len(lon) {
		return nil, fmt.Errorf("rescale: field shape %v does not match %d latitudes and %d longitudes",
			data.Shape, len(lat), len(lon))
	}
	la, err := newAxis(lat, false)
	if err != nil {
		return nil, err
	}
	lo, err := newAxis(lon, true)
	if err != nil {
		return nil, err
	}
	nx := len(lon)
	o := sparse.ZerosDense(len(toLat), len(toLon))
	for j, y := range toLat {
		j0, j1, fy := la.locate(y)
		for i, x := range toLon {
			i0, i1, fx := lo.locate(x)
			v00 := data.Elements[j0*nx+i0]
			v01 := data.Elements[j0*nx+i1]
			v10 := data.Elements[j1*nx+i0]
			v11 := data.Elements[j1*nx+i1]
			o.Elements[j*len(toLon)+i] = (1-fy)*((1-fx)*v00+fx*v01) + fy*((1-fx)*v10+fx*v11)
		}
	}
	return o, nil
}
