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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

// lonField returns a field on a 2-latitude grid whose value is the
// longitude plus the latitude.
func lonField(lat, lon []float64) *sparse.DenseArray {
	o := sparse.ZerosDense(len(lat), len(lon))
	for j, y := range lat {
		for i, x := range lon {
			o.Set(x+y, j, i)
		}
	}
	return o
}

func TestBilinear(t *testing.T) {
	lon := []float64{0, 90, 180, 270}
	for _, lat := range [][]float64{{50, 70}, {70, 50}} {
		data := lonField(lat, lon)
		toLat := []float64{60, 80, 40}
		toLon := []float64{45, 315, -45, 90}
		o, err := bilinear(data, lat, lon, toLat, toLon)
		if err != nil {
			t.Fatal(err)
		}
		want := [][]float64{
			// Between 270 and 360, where the value wraps back to that at 0.
			{105, 195, 195, 150},
			{115, 205, 205, 160},
			{95, 185, 185, 140},
		}
		for j := range toLat {
			for i := range toLon {
				if v := o.Get(j, i); math.Abs(v-want[j][i]) > 1.e-10 {
					t.Errorf("lat %v: (%g, %g) = %g, want %g", lat, toLat[j], toLon[i], v, want[j][i])
				}
			}
		}
	}
}

func TestBilinearSamePoints(t *testing.T) {
	lat := []float64{-30, 0, 30}
	lon := []float64{-120, 0, 120}
	data := sparse.ZerosDense(3, 3)
	for i := range data.Elements {
		data.Elements[i] = float64(i * i)
	}
	o, err := bilinear(data, lat, lon, lat, lon)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range o.Elements {
		if math.Abs(v-data.Elements[i]) > 1.e-10 {
			t.Errorf("element %d: %g != %g", i, v, data.Elements[i])
		}
	}
}

func TestBilinearShape(t *testing.T) {
	if _, err := bilinear(sparse.ZerosDense(2, 3), []float64{0, 1}, []float64{0, 1}, []float64{0}, []float64{0}); err == nil {
		t.Error("expected a shape error")
	}
	if _, err := bilinear(sparse.ZerosDense(0, 0), nil, nil, []float64{0}, []float64{0}); err == nil {
		t.Error("expected an empty axis error")
	}
}
