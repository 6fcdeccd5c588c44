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
	"math"
	"math/rand"
	"testing"

	"github.com/ctessum/sparse"
)

func TestIntervalSnowfall(t *testing.T) {
	p := DefaultParams()
	p.Mixed = MixedRange{Lower: -2, Upper: 2}
	const hours = 4
	temps := make([]*sparse.DenseArray, hours+1)
	for i := range temps {
		temps[i] = fromSlice([]float64{-5, 5, 0}, 3)
	}
	o, err := IntervalSnowfall(temps, fill(0.001, 3), p)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.004, 0, 0.002}
	for i, w := range want {
		if absDifferent(o.Elements[i], w) {
			t.Errorf("cell %d: have %g, want %g", i, o.Elements[i], w)
		}
	}
}

func TestAccumulatorsMonotone(t *testing.T) {
	const n = 50
	r := rand.New(rand.NewSource(2))
	a := NewAccumulators(n)
	runningMax := make([]float64, n)
	for step := 0; step < 100; step++ {
		prevP := append([]float64{}, a.TotalPrecip.Elements...)
		prevS := append([]float64{}, a.TotalSnowfall.Elements...)
		precip, snowfall, swe := sparse.ZerosDense(n), sparse.ZerosDense(n), sparse.ZerosDense(n)
		for i := 0; i < n; i++ {
			precip.Elements[i] = 0.01 * r.Float64()
			snowfall.Elements[i] = precip.Elements[i] * r.Float64()
			swe.Elements[i] = 500 * r.Float64()
			runningMax[i] = math.Max(runningMax[i], swe.Elements[i])
		}
		if err := a.Add(precip, snowfall, swe); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < n; i++ {
			if a.TotalPrecip.Elements[i] < prevP[i] || a.TotalSnowfall.Elements[i] < prevS[i] {
				t.Fatalf("step %d cell %d: totals decreased", step, i)
			}
			if a.TotalSnowfall.Elements[i] > a.TotalPrecip.Elements[i]+testTolerance {
				t.Fatalf("step %d cell %d: snowfall %g exceeds precipitation %g", step, i,
					a.TotalSnowfall.Elements[i], a.TotalPrecip.Elements[i])
			}
			if a.MaxSWE.Elements[i] != runningMax[i] {
				t.Fatalf("step %d cell %d: max SWE %g != %g", step, i, a.MaxSWE.Elements[i], runningMax[i])
			}
		}
	}
}

func TestAccumulatorsShape(t *testing.T) {
	a := NewAccumulators(2, 2)
	if err := a.Add(sparse.ZerosDense(2, 2), sparse.ZerosDense(4), sparse.ZerosDense(2, 2)); err == nil {
		t.Error("expected an error for mismatched shapes")
	}
}
