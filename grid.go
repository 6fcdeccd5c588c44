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
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
)

// sameShape returns whether shapes a and b are identical.
func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

// checkShapes returns an error if the given grids do not all have the same
// shape. Nil grids are not allowed.
func checkShapes(names []string, grids ...*sparse.DenseArray) error {
	for i, g := range grids {
		if g == nil {
			return fmt.Errorf("btim: grid %s is nil", names[i])
		}
		if len(g.Elements) != product(g.Shape) {
			return fmt.Errorf("btim: grid %s has shape %v but %d elements", names[i], g.Shape, len(g.Elements))
		}
		if i > 0 && !sameShape(grids[0].Shape, g.Shape) {
			return fmt.Errorf("btim: grid %s has shape %v but grid %s has shape %v",
				names[i], g.Shape, names[0], grids[0].Shape)
		}
	}
	return nil
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// calculations runs f on every cell index in [0, n). The cells are
// distributed among runtime.GOMAXPROCS(0) goroutines; f must only write to
// outputs at index i.
func calculations(n int, f func(i int)) {
	nprocs := runtime.GOMAXPROCS(0) // number of processors
	if nprocs > n {
		nprocs = n
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < n; ii += nprocs {
				f(ii)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()
}

// fill returns a new grid with the given shape where every element is v.
func fill(v float64, shape ...int) *sparse.DenseArray {
	o := sparse.ZerosDense(shape...)
	for i := range o.Elements {
		o.Elements[i] = v
	}
	return o
}

// fromSlice returns a new grid with the given shape holding a copy of v.
func fromSlice(v []float64, shape ...int) *sparse.DenseArray {
	o := sparse.ZerosDense(shape...)
	copy(o.Elements, v)
	return o
}
