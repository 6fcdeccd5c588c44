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

	"github.com/ctessum/sparse"
)

// HourlyTemperature linearly interpolates k+1 equally spaced temperature
// samples spanning an interval of the given number of hours to hours+1
// hourly values, the first and last of which equal the first and last
// samples.
func HourlyTemperature(samples []*sparse.DenseArray, hours int) ([]*sparse.DenseArray, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("btim: interpolating temperature: need at least 2 samples but have %d", len(samples))
	}
	if hours < 1 {
		return nil, fmt.Errorf("btim: interpolating temperature: invalid number of hours %d", hours)
	}
	names := make([]string, len(samples))
	for i := range names {
		names[i] = fmt.Sprintf("temperature sample %d", i)
	}
	if err := checkShapes(names, samples...); err != nil {
		return nil, err
	}
	k := len(samples) - 1
	o := make([]*sparse.DenseArray, hours+1)
	for h := range o {
		// position in units of the sample spacing.
		x := float64(h*k) / float64(hours)
		j := h * k / hours
		if j >= k {
			j = k - 1
		}
		frac := x - float64(j)
		a, b := samples[j], samples[j+1]
		t := sparse.ZerosDense(a.Shape...)
		for i, va := range a.Elements {
			t.Elements[i] = va + frac*(b.Elements[i]-va)
		}
		o[h] = t
	}
	return o, nil
}

// HourlyPrecipitation divides an interval's total precipitation evenly over
// the given number of hours. With trapezoidal weights summing to hours, the
// hourly values integrate back to the total.
func HourlyPrecipitation(total *sparse.DenseArray, hours int) (*sparse.DenseArray, error) {
	if hours < 1 {
		return nil, fmt.Errorf("btim: invalid number of hours %d", hours)
	}
	o := total.Copy()
	for i := range o.Elements {
		o.Elements[i] /= float64(hours)
	}
	return o, nil
}
