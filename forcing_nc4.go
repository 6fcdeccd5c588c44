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

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/ctessum/sparse"
)

// nc4File is a forcing file in the NetCDF-4 (HDF5) format.
type nc4File struct {
	nc api.Group
}

func openNC4File(path string) (forcingFile, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	return &nc4File{nc: nc}, nil
}

type number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32
}

func convert1[T number](v []T) []float64 {
	o := make([]float64, len(v))
	for i, x := range v {
		o[i] = float64(x)
	}
	return o
}

func flatten2[T number](v [][]T) *sparse.DenseArray {
	if len(v) == 0 {
		return sparse.ZerosDense(0, 0)
	}
	o := sparse.ZerosDense(len(v), len(v[0]))
	for j, row := range v {
		for i, x := range row {
			o.Elements[j*len(v[0])+i] = float64(x)
		}
	}
	return o
}

// values1 converts a one-dimensional variable to float64.
func values1(v interface{}) ([]float64, error) {
	switch vv := v.(type) {
	case []float32:
		return convert1(vv), nil
	case []float64:
		return vv, nil
	case []int16:
		return convert1(vv), nil
	case []int32:
		return convert1(vv), nil
	case []int64:
		return convert1(vv), nil
	default:
		return nil, fmt.Errorf("unsupported coordinate type %T", v)
	}
}

// field converts one time step of a (time, lat, lon) variable to a grid.
func field(v interface{}) (*sparse.DenseArray, error) {
	switch vv := v.(type) {
	case [][][]float32:
		return flatten2(vv[0]), nil
	case [][][]float64:
		return flatten2(vv[0]), nil
	case [][][]int16:
		return flatten2(vv[0]), nil
	case [][][]int32:
		return flatten2(vv[0]), nil
	case [][][]int8:
		return flatten2(vv[0]), nil
	case [][][]uint8:
		return flatten2(vv[0]), nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", v)
	}
}

// attrNumber returns the numeric attribute key of a variable.
func attrNumber(am api.AttributeMap, key string) (float64, bool) {
	v, ok := am.Get(key)
	if !ok {
		return 0, false
	}
	switch vv := v.(type) {
	case float32:
		return float64(vv), true
	case float64:
		return vv, true
	case int16:
		return float64(vv), true
	case int32:
		return float64(vv), true
	case []float32:
		if len(vv) > 0 {
			return float64(vv[0]), true
		}
	case []float64:
		if len(vv) > 0 {
			return vv[0], true
		}
	case []int16:
		if len(vv) > 0 {
			return float64(vv[0]), true
		}
	}
	return 0, false
}

func (n *nc4File) coords(latName, lonName string) (lat, lon []float64, err error) {
	for _, c := range []struct {
		name string
		dst  *[]float64
	}{{latName, &lat}, {lonName, &lon}} {
		vg, err := n.nc.GetVarGetter(c.name)
		if err != nil {
			return nil, nil, fmt.Errorf("coordinate %s: %v", c.name, err)
		}
		v, err := vg.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("coordinate %s: %v", c.name, err)
		}
		if *c.dst, err = values1(v); err != nil {
			return nil, nil, fmt.Errorf("coordinate %s: %v", c.name, err)
		}
	}
	return lat, lon, nil
}

func (n *nc4File) steps(name string) (int, error) {
	vg, err := n.nc.GetVarGetter(name)
	if err != nil {
		return 0, fmt.Errorf("variable %s: %v", name, err)
	}
	if d := vg.Dimensions(); len(d) != 3 {
		return 0, fmt.Errorf("variable %s has dimensions %v; it should have 3 (time, latitude, longitude)", name, d)
	}
	return int(vg.Len()), nil
}

func (n *nc4File) read(name string, step int) (*sparse.DenseArray, error) {
	vg, err := n.nc.GetVarGetter(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %v", name, err)
	}
	v, err := vg.GetSlice(int64(step), int64(step)+1)
	if err != nil {
		return nil, fmt.Errorf("reading variable %s step %d: %v", name, step, err)
	}
	data, err := field(v)
	if err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", name, err)
	}
	am := vg.Attributes()
	fill, hasFill := attrNumber(am, "_FillValue")
	missing, hasMissing := attrNumber(am, "missing_value")
	scale, hasScale := attrNumber(am, "scale_factor")
	offset, _ := attrNumber(am, "add_offset")
	if !hasScale {
		scale = 1
	}
	for i, x := range data.Elements {
		if (hasFill && x == fill) || (hasMissing && x == missing) {
			data.Elements[i] = math.NaN()
			continue
		}
		data.Elements[i] = x*scale + offset
	}
	return data, nil
}

func (n *nc4File) close() error {
	n.nc.Close()
	return nil
}
