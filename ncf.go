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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// toFloat64 converts a buffer returned by a cdf reader to float64 values.
func toFloat64(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []float64:
		return b, nil
	case []int16:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []int32:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	case []uint8:
		o := make([]float64, len(b))
		for i, v := range b {
			o[i] = float64(v)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported data type %T", buf)
	}
}

// attrFloat returns the first value of numeric attribute a of variable v.
func attrFloat(h *cdf.Header, v, a string) (float64, bool) {
	val := h.GetAttribute(v, a)
	if val == nil {
		return 0, false
	}
	f, err := toFloat64(val)
	if err != nil || len(f) == 0 {
		return 0, false
	}
	return f[0], true
}

// unpack applies the CF packing attributes of variable v to data: values equal
// to _FillValue or missing_value become NaN, and the remaining values are
// multiplied by scale_factor and offset by add_offset.
func unpack(h *cdf.Header, v string, data []float64) {
	fill, hasFill := attrFloat(h, v, "_FillValue")
	missing, hasMissing := attrFloat(h, v, "missing_value")
	scale, hasScale := attrFloat(h, v, "scale_factor")
	offset, _ := attrFloat(h, v, "add_offset")
	if !hasScale {
		scale = 1
	}
	for i, x := range data {
		if (hasFill && x == fill) || (hasMissing && x == missing) {
			data[i] = math.NaN()
			continue
		}
		data[i] = x*scale + offset
	}
}

// readNCFStatic reads all of variable name out of netcdf file ff.
func readNCFStatic(name string, ff *cdf.File) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %v not in file", name)
	}
	if ff.Header.IsRecordVariable(name) {
		return readNCFStep(name, ff, 0)
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", name, err)
	}
	vals, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", name, err)
	}
	unpack(ff.Header, name, vals)
	data := sparse.ZerosDense(dims...)
	copy(data.Elements, vals)
	return data, nil
}

// readNCFStep reads record step of variable name out of netcdf file ff. The
// first dimension of the variable is taken to be time.
func readNCFStep(name string, ff *cdf.File, step int) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("variable %v not in file", name)
	}
	dims = dims[1:]
	nread := product(dims)
	start, end := make([]int, len(dims)+1), make([]int, len(dims)+1)
	start[0], end[0] = step, step+1
	r := ff.Reader(name, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("reading variable %s step %d: %v", name, step, err)
	}
	vals, err := toFloat64(buf)
	if err != nil {
		return nil, fmt.Errorf("reading variable %s: %v", name, err)
	}
	unpack(ff.Header, name, vals)
	data := sparse.ZerosDense(dims...)
	copy(data.Elements, vals)
	return data, nil
}

// numSteps returns the length of the first dimension of variable name, which
// for a record variable is the number of records in file f.
func numSteps(name string, ff *cdf.File, f *os.File) (int, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return 0, fmt.Errorf("variable %v not in file", name)
	}
	if !ff.Header.IsRecordVariable(name) {
		return dims[0], nil
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return int(ff.Header.NumRecs(fi.Size())), nil
}

// writeNCF writes data to variable name in f. For record variables, data
// holds one record and is written at the given record index.
func writeNCF(f *cdf.File, name string, data *sparse.DenseArray, record int) error {
	if len(data.Elements) != product(data.Shape) {
		return fmt.Errorf("dims are %d but array length is %d", product(data.Shape), len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := append([]int{}, f.Header.Lengths(name)...)
	if len(end) == 0 {
		return fmt.Errorf("variable %v not in file", name)
	}
	start := make([]int, len(end))
	if f.Header.IsRecordVariable(name) {
		start[0], end[0] = record, record+1
	}
	w := f.Writer(name, start, end)
	_, err := w.Write(data32)
	return err
}

// ReadNCF reads the named variables, which must not vary in time, from a
// NetCDF classic file. Record variables are read at the first record.
// Packed and missing values are decoded.
func ReadNCF(filename string, names ...string) (map[string]*sparse.DenseArray, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("btim: opening NetCDF file: %v", err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("btim: reading NetCDF file %s: %v", filename, err)
	}
	o := make(map[string]*sparse.DenseArray, len(names))
	for _, name := range names {
		d, err := readNCFStatic(name, ff)
		if err != nil {
			return nil, fmt.Errorf("btim: reading NetCDF file %s: %v", filename, err)
		}
		o[name] = d
	}
	return o, nil
}
