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
	"path/filepath"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// DailyFields holds the end-of-day snowpack fields of one month.
type DailyFields struct {
	Lat, Lon []float64

	// Depth [m] and Density [kg/m3] have shape [day, lat, lon].
	Depth, Density *sparse.DenseArray
}

// Writer saves model results.
type Writer interface {
	// WriteDaily saves the daily fields of month m of the season starting
	// in startYear.
	WriteDaily(startYear int, m SeasonMonth, d *DailyFields) error

	// WriteAnnual saves the accumulated fields of the season starting in
	// startYear.
	WriteAnnual(startYear int, lat, lon []float64, a *Accumulators) error
}

// outputVar describes one output variable.
type outputVar struct {
	name, description, units, standardName string
}

var (
	depthVar   = outputVar{"snow_depth", "snow depth in metres of snow", "m", "surface_snow_thickness"}
	densityVar = outputVar{"density", "snow density", "kg/m3", "surface_snow_density"}
	ptotVar    = outputVar{"ptot", "total precipitation (frozen and liquid)", "m", "lwe_thickness_of_precipitation_amount"}
	sftotVar   = outputVar{"sftot", "total snowfall (sum of lwe falling as snow)", "m", "lwe_thickness_of_surface_snow_amount"}
	swemaxVar  = outputVar{"swemax", "water year maximum snow water equivalent", "mm", ""}
)

// NetCDFWriter writes model results to NetCDF files in Dir.
type NetCDFWriter struct {
	// Dir is the output directory.
	Dir string

	// ID is the experiment identifier used in file names.
	ID string

	// Mixed specifies whether mixed precipitation is enabled, which is
	// reflected in the file names.
	Mixed bool

	// extra holds additional annual output variables.
	extra map[string]*govaluate.EvaluableExpression
}

// annualFuncs are the functions available in annual output expressions.
var annualFuncs = map[string]govaluate.ExpressionFunction{
	"exp": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("btim: got %d arguments for function 'exp', but needs 1", len(arg))
		}
		return math.Exp(arg[0].(float64)), nil
	},
	"max": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 2 {
			return nil, fmt.Errorf("btim: got %d arguments for function 'max', but needs 2", len(arg))
		}
		return math.Max(arg[0].(float64), arg[1].(float64)), nil
	},
	"min": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 2 {
			return nil, fmt.Errorf("btim: got %d arguments for function 'min', but needs 2", len(arg))
		}
		return math.Min(arg[0].(float64), arg[1].(float64)), nil
	},
}

// NewNetCDFWriter returns a writer that saves results in dir. extraAnnual
// maps the names of additional annual output variables to expressions in
// terms of ptot, sftot and swemax, for example
// {"snowfrac": "sftot / ptot"}.
func NewNetCDFWriter(dir, id string, mixed bool, extraAnnual map[string]string) (*NetCDFWriter, error) {
	w := &NetCDFWriter{Dir: dir, ID: id, Mixed: mixed, extra: make(map[string]*govaluate.EvaluableExpression)}
	for name, expr := range extraAnnual {
		switch name {
		case ptotVar.name, sftotVar.name, swemaxVar.name, "latitude", "longitude":
			return nil, fmt.Errorf("btim: annual output variable name %s is reserved", name)
		}
		e, err := govaluate.NewEvaluableExpressionWithFunctions(expr, annualFuncs)
		if err != nil {
			return nil, fmt.Errorf("btim: annual output variable %s: %v", name, err)
		}
		for _, v := range e.Vars() {
			if v != ptotVar.name && v != sftotVar.name && v != swemaxVar.name {
				return nil, fmt.Errorf("btim: annual output variable %s: unknown variable %s in expression %q", name, v, expr)
			}
		}
		w.extra[name] = e
	}
	return w, nil
}

// addVar adds a float variable with CF attributes to h.
func addVar(h *cdf.Header, v outputVar, dims []string) {
	h.AddVariable(v.name, dims, []float32{0})
	h.AddAttribute(v.name, "description", v.description)
	h.AddAttribute(v.name, "units", v.units)
	if v.standardName != "" {
		h.AddAttribute(v.name, "standard_name", v.standardName)
	}
}

func addCoords(h *cdf.Header) {
	h.AddVariable("latitude", []string{"latitude"}, []float32{0})
	h.AddAttribute("latitude", "units", "degrees_north")
	h.AddAttribute("latitude", "standard_name", "latitude")
	h.AddVariable("longitude", []string{"longitude"}, []float32{0})
	h.AddAttribute("longitude", "units", "degrees_east")
	h.AddAttribute("longitude", "standard_name", "longitude")
}

func writeCoords(f *cdf.File, lat, lon []float64) error {
	if err := writeNCF(f, "latitude", fromSlice(lat, len(lat)), 0); err != nil {
		return err
	}
	return writeNCF(f, "longitude", fromSlice(lon, len(lon)), 0)
}

// create creates file path with header h, calls write to add the data and
// then finalizes the file.
func create(path string, h *cdf.Header, write func(f *cdf.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("btim: creating output directory: %v", err)
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("btim: creating output file: %v", err)
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		w.Close()
		return fmt.Errorf("btim: writing header of %s: %v", path, err)
	}
	if err = write(f); err != nil {
		w.Close()
		return fmt.Errorf("btim: writing %s: %v", path, err)
	}
	if err = cdf.UpdateNumRecs(w); err != nil {
		w.Close()
		return fmt.Errorf("btim: writing %s: %v", path, err)
	}
	return w.Close()
}

// DailyPath returns the path of the daily output file of month m.
func (w *NetCDFWriter) DailyPath(startYear int, m SeasonMonth) string {
	return filepath.Join(w.Dir, DailyOutputName(w.ID, m, w.Mixed, SeasonTag(startYear)))
}

// AnnualPath returns the path of the annual output file.
func (w *NetCDFWriter) AnnualPath(startYear int) string {
	return filepath.Join(w.Dir, AnnualOutputName(w.ID, w.Mixed, SeasonTag(startYear)))
}

// WriteDaily writes the daily depth and density of one month.
func (w *NetCDFWriter) WriteDaily(startYear int, m SeasonMonth, d *DailyFields) error {
	if err := checkShapes([]string{"depth", "density"}, d.Depth, d.Density); err != nil {
		return err
	}
	if len(d.Depth.Shape) != 3 || d.Depth.Shape[1] != len(d.Lat) || d.Depth.Shape[2] != len(d.Lon) {
		return fmt.Errorf("btim: daily fields have shape %v but there are %d latitudes and %d longitudes",
			d.Depth.Shape, len(d.Lat), len(d.Lon))
	}
	days := d.Depth.Shape[0]
	n := len(d.Lat) * len(d.Lon)
	dims := []string{"time", "latitude", "longitude"}
	h := cdf.NewHeader(dims, []int{0, len(d.Lat), len(d.Lon)})
	h.AddAttribute("", "comment", "B-TIM daily snowpack")
	h.AddAttribute("", "version", Version)
	h.AddVariable("time", []string{"time"}, []float32{0})
	h.AddAttribute("time", "units", fmt.Sprintf("days since %04d-%02d-01 00:00:00", m.Year, int(m.Month)))
	h.AddAttribute("time", "calendar", "standard")
	addCoords(h)
	addVar(h, depthVar, dims)
	addVar(h, densityVar, dims)
	h.Define()

	return create(w.DailyPath(startYear, m), h, func(f *cdf.File) error {
		if err := writeCoords(f, d.Lat, d.Lon); err != nil {
			return err
		}
		for day := 0; day < days; day++ {
			if err := writeNCF(f, "time", fromSlice([]float64{float64(day + 1)}, 1), day); err != nil {
				return err
			}
			for _, v := range []struct {
				name string
				data *sparse.DenseArray
			}{{depthVar.name, d.Depth}, {densityVar.name, d.Density}} {
				rec := fromSlice(v.data.Elements[day*n:(day+1)*n], len(d.Lat), len(d.Lon))
				if err := writeNCF(f, v.name, rec, day); err != nil {
					return fmt.Errorf("variable %s: %v", v.name, err)
				}
			}
		}
		return nil
	})
}

// WriteAnnual writes the season accumulators and any extra annual
// variables.
func (w *NetCDFWriter) WriteAnnual(startYear int, lat, lon []float64, a *Accumulators) error {
	if err := checkShapes([]string{"ptot", "sftot", "swemax"}, a.TotalPrecip, a.TotalSnowfall, a.MaxSWE); err != nil {
		return err
	}
	if len(a.TotalPrecip.Shape) != 2 || a.TotalPrecip.Shape[0] != len(lat) || a.TotalPrecip.Shape[1] != len(lon) {
		return fmt.Errorf("btim: annual fields have shape %v but there are %d latitudes and %d longitudes",
			a.TotalPrecip.Shape, len(lat), len(lon))
	}
	data := map[string]*sparse.DenseArray{
		ptotVar.name:   a.TotalPrecip,
		sftotVar.name:  a.TotalSnowfall,
		swemaxVar.name: a.MaxSWE,
	}
	extraNames := make([]string, 0, len(w.extra))
	for name := range w.extra {
		extraNames = append(extraNames, name)
	}
	sort.Strings(extraNames)
	for _, name := range extraNames {
		o, err := w.evaluate(name, a)
		if err != nil {
			return err
		}
		data[name] = o
	}

	dims := []string{"latitude", "longitude"}
	h := cdf.NewHeader(dims, []int{len(lat), len(lon)})
	h.AddAttribute("", "comment", "B-TIM water year totals")
	h.AddAttribute("", "version", Version)
	addCoords(h)
	vars := []outputVar{ptotVar, sftotVar, swemaxVar}
	for _, name := range extraNames {
		vars = append(vars, outputVar{name: name, description: w.extra[name].String()})
	}
	for _, v := range vars {
		addVar(h, v, dims)
	}
	h.Define()

	return create(w.AnnualPath(startYear), h, func(f *cdf.File) error {
		if err := writeCoords(f, lat, lon); err != nil {
			return err
		}
		for _, v := range vars {
			if err := writeNCF(f, v.name, data[v.name], 0); err != nil {
				return fmt.Errorf("variable %s: %v", v.name, err)
			}
		}
		return nil
	})
}

// evaluate calculates extra annual variable name in each grid cell.
func (w *NetCDFWriter) evaluate(name string, a *Accumulators) (*sparse.DenseArray, error) {
	e := w.extra[name]
	o := sparse.ZerosDense(a.TotalPrecip.Shape...)
	params := make(map[string]interface{}, 3)
	for i := range o.Elements {
		params[ptotVar.name] = a.TotalPrecip.Elements[i]
		params[sftotVar.name] = a.TotalSnowfall.Elements[i]
		params[swemaxVar.name] = a.MaxSWE.Elements[i]
		v, err := e.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("btim: evaluating annual output variable %s: %v", name, err)
		}
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("btim: annual output variable %s evaluates to %T, not a number", name, v)
		}
		o.Elements[i] = f
	}
	return o, nil
}
