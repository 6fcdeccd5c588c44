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

// Package rescale adjusts snowpack model forcing towards a target
// climatology using monthly multiplicative factors.
package rescale

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"runtime"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"
	"github.com/spatialmodel/btim"
)

// Mode specifies which forcing variables are rescaled.
type Mode string

// Rescaling modes.
const (
	Precip      Mode = "tp"
	Temperature Mode = "t2m"
	Both        Mode = "both"
	Neither     Mode = "neither"
)

// ParseMode returns the mode with the given name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Precip, Temperature, Both, Neither:
		return m, nil
	case "":
		return Neither, nil
	default:
		return "", fmt.Errorf("rescale: invalid mode %q; valid modes are tp, t2m, both and neither", s)
	}
}

func (m Mode) scales(v btim.Variable) bool {
	switch v {
	case btim.Temperature:
		return m == Temperature || m == Both
	case btim.Precipitation:
		return m == Precip || m == Both
	}
	return false
}

// limits of the scaling factors
const (
	minTempFactor   = 99. / 100.
	maxTempFactor   = 100. / 99.
	minPrecipFactor = 1. / 4.
	maxPrecipFactor = 4.

	// minClimPrecip is the climatological precipitation below which the
	// precipitation factor is 1.
	minClimPrecip = 0.01

	zeroCelsius = 273.15
)

// climVars are the variables of a climatology file.
var climVars = []string{"latitude", "longitude", "tp", "t2m"}

// Rescaler scales forcing with the ratio of a target climatology to the
// climatology of the forcing data set. The climatologies are NetCDF files
// named <name>_<MM>_mm.nc in Dir holding the mean monthly total
// precipitation "tp" and 2 m temperature "t2m" [K] on latitude-longitude
// grids. The target climatology is bilinearly interpolated to the model grid.
type Rescaler struct {
	Dir     string
	Forcing string
	Target  string
	Mode    Mode

	// SnapshotDir, if set, receives a PNG map of each month's factors.
	SnapshotDir string

	cache *requestcache.Cache
}

// New returns a new Rescaler. cacheSize is the number of months of factors
// held in memory.
func New(dir, forcing, target string, mode Mode, cacheSize int) *Rescaler {
	r := &Rescaler{Dir: dir, Forcing: forcing, Target: target, Mode: mode}
	r.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
		return r.factors(request.(factorRequest))
	}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(cacheSize))
	return r
}

type factorRequest struct {
	month    int
	lat, lon []float64
}

// Factors holds the scaling factors of one month.
type Factors struct {
	Temperature, Precip *sparse.DenseArray
}

// ClimatologyPath returns the path of the climatology of data set name for
// calendar month month.
func (r *Rescaler) ClimatologyPath(name string, month int) string {
	return filepath.Join(r.Dir, fmt.Sprintf("%s_%02d_mm.nc", name, month))
}

// Factors returns the scaling factors for calendar month month on the grid
// with the given coordinates.
func (r *Rescaler) Factors(ctx context.Context, month int, lat, lon []float64) (*Factors, error) {
	req := r.cache.NewRequest(ctx, factorRequest{month: month, lat: lat, lon: lon},
		fmt.Sprintf("%02d_%d_%d_%g_%g", month, len(lat), len(lon), lat[0], lon[0]))
	f, err := req.Result()
	if err != nil {
		return nil, err
	}
	return f.(*Factors), nil
}

// Scale multiplies data by the factors of month m. Temperature factors apply
// to temperature in Kelvin; data holds temperature in °C.
func (r *Rescaler) Scale(ctx context.Context, m btim.SeasonMonth, v btim.Variable, lat, lon []float64, data *sparse.DenseArray) (*sparse.DenseArray, error) {
	if !r.Mode.scales(v) {
		return data, nil
	}
	f, err := r.Factors(ctx, int(m.Month), lat, lon)
	if err != nil {
		return nil, err
	}
	o := data.Copy()
	switch v {
	case btim.Temperature:
		for i, t := range o.Elements {
			o.Elements[i] = (t+zeroCelsius)*f.Temperature.Elements[i] - zeroCelsius
		}
	case btim.Precipitation:
		for i := range o.Elements {
			o.Elements[i] *= f.Precip.Elements[i]
		}
	}
	return o, nil
}

// readClim reads a climatology file and interpolates it to the given grid.
func (r *Rescaler) readClim(name string, month int, lat, lon []float64) (tp, t2m *sparse.DenseArray, err error) {
	path := r.ClimatologyPath(name, month)
	d, err := btim.ReadNCF(path, climVars...)
	if err != nil {
		return nil, nil, fmt.Errorf("rescale: %v", err)
	}
	cLat, cLon := d["latitude"].Elements, d["longitude"].Elements
	for _, v := range []string{"tp", "t2m"} {
		squeeze(d[v])
	}
	if tp, err = bilinear(d["tp"], cLat, cLon, lat, lon); err != nil {
		return nil, nil, fmt.Errorf("rescale: %s: %v", path, err)
	}
	if t2m, err = bilinear(d["t2m"], cLat, cLon, lat, lon); err != nil {
		return nil, nil, fmt.Errorf("rescale: %s: %v", path, err)
	}
	return tp, t2m, nil
}

// squeeze removes dimensions of length 1.
func squeeze(a *sparse.DenseArray) {
	var shape []int
	for _, d := range a.Shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	for len(shape) < 2 {
		shape = append([]int{1}, shape...)
	}
	a.Shape = shape
}

func (r *Rescaler) factors(req factorRequest) (*Factors, error) {
	climTP, climT, err := r.readClim(r.Forcing, req.month, req.lat, req.lon)
	if err != nil {
		return nil, err
	}
	targetTP, targetT, err := r.readClim(r.Target, req.month, req.lat, req.lon)
	if err != nil {
		return nil, err
	}
	f := &Factors{
		Temperature: sparse.ZerosDense(climT.Shape...),
		Precip:      sparse.ZerosDense(climTP.Shape...),
	}
	for i := range f.Temperature.Elements {
		f.Temperature.Elements[i] = tempFactor(targetT.Elements[i], climT.Elements[i])
		f.Precip.Elements[i] = precipFactor(targetTP.Elements[i], climTP.Elements[i])
	}
	if r.SnapshotDir != "" {
		if err := r.saveSnapshot(req.month, req.lat, req.lon, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// tempFactor returns the temperature scaling factor for the given target
// and forcing climatological temperatures [K].
func tempFactor(target, clim float64) float64 {
	f := target / clim
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	return math.Max(minTempFactor, math.Min(maxTempFactor, f))
}

// precipFactor returns the precipitation scaling factor for the given target
// and forcing climatological precipitation.
func precipFactor(target, clim float64) float64 {
	if !(clim >= minClimPrecip) || !(target >= minClimPrecip) {
		return 1
	}
	return math.Max(minPrecipFactor, math.Min(maxPrecipFactor, target/clim))
}
