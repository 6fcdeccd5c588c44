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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// Variable is a forcing variable.
type Variable int

// Forcing variables.
const (
	Temperature Variable = iota
	Precipitation
)

func (v Variable) String() string {
	switch v {
	case Temperature:
		return "temperature"
	case Precipitation:
		return "precipitation"
	default:
		return fmt.Sprintf("Variable(%d)", int(v))
	}
}

// File formats.
const (
	NetCDF3 = "netcdf3"
	NetCDF4 = "netcdf4"
)

// ForcingSource describes a gridded forcing data set.
type ForcingSource struct {
	// Name is the name of the data set, for example "ERA5".
	Name string `toml:"name"`

	// Dir is the directory holding the forcing files.
	Dir string `toml:"dir"`

	// Format is the file format, either "netcdf3" or "netcdf4".
	Format string `toml:"format"`

	// TemperatureFreq and PrecipFreq are the number of time steps per day of
	// the temperature and precipitation data.
	TemperatureFreq int `toml:"temperature_steps_per_day"`
	PrecipFreq      int `toml:"precipitation_steps_per_day"`

	// TemperatureVar and PrecipVar are the names of the variables in the
	// forcing files.
	TemperatureVar string `toml:"temperature_var"`
	PrecipVar      string `toml:"precipitation_var"`

	// TemperatureTag and PrecipTag are substituted for [VAR] in
	// FileTemplate.
	TemperatureTag string `toml:"temperature_tag"`
	PrecipTag      string `toml:"precipitation_tag"`

	// LatName and LonName are the names of the coordinate variables.
	LatName string `toml:"latitude_name"`
	LonName string `toml:"longitude_name"`

	// TemperatureInK specifies whether temperature is in Kelvin rather
	// than °C.
	TemperatureInK bool `toml:"temperature_in_kelvin"`

	// PrecipUnits are the units of precipitation. Accumulated amounts per
	// time step ("m", "mm") and rates ("m/s", "mm/s", "kg m-2 s-1", "mm/h")
	// are supported.
	PrecipUnits string `toml:"precipitation_units"`

	// MultiFile specifies that FileTemplate names a directory holding all
	// of the *.nc files of one month rather than a single file.
	MultiFile bool `toml:"multi_file"`

	// FileTemplate is the path of the file (or directory, if MultiFile is
	// true) holding the data for one variable and month, relative to Dir.
	// The wildcards [SOURCE], [VAR], [MONTH] (two digits) and [YEAR] are
	// replaced.
	FileTemplate string `toml:"file_template"`
}

// ERA5 returns the descriptor of ERA5 reanalysis forcing stored in dir,
// with one file per variable and month.
func ERA5(dir string) *ForcingSource {
	return &ForcingSource{
		Name:            "ERA5",
		Dir:             dir,
		Format:          NetCDF3,
		TemperatureFreq: 24,
		PrecipFreq:      24,
		TemperatureVar:  "t2m",
		PrecipVar:       "tp",
		TemperatureTag:  "t2m",
		PrecipTag:       "tp",
		LatName:         "latitude",
		LonName:         "longitude",
		TemperatureInK:  true,
		PrecipUnits:     "m",
		FileTemplate:    "[SOURCE]_[VAR]_[MONTH]_[YEAR].nc",
	}
}

// MERRA2 returns the descriptor of MERRA-2 reanalysis forcing stored in dir,
// with one directory of daily files per variable and month.
func MERRA2(dir string) *ForcingSource {
	return &ForcingSource{
		Name:            "MERRA2",
		Dir:             dir,
		Format:          NetCDF4,
		TemperatureFreq: 24,
		PrecipFreq:      24,
		TemperatureVar:  "T2M",
		PrecipVar:       "PRECTOTLAND",
		TemperatureTag:  "t2m",
		PrecipTag:       "tp",
		LatName:         "lat",
		LonName:         "lon",
		TemperatureInK:  true,
		PrecipUnits:     "kg m-2 s-1",
		MultiFile:       true,
		FileTemplate:    "[SOURCE]_[VAR]_[MONTH]_[YEAR]",
	}
}

// BuiltinForcing returns the built-in descriptor with the given name.
func BuiltinForcing(name, dir string) (*ForcingSource, error) {
	switch strings.ToUpper(name) {
	case "ERA5":
		return ERA5(dir), nil
	case "MERRA2":
		return MERRA2(dir), nil
	default:
		return nil, fmt.Errorf("btim: unknown forcing %q; specify a forcing descriptor file", name)
	}
}

// ReadForcingSource reads a forcing descriptor from a TOML file. Relative
// data directories are interpreted relative to the descriptor file.
func ReadForcingSource(filename string) (*ForcingSource, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("btim: reading forcing descriptor: %v", err)
	}
	s := new(ForcingSource)
	if _, err = toml.Decode(string(b), s); err != nil {
		return nil, fmt.Errorf("btim: decoding forcing descriptor %s: %v", filename, err)
	}
	s.Dir = os.ExpandEnv(s.Dir)
	if s.Dir != "" && !filepath.IsAbs(s.Dir) {
		s.Dir = filepath.Join(filepath.Dir(filename), s.Dir)
	}
	return s, nil
}

// precipUnits holds the supported precipitation units.
var precipUnits = map[string]*unit.Unit{
	"m":          unit.New(1, unit.Dimensions{unit.LengthDim: 1}),
	"mm":         unit.New(1.e-3, unit.Dimensions{unit.LengthDim: 1}),
	"m/s":        unit.New(1, unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}),
	"mm/s":       unit.New(1.e-3, unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}),
	"mm/h":       unit.New(1.e-3/secondsPerHour, unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}),
	"kg m-2 s-1": unit.New(1/rhoWater, unit.Dimensions{unit.LengthDim: 1, unit.TimeDim: -1}),
}

// Validate checks the descriptor for errors, including incompatible
// temperature and precipitation frequencies.
func (s *ForcingSource) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("btim: forcing source has no name")
	}
	if s.Format != NetCDF3 && s.Format != NetCDF4 {
		return fmt.Errorf("btim: forcing %s: unsupported file format %q", s.Name, s.Format)
	}
	for _, f := range []int{s.TemperatureFreq, s.PrecipFreq} {
		if f <= 0 || hoursPerDay%f != 0 {
			return fmt.Errorf("btim: forcing %s: %d steps per day does not evenly divide a day into hours", s.Name, f)
		}
	}
	if s.TemperatureFreq%s.PrecipFreq != 0 {
		return fmt.Errorf("btim: forcing %s: temperature frequency %d is not a multiple of precipitation frequency %d",
			s.Name, s.TemperatureFreq, s.PrecipFreq)
	}
	if _, err := s.precipFactor(); err != nil {
		return err
	}
	for _, v := range []string{s.TemperatureVar, s.PrecipVar, s.LatName, s.LonName, s.FileTemplate} {
		if v == "" {
			return fmt.Errorf("btim: forcing %s: variable, coordinate and file template names must all be set", s.Name)
		}
	}
	return nil
}

// IntervalHours returns the length [h] of one forcing interval, which is one
// precipitation time step.
func (s *ForcingSource) IntervalHours() int { return hoursPerDay / s.PrecipFreq }

// TemperatureSamples returns the number of temperature time steps per
// forcing interval.
func (s *ForcingSource) TemperatureSamples() int { return s.TemperatureFreq / s.PrecipFreq }

// precipFactor returns the factor that converts precipitation to metres of
// water per precipitation time step.
func (s *ForcingSource) precipFactor() (float64, error) {
	u, ok := precipUnits[s.PrecipUnits]
	if !ok {
		return 0, fmt.Errorf("btim: forcing %s: unsupported precipitation units %q", s.Name, s.PrecipUnits)
	}
	u = u.Clone()
	if u.Dimensions()[unit.TimeDim] == -1 {
		u.Mul(unit.New(float64(s.IntervalHours())*secondsPerHour, unit.Dimensions{unit.TimeDim: 1}))
	}
	if err := u.Check(unit.Dimensions{unit.LengthDim: 1}); err != nil {
		return 0, fmt.Errorf("btim: forcing %s: precipitation units: %v", s.Name, err)
	}
	return u.Value(), nil
}

func (s *ForcingSource) varName(v Variable) string {
	if v == Temperature {
		return s.TemperatureVar
	}
	return s.PrecipVar
}

func (s *ForcingSource) varTag(v Variable) string {
	tag := s.PrecipTag
	if v == Temperature {
		tag = s.TemperatureTag
	}
	if tag == "" {
		return s.varName(v)
	}
	return tag
}

// MonthFiles returns the files holding variable v for month m. It is an
// error for a file or directory to be missing.
func (s *ForcingSource) MonthFiles(v Variable, m SeasonMonth) ([]string, error) {
	r := strings.NewReplacer(
		"[SOURCE]", s.Name,
		"[VAR]", s.varTag(v),
		"[MONTH]", fmt.Sprintf("%02d", int(m.Month)),
		"[YEAR]", fmt.Sprint(m.Year),
	)
	path := filepath.Join(s.Dir, r.Replace(s.FileTemplate))
	if !s.MultiFile {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("btim: forcing %s %v file for %v: %v", s.Name, v, m, err)
		}
		return []string{path}, nil
	}
	entries, err := ioutil.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("btim: forcing %s %v directory for %v: %v", s.Name, v, m, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".nc") {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("btim: forcing %s %v directory %s for %v contains no .nc files", s.Name, v, path, m)
	}
	sort.Strings(files)
	return files, nil
}

// Standardize converts raw forcing data of variable v to the canonical
// units: °C for temperature and metres of water per precipitation time step
// for precipitation. Missing or negative precipitation is set to zero;
// missing temperature is an error.
func (s *ForcingSource) Standardize(raw *sparse.DenseArray, v Variable) (*sparse.DenseArray, error) {
	o := raw.Copy()
	switch v {
	case Temperature:
		for i, t := range o.Elements {
			if math.IsNaN(t) || math.IsInf(t, 0) {
				return nil, fmt.Errorf("btim: forcing %s: missing temperature at index %d", s.Name, i)
			}
			if s.TemperatureInK {
				o.Elements[i] = t - 273.15
			}
		}
	case Precipitation:
		factor, err := s.precipFactor()
		if err != nil {
			return nil, err
		}
		for i, p := range o.Elements {
			if math.IsNaN(p) || p < 0 {
				o.Elements[i] = 0
				continue
			}
			o.Elements[i] = p * factor
		}
	default:
		return nil, fmt.Errorf("btim: invalid forcing variable %v", v)
	}
	return o, nil
}
