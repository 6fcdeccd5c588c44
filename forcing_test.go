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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// writeForcingFile creates a NetCDF classic file at path holding variable
// name with one record per element of steps, each of which holds
// len(lat)*len(lon) values. attrs are added to the variable.
func writeForcingFile(t *testing.T, path, name string, lat, lon []float64, steps [][]float64, attrs map[string][]float64) {
	t.Helper()
	dims := []string{"time", "latitude", "longitude"}
	h := cdf.NewHeader(dims, []int{0, len(lat), len(lon)})
	h.AddVariable("latitude", []string{"latitude"}, []float32{0})
	h.AddVariable("longitude", []string{"longitude"}, []float32{0})
	h.AddVariable(name, dims, []float32{0})
	for k, v := range attrs {
		h.AddAttribute(name, k, v)
	}
	h.Define()
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		t.Fatal(err)
	}
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	f, err := cdf.Create(w, h)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeCoords(f, lat, lon); err != nil {
		t.Fatal(err)
	}
	for i, s := range steps {
		if err := writeNCF(f, name, fromSlice(s, len(lat), len(lon)), i); err != nil {
			t.Fatal(err)
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		t.Fatal(err)
	}
}

// writeStaticFile creates a NetCDF classic file at path holding the given
// two-dimensional variables.
func writeStaticFile(t *testing.T, path string, lat, lon []float64, vars map[string][]float64) {
	t.Helper()
	dims := []string{"latitude", "longitude"}
	h := cdf.NewHeader(dims, []int{len(lat), len(lon)})
	h.AddVariable("latitude", []string{"latitude"}, []float32{0})
	h.AddVariable("longitude", []string{"longitude"}, []float32{0})
	for name := range vars {
		h.AddVariable(name, dims, []float32{0})
	}
	h.Define()
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	f, err := cdf.Create(w, h)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeCoords(f, lat, lon); err != nil {
		t.Fatal(err)
	}
	for name, v := range vars {
		if err := writeNCF(f, name, fromSlice(v, len(lat), len(lon)), 0); err != nil {
			t.Fatal(err)
		}
	}
}

func TestForcingValidate(t *testing.T) {
	if err := ERA5("").Validate(); err != nil {
		t.Errorf("ERA5: %v", err)
	}
	if err := MERRA2("").Validate(); err != nil {
		t.Errorf("MERRA2: %v", err)
	}
	tests := []struct {
		name   string
		modify func(s *ForcingSource)
	}{
		{name: "frequency does not divide day", modify: func(s *ForcingSource) { s.PrecipFreq = 5 }},
		{name: "zero frequency", modify: func(s *ForcingSource) { s.TemperatureFreq = 0 }},
		{name: "incompatible frequencies", modify: func(s *ForcingSource) { s.TemperatureFreq, s.PrecipFreq = 6, 4 }},
		{name: "temperature coarser than precipitation", modify: func(s *ForcingSource) { s.TemperatureFreq, s.PrecipFreq = 4, 8 }},
		{name: "units", modify: func(s *ForcingSource) { s.PrecipUnits = "inches" }},
		{name: "format", modify: func(s *ForcingSource) { s.Format = "grib" }},
		{name: "variable name", modify: func(s *ForcingSource) { s.PrecipVar = "" }},
		{name: "no name", modify: func(s *ForcingSource) { s.Name = "" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := ERA5("")
			test.modify(s)
			if err := s.Validate(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPrecipFactor(t *testing.T) {
	tests := []struct {
		units      string
		stepsPerDy int
		want       float64
	}{
		{units: "m", stepsPerDy: 24, want: 1},
		{units: "mm", stepsPerDy: 8, want: 1.e-3},
		{units: "m/s", stepsPerDy: 24, want: 3600},
		{units: "mm/s", stepsPerDy: 4, want: 21.6},
		{units: "mm/h", stepsPerDy: 8, want: 3.e-3},
		{units: "kg m-2 s-1", stepsPerDy: 24, want: 3.6},
	}
	for _, test := range tests {
		s := ERA5("")
		s.PrecipUnits = test.units
		s.TemperatureFreq, s.PrecipFreq = 24, test.stepsPerDy
		f, err := s.precipFactor()
		if err != nil {
			t.Errorf("%s: %v", test.units, err)
			continue
		}
		if different(f, test.want, testTolerance) {
			t.Errorf("%s at %d steps per day: have %g, want %g", test.units, test.stepsPerDy, f, test.want)
		}
	}
}

func TestStandardize(t *testing.T) {
	s := ERA5("")
	temp, err := s.Standardize(fromSlice([]float64{273.15, 263.15}, 2), Temperature)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(temp.Elements[0], 0) || absDifferent(temp.Elements[1], -10) {
		t.Errorf("temperature: %v", temp.Elements)
	}
	if _, err := s.Standardize(fromSlice([]float64{273.15, math.NaN()}, 2), Temperature); err == nil {
		t.Error("expected an error for missing temperature")
	}

	s.PrecipUnits = "mm"
	raw := fromSlice([]float64{2, math.NaN(), -1e-9}, 3)
	p, err := s.Standardize(raw, Precipitation)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.002, 0, 0}
	for i, w := range want {
		if absDifferent(p.Elements[i], w) {
			t.Errorf("precipitation %d: have %g, want %g", i, p.Elements[i], w)
		}
	}
	if raw.Elements[0] != 2 {
		t.Error("input was modified")
	}
}

func TestMonthFiles(t *testing.T) {
	dir := t.TempDir()
	m := SeasonMonth{Index: 0, Month: time.August, Year: 2000}
	s := ERA5(dir)
	path := filepath.Join(dir, "ERA5_t2m_08_2000.nc")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	files, err := s.MonthFiles(Temperature, m)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(files, []string{path}) {
		t.Errorf("have %v, want %v", files, []string{path})
	}
	_, err = s.MonthFiles(Precipitation, m)
	if err == nil || !strings.Contains(err.Error(), "ERA5_tp_08_2000.nc") {
		t.Errorf("missing file error should name the file: %v", err)
	}

	ms := MERRA2(dir)
	mdir := filepath.Join(dir, "MERRA2_tp_08_2000")
	if err := os.MkdirAll(mdir, os.ModePerm); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"day02.nc", "day01.nc", "README.txt"} {
		if err := os.WriteFile(filepath.Join(mdir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	files, err = ms.MonthFiles(Precipitation, m)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(mdir, "day01.nc"), filepath.Join(mdir, "day02.nc")}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("have %v, want %v", files, want)
	}
	if _, err = ms.MonthFiles(Temperature, m); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

// testSource returns a 2-step-per-day multi-file forcing source in dir.
func testSource(dir string) *ForcingSource {
	return &ForcingSource{
		Name:            "TEST",
		Dir:             dir,
		Format:          NetCDF3,
		TemperatureFreq: 4,
		PrecipFreq:      2,
		TemperatureVar:  "t2m",
		PrecipVar:       "tp",
		LatName:         "latitude",
		LonName:         "longitude",
		TemperatureInK:  true,
		PrecipUnits:     "m",
		MultiFile:       true,
		FileTemplate:    "[VAR]/[YEAR][MONTH]",
	}
}

func TestOpenMonthNetCDF3(t *testing.T) { testOpenMonth(t, NetCDF3) }

// The NetCDF-4 reader opens classic files as well as HDF5 files, so the same
// fixtures exercise its coordinate, time step and unpacking logic.
func TestOpenMonthNetCDF4(t *testing.T) { testOpenMonth(t, NetCDF4) }

func testOpenMonth(t *testing.T, format string) {
	dir := t.TempDir()
	s := testSource(dir)
	s.Format = format
	m := SeasonMonth{Index: 0, Month: time.August, Year: 2000}
	lat, lon := []float64{60, 50}, []float64{10, 20, 30}
	tdir := filepath.Join(dir, "t2m", "200008")
	writeForcingFile(t, filepath.Join(tdir, "a.nc"), "t2m", lat, lon, [][]float64{
		{0, 1, 2, 3, 4, 5},
		{10, 11, 12, 13, 14, 15},
	}, map[string][]float64{"scale_factor": {0.5}, "add_offset": {250}})
	writeForcingFile(t, filepath.Join(tdir, "b.nc"), "t2m", lat, lon, [][]float64{
		{20, 21, 22, 23, 24, -999},
	}, map[string][]float64{"scale_factor": {0.5}, "add_offset": {250}, "_FillValue": {-999}})
	writeForcingFile(t, filepath.Join(dir, "tp", "200008", "a.nc"), "tp", lat, lon, [][]float64{
		{0.001, 0, 0, 0, 0, 0},
		{0, 0.002, 0, 0, 0, 0},
	}, nil)

	r, err := s.OpenMonth(m)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	gotLat, gotLon := r.Coords()
	if !reflect.DeepEqual(gotLat, lat) || !reflect.DeepEqual(gotLon, lon) {
		t.Errorf("coordinates %v, %v", gotLat, gotLon)
	}
	if n := r.Steps(Temperature); n != 3 {
		t.Errorf("temperature steps: have %d, want 3", n)
	}
	if n := r.Steps(Precipitation); n != 2 {
		t.Errorf("precipitation steps: have %d, want 2", n)
	}

	d, err := r.Read(Temperature, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(d.Shape, []int{2, 3}) {
		t.Errorf("shape %v", d.Shape)
	}
	if absDifferent(d.Elements[0], 255) || absDifferent(d.Elements[5], 257.5) {
		t.Errorf("unpacked values %v", d.Elements)
	}

	d, err = r.Read(Temperature, 2)
	if err != nil {
		t.Fatal(err)
	}
	if absDifferent(d.Elements[0], 260) || !math.IsNaN(d.Elements[5]) {
		t.Errorf("second file values %v", d.Elements)
	}

	d, err = r.Read(Precipitation, 1)
	if err != nil {
		t.Fatal(err)
	}
	if different(d.Elements[1], 0.002, 1.e-6) {
		t.Errorf("precipitation %v", d.Elements)
	}

	if _, err := r.Read(Precipitation, 2); err == nil {
		t.Error("expected an error reading beyond the end of the month")
	}
}

func TestOpenMonthGridMismatch(t *testing.T) {
	dir := t.TempDir()
	s := testSource(dir)
	m := SeasonMonth{Index: 0, Month: time.August, Year: 2000}
	writeForcingFile(t, filepath.Join(dir, "t2m", "200008", "a.nc"), "t2m",
		[]float64{1, 2}, []float64{1, 2}, [][]float64{{270, 270, 270, 270}}, nil)
	writeForcingFile(t, filepath.Join(dir, "tp", "200008", "a.nc"), "tp",
		[]float64{1, 2, 3}, []float64{1, 2}, [][]float64{{0, 0, 0, 0, 0, 0}}, nil)
	if _, err := s.OpenMonth(m); err == nil {
		t.Error("expected an error for mismatched grids")
	}
}

func TestOpenMonthMissingVariable(t *testing.T) {
	dir := t.TempDir()
	s := testSource(dir)
	m := SeasonMonth{Index: 0, Month: time.August, Year: 2000}
	writeForcingFile(t, filepath.Join(dir, "t2m", "200008", "a.nc"), "temp",
		[]float64{1}, []float64{1}, [][]float64{{270}}, nil)
	writeForcingFile(t, filepath.Join(dir, "tp", "200008", "a.nc"), "tp",
		[]float64{1}, []float64{1}, [][]float64{{0}}, nil)
	_, err := s.OpenMonth(m)
	if err == nil || !strings.Contains(err.Error(), "a.nc") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestFileCacheEviction(t *testing.T) {
	var closed []string
	c := newFileCache(2, func(path string) (forcingFile, error) {
		return &fakeFile{path: path, closed: &closed}, nil
	})
	for _, p := range []string{"a", "b", "a", "c"} {
		if _, err := c.get(p); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(closed, []string{"b"}) {
		t.Errorf("closed %v, want [b]", closed)
	}
	c.closeAll()
	if !reflect.DeepEqual(closed, []string{"b", "a", "c"}) {
		t.Errorf("closed %v, want [b a c]", closed)
	}
}

type fakeFile struct {
	path   string
	closed *[]string
}

func (f *fakeFile) coords(_, _ string) (lat, lon []float64, err error) { return nil, nil, nil }
func (f *fakeFile) steps(string) (int, error)                          { return 0, nil }
func (f *fakeFile) read(string, int) (*sparse.DenseArray, error)       { return nil, nil }
func (f *fakeFile) close() error {
	*f.closed = append(*f.closed, f.path)
	return nil
}
