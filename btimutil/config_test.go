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

package btimutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/kr/pretty"
	"github.com/spatialmodel/btim"
	"github.com/spatialmodel/btim/rescale"
)

func TestParamsDefault(t *testing.T) {
	p, err := Params(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := btim.DefaultParams()
	if diff := pretty.Diff(p, want); len(diff) > 0 {
		t.Errorf("default parameters differ:\n%s", diff)
	}
}

func TestParamsMixed(t *testing.T) {
	Cfg.Set("MixedPrecip.Lower", -2.0)
	Cfg.Set("MixedPrecip.Upper", 1.0)
	defer func() {
		Cfg.Set("MixedPrecip.Lower", 0.0)
		Cfg.Set("MixedPrecip.Upper", 0.0)
	}()
	p, err := Params(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := btim.MixedRange{Lower: -2, Upper: 1}
	if diff := pretty.Diff(p.Mixed, want); len(diff) > 0 {
		t.Errorf("mixed range differs:\n%s", diff)
	}
	if !p.Mixed.Enabled() {
		t.Error("mixed precipitation should be enabled")
	}

	Cfg.Set("MixedPrecip.Lower", 2.0)
	if _, err := Params(Cfg); err == nil {
		t.Error("expected an error for an inverted mixed range")
	}
}

func TestForcingSource(t *testing.T) {
	t.Run("builtin", func(t *testing.T) {
		Cfg.Set("Forcing", "merra2")
		Cfg.Set("ForcingDir", "/data/merra2")
		defer Cfg.Set("Forcing", "ERA5")
		defer Cfg.Set("ForcingDir", "${BTIM_DATA}")
		s, err := ForcingSource(Cfg)
		if err != nil {
			t.Fatal(err)
		}
		want := btim.MERRA2("/data/merra2")
		if diff := pretty.Diff(s, want); len(diff) > 0 {
			t.Errorf("forcing source differs:\n%s", diff)
		}
	})
	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		f := filepath.Join(dir, "custom.toml")
		err := os.WriteFile(f, []byte(`
name = "CUSTOM"
dir = "data"
format = "netcdf3"
temperature_steps_per_day = 4
precipitation_steps_per_day = 2
temperature_var = "tas"
precipitation_var = "pr"
temperature_tag = "tas"
precipitation_tag = "pr"
latitude_name = "lat"
longitude_name = "lon"
temperature_in_kelvin = true
precipitation_units = "mm/s"
file_template = "[VAR]_[YEAR][MONTH].nc"
`), 0644)
		if err != nil {
			t.Fatal(err)
		}
		Cfg.Set("ForcingFile", f)
		defer Cfg.Set("ForcingFile", "")
		s, err := ForcingSource(Cfg)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Validate(); err != nil {
			t.Fatal(err)
		}
		if s.Name != "CUSTOM" || s.Dir != filepath.Join(dir, "data") {
			t.Errorf("name %s, dir %s", s.Name, s.Dir)
		}
		if s.IntervalHours() != 12 || s.TemperatureSamples() != 2 {
			t.Errorf("interval %d h with %d temperature samples", s.IntervalHours(), s.TemperatureSamples())
		}
	})
	t.Run("unknown", func(t *testing.T) {
		Cfg.Set("Forcing", "CRU")
		defer Cfg.Set("Forcing", "ERA5")
		if _, err := ForcingSource(Cfg); err == nil {
			t.Error("expected an error for an unknown forcing")
		}
	})
}

func TestBounds(t *testing.T) {
	b, err := bounds(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(b, btim.DefaultBounds()) {
		t.Errorf("%v != %v", b, btim.DefaultBounds())
	}
	Cfg.Set("Domain.LatMin", 95.0)
	defer Cfg.Set("Domain.LatMin", 10.0)
	if _, err := bounds(Cfg); err == nil {
		t.Error("expected an error for an invalid latitude range")
	}
}

func TestLandCoverDefault(t *testing.T) {
	lc, class, err := landCover(Cfg)
	if err != nil {
		t.Fatal(err)
	}
	if lc != nil {
		t.Error("land cover should be nil without a file")
	}
	if class != btim.Tundra {
		t.Errorf("default class %v", class)
	}
	Cfg.Set("DefaultLandClass", "rainforest")
	defer Cfg.Set("DefaultLandClass", "tundra")
	if _, _, err := landCover(Cfg); err == nil {
		t.Error("expected an error for an unknown land class")
	}
}

func TestParseRegion(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		r, err := parseRegion("")
		if err != nil {
			t.Fatal(err)
		}
		if r != nil {
			t.Errorf("region should be nil but is %v", r)
		}
	})
	t.Run("multipolygon", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "region.json")
		err := os.WriteFile(f, []byte(`{"type": "MultiPolygon","coordinates": [ [ [ [1, 1], [2, 1], [2, 2], [1, 1] ] ], [ [ [5, 5], [6, 5], [6, 6], [5, 5] ] ] ] }`), 0644)
		if err != nil {
			t.Fatal(err)
		}
		r, err := parseRegion(f)
		if err != nil {
			t.Fatal(err)
		}
		want := geom.MultiPolygon{
			{geom.Path{geom.Point{X: 1, Y: 1}, geom.Point{X: 2, Y: 1}, geom.Point{X: 2, Y: 2}, geom.Point{X: 1, Y: 1}}},
			{geom.Path{geom.Point{X: 5, Y: 5}, geom.Point{X: 6, Y: 5}, geom.Point{X: 6, Y: 6}, geom.Point{X: 5, Y: 5}}},
		}
		if !reflect.DeepEqual(r, want) {
			t.Errorf("%v != %v", r, want)
		}
	})
}

func TestGetStringMapString(t *testing.T) {
	defer Cfg.Set("AnnualOutputVariables", "{}")
	tests := []struct {
		name    string
		val     interface{}
		want    map[string]string
		wantErr bool
	}{
		{name: "json", val: `{"snowfrac":"sftot / ptot"}`, want: map[string]string{"snowfrac": "sftot / ptot"}},
		{name: "map", val: map[string]interface{}{"a": "swemax * 2"}, want: map[string]string{"a": "swemax * 2"}},
		{name: "empty", val: " ", want: map[string]string{}},
		{name: "malformed json", val: `{"snowfrac": sftot / ptot}`, wantErr: true},
		{name: "wrong type", val: 3, wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			Cfg.Set("AnnualOutputVariables", test.val)
			got, err := GetStringMapString("AnnualOutputVariables", Cfg)
			if test.wantErr {
				if err == nil {
					t.Errorf("expected an error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("%v != %v", got, test.want)
			}
		})
	}
}

func TestParseConfigBadOutputVars(t *testing.T) {
	Cfg.Set("Year", 2000)
	Cfg.Set("OutputDir", filepath.Join(t.TempDir(), "out"))
	Cfg.Set("AnnualOutputVariables", `{"snowfrac": `)
	defer func() {
		Cfg.Set("Year", 0)
		Cfg.Set("OutputDir", "output")
		Cfg.Set("AnnualOutputVariables", "{}")
	}()
	if _, err := parseConfig(Cfg); err == nil || !strings.Contains(err.Error(), "AnnualOutputVariables") {
		t.Errorf("expected an AnnualOutputVariables error, got %v", err)
	}
}

func TestCheckOutputVars(t *testing.T) {
	os.Setenv("BTIM_TEST_VAR", "snowfrac")
	defer os.Unsetenv("BTIM_TEST_VAR")
	got, err := checkOutputVars(map[string]string{"${BTIM_TEST_VAR}": "sftot /\r\nptot"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{"snowfrac": "sftot / ptot"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%v != %v", got, want)
	}
	if _, err := checkOutputVars(map[string]string{"x": " "}); err == nil {
		t.Error("expected an error for an empty expression")
	}
}

func TestCheckLogFile(t *testing.T) {
	if got := checkLogFile("", "out/ERA5_forced_2000_2001.nc"); got != "out/ERA5_forced_2000_2001.log" {
		t.Errorf("got %s", got)
	}
	if got := checkLogFile("run.log", "out/ERA5_forced_2000_2001.nc"); got != "run.log" {
		t.Errorf("got %s", got)
	}
}

func TestParseConfig(t *testing.T) {
	t.Run("no year", func(t *testing.T) {
		if _, err := parseConfig(Cfg); err == nil || !strings.Contains(err.Error(), "Year") {
			t.Errorf("expected a Year error, got %v", err)
		}
	})
	t.Run("rescaled", func(t *testing.T) {
		dir := t.TempDir()
		Cfg.Set("Year", 2000)
		Cfg.Set("OutputDir", filepath.Join(dir, "out"))
		Cfg.Set("Rescale.Adjust", "both")
		Cfg.Set("Rescale.Target", "CRU")
		Cfg.Set("MixedPrecip.Lower", -2.0)
		defer func() {
			Cfg.Set("Year", 0)
			Cfg.Set("OutputDir", "output")
			Cfg.Set("Rescale.Adjust", "neither")
			Cfg.Set("Rescale.Target", "")
			Cfg.Set("MixedPrecip.Lower", 0.0)
		}()
		c, err := parseConfig(Cfg)
		if err != nil {
			t.Fatal(err)
		}
		if c.ID != "ERA5r_both_target_CRU" {
			t.Errorf("experiment id %s", c.ID)
		}
		r, ok := c.Season.Scaler.(*rescale.Rescaler)
		if !ok {
			t.Fatalf("scaler is %T, want *rescale.Rescaler", c.Season.Scaler)
		}
		for _, name := range []string{r.Forcing, r.Target} {
			if f := filepath.Base(r.ClimatologyPath(name, 1)); f != name+"_01_mm.nc" {
				t.Errorf("climatology file %s for %s", f, name)
			}
		}
		if r.Forcing != "ERA5" {
			t.Errorf("forcing climatology name %s, want ERA5", r.Forcing)
		}
		want := filepath.Join(dir, "out", "ERA5r_both_target_CRU_forced_mixedpr_2000_2001.log")
		if c.LogFile != want {
			t.Errorf("log file %s != %s", c.LogFile, want)
		}
		if c.Season.Region != nil {
			t.Errorf("region should be nil")
		}
	})
	t.Run("missing target", func(t *testing.T) {
		Cfg.Set("Year", 2000)
		Cfg.Set("Rescale.Adjust", "tp")
		defer Cfg.Set("Year", 0)
		defer Cfg.Set("Rescale.Adjust", "neither")
		if _, err := parseConfig(Cfg); err == nil {
			t.Error("expected an error for a missing target")
		}
	})
}

func TestVersion(t *testing.T) {
	b := new(bytes.Buffer)
	Root.SetOutput(b)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("B-TIM v%s\n", btim.Version)
	if b.String() != want {
		t.Errorf("%q != %q", b.String(), want)
	}
}
