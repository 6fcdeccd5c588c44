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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/btim"
	"github.com/spatialmodel/btim/rescale"
	"github.com/spf13/cast"
)

// Config holds the settings of one model run.
type Config struct {
	// Year is the year in which the snow season starts.
	Year int

	// ID is the experiment identifier used in output file names.
	ID string

	OutputDir, LogFile, MetricsFile string

	// Season is the model setup. Its Log and Metrics fields are filled in
	// by Run.
	Season *btim.Season
}

// parseConfig builds a run configuration from cfg.
func parseConfig(cfg *viper.Viper) (*Config, error) {
	c := &Config{Year: cfg.GetInt("Year")}
	if c.Year <= 0 {
		return nil, fmt.Errorf("btim: the Year configuration variable must be set to the first year of the snow season")
	}
	p, err := Params(cfg)
	if err != nil {
		return nil, err
	}
	forcing, err := ForcingSource(cfg)
	if err != nil {
		return nil, err
	}
	if err = forcing.Validate(); err != nil {
		return nil, err
	}
	lc, class, err := landCover(cfg)
	if err != nil {
		return nil, err
	}
	b, err := bounds(cfg)
	if err != nil {
		return nil, err
	}
	region, err := parseRegion(cfg.GetString("Domain.RegionGeoJSON"))
	if err != nil {
		return nil, err
	}

	mode, err := rescale.ParseMode(os.ExpandEnv(cfg.GetString("Rescale.Adjust")))
	if err != nil {
		return nil, err
	}
	target := os.ExpandEnv(cfg.GetString("Rescale.Target"))
	c.ID = btim.ExperimentID(forcing.Name, string(mode), target)
	var scaler btim.Scaler
	if mode != rescale.Neither {
		if target == "" {
			return nil, fmt.Errorf("btim: Rescale.Target must be set when Rescale.Adjust is %s", mode)
		}
		dir := os.ExpandEnv(cfg.GetString("Rescale.ClimDir"))
		rs := rescale.New(dir, forcing.Name, target, mode, cfg.GetInt("Rescale.CacheSize"))
		rs.SnapshotDir = os.ExpandEnv(cfg.GetString("Rescale.SnapshotDir"))
		scaler = rs
	}

	c.OutputDir, err = checkOutputDir(cfg.GetString("OutputDir"))
	if err != nil {
		return nil, err
	}
	vars, err := GetStringMapString("AnnualOutputVariables", cfg)
	if err != nil {
		return nil, err
	}
	if vars, err = checkOutputVars(vars); err != nil {
		return nil, err
	}
	w, err := btim.NewNetCDFWriter(c.OutputDir, c.ID, p.Mixed.Enabled(), vars)
	if err != nil {
		return nil, err
	}
	c.LogFile = checkLogFile(os.ExpandEnv(cfg.GetString("LogFile")), w.AnnualPath(c.Year))
	c.MetricsFile = os.ExpandEnv(cfg.GetString("MetricsFile"))

	c.Season = &btim.Season{
		Params:       p,
		Forcing:      forcing,
		Bounds:       b,
		LandCover:    lc,
		DefaultClass: class,
		LeapDays:     cfg.GetBool("LeapDays"),
		Scaler:       scaler,
		Writer:       w,
	}
	if region != nil {
		c.Season.Region = region
	}
	return c, nil
}

// Params returns the model parameters specified in cfg.
func Params(cfg *viper.Viper) (btim.Params, error) {
	p := btim.Params{
		RhoMin:               cfg.GetFloat64("Params.RhoMin"),
		RhoMax:               cfg.GetFloat64("Params.RhoMax"),
		TMelt:                cfg.GetFloat64("Params.TMelt"),
		TFreeze:              cfg.GetFloat64("Params.TFreeze"),
		MaxDepth:             cfg.GetFloat64("Params.MaxDepth"),
		TundraPrairieScaling: cfg.GetFloat64("Params.TundraPrairieScaling"),
		BorealScaling:        cfg.GetFloat64("Params.BorealScaling"),
		Mixed: btim.MixedRange{
			Lower: cfg.GetFloat64("MixedPrecip.Lower"),
			Upper: cfg.GetFloat64("MixedPrecip.Upper"),
		},
	}
	return p, p.Validate()
}

// ForcingSource returns the forcing descriptor specified in cfg, either
// read from ForcingFile or one of the built-in data sets.
func ForcingSource(cfg *viper.Viper) (*btim.ForcingSource, error) {
	if f := os.ExpandEnv(cfg.GetString("ForcingFile")); f != "" {
		return btim.ReadForcingSource(f)
	}
	return btim.BuiltinForcing(os.ExpandEnv(cfg.GetString("Forcing")), os.ExpandEnv(cfg.GetString("ForcingDir")))
}

// landCover returns the land cover file contents, if a file is specified,
// and the default land class.
func landCover(cfg *viper.Viper) (*btim.LandCover, btim.LandClass, error) {
	class, err := btim.ParseLandClass(cfg.GetString("DefaultLandClass"))
	if err != nil {
		return nil, class, err
	}
	f := os.ExpandEnv(cfg.GetString("LandCoverFile"))
	if f == "" {
		return nil, class, nil
	}
	lc, err := btim.ReadLandCover(f)
	return lc, class, err
}

// bounds returns the latitude-longitude window of the model domain.
func bounds(cfg *viper.Viper) (*geom.Bounds, error) {
	b := &geom.Bounds{
		Min: geom.Point{X: cfg.GetFloat64("Domain.LonMin"), Y: cfg.GetFloat64("Domain.LatMin")},
		Max: geom.Point{X: cfg.GetFloat64("Domain.LonMax"), Y: cfg.GetFloat64("Domain.LatMax")},
	}
	if b.Min.Y >= b.Max.Y || b.Min.Y < -90 || b.Max.Y > 90 {
		return nil, fmt.Errorf("btim: invalid domain latitude range [%g, %g]", b.Min.Y, b.Max.Y)
	}
	if b.Min.X == b.Max.X {
		return nil, fmt.Errorf("btim: invalid domain longitude range [%g, %g]", b.Min.X, b.Max.X)
	}
	return b, nil
}

// parseRegion returns the region in the given GeoJSON file, or nil if no
// file is specified.
func parseRegion(regionGeoJSONFile string) (geom.Polygonal, error) {
	if regionGeoJSONFile == "" {
		return nil, nil
	}
	return btim.ReadRegion(regionGeoJSONFile)
}

// checkOutputDir expands any environment variables in the output directory
// and makes sure it exists.
func checkOutputDir(dir string) (string, error) {
	dir = os.ExpandEnv(dir)
	if dir == "" {
		return "", fmt.Errorf(`you need to specify an output directory configuration variable (for example: OutputDir="output")`)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return dir, fmt.Errorf("btim: creating OutputDir: %v", err)
	}
	return dir, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the annual output variables.
func checkOutputVars(vars map[string]string) (map[string]string, error) {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		k, v = os.ExpandEnv(k), os.ExpandEnv(v)
		if k == "" || strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("btim: annual output variable %q has an empty name or expression", k)
		}
		o[k] = v
	}
	return o, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return map[string]string{}, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("btim: parsing configuration variable %s as a JSON object: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("btim: invalid type for configuration variable %s: %#v", varName, i)
	}
}
