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

	"github.com/lnashier/viper"
	"github.com/spatialmodel/btim"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to B-TIM.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Year",
			usage: `
              Year is the calendar year in which the snow season starts.
              The season runs from August of Year to July of the following
              year.`,
			shorthand:  "y",
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Forcing",
			usage: `
              Forcing is the name of a built-in forcing data set (ERA5 or
              MERRA2). It is ignored if ForcingFile is set.`,
			shorthand:  "f",
			defaultVal: "ERA5",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ForcingFile",
			usage: `
              ForcingFile is the path to a TOML file describing the forcing
              data set: its file layout, variable names, sampling frequencies
              and units. It can contain environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ForcingDir",
			usage: `
              ForcingDir is the directory holding the forcing files of a
              built-in forcing data set. It can contain environment variables.`,
			defaultVal: "${BTIM_DATA}",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where the daily and annual output
              files are written. It can contain environment variables.`,
			shorthand:  "o",
			defaultVal: "output",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile will be saved in OutputDir with the name of the
              annual output file and the extension .log.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MetricsFile",
			usage: `
              MetricsFile is the path of a Prometheus text format file where
              run metrics are written at the end of the run. Metrics are not
              written if it is left blank.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MixedPrecip.Lower",
			usage: `
              MixedPrecip.Lower is the temperature [°C] below which all
              precipitation falls as snow when mixed precipitation is
              enabled.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "MixedPrecip.Upper",
			usage: `
              MixedPrecip.Upper is the temperature [°C] above which all
              precipitation falls as rain when mixed precipitation is
              enabled. Mixed precipitation is disabled when
              MixedPrecip.Lower and MixedPrecip.Upper are equal.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.RhoMin",
			usage: `
              Params.RhoMin is the minimum snow density [kg/m3].`,
			defaultVal: btim.DefaultParams().RhoMin,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.RhoMax",
			usage: `
              Params.RhoMax is the maximum snow density [kg/m3].`,
			defaultVal: btim.DefaultParams().RhoMax,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.TMelt",
			usage: `
              Params.TMelt is the temperature [°C] above which snow melts.`,
			defaultVal: btim.DefaultParams().TMelt,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.TFreeze",
			usage: `
              Params.TFreeze is the temperature [°C] at or below which
              precipitation falls as snow when mixed precipitation is
              disabled.`,
			defaultVal: btim.DefaultParams().TFreeze,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.MaxDepth",
			usage: `
              Params.MaxDepth is the maximum snow depth [m].`,
			defaultVal: btim.DefaultParams().MaxDepth,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.TundraPrairieScaling",
			usage: `
              Params.TundraPrairieScaling is the factor applied to
              precipitation in tundra and prairie cells to account for
              blowing snow sublimation.`,
			defaultVal: btim.DefaultParams().TundraPrairieScaling,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Params.BorealScaling",
			usage: `
              Params.BorealScaling is the factor applied to precipitation in
              closed-canopy boreal forest cells to account for canopy
              interception.`,
			defaultVal: btim.DefaultParams().BorealScaling,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LandCoverFile",
			usage: `
              LandCoverFile is the path to a NetCDF file with the variables
              snow_class and openness on the forcing grid. If it is left
              blank, every cell has the class DefaultLandClass.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "DefaultLandClass",
			usage: `
              DefaultLandClass is the snow class of every cell when no
              LandCoverFile is given. Valid classes are unclassified, tundra,
              taiga, maritime, ephemeral, prairie and alpine.`,
			defaultVal: btim.Tundra.String(),
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Domain.LatMin",
			usage: `
              Domain.LatMin is the southern edge of the model domain
              [degrees north].`,
			defaultVal: btim.DefaultBounds().Min.Y,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Domain.LatMax",
			usage: `
              Domain.LatMax is the northern edge of the model domain
              [degrees north].`,
			defaultVal: btim.DefaultBounds().Max.Y,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Domain.LonMin",
			usage: `
              Domain.LonMin is the western edge of the model domain
              [degrees east]. If Domain.LonMin is greater than
              Domain.LonMax, the domain crosses the prime meridian.`,
			defaultVal: btim.DefaultBounds().Min.X,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Domain.LonMax",
			usage: `
              Domain.LonMax is the eastern edge of the model domain
              [degrees east].`,
			defaultVal: btim.DefaultBounds().Max.X,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Domain.RegionGeoJSON",
			usage: `
              Domain.RegionGeoJSON is the path to a GeoJSON file holding a
              polygon in longitude-latitude coordinates. Snow only forms in
              cells inside the polygon. It is ignored if left blank.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LeapDays",
			usage: `
              LeapDays specifies whether February has 29 days in leap
              years. Set it to false for forcing data sets without leap
              days.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Rescale.Adjust",
			usage: `
              Rescale.Adjust specifies which forcing variables are rescaled
              to match a target climatology: tp, t2m, both or neither.`,
			defaultVal: "neither",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Rescale.Target",
			usage: `
              Rescale.Target is the name of the target climatology data set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Rescale.ClimDir",
			usage: `
              Rescale.ClimDir is the directory holding the monthly
              climatology files. It can contain environment variables.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Rescale.CacheSize",
			usage: `
              Rescale.CacheSize is the number of months of rescaling factors
              held in memory.`,
			defaultVal: 2,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Rescale.SnapshotDir",
			usage: `
              Rescale.SnapshotDir, if set, is a directory where a PNG map
              of each month's rescaling factors is saved.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "AnnualOutputVariables",
			usage: `
              AnnualOutputVariables specifies additional variables to write
              to the annual output file, as expressions of ptot, sftot and
              swemax. For example {"snowfrac":"sftot / ptot"}.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("BTIM")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("btim: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "btim",
	Short: "A gridded snowpack reconstruction model.",
	Long: `B-TIM reconstructs snow depth, snow density and snow water equivalent over
a full snow season (August to July) from gridded temperature and precipitation
forcing, following the empirical snowpack scheme of Brasnett (1999).
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'BTIM_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of B-TIM.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("B-TIM v%s\n", btim.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run simulates one snow season, writing the daily snow depth and density
of each month and the season totals of precipitation, snowfall and the maximum
snow water equivalent to NetCDF files in OutputDir.`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := parseConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cmd, c)
	},
}
