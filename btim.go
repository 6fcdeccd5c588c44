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

// Package btim is a gridded snowpack reconstruction model. It evolves snow
// depth and snow density over a full snow season (August-July) from gridded
// temperature and precipitation forcing, following the empirical scheme of
// Brasnett (1999) with new-snow density from Hedstrom and Pomeroy (1998) and
// melt rates from Kuusisto (1980).
//
// Units used throughout the package: depth in metres of snow, density in
// kg/m3, temperature in degrees C, precipitation in metres of water and
// snow water equivalent (SWE) in kg/m2, which is equal to mm of water.
package btim

import "fmt"

// Version gives the version number.
const Version = "1.0.0"

// physical constants
const (
	rhoWater = 1000.   // kg/m3, density of water
	rhoIce   = 917.    // kg/m3, density of ice
	cWater   = 4.18e3  // J/(kg K), specific heat of water
	lFusion  = 0.334e6 // J/kg, latent heat of fusion of water

	secondsPerHour = 3600.
	hoursPerDay    = 24

	// noSnowDepth is the depth [m] at or below which a cell is
	// considered to have no snow when deciding whether snow is possible
	// during an interval.
	noSnowDepth = 1.e-6
)

// MixedRange holds the lower and upper temperature thresholds [°C] between
// which precipitation is treated as a linear blend of rain and snow.
// If Lower == Upper, mixed precipitation is disabled and the precipitation
// phase is decided by a hard cutoff at the freezing temperature.
type MixedRange struct {
	Lower, Upper float64
}

// Enabled returns whether mixed precipitation is active.
func (m MixedRange) Enabled() bool { return m.Lower != m.Upper }

// Params holds the physical bounds and thresholds of the snowpack model.
type Params struct {
	// RhoMin and RhoMax are the minimum and maximum snow densities [kg/m3].
	RhoMin, RhoMax float64

	// TMelt is the temperature [°C] above which snow melts and below which
	// cold settling occurs.
	TMelt float64

	// TFreeze is the freezing temperature [°C].
	TFreeze float64

	// MaxDepth is the maximum snow depth [m].
	MaxDepth float64

	// Mixed is the mixed precipitation temperature range.
	Mixed MixedRange

	// TundraPrairieScaling and BorealScaling are the multiplicative
	// precipitation reduction factors for tundra/prairie and boreal cells,
	// representing blowing snow sublimation and canopy interception losses.
	TundraPrairieScaling, BorealScaling float64
}

// DefaultParams returns the standard model parameters, with mixed
// precipitation disabled.
func DefaultParams() Params {
	return Params{
		RhoMin:               200,
		RhoMax:               550,
		TMelt:                -1,
		TFreeze:              0,
		MaxDepth:             6,
		TundraPrairieScaling: 0.8,
		BorealScaling:        0.8,
	}
}

// Validate checks that the parameters describe a physically meaningful model.
func (p Params) Validate() error {
	if !(p.RhoMin > 0) || p.RhoMax < p.RhoMin {
		return fmt.Errorf("btim: invalid density bounds [%g, %g]", p.RhoMin, p.RhoMax)
	}
	if p.RhoMax > rhoIce {
		return fmt.Errorf("btim: maximum density %g exceeds the density of ice", p.RhoMax)
	}
	if !(p.MaxDepth > 0) {
		return fmt.Errorf("btim: maximum depth must be > 0 but is %g", p.MaxDepth)
	}
	if p.Mixed.Lower > p.Mixed.Upper {
		return fmt.Errorf("btim: mixed precipitation lower threshold %g is above upper threshold %g",
			p.Mixed.Lower, p.Mixed.Upper)
	}
	for _, s := range []float64{p.TundraPrairieScaling, p.BorealScaling} {
		if s < 0 || s > 1 {
			return fmt.Errorf("btim: precipitation scaling factor %g is not between 0 and 1", s)
		}
	}
	return nil
}

// clampDensity limits rho to the allowed density range.
func (p Params) clampDensity(rho float64) float64 {
	if rho < p.RhoMin {
		return p.RhoMin
	}
	if rho > p.RhoMax {
		return p.RhoMax
	}
	return rho
}
