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

import "math"

// warm settling
const (
	warmWMax = 700.     // kg/m3
	warmW1   = 204.70   // kg/m2
	warmW2   = 0.673    // m
	warmRate = 2.778e-6 // 1/s

	// warmMinGap is the smallest difference [kg/m3] between the maximum
	// and current density for which warm settling is applied.
	warmMinGap = 0.1
)

// cold settling
const (
	coldC1 = 2.
	coldB1 = 0.6
	coldC3 = 0.08 // 1/K
)

// SnowFraction returns the fraction of precipitation falling as snow at
// temperature t [°C].
func SnowFraction(t float64, p Params) float64 {
	frac := 0.
	if t <= p.TFreeze {
		frac = 1
	}
	if m := p.Mixed; m.Enabled() && t > m.Lower && t < m.Upper {
		frac = 1 - (t-m.Lower)/(m.Upper-m.Lower)
	}
	return frac
}

// NewSnowDensity returns the density [kg/m3] of freshly fallen snow at
// temperature t [°C], following Hedstrom and Pomeroy (1998). Snow above 0 °C
// only occurs with mixed precipitation.
func NewSnowDensity(t float64) float64 {
	if t <= 0 {
		return 67.9 + 51.3*math.Exp(t/2.6)
	}
	return math.Min(119.2+20*t, 200)
}

// HourlyMeltRate returns the melt rate [kg m-2 h-1 K-1, i.e. mm w.e. per
// hour per degree] of a snowpack with density rho [kg/m3], following
// Kuusisto (1980). Boreal forest snowpack uses a separate relation.
func HourlyMeltRate(rho float64, boreal bool) float64 {
	var daily float64
	if boreal {
		daily = clamp(5.2e-3*rho-0.7, 0.1, 3.5)
	} else {
		daily = clamp(9.8e-3*rho-2.39, 0.1, 5.5)
	}
	return daily / hoursPerDay
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// rainMelt returns the snow depth [m] melted by rain [m water] at
// temperature t [°C] falling on snow with density rho.
func rainMelt(rain, t, rho float64, p Params) float64 {
	heat := rhoWater * rain * cWater * (t - p.TFreeze) // J/m2
	return heat / (lFusion * rho)
}

// tempMelt returns the snow depth [m] melted in one hour at temperature t
// with melt rate g.
func tempMelt(g, t, rho float64, p Params) float64 {
	return (t - p.TMelt) * g / rho
}

// warmAging returns the density increment during dt seconds of warm
// settling.
func warmAging(rho, depth, dt float64) float64 {
	rhoMax := warmWMax - (warmW1/depth)*(1-math.Exp(-depth/warmW2))
	gap := rhoMax - rho
	if gap <= warmMinGap {
		return 0
	}
	return gap * (1 - math.Exp(-warmRate*dt))
}

// coldAging returns the density increment during one hour of cold
// settling. c2 [m3/kg] depends on the land class.
func coldAging(rho, depth, t, c2 float64, p Params) float64 {
	return coldC1 * (coldB1 * rho * depth) * math.Exp(coldC3*(t-p.TMelt)) * math.Exp(-c2*rho)
}

// hourStepCell advances the density and depth of one cell by one weighted
// hour. g is the hourly melt rate, t the temperature and precip the hour's
// precipitation [m water] after land-cover reduction.
func hourStepCell(w, g, t, precip, rho, depth, c2 float64, p Params) (float64, float64) {
	frac := SnowFraction(t, p)
	snow := precip * frac
	rain := precip * (1 - frac)

	swe := depth * rho
	if snow > 0 {
		mass := w * rhoWater * snow // kg/m2
		rho = p.clampDensity((NewSnowDensity(t)*mass + rho*swe) / (swe + mass))
		swe += mass
		depth = swe / rho
	}

	if depth > 0 && rho > 0 {
		var melt float64
		if rain > 0 && t > p.TFreeze {
			melt += w * rainMelt(rain, t, rho, p)
		}
		if t > p.TMelt {
			melt += w * tempMelt(g, t, rho, p)
		}
		depth = math.Max(0, depth-melt)
	}

	if depth <= 0 {
		return rho, 0
	}
	swe = depth * rho
	if t >= p.TMelt {
		rho += warmAging(rho, depth, w*secondsPerHour)
	} else {
		rho += w * coldAging(rho, depth, t, c2, p)
	}
	rho = p.clampDensity(rho)
	return rho, swe / rho
}
