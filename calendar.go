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
	"time"
)

// monthNames are the names of the months of a snow season as they appear in
// daily output file names, starting in August.
var monthNames = [12]string{"Aug", "Sept", "Oct", "Nov", "Dec", "Jan", "Feb", "March", "April", "May", "June", "July"}

// SeasonMonth is one calendar month of a snow season.
type SeasonMonth struct {
	// Index is the position of the month within the season, with August
	// being 0.
	Index int
	Month time.Month
	Year  int
}

// Name returns the name of the month as used in output file names.
func (m SeasonMonth) Name() string { return monthNames[m.Index] }

func (m SeasonMonth) String() string { return fmt.Sprintf("%s %d", m.Month, m.Year) }

// SeasonMonths returns the twelve months of the snow season starting in
// August of startYear and ending in July of the next year.
func SeasonMonths(startYear int) []SeasonMonth {
	o := make([]SeasonMonth, 12)
	for i := range o {
		m := time.Month((int(time.August)-1+i)%12 + 1)
		y := startYear
		if m < time.August {
			y++
		}
		o[i] = SeasonMonth{Index: i, Month: m, Year: y}
	}
	return o
}

// DaysInMonth returns the number of days in month m of year. If leapDays is
// false, February always has 28 days. Otherwise February has 29 days in
// years divisible by 4, except century years not divisible by 400.
func DaysInMonth(m time.Month, year int, leapDays bool) int {
	switch m {
	case time.April, time.June, time.September, time.November:
		return 30
	case time.February:
		if leapDays && year%100 == 0 && year%400 != 0 {
			return 28
		} else if leapDays && year%4 == 0 {
			return 29
		}
		return 28
	default:
		return 31
	}
}

// SeasonTag returns the tag identifying the season starting in startYear,
// for example "2019_2020".
func SeasonTag(startYear int) string {
	return fmt.Sprintf("%d_%d", startYear, startYear+1)
}

// ExperimentID returns the identifier of a model run with the given forcing.
// If adjust is set to anything other than "" or "neither", the run uses
// rescaled forcing and the rescaling mode and target climatology are
// appended.
func ExperimentID(forcing, adjust, target string) string {
	if adjust == "" || adjust == "neither" {
		return forcing
	}
	return fmt.Sprintf("%sr_%s_target_%s", forcing, adjust, target)
}

// DailyOutputName returns the name of the file holding the daily fields of
// month m.
func DailyOutputName(id string, m SeasonMonth, mixed bool, tag string) string {
	name := id + "_forced_swe_" + m.Name() + "_"
	if mixed {
		name += "mixedpr_"
	}
	return name + tag + ".nc"
}

// AnnualOutputName returns the name of the file holding the season
// accumulators.
func AnnualOutputName(id string, mixed bool, tag string) string {
	name := id + "_forced_"
	if mixed {
		name += "mixedpr_"
	}
	return name + tag + ".nc"
}
