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
	"testing"
	"time"
)

func TestSeasonMonths(t *testing.T) {
	m := SeasonMonths(1999)
	if len(m) != 12 {
		t.Fatalf("have %d months", len(m))
	}
	first, last := m[0], m[11]
	if first.Month != time.August || first.Year != 1999 || first.Name() != "Aug" {
		t.Errorf("first month %v (%s)", first, first.Name())
	}
	if last.Month != time.July || last.Year != 2000 || last.Name() != "July" {
		t.Errorf("last month %v (%s)", last, last.Name())
	}
	if m[4].Month != time.December || m[4].Year != 1999 || m[5].Month != time.January || m[5].Year != 2000 {
		t.Errorf("year boundary: %v, %v", m[4], m[5])
	}
	for i, sm := range m {
		if sm.Index != i {
			t.Errorf("month %v has index %d, want %d", sm, sm.Index, i)
		}
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		m        time.Month
		year     int
		leapDays bool
		want     int
	}{
		{m: time.January, year: 2001, want: 31},
		{m: time.September, year: 2001, want: 30},
		{m: time.February, year: 2001, leapDays: true, want: 28},
		{m: time.February, year: 2004, leapDays: true, want: 29},
		{m: time.February, year: 2004, leapDays: false, want: 28},
		{m: time.February, year: 1900, leapDays: true, want: 28},
		{m: time.February, year: 2000, leapDays: true, want: 29},
	}
	for _, test := range tests {
		if got := DaysInMonth(test.m, test.year, test.leapDays); got != test.want {
			t.Errorf("%v %d (leap days %v): have %d, want %d", test.m, test.year, test.leapDays, got, test.want)
		}
	}
}

func TestOutputNames(t *testing.T) {
	id := ExperimentID("ERA5", "neither", "CRU")
	if id != "ERA5" {
		t.Errorf("experiment id %s", id)
	}
	rid := ExperimentID("MERRA2", "tp", "ERA5")
	if rid != "MERRA2r_tp_target_ERA5" {
		t.Errorf("rescaled experiment id %s", rid)
	}
	tag := SeasonTag(2010)
	if tag != "2010_2011" {
		t.Errorf("season tag %s", tag)
	}
	m := SeasonMonths(2010)[7]
	if got, want := DailyOutputName(id, m, false, tag), "ERA5_forced_swe_March_2010_2011.nc"; got != want {
		t.Errorf("%s != %s", got, want)
	}
	if got, want := DailyOutputName(rid, m, true, tag), "MERRA2r_tp_target_ERA5_forced_swe_March_mixedpr_2010_2011.nc"; got != want {
		t.Errorf("%s != %s", got, want)
	}
	if got, want := AnnualOutputName(id, false, tag), "ERA5_forced_2010_2011.nc"; got != want {
		t.Errorf("%s != %s", got, want)
	}
	if got, want := AnnualOutputName(id, true, tag), "ERA5_forced_mixedpr_2010_2011.nc"; got != want {
		t.Errorf("%s != %s", got, want)
	}
}
