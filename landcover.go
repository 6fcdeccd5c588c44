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
	"math"
	"strings"
)

// LandClass is a snow classification following Sturm et al. (1995).
type LandClass int

// Snow classes.
const (
	Unclassified LandClass = iota
	Tundra
	Taiga
	Maritime
	Ephemeral
	Prairie
	Alpine
)

var landClassNames = []string{"unclassified", "tundra", "taiga", "maritime", "ephemeral", "prairie", "alpine"}

func (c LandClass) String() string {
	if c < 0 || int(c) >= len(landClassNames) {
		return fmt.Sprintf("LandClass(%d)", int(c))
	}
	return landClassNames[c]
}

// ParseLandClass returns the land class with the given name.
func ParseLandClass(s string) (LandClass, error) {
	for i, n := range landClassNames {
		if strings.EqualFold(s, n) {
			return LandClass(i), nil
		}
	}
	return Unclassified, fmt.Errorf("btim: unknown land class %q", s)
}

// reductionGroup specifies which precipitation scaling factor applies to a
// land class.
type reductionGroup int

const (
	noReduction reductionGroup = iota
	tundraPrairieReduction
	borealReduction
)

// classProperties holds the class-dependent parameters of the model.
type classProperties struct {
	// reduction is the precipitation reduction group. Boreal reduction
	// only applies where the canopy is closed.
	reduction reductionGroup

	// borealMelt specifies whether the boreal forest melt relation is used
	// where the canopy is closed.
	borealMelt bool

	// c2 is the cold settling density coefficient [m3/kg].
	c2 float64
}

var classTable = map[LandClass]classProperties{
	Unclassified: {reduction: noReduction, c2: 0.021},
	Tundra:       {reduction: tundraPrairieReduction, c2: 0.021},
	Taiga:        {reduction: borealReduction, borealMelt: true, c2: 0.028},
	Maritime:     {reduction: noReduction, c2: 0.021},
	Ephemeral:    {reduction: noReduction, c2: 0.021},
	Prairie:      {reduction: tundraPrairieReduction, c2: 0.021},
	Alpine:       {reduction: noReduction, c2: 0.028},
}

func (c LandClass) properties() classProperties {
	if p, ok := classTable[c]; ok {
		return p
	}
	return classTable[Unclassified]
}

// LandCover holds the snow class and canopy openness of each grid cell.
type LandCover struct {
	Class []LandClass
	Open  []bool
}

// UniformCover returns a land cover of n cells that all have class c and an
// open canopy.
func UniformCover(n int, c LandClass) *LandCover {
	lc := &LandCover{Class: make([]LandClass, n), Open: make([]bool, n)}
	for i := range lc.Class {
		lc.Class[i] = c
		lc.Open[i] = true
	}
	return lc
}

// Len returns the number of cells.
func (lc *LandCover) Len() int { return len(lc.Class) }

func (lc *LandCover) check(n int) error {
	if len(lc.Class) != n || len(lc.Open) != n {
		return fmt.Errorf("btim: land cover has %d classes and %d openness values but the grid has %d cells",
			len(lc.Class), len(lc.Open), n)
	}
	return nil
}

// boreal returns whether cell i is closed-canopy boreal forest.
func (lc *LandCover) boreal(i int) bool {
	return lc.Class[i].properties().borealMelt && !lc.Open[i]
}

// precipScale returns the precipitation reduction factor for cell i.
func (lc *LandCover) precipScale(i int, p Params) float64 {
	switch lc.Class[i].properties().reduction {
	case tundraPrairieReduction:
		return p.TundraPrairieScaling
	case borealReduction:
		if !lc.Open[i] {
			return p.BorealScaling
		}
	}
	return 1
}

// coldAgingC2 returns the cold settling density coefficient of cell i.
func (lc *LandCover) coldAgingC2(i int) float64 {
	return lc.Class[i].properties().c2
}

// Subset returns the land cover of the cells selected by m.
func (lc *LandCover) Subset(m *Mask) (*LandCover, error) {
	if err := lc.check(m.nLat * m.nLon); err != nil {
		return nil, err
	}
	o := &LandCover{Class: make([]LandClass, m.Len()), Open: make([]bool, m.Len())}
	k := 0
	for _, j := range m.LatIndex {
		for _, i := range m.LonIndex {
			o.Class[k] = lc.Class[j*m.nLon+i]
			o.Open[k] = lc.Open[j*m.nLon+i]
			k++
		}
	}
	return o, nil
}

// ReadLandCover reads a land cover from a NetCDF file containing the
// two-dimensional variables `snow_class` (integer classes) and `openness`
// (nonzero where the canopy is open) on the full forcing grid.
func ReadLandCover(filename string) (*LandCover, error) {
	d, err := ReadNCF(filename, "snow_class", "openness")
	if err != nil {
		return nil, err
	}
	class, open := d["snow_class"], d["openness"]
	if len(class.Elements) != len(open.Elements) {
		return nil, fmt.Errorf("btim: land cover file %s: snow_class and openness have different sizes", filename)
	}
	lc := &LandCover{Class: make([]LandClass, len(class.Elements)), Open: make([]bool, len(open.Elements))}
	for i, v := range class.Elements {
		c := LandClass(int(v + 0.5))
		if _, ok := classTable[c]; !ok || math.IsNaN(v) {
			return nil, fmt.Errorf("btim: land cover file %s: invalid snow class %g at index %d", filename, v, i)
		}
		lc.Class[i] = c
		lc.Open[i] = open.Elements[i] != 0
	}
	return lc, nil
}
