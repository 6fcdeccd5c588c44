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

package rescale

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ctessum/sparse"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// factorGrid presents a [lat, lon] field as a plotter.GridXYZ with
// increasing coordinates.
type factorGrid struct {
	data       *sparse.DenseArray
	lat, lon   []float64
	rows, cols []int
}

func newFactorGrid(data *sparse.DenseArray, lat, lon []float64) *factorGrid {
	return &factorGrid{data: data, lat: lat, lon: lon, rows: ascending(lat), cols: ascending(lon)}
}

// ascending returns the indices of v in increasing order of value.
func ascending(v []float64) []int {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return v[idx[i]] < v[idx[j]] })
	return idx
}

func (g *factorGrid) Dims() (c, r int)   { return len(g.cols), len(g.rows) }
func (g *factorGrid) Z(c, r int) float64 { return g.data.Get(g.rows[r], g.cols[c]) }
func (g *factorGrid) X(c int) float64    { return g.lon[g.cols[c]] }
func (g *factorGrid) Y(r int) float64    { return g.lat[g.rows[r]] }

// snapshotLevels is the number of colors in a snapshot map.
const snapshotLevels = 28

// SnapshotPath returns the path of the map of the factors of variable v
// ("t2m" or "tp") for calendar month month.
func (r *Rescaler) SnapshotPath(v string, month int) string {
	return filepath.Join(r.SnapshotDir, fmt.Sprintf("%sr_%s_target_%s_%02d_%s.png", r.Forcing, r.Mode, r.Target, month, v))
}

// saveSnapshot draws maps of the factors of the rescaled variables as PNG
// files in r.SnapshotDir. Grids with a single row or column are skipped.
func (r *Rescaler) saveSnapshot(month int, lat, lon []float64, f *Factors) error {
	if len(lat) < 2 || len(lon) < 2 {
		return nil
	}
	if err := os.MkdirAll(r.SnapshotDir, os.ModePerm); err != nil {
		return fmt.Errorf("rescale: creating snapshot directory: %v", err)
	}
	for _, v := range []struct {
		name     string
		scales   bool
		data     *sparse.DenseArray
		min, max float64
	}{
		{name: "t2m", scales: r.Mode == Temperature || r.Mode == Both, data: f.Temperature, min: 0.985, max: 1.02},
		{name: "tp", scales: r.Mode == Precip || r.Mode == Both, data: f.Precip, min: 0, max: 2},
	} {
		if !v.scales {
			continue
		}
		p, err := plot.New()
		if err != nil {
			return fmt.Errorf("rescale: snapshot: %v", err)
		}
		p.Title.Text = fmt.Sprintf("%s to %s %s factor, month %02d", r.Forcing, r.Target, v.name, month)
		p.X.Label.Text = "longitude"
		p.Y.Label.Text = "latitude"

		cm := moreland.SmoothBlueRed()
		cm.SetMin(v.min)
		cm.SetMax(v.max)
		pal := cm.Palette(snapshotLevels)
		hm := plotter.NewHeatMap(newFactorGrid(v.data, lat, lon), pal)
		hm.Min, hm.Max = v.min, v.max
		colors := pal.Colors()
		hm.Underflow, hm.Overflow = colors[0], colors[len(colors)-1]
		p.Add(hm)

		if err := p.Save(6*vg.Inch, 4*vg.Inch, r.SnapshotPath(v.name, month)); err != nil {
			return fmt.Errorf("rescale: saving snapshot: %v", err)
		}
	}
	return nil
}
