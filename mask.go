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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"os"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/sparse"
)

// DefaultBounds returns the default model domain: latitudes 10 to 90 and all
// longitudes. X is longitude and Y is latitude, in degrees.
func DefaultBounds() *geom.Bounds {
	return &geom.Bounds{Min: geom.Point{X: 0, Y: 10}, Max: geom.Point{X: 360, Y: 90}}
}

// Mask selects the model domain out of the forcing grid.
type Mask struct {
	// LatIndex and LonIndex are the indices of the selected rows and
	// columns of the forcing grid.
	LatIndex, LonIndex []int

	// Lat and Lon are the coordinates of the selected rows and columns.
	Lat, Lon []float64

	// active holds, for each selected cell, whether it is within the
	// region polygon. It is nil if there is no region.
	active []bool

	nLat, nLon int
}

// NewMask returns a mask selecting the cells of the grid with the given
// coordinates whose centres are within b. Longitudes may use either the
// [0, 360) or the [-180, 180) convention. If region is not nil, cells whose
// centres are outside of it are marked inactive.
func NewMask(lat, lon []float64, b *geom.Bounds, region geom.Polygonal) (*Mask, error) {
	m := &Mask{nLat: len(lat), nLon: len(lon)}
	for j, y := range lat {
		if y >= b.Min.Y && y <= b.Max.Y {
			m.LatIndex = append(m.LatIndex, j)
			m.Lat = append(m.Lat, y)
		}
	}
	for i, x := range lon {
		if lonWithin(x, b.Min.X, b.Max.X) {
			m.LonIndex = append(m.LonIndex, i)
			m.Lon = append(m.Lon, x)
		}
	}
	if len(m.LatIndex) == 0 || len(m.LonIndex) == 0 {
		return nil, fmt.Errorf("btim: the domain bounds %v do not contain any grid cells", *b)
	}
	if p, ok := region.(geom.Polygon); ok && len(p) == 0 {
		region = nil
	}
	if region != nil {
		m.active = make([]bool, 0, m.Len())
		for _, y := range m.Lat {
			for _, x := range m.Lon {
				p := geom.Point{X: lon180(x), Y: y}
				m.active = append(m.active, p.Within(region) != geom.Outside)
			}
		}
	}
	return m, nil
}

// lon360 returns x in the range [0, 360).
func lon360(x float64) float64 {
	x = math.Mod(x, 360)
	if x < 0 {
		x += 360
	}
	return x
}

// lon180 returns x in the range [-180, 180).
func lon180(x float64) float64 {
	x = lon360(x)
	if x >= 180 {
		x -= 360
	}
	return x
}

// lonWithin returns whether longitude x is between min and max, going
// eastward from min.
func lonWithin(x, min, max float64) bool {
	if max-min >= 360 {
		return true
	}
	x, min, max = lon360(x), lon360(min), lon360(max)
	if min <= max {
		return x >= min && x <= max
	}
	return x >= min || x <= max
}

// Shape returns the shape of the masked grid.
func (m *Mask) Shape() []int { return []int{len(m.LatIndex), len(m.LonIndex)} }

// Len returns the number of cells in the masked grid.
func (m *Mask) Len() int { return len(m.LatIndex) * len(m.LonIndex) }

// Active returns whether masked cell i is within the region.
func (m *Mask) Active(i int) bool { return m.active == nil || m.active[i] }

// Apply returns the part of full, a field on the full forcing grid, that is
// within the mask.
func (m *Mask) Apply(full *sparse.DenseArray) (*sparse.DenseArray, error) {
	if len(full.Shape) != 2 || full.Shape[0] != m.nLat || full.Shape[1] != m.nLon {
		return nil, fmt.Errorf("btim: applying mask: field shape %v does not match grid shape [%d %d]",
			full.Shape, m.nLat, m.nLon)
	}
	o := sparse.ZerosDense(m.Shape()...)
	k := 0
	for _, j := range m.LatIndex {
		for _, i := range m.LonIndex {
			o.Elements[k] = full.Elements[j*m.nLon+i]
			k++
		}
	}
	return o, nil
}

// ClearInactive sets the values of data, a masked field, to zero in cells
// outside of the region.
func (m *Mask) ClearInactive(data *sparse.DenseArray) {
	if m.active == nil {
		return
	}
	for i, a := range m.active {
		if !a {
			data.Elements[i] = 0
		}
	}
}

// ReadRegion returns the region in the given GeoJSON file, with longitude as
// X and latitude as Y. The file may hold a Polygon or a MultiPolygon; a
// point is in a MultiPolygon region when it is in any of its parts.
func ReadRegion(filename string) (geom.Polygonal, error) {
	f, err := os.Open(os.ExpandEnv(filename))
	if err != nil {
		return nil, fmt.Errorf("btim: opening region file: %v", err)
	}
	defer f.Close()
	b, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("btim: reading region file: %v", err)
	}
	var g geojson.Geometry
	if err = json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("btim: decoding region file %s: %v", filename, err)
	}
	switch g.Type {
	case "Polygon":
		return decodePolygon(&g, filename)
	case "MultiPolygon":
		// The geojson package only decodes single polygons, so each part
		// is decoded separately.
		parts, ok := g.Coordinates.([]interface{})
		if !ok || len(parts) == 0 {
			return nil, fmt.Errorf("btim: decoding region file %s: invalid MultiPolygon coordinates", filename)
		}
		mp := make(geom.MultiPolygon, len(parts))
		for i, c := range parts {
			p, err := decodePolygon(&geojson.Geometry{Type: "Polygon", Coordinates: c}, filename)
			if err != nil {
				return nil, err
			}
			mp[i] = p
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("btim: region file %s: invalid region geometry type %q", filename, g.Type)
	}
}

func decodePolygon(g *geojson.Geometry, filename string) (geom.Polygon, error) {
	j, err := geojson.FromGeoJSON(g)
	if err != nil {
		return nil, fmt.Errorf("btim: decoding region file %s: %v", filename, err)
	}
	p, ok := j.(geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("btim: region file %s: invalid region geometry type %T", filename, j)
	}
	return p, nil
}
