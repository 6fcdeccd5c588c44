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
	"sync"

	"github.com/ctessum/sparse"
	"github.com/golang/groupcache/lru"
)

// MonthReader reads the forcing data of one month.
type MonthReader interface {
	// Coords returns the latitude and longitude coordinates of the grid.
	Coords() (lat, lon []float64)

	// Steps returns the number of time steps of variable v in the month.
	Steps(v Variable) int

	// Read returns time step step of variable v on the full grid, with
	// shape [lat, lon], in the native units of the data.
	Read(v Variable, step int) (*sparse.DenseArray, error)

	Close() error
}

// forcingFile is one open forcing data file.
type forcingFile interface {
	coords(latName, lonName string) (lat, lon []float64, err error)
	steps(name string) (int, error)
	read(name string, step int) (*sparse.DenseArray, error)
	close() error
}

// fileCache holds open forcing files. The least recently used file is
// closed when the cache is full.
type fileCache struct {
	mu    sync.Mutex
	cache *lru.Cache
	open  func(path string) (forcingFile, error)
}

func newFileCache(maxOpen int, open func(path string) (forcingFile, error)) *fileCache {
	c := &fileCache{cache: lru.New(maxOpen), open: open}
	c.cache.OnEvicted = func(_ lru.Key, v interface{}) {
		v.(forcingFile).close()
	}
	return c
}

// get returns the open file at path, opening it if necessary.
func (c *fileCache) get(path string) (forcingFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.cache.Get(path); ok {
		return f.(forcingFile), nil
	}
	f, err := c.open(path)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, f)
	return f, nil
}

// closeAll closes all of the files in the cache.
func (c *fileCache) closeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.cache.Len() > 0 {
		c.cache.RemoveOldest()
	}
}

// filePart is one file of a month of data for one variable, holding time
// steps [first, first+n).
type filePart struct {
	path     string
	first, n int
}

// monthReader reads a month of data split over one or more files per
// variable. The files of a variable are concatenated along time.
type monthReader struct {
	src      *ForcingSource
	lat, lon []float64
	parts    map[Variable][]filePart
	files    *fileCache
}

// maxOpenFiles is the maximum number of forcing files held open at once.
const maxOpenFiles = 16

// OpenMonth opens the forcing data of month m. The temperature and
// precipitation data must share a grid.
func (s *ForcingSource) OpenMonth(m SeasonMonth) (MonthReader, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	open := openCDFFile
	if s.Format == NetCDF4 {
		open = openNC4File
	}
	r := &monthReader{
		src:   s,
		parts: make(map[Variable][]filePart),
		files: newFileCache(maxOpenFiles, open),
	}
	for _, v := range []Variable{Temperature, Precipitation} {
		paths, err := s.MonthFiles(v, m)
		if err != nil {
			r.Close()
			return nil, err
		}
		first := 0
		for _, path := range paths {
			f, err := r.files.get(path)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("btim: opening forcing file %s: %v", path, err)
			}
			n, err := f.steps(s.varName(v))
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("btim: forcing file %s: %v", path, err)
			}
			lat, lon, err := f.coords(s.LatName, s.LonName)
			if err != nil {
				r.Close()
				return nil, fmt.Errorf("btim: forcing file %s: %v", path, err)
			}
			if r.lat == nil {
				r.lat, r.lon = lat, lon
			} else if len(lat) != len(r.lat) || len(lon) != len(r.lon) {
				r.Close()
				return nil, fmt.Errorf("btim: forcing file %s has a %dx%d grid but the other %v files have a %dx%d grid",
					path, len(lat), len(lon), m, len(r.lat), len(r.lon))
			}
			r.parts[v] = append(r.parts[v], filePart{path: path, first: first, n: n})
			first += n
		}
	}
	return r, nil
}

func (r *monthReader) Coords() (lat, lon []float64) { return r.lat, r.lon }

func (r *monthReader) Steps(v Variable) int {
	parts := r.parts[v]
	if len(parts) == 0 {
		return 0
	}
	last := parts[len(parts)-1]
	return last.first + last.n
}

func (r *monthReader) Read(v Variable, step int) (*sparse.DenseArray, error) {
	for _, p := range r.parts[v] {
		if step < p.first || step >= p.first+p.n {
			continue
		}
		f, err := r.files.get(p.path)
		if err != nil {
			return nil, fmt.Errorf("btim: opening forcing file %s: %v", p.path, err)
		}
		data, err := f.read(r.src.varName(v), step-p.first)
		if err != nil {
			return nil, fmt.Errorf("btim: forcing file %s: %v", p.path, err)
		}
		if len(data.Shape) != 2 || data.Shape[0] != len(r.lat) || data.Shape[1] != len(r.lon) {
			return nil, fmt.Errorf("btim: forcing file %s: variable %s has shape %v but the grid is %dx%d",
				p.path, r.src.varName(v), data.Shape, len(r.lat), len(r.lon))
		}
		return data, nil
	}
	return nil, fmt.Errorf("btim: forcing %s: %v time step %d is beyond the %d steps of the month",
		r.src.Name, v, step, r.Steps(v))
}

func (r *monthReader) Close() error {
	r.files.closeAll()
	return nil
}
