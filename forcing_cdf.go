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
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// cdfFile is a forcing file in the NetCDF classic format.
type cdfFile struct {
	f  *os.File
	ff *cdf.File
}

func openCDFFile(path string) (forcingFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ff, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading NetCDF header: %v", err)
	}
	return &cdfFile{f: f, ff: ff}, nil
}

func (c *cdfFile) coords(latName, lonName string) (lat, lon []float64, err error) {
	la, err := readNCFStatic(latName, c.ff)
	if err != nil {
		return nil, nil, err
	}
	lo, err := readNCFStatic(lonName, c.ff)
	if err != nil {
		return nil, nil, err
	}
	return la.Elements, lo.Elements, nil
}

func (c *cdfFile) steps(name string) (int, error) {
	d := c.ff.Header.Lengths(name)
	if len(d) == 0 {
		return 0, fmt.Errorf("variable %s not in file", name)
	}
	if len(d) != 3 {
		return 0, fmt.Errorf("variable %s has %d dimensions; it should have 3 (time, latitude, longitude)", name, len(d))
	}
	return numSteps(name, c.ff, c.f)
}

func (c *cdfFile) read(name string, step int) (*sparse.DenseArray, error) {
	return readNCFStep(name, c.ff, step)
}

func (c *cdfFile) close() error { return c.f.Close() }
