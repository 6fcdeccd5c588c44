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
	"context"
	"fmt"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scaler adjusts standardized forcing data, for example to correct it
// towards a target climatology.
type Scaler interface {
	// Scale returns the adjusted version of data, a field of variable v
	// during month m on the masked grid with the given coordinates.
	Scale(ctx context.Context, m SeasonMonth, v Variable, lat, lon []float64, data *sparse.DenseArray) (*sparse.DenseArray, error)
}

// Season runs the snowpack model over a snow season.
type Season struct {
	Params  Params
	Forcing *ForcingSource

	// Open opens the forcing data of one month. If nil, Forcing.OpenMonth
	// is used.
	Open func(m SeasonMonth) (MonthReader, error)

	// Bounds is the latitude-longitude window of the model domain. If nil,
	// DefaultBounds is used.
	Bounds *geom.Bounds

	// Region optionally restricts snow to cells within a polygon.
	Region geom.Polygonal

	// LandCover holds the land classes, either on the full forcing grid or
	// on the masked grid. If nil, every cell has class DefaultClass.
	LandCover    *LandCover
	DefaultClass LandClass

	// LeapDays specifies whether February has 29 days in leap years.
	LeapDays bool

	// Scaler optionally adjusts the forcing.
	Scaler Scaler

	Writer  Writer
	Log     logrus.FieldLogger
	Metrics *Metrics
}

// seasonRun holds the state of one execution of a season.
type seasonRun struct {
	*Season
	startYear int
	log       logrus.FieldLogger
	metrics   *Metrics
	mask      *Mask
	lc        *LandCover
	state     *State
	acc       *Accumulators
}

// Run simulates the snow season starting in August of startYear. Months are
// processed in order, each month's daily fields are written when the month
// is complete and the season accumulators are written at the end. Run
// returns the snowpack state at the end of the season and the accumulators.
func (s *Season) Run(ctx context.Context, startYear int) (*State, *Accumulators, error) {
	if err := s.Params.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.Forcing.Validate(); err != nil {
		return nil, nil, err
	}
	if s.Writer == nil {
		return nil, nil, fmt.Errorf("btim: no output writer")
	}
	r := &seasonRun{Season: s, startYear: startYear, log: s.Log, metrics: s.Metrics}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if r.metrics == nil {
		r.metrics = NewMetrics()
	}
	for _, m := range SeasonMonths(startYear) {
		if err := r.month(ctx, m); err != nil {
			return nil, nil, err
		}
	}
	if err := s.Writer.WriteAnnual(startYear, r.mask.Lat, r.mask.Lon, r.acc); err != nil {
		return nil, nil, err
	}
	r.log.WithFields(logrus.Fields{
		"season":         SeasonTag(startYear),
		"mean_ptot_m":    stat.Mean(r.acc.TotalPrecip.Elements, nil),
		"mean_sftot_m":   stat.Mean(r.acc.TotalSnowfall.Elements, nil),
		"max_swemax_mm":  floats.Max(r.acc.MaxSWE.Elements),
		"mean_swemax_mm": stat.Mean(r.acc.MaxSWE.Elements, nil),
	}).Info("season complete")
	return r.state, r.acc, nil
}

// setup creates the mask, land cover, state and accumulators from the
// coordinates of the first month of forcing.
func (r *seasonRun) setup(lat, lon []float64) error {
	b := r.Bounds
	if b == nil {
		b = DefaultBounds()
	}
	mask, err := NewMask(lat, lon, b, r.Region)
	if err != nil {
		return err
	}
	r.mask = mask
	switch {
	case r.LandCover == nil:
		r.lc = UniformCover(mask.Len(), r.DefaultClass)
	case r.LandCover.Len() == mask.Len():
		r.lc = r.LandCover
	default:
		if r.lc, err = r.LandCover.Subset(mask); err != nil {
			return err
		}
	}
	r.state = NewState(r.Params, mask.Shape()...)
	r.acc = NewAccumulators(mask.Shape()...)
	r.log.WithFields(logrus.Fields{
		"forcing":    r.Forcing.Name,
		"latitudes":  len(mask.Lat),
		"longitudes": len(mask.Lon),
		"cells":      mask.Len(),
	}).Info("initialized model domain")
	return nil
}

// read reads, masks, standardizes and scales one step of variable v.
func (r *seasonRun) read(ctx context.Context, mr MonthReader, m SeasonMonth, v Variable, step int) (*sparse.DenseArray, error) {
	raw, err := mr.Read(v, step)
	if err != nil {
		return nil, err
	}
	r.metrics.ForcingReads.WithLabelValues(v.String()).Inc()
	masked, err := r.mask.Apply(raw)
	if err != nil {
		return nil, fmt.Errorf("btim: %v %v step %d: %v", m, v, step, err)
	}
	data, err := r.Forcing.Standardize(masked, v)
	if err != nil {
		return nil, fmt.Errorf("btim: %v step %d: %v", m, step, err)
	}
	if r.Scaler != nil {
		if data, err = r.Scaler.Scale(ctx, m, v, r.mask.Lat, r.mask.Lon, data); err != nil {
			return nil, err
		}
	}
	if v == Precipitation {
		r.mask.ClearInactive(data)
	}
	return data, nil
}

// month simulates one month.
func (r *seasonRun) month(ctx context.Context, m SeasonMonth) error {
	start := time.Now()
	open := r.Open
	if open == nil {
		open = r.Forcing.OpenMonth
	}
	mr, err := open(m)
	if err != nil {
		return err
	}
	defer mr.Close()

	lat, lon := mr.Coords()
	if r.mask == nil {
		if err = r.setup(lat, lon); err != nil {
			return err
		}
	} else if len(lat) != r.mask.nLat || len(lon) != r.mask.nLon {
		return fmt.Errorf("btim: the %v forcing grid is %dx%d but earlier months are %dx%d",
			m, len(lat), len(lon), r.mask.nLat, r.mask.nLon)
	}

	f := r.Forcing
	days := DaysInMonth(m.Month, m.Year, r.LeapDays)
	nIntervals := days * f.PrecipFreq
	nTemps := days * f.TemperatureFreq
	if n := mr.Steps(Precipitation); n < nIntervals {
		return fmt.Errorf("btim: %v precipitation has %d time steps but %d are needed", m, n, nIntervals)
	}
	if n := mr.Steps(Temperature); n < nTemps {
		return fmt.Errorf("btim: %v temperature has %d time steps but %d are needed", m, n, nTemps)
	}
	k := f.TemperatureSamples()
	hours := f.IntervalHours()

	shape := r.mask.Shape()
	daily := &DailyFields{
		Lat:     r.mask.Lat,
		Lon:     r.mask.Lon,
		Depth:   sparse.ZerosDense(days, shape[0], shape[1]),
		Density: sparse.ZerosDense(days, shape[0], shape[1]),
	}

	samples := make([]*sparse.DenseArray, k+1)
	if samples[0], err = r.read(ctx, mr, m, Temperature, 0); err != nil {
		return err
	}
	for j := 0; j < nIntervals; j++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		for s := 1; s <= k; s++ {
			// The end of the last interval of the month holds the last
			// temperature of the month.
			step := j*k + s
			if step > nTemps-1 {
				step = nTemps - 1
			}
			if samples[s], err = r.read(ctx, mr, m, Temperature, step); err != nil {
				return err
			}
		}
		precip, err := r.read(ctx, mr, m, Precipitation, j)
		if err != nil {
			return err
		}
		if err = r.interval(samples, precip, hours); err != nil {
			return fmt.Errorf("btim: %v interval %d: %v", m, j, err)
		}
		samples[0] = samples[k]

		if (j+1)%f.PrecipFreq == 0 {
			day := (j+1)/f.PrecipFreq - 1
			n := len(r.state.Depth.Elements)
			copy(daily.Depth.Elements[day*n:(day+1)*n], r.state.Depth.Elements)
			copy(daily.Density.Elements[day*n:(day+1)*n], r.state.Density.Elements)
		}
	}
	if err = r.Writer.WriteDaily(r.startYear, m, daily); err != nil {
		return err
	}

	snowCells := 0
	for _, d := range r.state.Depth.Elements {
		if d > noSnowDepth {
			snowCells++
		}
	}
	r.metrics.MonthsCompleted.Inc()
	r.metrics.SnowCoveredCells.Set(float64(snowCells))
	r.metrics.MonthDuration.Observe(time.Since(start).Seconds())
	r.log.WithFields(logrus.Fields{
		"month":        m.String(),
		"days":         days,
		"intervals":    nIntervals,
		"snow_cells":   snowCells,
		"mean_depth_m": stat.Mean(r.state.Depth.Elements, nil),
		"max_swe_mm":   floats.Max(r.state.SWE.Elements),
		"elapsed":      time.Since(start).Round(time.Millisecond).String(),
	}).Info("month complete")
	return nil
}

// interval advances the model state over one forcing interval and updates
// the accumulators.
func (r *seasonRun) interval(samples []*sparse.DenseArray, precip *sparse.DenseArray, hours int) error {
	start := time.Now()
	hT, err := HourlyTemperature(samples, hours)
	if err != nil {
		return err
	}
	hP, err := HourlyPrecipitation(precip, hours)
	if err != nil {
		return err
	}
	snowfall, err := IntervalSnowfall(hT, hP, r.Params)
	if err != nil {
		return err
	}
	state, err := Brasnett(r.state, hT, hP, r.lc, r.Params)
	if err != nil {
		return err
	}
	r.state = state
	if err = r.acc.Add(precip, snowfall, state.SWE); err != nil {
		return err
	}
	r.metrics.IntervalsCompleted.Inc()
	r.metrics.IntervalDuration.Observe(time.Since(start).Seconds())
	return nil
}
