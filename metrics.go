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
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and histograms describing a model run. They are
// registered with a private registry so that several runs may be active in
// one process.
type Metrics struct {
	Registry *prometheus.Registry

	MonthsCompleted    prometheus.Counter
	IntervalsCompleted prometheus.Counter
	ForcingReads       *prometheus.CounterVec // labels: variable={temperature,precipitation}
	IntervalDuration   prometheus.Histogram
	MonthDuration      prometheus.Histogram
	SnowCoveredCells   prometheus.Gauge
}

// NewMetrics creates and registers the model run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MonthsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btim",
			Name:      "months_completed_total",
			Help:      "Total months of the snow season simulated.",
		}),
		IntervalsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btim",
			Name:      "intervals_completed_total",
			Help:      "Total forcing intervals integrated.",
		}),
		ForcingReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btim",
			Name:      "forcing_reads_total",
			Help:      "Forcing fields read by variable.",
		}, []string{"variable"}),
		IntervalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "btim",
			Name:      "interval_duration_seconds",
			Help:      "Duration of the integration of one forcing interval, excluding input and output.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		MonthDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "btim",
			Name:      "month_duration_seconds",
			Help:      "Duration of one month of simulation, including input and output.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		SnowCoveredCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "btim",
			Name:      "snow_covered_cells",
			Help:      "Number of grid cells with snow at the end of the last month.",
		}),
	}
	m.Registry.MustRegister(
		m.MonthsCompleted,
		m.IntervalsCompleted,
		m.ForcingReads,
		m.IntervalDuration,
		m.MonthDuration,
		m.SnowCoveredCells,
	)
	return m
}

// WriteTextfile writes the current metric values to filename in the
// Prometheus text exposition format.
func (m *Metrics) WriteTextfile(filename string) error {
	return prometheus.WriteToTextfile(filename, m.Registry)
}
