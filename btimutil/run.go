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

package btimutil

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/btim"
	"github.com/spf13/cobra"
)

// Run runs the model as configured in c, logging to both the command's
// output and c.LogFile. An interrupt signal cancels the run at the next
// forcing interval.
func Run(cmd *cobra.Command, c *Config) error {
	startTime := time.Now()

	logfile, err := os.Create(c.LogFile)
	if err != nil {
		return fmt.Errorf("btim: problem creating log file: %v", err)
	}
	defer logfile.Close()

	log := logrus.New()
	log.Out = io.MultiWriter(cmd.OutOrStdout(), logfile)
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	log.WithFields(logrus.Fields{
		"version":    btim.Version,
		"experiment": c.ID,
		"season":     btim.SeasonTag(c.Year),
		"output_dir": c.OutputDir,
	}).Info("starting B-TIM")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c.Season.Log = log
	c.Season.Metrics = btim.NewMetrics()
	_, _, err = c.Season.Run(ctx, c.Year)
	if c.MetricsFile != "" {
		if merr := c.Season.Metrics.WriteTextfile(c.MetricsFile); merr != nil {
			log.WithError(merr).Error("writing metrics")
		}
	}
	if err != nil {
		log.WithError(err).Error("run failed")
		return err
	}
	log.WithField("elapsed", time.Since(startTime).Round(time.Second)).Info("B-TIM completed successfully")
	return nil
}
