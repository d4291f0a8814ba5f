/*
   Copyright The Soci Snapshotter Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/awslabs/syscompress/tracing"
	"github.com/containerd/log"
	"github.com/montanaflynn/stats"
	"github.com/urfave/cli"
	"go.opentelemetry.io/otel/attribute"
)

const iterationsFlag = "iterations"

type benchStats struct {
	Path         string    `json:"path"`
	Format       string    `json:"format"`
	Size         int64     `json:"size"`
	ReadSize     int64     `json:"readSize"`
	Times        []float64 `json:"times"`
	StdDev       float64   `json:"stdDev"`
	Mean         float64   `json:"mean"`
	Min          float64   `json:"min"`
	Pct50        float64   `json:"pct50"`
	Pct90        float64   `json:"pct90"`
	Pct99        float64   `json:"pct99"`
	Max          float64   `json:"max"`
	MeanMBPerSec float64   `json:"meanMBPerSec"`
}

var benchCommand = cli.Command{
	Name:      "bench",
	Usage:     "time repeated full decompression of files",
	ArgsUsage: "<file> [<file>...]",
	Flags: append([]cli.Flag{
		cli.IntFlag{
			Name:  iterationsFlag,
			Usage: "number of timed passes per file; overrides bench.iterations in the config file",
		},
		cli.BoolFlag{
			Name:  jsonFlag,
			Usage: "print as json",
		},
	}, streamFlags...),
	Action: func(c *cli.Context) error {
		if c.NArg() == 0 {
			return fmt.Errorf("at least one file is required")
		}
		cfg := appConfig(c)
		iterations := cfg.BenchConfig.Iterations
		if v := c.Int(iterationsFlag); v > 0 {
			iterations = v
		}

		var results []benchStats
		for _, path := range c.Args() {
			s, err := benchFile(c, path, iterations, cfg.BenchConfig.ReadSize)
			if err != nil {
				return err
			}
			results = append(results, s)
		}

		if c.Bool(jsonFlag) {
			b, err := json.MarshalIndent(results, "", " ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, string(b))
			return err
		}
		for _, s := range results {
			fmt.Fprintf(c.App.Writer, "%s (%s, %d bytes): mean %.3fms p50 %.3fms p90 %.3fms p99 %.3fms, %.1f MB/s\n",
				s.Path, s.Format, s.Size, s.Mean, s.Pct50, s.Pct90, s.Pct99, s.MeanMBPerSec)
		}
		return nil
	},
}

// benchFile reopens path for each pass so that every pass starts with a cold
// chunk cache. Times are in milliseconds.
func benchFile(c *cli.Context, path string, iterations int, readSize int64) (_ benchStats, retErr error) {
	ctx, span := tracing.StartSpan(appContext(c), "wof-cat.bench",
		attribute.String("path", path), attribute.Int("iterations", iterations))
	defer func() { tracing.End(span, retErr) }()

	s := benchStats{Path: path, ReadSize: readSize}
	buf := make([]byte, readSize)
	for i := 0; i < iterations; i++ {
		wc, closeFn, err := openFile(ctx, c, path)
		if err != nil {
			return s, err
		}
		s.Format, s.Size = wc.Format().String(), wc.Size()

		r := wc.ReaderAt(ctx)
		start := time.Now()
		var off int64
		for off < wc.Size() {
			n, err := r.ReadAt(buf, off)
			off += int64(n)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				closeFn()
				return s, fmt.Errorf("failed to decompress %q at offset %d: %w", path, off, err)
			}
		}
		s.Times = append(s.Times, float64(time.Since(start).Microseconds())/1000)
		closeFn()
		log.G(ctx).WithField("path", path).WithField("iteration", i+1).Debug("bench pass done")
	}
	if err := s.calculate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s *benchStats) calculate() error {
	var err error
	if s.StdDev, err = stats.StandardDeviation(s.Times); err != nil {
		return fmt.Errorf("error calculating std dev: %w", err)
	}
	if s.Mean, err = stats.Mean(s.Times); err != nil {
		return fmt.Errorf("error calculating mean: %w", err)
	}
	if s.Min, err = stats.Min(s.Times); err != nil {
		return fmt.Errorf("error calculating min: %w", err)
	}
	if s.Max, err = stats.Max(s.Times); err != nil {
		return fmt.Errorf("error calculating max: %w", err)
	}
	for _, p := range []struct {
		dst *float64
		pct float64
	}{{&s.Pct50, 50}, {&s.Pct90, 90}, {&s.Pct99, 99}} {
		if *p.dst, err = stats.Percentile(s.Times, p.pct); err != nil {
			return fmt.Errorf("error calculating pct%v: %w", p.pct, err)
		}
	}
	if s.Mean > 0 {
		s.MeanMBPerSec = float64(s.Size) / (1 << 20) / (s.Mean / 1000)
	}
	return nil
}
