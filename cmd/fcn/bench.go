package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/spf13/cobra"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sugarme/fcn/fcn"
	"github.com/sugarme/fcn/metric"
)

var benchVariants []string

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time forward passes of FCN variants on random input",
	RunE: func(cmd *cobra.Command, args []string) error {
		mc, err := cfg.FCNConfig()
		if err != nil {
			return err
		}

		variants := fcn.Variants()
		if len(benchVariants) > 0 {
			variants = variants[:0]
			for _, s := range benchVariants {
				v, err := fcn.ParseVariant(s)
				if err != nil {
					return err
				}
				variants = append(variants, v)
			}
		}

		var results []benchResult
		for _, v := range variants {
			mc.Variant = v
			res, err := runBench(mc)
			if err != nil {
				return err
			}
			results = append(results, res...)
		}

		if cfg.Bench.CSV != "" {
			if err := writeCSV(results, cfg.Bench.CSV); err != nil {
				return err
			}
			logger.Info("results saved", zap.String("csv", cfg.Bench.CSV))
		}
		if cfg.Bench.Plot != "" {
			if err := plotBench(results, cfg.Bench.Plot); err != nil {
				return err
			}
			logger.Info("chart saved", zap.String("plot", cfg.Bench.Plot))
		}

		return nil
	},
}

var (
	benchRuns int
	benchCSV  string
	benchPlot string
)

func init() {
	benchCmd.Flags().StringSliceVar(&benchVariants, "variant", nil, "variants to benchmark (default all)")
	benchCmd.Flags().IntVar(&benchRuns, "runs", 1, "number of forward passes per variant")
	benchCmd.Flags().StringVar(&benchCSV, "csv", "", "write results to CSV file")
	benchCmd.Flags().StringVar(&benchPlot, "plot", "", "write bar chart of mean forward time to PNG file")
	benchCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("runs") {
			if benchRuns < 1 {
				return fmt.Errorf("invalid runs: %v", benchRuns)
			}
			cfg.Bench.Runs = benchRuns
		}
		if cmd.Flags().Changed("csv") {
			cfg.Bench.CSV = benchCSV
		}
		if cmd.Flags().Changed("plot") {
			cfg.Bench.Plot = benchPlot
		}
		return nil
	}
}

type benchResult struct {
	Variant string
	Run     int
	Seconds float64
	Loss    float64
	GMACs   float64
}

func runBench(mc fcn.Config) ([]benchResult, error) {
	b := cfg.Bench
	vs := nn.NewVarStore(device)
	net, err := buildModel(vs, mc, false)
	if err != nil {
		return nil, err
	}

	report, err := fcn.Profile(mc, b.Height, b.Width)
	if err != nil {
		return nil, err
	}
	gmacs := report.GMACs() * float64(b.Batch)

	input := ts.MustRand([]int64{b.Batch, 3, b.Height, b.Width}, gotch.Float, device)
	target := ts.MustOnes([]int64{b.Batch, b.Height, b.Width}, gotch.Int64, device)
	defer input.MustDrop()
	defer target.MustDrop()

	var results []benchResult
	for i := 0; i < b.Runs; i++ {
		var (
			elapsed time.Duration
			lossVal float64
		)
		ts.NoGrad(func() {
			start := time.Now()
			logit := net.ForwardT(input, false)
			elapsed = time.Since(start)

			loss := metric.CrossEntropy2d(logit, target, nil, metric.ReductionMean)
			lossVal = loss.Float64Values()[0]
			logit.MustDrop()
			loss.MustDrop()
		})

		logger.Info("forward",
			zap.Stringer("variant", mc.Variant),
			zap.Int("run", i),
			zap.Duration("elapsed", elapsed),
			zap.Float64("loss", lossVal),
			zap.Float64("gmacs", gmacs),
		)
		results = append(results, benchResult{
			Variant: mc.Variant.String(),
			Run:     i,
			Seconds: elapsed.Seconds(),
			Loss:    lossVal,
			GMACs:   gmacs,
		})
	}

	return results, nil
}

func writeCSV(results []benchResult, path string) error {
	df := dataframe.LoadStructs(results)
	if df.Err != nil {
		return df.Err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return df.WriteCSV(f)
}

// meanSeconds averages forward time per variant, keeping first-seen order.
func meanSeconds(results []benchResult) ([]string, []float64) {
	var (
		names  []string
		sums   = make(map[string]float64)
		counts = make(map[string]int)
	)
	for _, r := range results {
		if _, ok := counts[r.Variant]; !ok {
			names = append(names, r.Variant)
		}
		sums[r.Variant] += r.Seconds
		counts[r.Variant]++
	}

	means := make([]float64, len(names))
	for i, n := range names {
		means[i] = sums[n] / float64(counts[n])
	}
	return names, means
}

func plotBench(results []benchResult, path string) error {
	names, means := meanSeconds(results)
	if len(names) == 0 {
		return fmt.Errorf("no benchmark results to plot")
	}

	p, err := plot.New()
	if err != nil {
		return err
	}
	p.Title.Text = "FCN forward time"
	p.Y.Label.Text = "seconds"

	bars, err := plotter.NewBarChart(plotter.Values(means), vg.Points(30))
	if err != nil {
		return err
	}
	p.Add(bars)
	p.NominalX(names...)

	return p.Save(4*vg.Inch, 4*vg.Inch, path)
}
