package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sugarme/fcn/fcn"
)

var flopsDetail bool

var flopsCmd = &cobra.Command{
	Use:   "flops",
	Short: "Count multiply-accumulates of FCN variants for the bench input size",
	RunE: func(cmd *cobra.Command, args []string) error {
		mc, err := cfg.FCNConfig()
		if err != nil {
			return err
		}

		h, w := cfg.Bench.Height, cfg.Bench.Width
		for _, v := range fcn.Variants() {
			mc.Variant = v
			report, err := fcn.Profile(mc, h, w)
			if err != nil {
				return err
			}

			if flopsDetail {
				for _, e := range report.Entries {
					fmt.Printf("%-24v %-6v %-16v %-16v %12d\n", e.Name, e.Op, e.In, e.Out, e.MACs)
				}
			}
			fmt.Printf("%v (%v) %vx%v: %.2f GMACs\n", v, mc.Backbone, h, w, report.GMACs())
			logger.Debug("profiled", zap.Stringer("variant", v), zap.Int("layers", len(report.Entries)))
		}

		return nil
	},
}

func init() {
	flopsCmd.Flags().BoolVar(&flopsDetail, "detail", false, "print per-layer counts")
}
