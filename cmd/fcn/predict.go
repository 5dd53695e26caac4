package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
	"go.uber.org/zap"

	"github.com/sugarme/fcn/encoder"
	"github.com/sugarme/fcn/fcn"
	"github.com/sugarme/fcn/imgutil"
	"github.com/sugarme/fcn/metric"
)

var (
	predictSize       int
	predictCheckpoint string
)

var predictCmd = &cobra.Command{
	Use:   "predict IMAGE OUT",
	Short: "Segment an image and save colour-coded label mask as PNG",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if predictSize < 1 {
			return fmt.Errorf("invalid size: %v", predictSize)
		}
		mc, err := cfg.FCNConfig()
		if err != nil {
			return err
		}

		vs := nn.NewVarStore(device)
		net, err := buildModel(vs, mc, predictCheckpoint == "" && cfg.Model.Weights != "")
		if err != nil {
			return err
		}
		if predictCheckpoint != "" {
			if err := vs.Load(predictCheckpoint); err != nil {
				return fmt.Errorf("load checkpoint %q: %w", predictCheckpoint, err)
			}
			logger.Info("checkpoint loaded", zap.String("path", predictCheckpoint))
		}

		x, size, err := imgutil.LoadTensor(args[0], int64(predictSize))
		if err != nil {
			return err
		}
		labels := predict(net, mc, x)

		mask, err := imgutil.Colorize(labels, predictSize, predictSize, imgutil.Palette(int(mc.NClasses)))
		if err != nil {
			return err
		}
		if err := imgutil.SavePNG(imgutil.ResizeMask(mask, size.X, size.Y), args[1]); err != nil {
			return err
		}
		logger.Info("mask saved", zap.String("path", args[1]), zap.Int("width", size.X), zap.Int("height", size.Y))

		return logShares(labels, mc.NClasses)
	},
}

func init() {
	predictCmd.Flags().IntVar(&predictSize, "size", 512, "network input size (image is resized to size x size)")
	predictCmd.Flags().StringVar(&predictCheckpoint, "checkpoint", "", "trained FCN weights (.ot file)")
}

// predict returns per-pixel labels of a single image tensor [3 H W]. The
// image tensor is consumed.
func predict(net *fcn.FCN, mc fcn.Config, x *ts.Tensor) []int64 {
	batch := x.MustUnsqueeze(0, true).MustTo(device, true)
	// ResNet encoder standardizes its input itself.
	if mc.Backbone == fcn.VGG16 {
		n := encoder.Normalize(batch)
		batch.MustDrop()
		batch = n
	}

	var labels []int64
	ts.NoGrad(func() {
		logits := net.ForwardT(batch, false)
		labels, _ = metric.Argmax(logits)
		logits.MustDrop()
	})
	batch.MustDrop()

	return labels
}

// logShares logs fraction of pixels assigned to each predicted class.
func logShares(labels []int64, nClasses int64) error {
	var names []string
	if cfg.Model.Labels != "" {
		var err error
		names, err = imgutil.ReadClasses(cfg.Model.Labels)
		if err != nil {
			return err
		}
	}

	counts := make([]int, nClasses)
	for _, l := range labels {
		counts[l]++
	}
	for c, n := range counts {
		if n == 0 {
			continue
		}
		name := fmt.Sprint(c)
		if c < len(names) {
			name = names[c]
		}
		logger.Info("class share", zap.String("class", name), zap.Float64("share", float64(n)/float64(len(labels))))
	}

	return nil
}
