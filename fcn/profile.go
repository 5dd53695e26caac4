package fcn

import (
	"github.com/sugarme/fcn/encoder"
	"github.com/sugarme/fcn/flops"
)

func headLayers(config Config, cIn int64) []flops.Layer {
	switch config.Backbone {
	case ResNet34:
		return []flops.Layer{
			flops.ConvLayer("classifier.0", cIn, config.Hidden, 3, 1, 1),
			flops.ConvLayer("classifier.3", config.Hidden, config.NClasses, 1, 0, 1),
		}
	default:
		return []flops.Layer{
			flops.ConvLayer("classifier.0", cIn, config.Hidden, 7, 0, 1),
			flops.ConvLayer("classifier.3", config.Hidden, config.Hidden, 1, 0, 1),
			flops.ConvLayer("classifier.6", config.Hidden, config.NClasses, 1, 0, 1),
		}
	}
}

// Profile counts multiply-accumulates of convolutions of a network built
// from config for a single 3 x h x w input. Bilinear upsampling and
// element-wise ops are ignored.
func Profile(config Config, h, w int64) (flops.Report, error) {
	if err := config.Validate(); err != nil {
		return flops.Report{}, err
	}

	stageLayers := encoder.VGG16Layers()
	if config.Backbone == ResNet34 {
		stageLayers = encoder.ResNet34Layers()
	}

	return profile(config, stageLayers, h, w), nil
}

func profile(config Config, stageLayers [][]flops.Layer, h, w int64) flops.Report {
	var (
		report flops.Report
		stages []flops.Shape
	)
	shape := flops.Shape{C: 3, H: h, W: w}
	for _, layers := range stageLayers {
		var r flops.Report
		r, shape = flops.Walk(layers, shape)
		report = report.Merge(r)
		stages = append(stages, shape)
	}

	head, _ := flops.Walk(headLayers(config, shape.C), shape)
	report = report.Merge(head)

	if config.Variant == FCN16s || config.Variant == FCN8s {
		l := flops.ConvLayer("score_pool4", stages[3].C, config.NClasses, 1, 0, 1)
		r, _ := flops.Walk([]flops.Layer{l}, stages[3])
		report = report.Merge(r)
	}
	if config.Variant == FCN8s {
		l := flops.ConvLayer("score_pool3", stages[2].C, config.NClasses, 1, 0, 1)
		r, _ := flops.Walk([]flops.Layer{l}, stages[2])
		report = report.Merge(r)
	}

	return report
}

// Profile counts multiply-accumulates of the model for a 3 x h x w input.
func (m *FCN) Profile(h, w int64) flops.Report {
	return profile(m.config, m.encoder.Layers(), h, w)
}
