package base

import "github.com/sugarme/gotch/nn"

// NewScoreHead creates a 1x1 convolution mapping cIn feature channels to
// per-class scores.
func NewScoreHead(p *nn.Path, cIn, nClasses int64) *nn.Conv2D {
	return Conv2d(p, cIn, nClasses, 1, 0, 1)
}
