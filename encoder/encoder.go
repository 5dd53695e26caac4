package encoder

import (
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/fcn/flops"
)

// NumStages is number of feature maps returned by an Encoder.
const NumStages = 5

// Encoder is a classification backbone with its fully-connected part
// stripped off.
type Encoder interface {
	// ForwardAll returns output of every stage, from the shallowest to the
	// deepest. Caller owns returned tensors.
	ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor
	// Channels returns number of channels of each stage output.
	Channels() []int64
	// Layers describes each stage for profiling.
	Layers() [][]flops.Layer
}
