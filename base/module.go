package base

import (
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
)

// Identity is a nn.Module placeholder.
// It forwards the input tensor as such.
type Identity struct{}

// Forward implement nn.Module for Identity struct
func (i *Identity) Forward(x *ts.Tensor) *ts.Tensor {
	return x.MustShallowClone()
}

// Forward implement nn.ModuleT for Identity struct.
func (i *Identity) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	return x.MustShallowClone()
}

// NewIdentity creates a new Identity struct.
func NewIdentity() *Identity {
	return &Identity{}
}

// Conv2d creates Conv2D module.
func Conv2d(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Conv2dNoBias creates Conv2D with no bias.
func Conv2dNoBias(p *nn.Path, cIn, cOut, ksize, padding, stride int64) *nn.Conv2D {
	config := nn.DefaultConv2DConfig()
	config.Bias = false
	config.Stride = []int64{stride, stride}
	config.Padding = []int64{padding, padding}

	return nn.NewConv2D(p, cIn, cOut, ksize, config)
}

// Relu returns a ReLU activation module.
func Relu() nn.Func {
	return nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		return xs.MustRelu(false)
	})
}

// MaxPool2dCeil creates a max-pool with kernel size = stride = ksize, no
// padding and ceil rounding of the output size.
func MaxPool2dCeil(ksize int64) nn.Func {
	return nn.NewFunc(func(xs *ts.Tensor) *ts.Tensor {
		k := []int64{ksize, ksize}
		return xs.MustMaxPool2d(k, k, []int64{0, 0}, []int64{1, 1}, true, false)
	})
}

// Dropout2d zeroes whole channels with probability p in train mode.
func Dropout2d(p float64) nn.FuncT {
	return nn.NewFuncT(func(xs *ts.Tensor, train bool) *ts.Tensor {
		if !train || p == 0 {
			return xs.MustShallowClone()
		}
		return ts.MustFeatureDropout(xs, p, train)
	})
}
