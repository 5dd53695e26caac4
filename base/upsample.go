package base

import (
	"reflect"

	ts "github.com/sugarme/gotch/tensor"
)

// UpsampleBilinear resizes x ([N C H W]) to spatial size using bilinear
// interpolation with aligned corners.
//
// NOTE. It always returns a new tensor sharing the autograd graph of x.
// Caller is responsible to drop it.
func UpsampleBilinear(x *ts.Tensor, size []int64) *ts.Tensor {
	xSize := x.MustSize()
	if reflect.DeepEqual(xSize[2:], size) {
		return x.MustShallowClone()
	}

	return x.MustUpsampleBilinear2d(size, true, nil, nil, false)
}

// UpsampleLike resizes x to the spatial size of ref.
func UpsampleLike(x, ref *ts.Tensor) *ts.Tensor {
	refSize := ref.MustSize()
	return UpsampleBilinear(x, refSize[2:])
}
