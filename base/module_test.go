package base_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/fcn/base"
)

func TestIdentity(t *testing.T) {
	x := ts.MustOfSlice([]float64{1, 2, 3})
	id := base.NewIdentity()

	y := id.ForwardT(x, true)
	assert.Equal(t, x.Float64Values(), y.Float64Values())

	x.MustDrop()
	y.MustDrop()
}

func TestMaxPool2dCeil(t *testing.T) {
	x := ts.MustRand([]int64{1, 2, 5, 7}, gotch.Float, gotch.CPU)
	pool := base.MaxPool2dCeil(2)

	y := pool.Forward(x)
	assert.Equal(t, []int64{1, 2, 3, 4}, y.MustSize())

	x.MustDrop()
	y.MustDrop()
}

func TestDropout2dEval(t *testing.T) {
	x := ts.MustOnes([]int64{1, 4, 3, 3}, gotch.Float, gotch.CPU)
	drop := base.Dropout2d(0.5)

	y := drop.ForwardT(x, false)
	assert.Equal(t, x.Float64Values(), y.Float64Values())

	x.MustDrop()
	y.MustDrop()
}

func TestDropout2dTrainZeroesChannels(t *testing.T) {
	x := ts.MustOnes([]int64{1, 64, 2, 2}, gotch.Float, gotch.CPU)
	drop := base.Dropout2d(0.5)

	y := drop.ForwardT(x, true)
	vals := y.Float64Values()
	require.Len(t, vals, 64*4)
	// every channel is either dropped entirely or scaled by 1/(1-p).
	for c := 0; c < 64; c++ {
		ch := vals[c*4 : (c+1)*4]
		for _, v := range ch[1:] {
			assert.Equal(t, ch[0], v)
		}
		assert.Contains(t, []float64{0, 2}, ch[0])
	}

	x.MustDrop()
	y.MustDrop()
}

func TestUpsampleBilinear(t *testing.T) {
	x := ts.MustOfSlice([]float32{0, 1, 2, 3}).MustView([]int64{1, 1, 2, 2}, true)

	same := base.UpsampleBilinear(x, []int64{2, 2})
	assert.Equal(t, x.Float64Values(), same.Float64Values())

	up := base.UpsampleBilinear(x, []int64{3, 3})
	assert.Equal(t, []int64{1, 1, 3, 3}, up.MustSize())
	vals := up.Float64Values()
	// aligned corners keep the corner pixels.
	assert.InDelta(t, 0.0, vals[0], 1e-6)
	assert.InDelta(t, 1.0, vals[2], 1e-6)
	assert.InDelta(t, 2.0, vals[6], 1e-6)
	assert.InDelta(t, 3.0, vals[8], 1e-6)
	assert.InDelta(t, 1.5, vals[4], 1e-6)

	x.MustDrop()
	same.MustDrop()
	up.MustDrop()
}

func TestUpsampleLike(t *testing.T) {
	x := ts.MustRand([]int64{2, 21, 4, 5}, gotch.Float, gotch.CPU)
	ref := ts.MustZeros([]int64{2, 3, 17, 23}, gotch.Float, gotch.CPU)

	y := base.UpsampleLike(x, ref)
	assert.Equal(t, []int64{2, 21, 17, 23}, y.MustSize())

	x.MustDrop()
	ref.MustDrop()
	y.MustDrop()
}

func TestScoreHead(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	head := base.NewScoreHead(vs.Root().Sub("score"), 16, 5)

	x := ts.MustRand([]int64{1, 16, 6, 6}, gotch.Float, gotch.CPU)
	y := head.ForwardT(x, false)
	assert.Equal(t, []int64{1, 5, 6, 6}, y.MustSize())

	_, ok := vs.Vars.NamedVariables["score.weight"]
	assert.True(t, ok)

	x.MustDrop()
	y.MustDrop()
}

func TestSameSizeOpsKeepGraph(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	x := vs.Root().Ones("x", []int64{1, 2, 3, 3})
	require.True(t, x.MustRequiresGrad())

	outs := []*ts.Tensor{
		base.UpsampleBilinear(x, []int64{3, 3}),
		base.NewIdentity().ForwardT(x, true),
		base.Dropout2d(0).ForwardT(x, true),
	}
	for i, y := range outs {
		assert.True(t, y.MustRequiresGrad(), "output %d", i)
		assert.Equal(t, x.Float64Values(), y.Float64Values(), "output %d", i)
		y.MustDrop()
	}
}
