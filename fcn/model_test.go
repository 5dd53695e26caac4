package fcn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/fcn/fcn"
)

// smallConfig keeps fc6/fc7 narrow so that tests run fast on CPU.
func smallConfig(variant fcn.Variant) fcn.Config {
	config := fcn.DefaultConfig()
	config.Variant = variant
	config.Hidden = 16
	return config
}

func TestForwardShapes(t *testing.T) {
	tests := []struct {
		variant fcn.Variant
		score   []int64
	}{
		{fcn.FCN32s, []int64{2, 21, 2, 2}},   // pool5 8x8 - 7x7 fc6
		{fcn.FCN16s, []int64{2, 21, 15, 15}}, // pool4
		{fcn.FCN8s, []int64{2, 21, 29, 30}},  // pool3
	}

	x := ts.MustRand([]int64{2, 3, 32, 40}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

	for _, tt := range tests {
		t.Run(tt.variant.String(), func(t *testing.T) {
			vs := nn.NewVarStore(gotch.CPU)
			net, err := fcn.New(vs.Root(), smallConfig(tt.variant))
			require.NoError(t, err)

			ts.NoGrad(func() {
				score := net.ForwardScores(x, false)
				assert.Equal(t, tt.score, score.MustSize())
				score.MustDrop()

				out := net.ForwardT(x, false)
				assert.Equal(t, []int64{2, 21, 32, 40}, out.MustSize())
				out.MustDrop()
			})
		})
	}
}

func TestForwardTrainMode(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := fcn.New(vs.Root(), smallConfig(fcn.FCN8s))
	require.NoError(t, err)

	x := ts.MustRand([]int64{1, 3, 17, 23}, gotch.Float, gotch.CPU)
	out := net.ForwardT(x, true)
	assert.Equal(t, []int64{1, 21, 17, 23}, out.MustSize())

	x.MustDrop()
	out.MustDrop()
}

func TestForwardTrainModeSameSizeKeepsGraph(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := fcn.New(vs.Root(), smallConfig(fcn.FCN8s))
	require.NoError(t, err)

	// 29x29 input: pool3 is 29x29 so the final resize is a no-op.
	x := ts.MustRand([]int64{1, 3, 29, 29}, gotch.Float, gotch.CPU)
	score := net.ForwardScores(x, true)
	assert.Equal(t, []int64{1, 21, 29, 29}, score.MustSize())

	out := net.ForwardT(x, true)
	assert.Equal(t, []int64{1, 21, 29, 29}, out.MustSize())
	assert.True(t, out.MustRequiresGrad())

	x.MustDrop()
	score.MustDrop()
	out.MustDrop()
}

func TestForwardResNetBackbone(t *testing.T) {
	config := smallConfig(fcn.FCN8s)
	config.Backbone = fcn.ResNet34
	config.NClasses = 3

	vs := nn.NewVarStore(gotch.CPU)
	net, err := fcn.New(vs.Root(), config)
	require.NoError(t, err)

	x := ts.MustRand([]int64{1, 3, 64, 64}, gotch.Float, gotch.CPU)
	ts.NoGrad(func() {
		score := net.ForwardScores(x, false)
		assert.Equal(t, []int64{1, 3, 8, 8}, score.MustSize())
		score.MustDrop()

		out := net.ForwardT(x, false)
		assert.Equal(t, []int64{1, 3, 64, 64}, out.MustSize())
		out.MustDrop()
	})
	x.MustDrop()

	vars := vs.Vars.NamedVariables
	assert.Equal(t, []int64{3, 256, 1, 1}, vars["score_pool4.weight"].MustSize())
	assert.Equal(t, []int64{3, 128, 1, 1}, vars["score_pool3.weight"].MustSize())
}

func TestForwardInvalidInput(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := fcn.New(vs.Root(), smallConfig(fcn.FCN32s))
	require.NoError(t, err)

	x := ts.MustRand([]int64{1, 1, 32, 32}, gotch.Float, gotch.CPU)
	defer x.MustDrop()

	assert.Panics(t, func() {
		net.ForwardT(x, false)
	})
}

func TestVariables(t *testing.T) {
	tests := []struct {
		name    string
		build   func(p *nn.Path) *fcn.FCN
		pool4   bool
		pool3   bool
		numVars int
	}{
		{"fcn32s", func(p *nn.Path) *fcn.FCN { return fcn.NewFCN32s(p, 21) }, false, false, 32},
		{"fcn16s", func(p *nn.Path) *fcn.FCN { return fcn.NewFCN16s(p, 21) }, true, false, 34},
		{"fcn8s", func(p *nn.Path) *fcn.FCN { return fcn.NewFCN8s(p, 21) }, true, true, 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if testing.Short() {
				t.Skip("full size fc6 allocates ~400MB")
			}
			vs := nn.NewVarStore(gotch.CPU)
			tt.build(vs.Root())

			vars := vs.Vars.NamedVariables
			assert.Len(t, vars, tt.numVars)
			assert.Equal(t, []int64{4096, 512, 7, 7}, vars["classifier.0.weight"].MustSize())
			assert.Equal(t, []int64{4096, 4096, 1, 1}, vars["classifier.3.weight"].MustSize())
			assert.Equal(t, []int64{21, 4096, 1, 1}, vars["classifier.6.weight"].MustSize())

			_, ok := vars["score_pool4.weight"]
			assert.Equal(t, tt.pool4, ok)
			_, ok = vars["score_pool3.weight"]
			assert.Equal(t, tt.pool3, ok)
		})
	}
}

func TestNewInvalidClasses(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	assert.Panics(t, func() {
		fcn.NewFCN32s(vs.Root(), 0)
	})

	config := fcn.DefaultConfig()
	config.NClasses = -3
	_, err := fcn.New(vs.Root(), config)
	assert.Error(t, err)
}

func TestBuildWithoutWeights(t *testing.T) {
	vs := nn.NewVarStore(gotch.CPU)
	net, err := fcn.Build(vs, smallConfig(fcn.FCN16s), "")
	require.NoError(t, err)
	assert.Equal(t, fcn.FCN16s, net.Config().Variant)
}

func TestBuildMissingWeights(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a full VGG16")
	}
	vs := nn.NewVarStore(gotch.CPU)
	_, err := fcn.Build(vs, smallConfig(fcn.FCN16s), "./testdata/does-not-exist.ot")
	assert.Error(t, err)
}
