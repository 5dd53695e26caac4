package flops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sugarme/fcn/flops"
)

func TestLayerOut(t *testing.T) {
	tests := []struct {
		name  string
		layer flops.Layer
		in    flops.Shape
		want  flops.Shape
	}{
		{"conv pad100", flops.ConvLayer("c", 3, 64, 3, 100, 1), flops.Shape{3, 360, 480}, flops.Shape{64, 558, 678}},
		{"conv same", flops.ConvLayer("c", 64, 64, 3, 1, 1), flops.Shape{64, 558, 678}, flops.Shape{64, 558, 678}},
		{"conv stride2", flops.ConvLayer("c", 3, 64, 7, 3, 2), flops.Shape{3, 256, 256}, flops.Shape{64, 128, 128}},
		{"pool ceil odd", flops.PoolLayer("p", 2, 2, 0, true), flops.Shape{512, 35, 43}, flops.Shape{512, 18, 22}},
		{"pool floor odd", flops.PoolLayer("p", 2, 2, 0, false), flops.Shape{512, 35, 43}, flops.Shape{512, 17, 21}},
		{"pool resnet", flops.PoolLayer("p", 3, 2, 1, false), flops.Shape{64, 128, 128}, flops.Shape{64, 64, 64}},
		{"fc6", flops.ConvLayer("fc6", 512, 4096, 7, 0, 1), flops.Shape{512, 18, 22}, flops.Shape{4096, 12, 16}},
		{"too small", flops.ConvLayer("fc6", 512, 4096, 7, 0, 1), flops.Shape{512, 3, 3}, flops.Shape{4096, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.layer.Out(tt.in))
		})
	}
}

func TestLayerMACs(t *testing.T) {
	conv := flops.ConvLayer("score", 512, 21, 1, 0, 1)
	assert.Equal(t, int64(512*21*10*10), conv.MACs(flops.Shape{512, 10, 10}))

	pool := flops.PoolLayer("pool", 2, 2, 0, true)
	assert.Zero(t, pool.MACs(flops.Shape{512, 10, 10}))

	linear := flops.Layer{Name: "fc", Op: flops.Linear, CIn: 25088, COut: 4096}
	assert.Equal(t, int64(25088*4096), linear.MACs(flops.Shape{512, 7, 7}))
}

func TestWalkSideBranch(t *testing.T) {
	layers := []flops.Layer{
		{Name: "downsample", Op: flops.Conv, CIn: 64, COut: 128, Kernel: 1, Stride: 2, Side: true},
		flops.ConvLayer("conv1", 64, 128, 3, 1, 2),
		flops.ConvLayer("conv2", 128, 128, 3, 1, 1),
	}

	report, out := flops.Walk(layers, flops.Shape{64, 64, 64})

	assert.Equal(t, flops.Shape{128, 32, 32}, out)
	assert.Len(t, report.Entries, 3)
	// side branch sees block input, conv1 as well.
	assert.Equal(t, flops.Shape{64, 64, 64}, report.Entries[1].In)
	want := int64(64*128*32*32) + int64(64*128*9*32*32) + int64(128*128*9*32*32)
	assert.Equal(t, want, report.Total)
}

func TestReportMerge(t *testing.T) {
	a, _ := flops.Walk([]flops.Layer{flops.ConvLayer("a", 1, 1, 1, 0, 1)}, flops.Shape{1, 2, 2})
	b, _ := flops.Walk([]flops.Layer{flops.ConvLayer("b", 1, 2, 1, 0, 1)}, flops.Shape{1, 2, 2})

	m := a.Merge(b)
	assert.Len(t, m.Entries, 2)
	assert.Equal(t, int64(4+8), m.Total)
	assert.InDelta(t, 12e-9, m.GMACs(), 1e-15)
}
