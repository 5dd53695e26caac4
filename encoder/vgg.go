package encoder

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/fcn/base"
	"github.com/sugarme/fcn/flops"
)

// VGG16Config is the VGG16 (config "D") layout: each element holds output
// channels of the convolutions of one block, each block ends with a max-pool.
var VGG16Config = [][]int64{
	{64, 64},
	{128, 128},
	{256, 256, 256},
	{512, 512, 512},
	{512, 512, 512},
}

// FirstPadding is padding of the very first convolution. It makes the
// network accept inputs of any size down to a single pixel.
const FirstPadding int64 = 100

// BlockName returns the variable path prefix of a VGG block (0-based).
func BlockName(block int) string {
	return fmt.Sprintf("conv%d_block", block+1)
}

// VGG16Encoder is the convolutional part of VGG16 split into 5 blocks.
type VGG16Encoder struct {
	blocks []*nn.SequentialT
}

// NewVGG16Encoder creates VGG16Encoder. Convolutions are registered at
// `conv{block}_block.{idx}` where idx is the module index in the block.
func NewVGG16Encoder(p *nn.Path) *VGG16Encoder {
	var (
		cIn    int64 = 3
		blocks []*nn.SequentialT
	)
	for b, channels := range VGG16Config {
		bp := p.Sub(BlockName(b))
		block := nn.SeqT()
		for _, cOut := range channels {
			var padding int64 = 1
			if b == 0 && block.Len() == 0 {
				padding = FirstPadding
			}
			idx := fmt.Sprint(block.Len())
			block.Add(base.Conv2d(bp.Sub(idx), cIn, cOut, 3, padding, 1))
			block.AddFn(base.Relu())
			cIn = cOut
		}
		block.AddFn(base.MaxPool2dCeil(2))
		blocks = append(blocks, block)
	}

	return &VGG16Encoder{blocks}
}

// ForwardAll implements Encoder interface for VGG16Encoder.
func (e *VGG16Encoder) ForwardAll(x *ts.Tensor, train bool) []*ts.Tensor {
	features := make([]*ts.Tensor, 0, len(e.blocks))
	in := x
	for _, block := range e.blocks {
		out := block.ForwardT(in, train)
		features = append(features, out)
		in = out
	}

	return features
}

// Channels implements Encoder interface.
func (e *VGG16Encoder) Channels() []int64 {
	var channels []int64
	for _, block := range VGG16Config {
		channels = append(channels, block[len(block)-1])
	}
	return channels
}

// Layers implements Encoder interface.
func (e *VGG16Encoder) Layers() [][]flops.Layer {
	return VGG16Layers()
}

// VGG16Layers describes the stages of VGG16Encoder.
func VGG16Layers() [][]flops.Layer {
	var (
		cIn    int64 = 3
		stages [][]flops.Layer
	)
	for b, channels := range VGG16Config {
		var layers []flops.Layer
		for i, cOut := range channels {
			var padding int64 = 1
			if b == 0 && i == 0 {
				padding = FirstPadding
			}
			name := fmt.Sprintf("%v.%d", BlockName(b), 2*i)
			layers = append(layers, flops.ConvLayer(name, cIn, cOut, 3, padding, 1))
			cIn = cOut
		}
		name := fmt.Sprintf("%v.%d", BlockName(b), 2*len(channels))
		layers = append(layers, flops.PoolLayer(name, 2, 2, 0, true))
		stages = append(stages, layers)
	}

	return stages
}
