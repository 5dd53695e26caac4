package flops

import (
	"fmt"
	"math"
)

// Op is kind of a layer taken into account when profiling.
type Op int

const (
	Conv Op = iota
	Pool
	Linear
)

func (o Op) String() string {
	switch o {
	case Conv:
		return "conv"
	case Pool:
		return "pool"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Shape is a feature map shape without batch dimension.
type Shape struct {
	C, H, W int64
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d %d %d]", s.C, s.H, s.W)
}

// Layer describes a layer by its hyper-parameters.
//
// A Side layer is applied to the current input (e.g. a residual downsample
// branch) but does not move the running shape forward.
type Layer struct {
	Name    string
	Op      Op
	CIn     int64
	COut    int64
	Kernel  int64
	Stride  int64
	Padding int64
	Ceil    bool
	Side    bool
}

// ConvLayer creates a convolution Layer.
func ConvLayer(name string, cIn, cOut, ksize, padding, stride int64) Layer {
	return Layer{Name: name, Op: Conv, CIn: cIn, COut: cOut, Kernel: ksize, Stride: stride, Padding: padding}
}

// PoolLayer creates a max-pool Layer.
func PoolLayer(name string, ksize, stride, padding int64, ceil bool) Layer {
	return Layer{Name: name, Op: Pool, Kernel: ksize, Stride: stride, Padding: padding, Ceil: ceil}
}

func outDim(in, k, s, p int64, ceil bool) int64 {
	stride := s
	if stride == 0 {
		stride = 1
	}
	span := in + 2*p - k
	if span < 0 {
		return 0
	}
	if !ceil {
		return span/stride + 1
	}
	out := int64(math.Ceil(float64(span)/float64(stride))) + 1
	// last window must start inside the input or left padding.
	if (out-1)*stride >= in+p {
		out--
	}
	return out
}

// Out returns output shape of the layer for given input shape.
func (l Layer) Out(in Shape) Shape {
	switch l.Op {
	case Conv:
		return Shape{
			C: l.COut,
			H: outDim(in.H, l.Kernel, l.Stride, l.Padding, false),
			W: outDim(in.W, l.Kernel, l.Stride, l.Padding, false),
		}
	case Pool:
		return Shape{
			C: in.C,
			H: outDim(in.H, l.Kernel, l.Stride, l.Padding, l.Ceil),
			W: outDim(in.W, l.Kernel, l.Stride, l.Padding, l.Ceil),
		}
	case Linear:
		return Shape{C: l.COut, H: 1, W: 1}
	}
	return in
}

// MACs returns number of multiply-accumulates of the layer for given input.
func (l Layer) MACs(in Shape) int64 {
	out := l.Out(in)
	switch l.Op {
	case Conv:
		return l.CIn * l.COut * l.Kernel * l.Kernel * out.H * out.W
	case Linear:
		return l.CIn * l.COut
	}
	return 0
}

// Entry is a profiled layer.
type Entry struct {
	Name string
	Op   Op
	In   Shape
	Out  Shape
	MACs int64
}

// Report holds profiling results.
type Report struct {
	Entries []Entry
	Total   int64
}

// GMACs returns total multiply-accumulates in billions.
func (r Report) GMACs() float64 {
	return float64(r.Total) / 1e9
}

// Merge appends other report's entries.
func (r Report) Merge(other Report) Report {
	entries := make([]Entry, 0, len(r.Entries)+len(other.Entries))
	entries = append(entries, r.Entries...)
	entries = append(entries, other.Entries...)

	return Report{Entries: entries, Total: r.Total + other.Total}
}

// Walk runs input shape through layers sequentially.
func Walk(layers []Layer, in Shape) (Report, Shape) {
	var report Report
	curr := in
	for _, l := range layers {
		out := l.Out(curr)
		macs := l.MACs(curr)
		report.Entries = append(report.Entries, Entry{
			Name: l.Name,
			Op:   l.Op,
			In:   curr,
			Out:  out,
			MACs: macs,
		})
		report.Total += macs
		if !l.Side {
			curr = out
		}
	}

	return report, curr
}
