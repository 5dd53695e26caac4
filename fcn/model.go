package fcn

import (
	"fmt"

	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/fcn/base"
	"github.com/sugarme/fcn/encoder"
)

// FCN is a fully convolutional network for semantic segmentation.
// Ref. https://arxiv.org/abs/1411.4038
type FCN struct {
	config     Config
	encoder    encoder.Encoder
	classifier *nn.SequentialT
	scorePool4 *nn.Conv2D // nil for FCN32s
	scorePool3 *nn.Conv2D // nil for FCN32s, FCN16s
}

// New creates FCN at path p.
func New(p *nn.Path, config Config) (*FCN, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		enc        encoder.Encoder
		classifier *nn.SequentialT
	)
	switch config.Backbone {
	case VGG16:
		enc = encoder.NewVGG16Encoder(p)
		classifier = vggClassifier(p.Sub("classifier"), enc.Channels()[4], config)
	case ResNet34:
		enc = encoder.NewResNet34Encoder(p)
		classifier = resnetClassifier(p.Sub("classifier"), enc.Channels()[4], config)
	}

	m := &FCN{
		config:     config,
		encoder:    enc,
		classifier: classifier,
	}

	channels := enc.Channels()
	if config.Variant == FCN16s || config.Variant == FCN8s {
		m.scorePool4 = base.NewScoreHead(p.Sub("score_pool4"), channels[3], config.NClasses)
	}
	if config.Variant == FCN8s {
		m.scorePool3 = base.NewScoreHead(p.Sub("score_pool3"), channels[2], config.NClasses)
	}

	return m, nil
}

func mustNew(p *nn.Path, variant Variant, nClasses int64) *FCN {
	config := DefaultConfig()
	config.Variant = variant
	config.NClasses = nClasses
	m, err := New(p, config)
	if err != nil {
		panic(err)
	}
	return m
}

// NewFCN32s creates FCN-32s on VGG16 backbone.
func NewFCN32s(p *nn.Path, nClasses int64) *FCN {
	return mustNew(p, FCN32s, nClasses)
}

// NewFCN16s creates FCN-16s on VGG16 backbone.
func NewFCN16s(p *nn.Path, nClasses int64) *FCN {
	return mustNew(p, FCN16s, nClasses)
}

// NewFCN8s creates FCN-8s on VGG16 backbone.
func NewFCN8s(p *nn.Path, nClasses int64) *FCN {
	return mustNew(p, FCN8s, nClasses)
}

// Build creates FCN at the root of vs and, if weights is not empty, loads
// pretrained backbone weights from it.
func Build(vs *nn.VarStore, config Config, weights string) (*FCN, error) {
	m, err := New(vs.Root(), config)
	if err != nil {
		return nil, err
	}
	if weights == "" {
		return m, nil
	}
	if _, err := m.LoadPretrained(vs, weights); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns model config.
func (m *FCN) Config() Config {
	return m.config
}

// vggClassifier converts VGG16 fc6, fc7, fc8 into convolutions. Module
// indices match torchvision `vgg16.classifier`.
func vggClassifier(p *nn.Path, cIn int64, config Config) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(base.Conv2d(p.Sub("0"), cIn, config.Hidden, 7, 0, 1))
	seq.AddFn(base.Relu())
	seq.Add(base.Dropout2d(config.DropoutP))
	seq.Add(base.Conv2d(p.Sub("3"), config.Hidden, config.Hidden, 1, 0, 1))
	seq.AddFn(base.Relu())
	seq.Add(base.Dropout2d(config.DropoutP))
	seq.Add(base.NewScoreHead(p.Sub("6"), config.Hidden, config.NClasses))

	return seq
}

// resnetClassifier keeps spatial size: ResNet has no fully-connected
// layers to convolutionize.
func resnetClassifier(p *nn.Path, cIn int64, config Config) *nn.SequentialT {
	seq := nn.SeqT()
	seq.Add(base.Conv2d(p.Sub("0"), cIn, config.Hidden, 3, 1, 1))
	seq.AddFn(base.Relu())
	seq.Add(base.Dropout2d(config.DropoutP))
	seq.Add(base.NewScoreHead(p.Sub("3"), config.Hidden, config.NClasses))

	return seq
}

func checkInput(x *ts.Tensor) {
	size := x.MustSize()
	if len(size) != 4 || size[1] != 3 {
		err := fmt.Errorf("Expected input of shape [batch 3 height width]. Got %v\n", size)
		panic(err)
	}
}

// fuse upsamples score to the size of the skip score map and adds them.
func fuse(score *ts.Tensor, head *nn.Conv2D, feature *ts.Tensor, train bool) *ts.Tensor {
	skip := head.ForwardT(feature, train)
	up := base.UpsampleLike(score, skip)
	score.MustDrop()
	fused := up.MustAdd(skip, true)
	skip.MustDrop()

	return fused
}

// ForwardScores returns fused score map before resizing to input size.
func (m *FCN) ForwardScores(x *ts.Tensor, train bool) *ts.Tensor {
	checkInput(x)

	features := m.encoder.ForwardAll(x, train)
	score := m.classifier.ForwardT(features[4], train)
	if m.scorePool4 != nil {
		score = fuse(score, m.scorePool4, features[3], train)
	}
	if m.scorePool3 != nil {
		score = fuse(score, m.scorePool3, features[2], train)
	}

	for _, f := range features {
		f.MustDrop()
	}

	return score
}

// ForwardT implements ts.ModuleT for FCN struct.
// x: [N 3 H W] => [N NClasses H W]
func (m *FCN) ForwardT(x *ts.Tensor, train bool) *ts.Tensor {
	score := m.ForwardScores(x, train)
	out := base.UpsampleLike(score, x)
	score.MustDrop()

	return out
}
