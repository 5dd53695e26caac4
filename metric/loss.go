package metric

import (
	ts "github.com/sugarme/gotch/tensor"
)

// IgnoreIndex is target label excluded from the loss (unlabelled pixels).
const IgnoreIndex int64 = 250

// NOTE: reduction: none = 0; mean = 1; sum = 2.
// ref. https://pytorch.org/docs/stable/nn.functional.html#nll-loss
const (
	ReductionNone int64 = iota
	ReductionMean
	ReductionSum
)

// CrossEntropy2d computes pixel-wise cross entropy.
//
// logits: [N C H W] raw class scores.
// target: [N Ht Wt] int64 class labels. If spatial size differs from logits,
// logits are resized to target size first.
// weight: optional per-class weights [C], nil for none.
func CrossEntropy2d(logits, target, weight *ts.Tensor, reduction int64) *ts.Tensor {
	lSize := logits.MustSize()
	tSize := target.MustSize()

	input := logits
	if lSize[2] != tSize[1] || lSize[3] != tSize[2] {
		input = logits.MustUpsampleBilinear2d(tSize[1:], true, nil, nil, false)
		defer input.MustDrop()
	}

	w := weight
	if w == nil {
		w = ts.NewTensor()
		defer w.MustDrop()
	}

	logp := input.MustLogSoftmax(1, input.DType(), false)
	loss := logp.MustNllLoss2d(target, w, reduction, IgnoreIndex, true)

	return loss
}
