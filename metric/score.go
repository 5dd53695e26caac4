package metric

import (
	"fmt"
	"math"

	"github.com/sugarme/gotch"
	ts "github.com/sugarme/gotch/tensor"
	"gonum.org/v1/gonum/mat"
)

// Scores are segmentation scores derived from a confusion matrix.
type Scores struct {
	PixelAcc float64   // overall pixel accuracy
	MeanAcc  float64   // mean of per-class accuracy
	FreqWIoU float64   // IoU weighted by class frequency
	MeanIoU  float64   // mean of per-class IoU
	ClassIoU []float64 // NaN for classes absent from both prediction and target
}

// ConfusionMatrix accumulates (target, prediction) label counts.
// Row index is target label, column index is predicted label.
type ConfusionMatrix struct {
	n int
	m *mat.Dense
}

// NewConfusionMatrix creates ConfusionMatrix for n classes.
func NewConfusionMatrix(n int) *ConfusionMatrix {
	return &ConfusionMatrix{n: n, m: mat.NewDense(n, n, nil)}
}

// Update counts label pairs. Target labels outside [0, n), e.g. IgnoreIndex,
// are skipped.
func (c *ConfusionMatrix) Update(pred, target []int64) error {
	if len(pred) != len(target) {
		return fmt.Errorf("Mismatched length: prediction %v, target %v", len(pred), len(target))
	}
	n := int64(c.n)
	for i, t := range target {
		p := pred[i]
		if t < 0 || t >= n {
			continue
		}
		if p < 0 || p >= n {
			return fmt.Errorf("Invalid predicted label %v at %v. Expected value in [0, %v)", p, i, n)
		}
		c.m.Set(int(t), int(p), c.m.At(int(t), int(p))+1)
	}
	return nil
}

// UpdateTensor counts label pairs of int64 tensors of same number of elements.
func (c *ConfusionMatrix) UpdateTensor(pred, target *ts.Tensor) error {
	return c.Update(pred.Int64Values(), target.Int64Values())
}

// Matrix returns a copy of counts.
func (c *ConfusionMatrix) Matrix() *mat.Dense {
	return mat.DenseCopyOf(c.m)
}

// Reset clears all counts.
func (c *ConfusionMatrix) Reset() {
	c.m.Zero()
}

// nanMean averages values skipping NaN.
func nanMean(vals []float64) float64 {
	var (
		sum float64
		cnt int
	)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		cnt++
	}
	if cnt == 0 {
		return math.NaN()
	}
	return sum / float64(cnt)
}

// Scores computes accuracy and IoU scores.
func (c *ConfusionMatrix) Scores() Scores {
	var (
		diag  = make([]float64, c.n)
		rows  = make([]float64, c.n)
		cols  = make([]float64, c.n)
		total float64
	)
	for i := 0; i < c.n; i++ {
		diag[i] = c.m.At(i, i)
		rows[i] = mat.Sum(c.m.RowView(i))
		cols[i] = mat.Sum(c.m.ColView(i))
		total += rows[i]
	}

	var trace float64
	classAcc := make([]float64, c.n)
	classIoU := make([]float64, c.n)
	for i := 0; i < c.n; i++ {
		trace += diag[i]
		classAcc[i] = diag[i] / rows[i]
		classIoU[i] = diag[i] / (rows[i] + cols[i] - diag[i])
	}

	var fw float64
	for i := 0; i < c.n; i++ {
		if rows[i] > 0 {
			fw += rows[i] / total * classIoU[i]
		}
	}

	return Scores{
		PixelAcc: trace / total,
		MeanAcc:  nanMean(classAcc),
		FreqWIoU: fw,
		MeanIoU:  nanMean(classIoU),
		ClassIoU: classIoU,
	}
}

// Argmax returns per-pixel labels of logits [N C H W] and their shape [N H W].
func Argmax(logits *ts.Tensor) ([]int64, []int64) {
	size := logits.MustSize()
	idx := logits.MustArgmax([]int64{1}, false, false)
	if idx.MustDevice() != gotch.CPU {
		idx = idx.MustTo(gotch.CPU, true)
	}
	labels := idx.Int64Values()
	idx.MustDrop()

	return labels, []int64{size[0], size[2], size[3]}
}
