package metric_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/sugarme/gotch/tensor"

	"github.com/sugarme/fcn/metric"
)

var (
	pslice = []int64{1, 0, 0, 1, 0, 0, 1, 0, 0}
	tslice = []int64{1, 0, 0, 1, 1, 0, 1, 0, 0}
)

func TestConfusionMatrixScores(t *testing.T) {
	cm := metric.NewConfusionMatrix(2)
	require.NoError(t, cm.Update(pslice, tslice))

	m := cm.Matrix()
	assert.Equal(t, 5.0, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(0, 1))
	assert.Equal(t, 1.0, m.At(1, 0))
	assert.Equal(t, 3.0, m.At(1, 1))

	s := cm.Scores()
	assert.InDelta(t, 8.0/9, s.PixelAcc, 1e-9)
	assert.InDelta(t, 0.875, s.MeanAcc, 1e-9)
	assert.InDelta(t, 5.0/6, s.ClassIoU[0], 1e-9)
	assert.InDelta(t, 0.75, s.ClassIoU[1], 1e-9)
	assert.InDelta(t, (5.0/6+0.75)/2, s.MeanIoU, 1e-9)
	assert.InDelta(t, 43.0/54, s.FreqWIoU, 1e-9)
}

func TestConfusionMatrixTensor(t *testing.T) {
	pred := ts.MustOfSlice(pslice).MustView([]int64{1, 3, 3}, true)
	target := ts.MustOfSlice(tslice).MustView([]int64{1, 3, 3}, true)

	cm := metric.NewConfusionMatrix(2)
	require.NoError(t, cm.UpdateTensor(pred, target))
	assert.InDelta(t, 0.75, cm.Scores().ClassIoU[1], 1e-9)

	pred.MustDrop()
	target.MustDrop()
}

func TestConfusionMatrixIgnoreAndAbsent(t *testing.T) {
	cm := metric.NewConfusionMatrix(3)
	require.NoError(t, cm.Update([]int64{0, 1, 2}, []int64{0, 1, metric.IgnoreIndex}))

	s := cm.Scores()
	assert.Equal(t, 1.0, s.PixelAcc)
	// class 2 never appears in counted pixels.
	assert.True(t, math.IsNaN(s.ClassIoU[2]))
	assert.Equal(t, 1.0, s.MeanIoU)
	assert.Equal(t, 1.0, s.MeanAcc)

	cm.Reset()
	assert.Equal(t, 0.0, cm.Matrix().At(0, 0))
}

func TestConfusionMatrixErrors(t *testing.T) {
	cm := metric.NewConfusionMatrix(2)
	assert.Error(t, cm.Update([]int64{0}, []int64{0, 1}))
	assert.Error(t, cm.Update([]int64{5}, []int64{1}))
}

func TestArgmax(t *testing.T) {
	// [N=1 C=3 H=1 W=4]
	vals := []float32{
		0.1, 0.9, 0.2, 0.0, // class 0
		0.5, 0.1, 0.3, 0.0, // class 1
		0.4, 0.0, 0.7, 0.0, // class 2
	}
	logits := ts.MustOfSlice(vals).MustView([]int64{1, 3, 1, 4}, true)

	labels, shape := metric.Argmax(logits)
	assert.Equal(t, []int64{1, 1, 4}, shape)
	// ties keep the lowest class.
	assert.Equal(t, []int64{1, 0, 2, 0}, labels)

	logits.MustDrop()
}

func TestArgmaxBatch(t *testing.T) {
	// [N=2 C=2 H=1 W=2]
	vals := []float32{
		1, 0, 0, 1,
		0, 1, 1, 0,
	}
	logits := ts.MustOfSlice(vals).MustView([]int64{2, 2, 1, 2}, true)
	defer logits.MustDrop()

	labels, shape := metric.Argmax(logits)
	assert.Equal(t, []int64{2, 1, 2}, shape)
	assert.Equal(t, []int64{0, 1, 1, 0}, labels)
	// logits are left untouched.
	assert.Equal(t, []int64{2, 2, 1, 2}, logits.MustSize())
}
