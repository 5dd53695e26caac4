package fcn

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sugarme/gotch"
	"github.com/sugarme/gotch/nn"
	ts "github.com/sugarme/gotch/tensor"
	"github.com/sugarme/gotch/vision"

	"github.com/sugarme/fcn/encoder"
)

// Mapping copies source variable Src onto destination variable Dst.
type Mapping struct {
	Src string
	Dst string
	// Rows keeps only the first Rows entries along dim 0 of the source when > 0.
	Rows int64
	// Reshape views source as the destination shape (e.g. linear => conv).
	Reshape bool
}

func (m Mapping) String() string {
	return fmt.Sprintf("%v -> %v", m.Src, m.Dst)
}

// VGG16Plan maps torchvision VGG16 variables onto FCN variables.
//
// features[0:4], [5:9], [10:16], [17:23], [24:30] fill conv blocks 1..5.
// classifier.0 (fc6) and classifier.3 (fc7) become 7x7 and 1x1 convolutions.
// fc7 is left out when withFC7 is false.
// classifier.6 (fc8) keeps only the first nClasses ImageNet classes.
func VGG16Plan(nClasses int64, withFC7 bool) []Mapping {
	var plan []Mapping
	offset := 0
	for b, channels := range encoder.VGG16Config {
		for i := range channels {
			src := fmt.Sprintf("features.%d", offset+2*i)
			dst := fmt.Sprintf("%v.%d", encoder.BlockName(b), 2*i)
			plan = append(plan,
				Mapping{Src: src + ".weight", Dst: dst + ".weight"},
				Mapping{Src: src + ".bias", Dst: dst + ".bias"},
			)
		}
		// conv + relu each, then max-pool
		offset += 2*len(channels) + 1
	}

	fcs := []int{0, 3}
	if !withFC7 {
		fcs = fcs[:1]
	}
	for _, idx := range fcs {
		name := fmt.Sprintf("classifier.%d", idx)
		plan = append(plan,
			Mapping{Src: name + ".weight", Dst: name + ".weight", Reshape: true},
			Mapping{Src: name + ".bias", Dst: name + ".bias", Reshape: true},
		)
	}
	plan = append(plan,
		Mapping{Src: "classifier.6.weight", Dst: "classifier.6.weight", Rows: nClasses, Reshape: true},
		Mapping{Src: "classifier.6.bias", Dst: "classifier.6.bias", Rows: nClasses, Reshape: true},
	)

	return plan
}

func numel(size []int64) int64 {
	n := int64(1)
	for _, s := range size {
		n *= s
	}
	return n
}

// checkMapping verifies source can be copied onto destination.
func checkMapping(m Mapping, src, dst *ts.Tensor) error {
	srcSize := src.MustSize()
	dstSize := dst.MustSize()

	if m.Rows > 0 {
		if len(srcSize) == 0 || srcSize[0] < m.Rows {
			return errors.Errorf("source %v has fewer than %v rows", srcSize, m.Rows)
		}
		srcSize = append([]int64{m.Rows}, srcSize[1:]...)
	}

	if m.Reshape {
		if numel(srcSize) != numel(dstSize) {
			return errors.Errorf("cannot view source %v as %v", srcSize, dstSize)
		}
		return nil
	}

	if !reflect.DeepEqual(srcSize, dstSize) {
		return errors.Errorf("shape mismatch: source %v, destination %v", srcSize, dstSize)
	}
	return nil
}

// Transplant copies variables of src onto dst following plan.
//
// All mappings are checked before anything is copied so dst is left
// untouched on error. It returns number of copied tensors.
func Transplant(dst, src map[string]*ts.Tensor, plan []Mapping) (int, error) {
	for _, m := range plan {
		d, ok := dst[m.Dst]
		if !ok {
			return 0, errors.Errorf("transplant %v: missing destination variable", m)
		}
		s, ok := src[m.Src]
		if !ok {
			return 0, errors.Errorf("transplant %v: missing source variable", m)
		}
		if err := checkMapping(m, s, d); err != nil {
			return 0, errors.Wrapf(err, "transplant %v", m)
		}
	}

	for _, m := range plan {
		d := dst[m.Dst]
		s := src[m.Src]

		value := s.MustShallowClone()
		if m.Rows > 0 {
			value = value.MustNarrow(0, 0, m.Rows, true)
		}
		if m.Reshape {
			value = value.MustContiguous(true).MustView(d.MustSize(), true)
		}
		ts.NoGrad(func() {
			d.Copy_(value)
		})
		value.MustDrop()
	}

	return len(plan), nil
}

// LoadVGG16 loads ImageNet-pretrained VGG16 weights (".ot" file) into a
// standalone VarStore.
func LoadVGG16(path string, device gotch.Device) (*nn.VarStore, error) {
	in := vision.NewImageNet()
	vs := nn.NewVarStore(device)
	vision.VGG16(vs.Root(), in.ClassCount())
	if err := vs.Load(path); err != nil {
		return nil, errors.Wrapf(err, "load VGG16 weights from %q", path)
	}

	return vs, nil
}

// freeVars drops all variables of vs. vs must not be used afterwards.
func freeVars(vs *nn.VarStore) {
	for name, x := range vs.Vars.NamedVariables {
		x.MustDrop()
		delete(vs.Vars.NamedVariables, name)
	}
}

// LoadPretrained loads backbone weights from path into vs, which must be the
// VarStore the model was created in.
//
// VGG16: weights of a VGG16 classifier are transplanted (see VGG16Plan).
// ResNet34: variables are loaded by name; returned names are model
// variables not found in the file.
func (m *FCN) LoadPretrained(vs *nn.VarStore, path string) ([]string, error) {
	switch m.config.Backbone {
	case VGG16:
		src, err := LoadVGG16(path, gotch.CPU)
		if err != nil {
			return nil, err
		}
		defer freeVars(src)

		plan := VGG16Plan(m.config.NClasses, !m.config.SkipFC7)
		_, err = Transplant(vs.Vars.NamedVariables, src.Vars.NamedVariables, plan)
		return nil, err
	case ResNet34:
		missings, err := vs.LoadPartial(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load ResNet34 weights from %q", path)
		}
		return missings, nil
	}

	return nil, fmt.Errorf("Unsupported backbone: %v", m.config.Backbone)
}
