package fcn

import "fmt"

const (
	// DefaultClasses is number of Pascal VOC classes including background.
	DefaultClasses int64 = 21
	// DefaultHidden is width of the VGG16 fully-connected layers.
	DefaultHidden int64 = 4096
	// DefaultDropout is channel dropout probability of the classifier.
	DefaultDropout float64 = 0.5
)

// Config holds FCN hyper-parameters.
type Config struct {
	Variant  Variant
	Backbone Backbone
	NClasses int64
	// Hidden is number of channels of the convolutionized fc6/fc7 layers.
	// Pretrained VGG16 weights can only be transplanted when it is 4096.
	Hidden   int64
	DropoutP float64
	// SkipFC7 leaves fc7 randomly initialised when transplanting VGG16
	// weights, copying only fc6 and fc8.
	SkipFC7 bool
}

// DefaultConfig returns FCN-32s on VGG16 with 21 classes.
func DefaultConfig() Config {
	return Config{
		Variant:  FCN32s,
		Backbone: VGG16,
		NClasses: DefaultClasses,
		Hidden:   DefaultHidden,
		DropoutP: DefaultDropout,
	}
}

// Validate checks config values.
func (c Config) Validate() error {
	if _, ok := variantNames[c.Variant]; !ok {
		return fmt.Errorf("Invalid variant: %v", c.Variant)
	}
	if c.Backbone != VGG16 && c.Backbone != ResNet34 {
		return fmt.Errorf("Invalid backbone: %v", c.Backbone)
	}
	if c.NClasses < 1 {
		return fmt.Errorf("Invalid number of classes: %v", c.NClasses)
	}
	if c.Hidden < 1 {
		return fmt.Errorf("Invalid hidden channels: %v", c.Hidden)
	}
	if c.DropoutP < 0 || c.DropoutP >= 1 {
		return fmt.Errorf("Invalid dropout probability: %v. Expected value in [0, 1)", c.DropoutP)
	}
	return nil
}
