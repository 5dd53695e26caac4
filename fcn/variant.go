package fcn

import (
	"fmt"
	"strings"
)

// Variant selects how many skip connections are fused into the score map.
type Variant int

const (
	// FCN32s upsamples the pool5 score map straight to the input size.
	FCN32s Variant = iota
	// FCN16s fuses the pool4 score map.
	FCN16s
	// FCN8s fuses pool4 and pool3 score maps.
	FCN8s
)

var variantNames = map[Variant]string{
	FCN32s: "32s",
	FCN16s: "16s",
	FCN8s:  "8s",
}

// Variants lists all variants from coarsest to finest.
func Variants() []Variant {
	return []Variant{FCN32s, FCN16s, FCN8s}
}

func (v Variant) String() string {
	if n, ok := variantNames[v]; ok {
		return "fcn" + n
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// OutputStride returns stride of the fused score map with respect to input.
func (v Variant) OutputStride() int {
	switch v {
	case FCN16s:
		return 16
	case FCN8s:
		return 8
	default:
		return 32
	}
}

// ParseVariant parses "32s", "fcn32s", "FCN-32s" etc.
func ParseVariant(s string) (Variant, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.TrimPrefix(strings.TrimPrefix(n, "fcn"), "-")
	n = strings.TrimPrefix(n, "_")
	for v, name := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("Invalid FCN variant: %q. Expected one of '32s', '16s', '8s'", s)
}

// Backbone is classification network the FCN is built upon.
type Backbone int

const (
	VGG16 Backbone = iota
	ResNet34
)

func (b Backbone) String() string {
	switch b {
	case VGG16:
		return "vgg16"
	case ResNet34:
		return "resnet34"
	default:
		return fmt.Sprintf("Backbone(%d)", int(b))
	}
}

// ParseBackbone parses backbone name.
func ParseBackbone(s string) (Backbone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vgg16", "vgg":
		return VGG16, nil
	case "resnet34", "resnet":
		return ResNet34, nil
	default:
		return 0, fmt.Errorf("Invalid backbone: %q. Expected 'vgg16' or 'resnet34'", s)
	}
}
