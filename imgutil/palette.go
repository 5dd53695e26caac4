package imgutil

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
)

// Palette returns Pascal VOC colour map for n classes.
func Palette(n int) []color.NRGBA {
	bit := func(v, i int) uint8 {
		return uint8((v >> uint(i)) & 1)
	}

	palette := make([]color.NRGBA, n)
	for i := 0; i < n; i++ {
		var r, g, b uint8
		c := i
		for j := 0; j < 8; j++ {
			r |= bit(c, 0) << uint(7-j)
			g |= bit(c, 1) << uint(7-j)
			b |= bit(c, 2) << uint(7-j)
			c >>= 3
		}
		palette[i] = color.NRGBA{R: r, G: g, B: b, A: 255}
	}

	return palette
}

// Colorize paints label map (row-major, height x width) with palette.
func Colorize(labels []int64, height, width int, palette []color.NRGBA) (*image.NRGBA, error) {
	if len(labels) != height*width {
		return nil, fmt.Errorf("Expected %v labels for %vx%v image. Got %v", height*width, height, width, len(labels))
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, l := range labels {
		if l < 0 || int(l) >= len(palette) {
			return nil, fmt.Errorf("Label %v out of palette range [0, %v)", l, len(palette))
		}
		img.SetNRGBA(i%width, i/width, palette[l])
	}

	return img, nil
}

// ReadClasses reads class names from CSV file with header `id,name`.
// Names are returned indexed by id.
func ReadClasses(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.HasHeader(true), dataframe.DetectTypes(false))
	if df.Err != nil {
		return nil, df.Err
	}
	df = df.Select([]string{"id", "name"})
	if df.Err != nil {
		return nil, df.Err
	}

	ids := df.Col("id").Records()
	names := df.Col("name").Records()
	classes := make([]string, len(ids))
	for i, s := range ids {
		id, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		if id < 0 || id >= len(ids) {
			return nil, fmt.Errorf("Class id %v out of range [0, %v)", id, len(ids))
		}
		classes[id] = names[i]
	}

	return classes, nil
}
