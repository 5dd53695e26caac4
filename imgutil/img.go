package imgutil

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/chai2010/tiff"
	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	ts "github.com/sugarme/gotch/tensor"
	"github.com/sugarme/gotch/vision"
	"golang.org/x/image/draw"
)

// ReadImage reads image from file.
func ReadImage(filename string) (image.Image, error) {
	ext := filepath.Ext(filename)
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch ext {
	case ".png", ".PNG":
		return png.Decode(f)
	case ".jpg", ".jpeg", ".JPG", ".JPEG":
		return jpeg.Decode(f)
	case ".tiff", ".tif", ".TIFF", ".TIF":
		return tiff.Decode(f)
	default:
		err = fmt.Errorf("Unsupported image format: %v\n", ext)
		return nil, err
	}
}

// ResizeMask resizes a label image with nearest neighbour interpolation so
// that class colours are never blended.
func ResizeMask(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.NearestNeighbor)
}

// toNRGBA converts any image into 8-bit NRGBA with origin at (0, 0).
func toNRGBA(img image.Image) *image.NRGBA {
	size := img.Bounds().Size()
	dst := image.NewNRGBA(image.Rect(0, 0, size.X, size.Y))
	draw.Copy(dst, image.ZP, img, img.Bounds(), draw.Src, nil)
	return dst
}

func isTiff(filename string) bool {
	switch filepath.Ext(filename) {
	case ".tiff", ".tif", ".TIFF", ".TIF":
		return true
	}
	return false
}

// TiffToPNG decodes a TIFF file and writes it as 8-bit PNG into dir.
// It returns path of the PNG file.
func TiffToPNG(filename, dir string) (string, error) {
	img, err := ReadImage(filename)
	if err != nil {
		return "", err
	}

	base := filepath.Base(filename)
	pngFile := filepath.Join(dir, base[:len(base)-len(filepath.Ext(base))]+".png")
	f, err := os.Create(pngFile)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := png.Encode(f, toNRGBA(img)); err != nil {
		return "", err
	}
	return pngFile, nil
}

// LoadTensor loads image file as float tensor [3 H W] with values in [0, 1].
// When size > 0 the image is resized to size x size. Original width and
// height are returned as well.
func LoadTensor(filename string, size int64) (*ts.Tensor, image.Point, error) {
	if isTiff(filename) {
		dir, err := os.MkdirTemp("", "fcn-tiff")
		if err != nil {
			return nil, image.Point{}, err
		}
		defer os.RemoveAll(dir)

		filename, err = TiffToPNG(filename, dir)
		if err != nil {
			return nil, image.Point{}, err
		}
	}

	x, err := vision.Load(filename)
	if err != nil {
		return nil, image.Point{}, err
	}
	dims := x.MustSize() // [C H W]
	orig := image.Pt(int(dims[2]), int(dims[1]))

	if size > 0 && (dims[1] != size || dims[2] != size) {
		resized, err := vision.Resize(x, size, size)
		x.MustDrop()
		if err != nil {
			return nil, image.Point{}, err
		}
		x = resized
	}

	return x.MustDiv1(ts.FloatScalar(255.0), true), orig, nil
}

// SavePNG saves image to file. Parent directory is created if needed.
func SavePNG(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return imaging.Save(img, filename)
}
