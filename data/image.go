package data

import (
	"image"
	_ "image/jpeg" // Essential: Registers JPEG format
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// LoadImage decodes an image of any size and returns it resized to targetW x targetH as
// grayscale pixels in the 0-255 range, row by row.
func LoadImage(path string, targetW, targetH int) ([]float64, error) {
	if targetW <= 0 || targetH <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", targetW, targetH)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Over, nil)

	out := make([]float64, 0, targetW*targetH)
	bounds := dst.Bounds()

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			// Standard Grayscale formula
			gray := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			out = append(out, gray)
		}
	}
	return out, nil
}

// LoadImageFolder reads root/<class>/<image> files. Classes are the sorted subdirectory
// names and each label is the index of its class. Pixels are scaled to [0, 1].
func LoadImageFolder(root string, targetW, targetH int) (X [][]float64, Y []float64, classes []string, err error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)
	if len(classes) == 0 {
		return nil, nil, nil, errors.Errorf("%s has no class directories", root)
	}

	for label, class := range classes {
		files, err := os.ReadDir(filepath.Join(root, class))
		if err != nil {
			return nil, nil, nil, err
		}
		for _, file := range files {
			if file.IsDir() || !isImage(file.Name()) {
				continue
			}
			pixels, err := LoadImage(filepath.Join(root, class, file.Name()), targetW, targetH)
			if err != nil {
				return nil, nil, nil, err
			}
			for i := range pixels {
				pixels[i] /= 255
			}
			X = append(X, pixels)
			Y = append(Y, float64(label))
		}
	}
	if len(X) == 0 {
		return nil, nil, nil, errors.Errorf("no images under %s", root)
	}
	return X, Y, classes, nil
}

func isImage(name string) bool {
	switch filepath.Ext(name) {
	case ".png", ".jpg", ".jpeg", ".PNG", ".JPG", ".JPEG":
		return true
	}
	return false
}
