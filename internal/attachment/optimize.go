package attachment

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

const (
	// MaxDimension is the maximum width or height of a stored image.
	MaxDimension = 1920
	// Quality is the JPEG quality of re-encoded images.
	Quality = 85
)

// Optimize resizes the image to fit in MaxDimension and re-encodes it.
// It returns the new content and its format extension.
// WebP images are re-encoded as JPEG since no WebP encoder is available.
func Optimize(content []byte, ext string) ([]byte, string, error) {
	var img image.Image
	var err error

	r := bytes.NewReader(content)
	switch ext {
	case "jpg", "jpeg":
		img, err = jpeg.Decode(r)
	case "png":
		img, err = png.Decode(r)
	case "gif":
		img, err = gif.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	default:
		return nil, "", errors.Errorf("unsupported format %s", ext)
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "could not decode image")
	}

	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return nil, "", errors.New("empty image")
	}
	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	switch ext {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	case "gif":
		err = gif.Encode(&buf, img, nil)
	default:
		ext = "jpg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: Quality})
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "could not encode image")
	}

	return buf.Bytes(), ext, nil
}

// fit scales img down, keeping its ratio, so both dimensions are at most max.
func fit(img image.Image, max int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= max && h <= max {
		return img
	}

	ratio := float64(max) / float64(w)
	if r := float64(max) / float64(h); r < ratio {
		ratio = r
	}
	nw := int(float64(w)*ratio + 0.5)
	nh := int(float64(h)*ratio + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
