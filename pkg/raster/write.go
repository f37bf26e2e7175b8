package raster

import(
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/abworrall/fisheye-pano/pkg/failure"
)

// Write encodes the image, picking the format from the filename's
// extension: .png, .jpg/.jpeg, .tif/.tiff, .bmp, or .hdr (Radiance RGBE).
func Write(img *Image, filename string) error {
	if err := img.Validate(); err != nil {
		return errors.Wrapf(err, "write '%s'", filename)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp", ".hdr":
	default:
		return errors.Wrapf(failure.InvalidInput, "write '%s': unknown image format %q", filename, ext)
	}

	writer, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(failure.IOFailure, "open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	switch ext {
	case ".png":         err = png.Encode(writer, img)
	case ".jpg", ".jpeg": err = jpeg.Encode(writer, img, &jpeg.Options{Quality: 95})
	case ".tif", ".tiff": err = tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":         err = bmp.Encode(writer, img)
	case ".hdr":         err = rgbe.Encode(writer, HDRImage{img})
	}
	if err != nil {
		return errors.Wrapf(failure.IOFailure, "encode '%s': %v", filename, err)
	}

	log.Printf("Wrote %s to %s\n", img, filename)
	return nil
}

func WritePNG(img *Image, filename string) error {
	return Write(img, strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png")
}

// HDRImage presents an Image as an hdr.Image, with channel values mapped
// linearly from [0,255] into [0.0,1.0].
type HDRImage struct {
	*Image
}

// Implement image.Image
func (hi HDRImage)ColorModel() color.Model { return hdrcolor.RGBModel }
func (hi HDRImage)Bounds() image.Rectangle { return hi.Image.Bounds() }
func (hi HDRImage)At(x, y int) color.Color { return hi.HDRAt(x, y) }

// Implement hdr.Image
func (hi HDRImage)Size() int { return hi.Width * hi.Height }
func (hi HDRImage)HDRAt(x, y int) hdrcolor.Color {
	r, g, b, _ := hi.Image.At(x, y).RGBA()
	return hdrcolor.RGB{
		R: float64(r) / float64(0xFFFF),
		G: float64(g) / float64(0xFFFF),
		B: float64(b) / float64(0xFFFF),
	}
}
