// Package raster holds the in-memory Image that flows between the warp
// stages, and the helpers to get images in and out of files.
package raster

import(
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
)

// An Image is a grid of pixels, each with Channels 8 bit values,
// stored row-major with channels interleaved. Once a stage has produced
// an Image, nothing modifies it.
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

func NewImage(w, h, channels int) *Image {
	return &Image{
		Width:    w,
		Height:   h,
		Channels: channels,
		Pix:      make([]uint8, w*h*channels),
	}
}

// NewUniform makes an image where every pixel has the given channel values.
func NewUniform(w, h int, val ...uint8) *Image {
	img := NewImage(w, h, len(val))
	for i:=0; i<len(img.Pix); i += len(val) {
		copy(img.Pix[i:], val)
	}
	return img
}

func (img *Image)String() string {
	return fmt.Sprintf("Image[%dx%d, %dch]", img.Width, img.Height, img.Channels)
}

func (img *Image)Offset(x, y int) int     { return (y*img.Width + x) * img.Channels }
func (img *Image)Row(y int) []uint8       { return img.Pix[img.Offset(0,y):img.Offset(0,y+1)] }
func (img *Image)PixAt(x, y int) []uint8  { o := img.Offset(x,y); return img.Pix[o:o+img.Channels] }
func (img *Image)In(x, y int) bool        { return x >= 0 && y >= 0 && x < img.Width && y < img.Height }

func (img *Image)SameShape(other *Image) bool {
	return img.Width == other.Width && img.Height == other.Height && img.Channels == other.Channels
}

// Validate returns an InvalidInput error for nil, empty or malformed images.
func (img *Image)Validate() error {
	switch {
	case img == nil:
		return errors.Wrap(failure.InvalidInput, "nil image")
	case img.Width <= 0 || img.Height <= 0 || img.Channels <= 0:
		return errors.Wrapf(failure.InvalidInput, "empty image %s", img)
	case len(img.Pix) != img.Width*img.Height*img.Channels:
		return errors.Wrapf(failure.InvalidInput, "image %s has %d bytes of pixel data", img, len(img.Pix))
	}
	return nil
}

// Bilinear samples the image at the (fractional, 0-based) position
// (x,y), writing one value per channel into dst. Neighbours that fall
// outside the image contribute 0, so a sample entirely outside comes
// back as 0 on every channel.
func (img *Image)Bilinear(x, y float64, dst []uint8) {
	for c := range dst {
		dst[c] = 0
	}
	if math.IsNaN(x) || math.IsNaN(y) || x <= -1 || y <= -1 || x >= float64(img.Width) || y >= float64(img.Height) {
		return
	}

	xl, yl := int(math.Floor(x)), int(math.Floor(y))
	xr, yr := x - float64(xl), y - float64(yl)

	var acc [4]float64
	var sum []float64
	if img.Channels <= len(acc) {
		sum = acc[:img.Channels]
	} else {
		sum = make([]float64, img.Channels)
	}

	add := func(px, py int, w float64) {
		if w == 0 || !img.In(px, py) {
			return
		}
		o := img.Offset(px, py)
		for c := range sum {
			sum[c] += w * float64(img.Pix[o+c])
		}
	}

	add(xl,   yl,   (1-xr)*(1-yr))
	add(xl+1, yl,   xr*(1-yr))
	add(xl,   yl+1, (1-xr)*yr)
	add(xl+1, yl+1, xr*yr)

	for c := range dst {
		if c < len(sum) {
			dst[c] = emath.RoundToU8(sum[c])
		}
	}
}

// Implement golang's image.Image interface, so the stdlib & x/image
// encoders can write us out.
func (img *Image)ColorModel() color.Model { return color.RGBAModel }
func (img *Image)Bounds() image.Rectangle { return image.Rect(0, 0, img.Width, img.Height) }
func (img *Image)At(x, y int) color.Color {
	if !img.In(x, y) {
		return color.RGBA{0, 0, 0, 0xff}
	}
	p := img.PixAt(x, y)
	switch len(p) {
	case 1, 2:
		return color.RGBA{p[0], p[0], p[0], 0xff}
	default:
		return color.RGBA{p[0], p[1], p[2], 0xff}
	}
}

// FromImage converts any decoded image into a 3 channel (RGB) Image.
// Alpha is dropped; premultiplied values are used as-is.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	img := NewImage(b.Dx(), b.Dy(), 3)

	for y:=0; y<b.Dy(); y++ {
		row := img.Row(y)
		for x:=0; x<b.Dx(); x++ {
			r, g, bl, _ := src.At(b.Min.X + x, b.Min.Y + y).RGBA()
			row[3*x+0] = uint8(r >> 8)
			row[3*x+1] = uint8(g >> 8)
			row[3*x+2] = uint8(bl >> 8)
		}
	}

	return img
}
