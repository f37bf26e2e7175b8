package raster

import(
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/failure"
)

var(
	// Marker styling for the overlay; source points hollow, targets filled
	SourceMarker = colorful.Color{R: 0, G: 1, B: 1}
	TargetMarker = colorful.Color{R: 1, G: 1, B: 1}
)

// DrawControlPoints renders the calibration pairs on top of an image:
// each source point `ps[i]` gets a ring, each target `qs[i]` a dot, and
// a line joins each pair, in a hue unique to the pair. Coordinates are
// in the given origin convention (0 or 1 based).
func DrawControlPoints(img *Image, ps, qs []r2.Point, origin int) (image.Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if len(ps) != len(qs) {
		return nil, errors.Wrapf(failure.InvalidInput, "overlay: point count mismatch: %d vs %d", len(ps), len(qs))
	}

	dc := gg.NewContextForImage(img)
	dc.SetLineWidth(1.5)
	off := float64(origin)

	for i := range ps {
		pairCol := colorful.Hsv(360.0 * float64(i) / float64(len(ps)), 0.9, 1.0)
		p := ps[i].Sub(r2.Point{X: off, Y: off})
		q := qs[i].Sub(r2.Point{X: off, Y: off})

		dc.SetColor(pairCol)
		dc.DrawLine(p.X, p.Y, q.X, q.Y)
		dc.Stroke()

		dc.SetColor(SourceMarker.BlendRgb(pairCol, 0.3))
		dc.DrawCircle(p.X, p.Y, 3)
		dc.Stroke()

		dc.SetColor(TargetMarker.BlendRgb(pairCol, 0.3))
		dc.DrawCircle(q.X, q.Y, 2)
		dc.Fill()
	}

	return dc.Image(), nil
}

// WriteControlPoints draws the overlay and saves it as a PNG.
func WriteControlPoints(img *Image, ps, qs []r2.Point, origin int, filename string) error {
	out, err := DrawControlPoints(img, ps, qs, origin)
	if err != nil {
		return err
	}
	if err := gg.SavePNG(filename, out); err != nil {
		return errors.Wrapf(failure.IOFailure, "overlay write '%s': %v", filename, err)
	}
	return nil
}
