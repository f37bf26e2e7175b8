package warp

import(
	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/raster"
	"github.com/abworrall/fisheye-pano/pkg/workpool"
)

// A CoordFunc maps an output pixel to the 0-based source coordinate it
// should be sampled from. It must be safe to call from many goroutines.
type CoordFunc func(x, y int) (float64, float64)

// Warp resamples src through the deformation field: output pixel (x,y)
// is the bilinear sample of src at the field's source coordinate, per
// channel, with 0 for anything outside src. The output is the field's
// size, with src's channel count. Rows are spread over workers
// goroutines; <= 0 means one per CPU.
func Warp(src *raster.Image, df *DeformationField, workers int) (*raster.Image, error) {
	if err := df.Validate(); err != nil {
		return nil, errors.Wrap(err, "warp")
	}
	return Remap(src, df.Width(), df.Height(), workers, df.SourceAt)
}

// Remap is Warp for any coordinate map; the projector uses it directly.
func Remap(src *raster.Image, outW, outH, workers int, coords CoordFunc) (*raster.Image, error) {
	if err := src.Validate(); err != nil {
		return nil, errors.Wrap(err, "remap source")
	}
	if outW <= 0 || outH <= 0 {
		return nil, errors.Wrapf(failure.InvalidInput, "remap: output size %dx%d", outW, outH)
	}

	out := raster.NewImage(outW, outH, src.Channels)

	workpool.Rows(outH, workers, func(y int) {
		row := out.Row(y)
		for x:=0; x<outW; x++ {
			sx, sy := coords(x, y)
			src.Bilinear(sx, sy, row[x*src.Channels:(x+1)*src.Channels])
		}
	}, nil)

	return out, nil
}
