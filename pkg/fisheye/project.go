package fisheye

import(
	"math"

	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/raster"
	"github.com/abworrall/fisheye-pano/pkg/warp"
)

// linspace returns the i'th of n evenly spaced values from lo to hi
// inclusive; n == 1 gives lo.
func linspace(lo, hi float64, i, n int) float64 {
	if n <= 1 {
		return lo
	}
	return lo + (hi-lo)*float64(i)/float64(n-1)
}

// A projection is a camera model, set up for repeated lookups.
type projection struct {
	cam        CameraModel
	rot        emath.Mat3
	rotated    bool
	outW, outH int
}

func newProjection(cam CameraModel, outW, outH int) projection {
	return projection{cam: cam, rot: cam.Rotation(), rotated: cam.IsRotated(), outW: outW, outH: outH}
}

func (p projection)sourceCoord(col, row int) (float64, float64) {
	lambda := linspace(-math.Pi, math.Pi, col, p.outW)   // longitude
	phi    := linspace(-math.Pi/2, math.Pi/2, row, p.outH) // latitude

	dir := emath.Vec3{
		math.Cos(phi) * math.Sin(lambda),
		math.Sin(phi),
		math.Cos(phi) * math.Cos(lambda),
	}
	if p.rotated {
		dir = p.rot.Apply(dir)
	}

	z := dir[2]
	if z > 1 {
		z = 1
	} else if z < -1 {
		z = -1
	}

	theta := math.Acos(z)
	if theta == 0 {
		return p.cam.Cx, p.cam.Cy
	}

	psi := math.Atan2(dir[1], dir[0])
	r := p.cam.F * theta
	return p.cam.Cx + r*math.Cos(psi), p.cam.Cy + r*math.Sin(psi)
}

// SourceCoord returns the 0-based fisheye image coordinate that feeds
// the equirectangular output pixel (col,row) of an outW x outH grid.
func SourceCoord(cam CameraModel, col, row, outW, outH int) (float64, float64) {
	return newProjection(cam, outW, outH).sourceCoord(col, row)
}

func checkArgs(cam CameraModel, outW, outH int) error {
	if outW <= 0 || outH <= 0 {
		return errors.Wrapf(failure.InvalidInput, "fisheye: output size %dx%d", outW, outH)
	}
	return cam.CheckValid()
}

// Project renders img, taken through cam, as an outW x outH
// equirectangular image covering 360° of longitude and 180° of
// latitude. Anything the lens didn't see is black. workers <= 0 means
// one per CPU.
func Project(img *raster.Image, cam CameraModel, outW, outH, workers int) (*raster.Image, error) {
	if err := checkArgs(cam, outW, outH); err != nil {
		return nil, err
	}
	if err := img.Validate(); err != nil {
		return nil, errors.Wrap(err, "fisheye project")
	}

	return warp.Remap(img, outW, outH, workers, newProjection(cam, outW, outH).sourceCoord)
}

// CoordMap computes the projection as a 0-origin field, so it can be
// saved, inspected or reused across many frames from the same camera.
func CoordMap(cam CameraModel, outW, outH int) (*warp.DeformationField, error) {
	if err := checkArgs(cam, outW, outH); err != nil {
		return nil, err
	}

	p := newProjection(cam, outW, outH)
	df := warp.NewDeformationField(outW, outH, 0)
	for row:=0; row<outH; row++ {
		for col:=0; col<outW; col++ {
			x, y := p.sourceCoord(col, row)
			df.Set(col, row, x, y)
		}
	}
	return df, nil
}
