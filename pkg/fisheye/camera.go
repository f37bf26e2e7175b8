// Package fisheye projects an equidistant fisheye image onto an
// equirectangular grid.
package fisheye

import(
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
)

// DefaultFOVDeg is the field of view of the dual fisheye cameras this was built for.
const DefaultFOVDeg = 192.0

// A CameraModel describes an equidistant (r = f·θ) fisheye lens. F is in
// pixels per radian; (Cx,Cy) is the principal point, 0-based. The
// optional yaw/pitch/roll (degrees) turn the camera away from looking
// straight down +Z.
type CameraModel struct {
	F        float64 `yaml:"f"`
	Cx       float64 `yaml:"cx"`
	Cy       float64 `yaml:"cy"`
	FOVDeg   float64 `yaml:"fov"`
	YawDeg   float64 `yaml:"yaw,omitempty"`
	PitchDeg float64 `yaml:"pitch,omitempty"`
	RollDeg  float64 `yaml:"roll,omitempty"`
}

// FocalFromFOV is the focal length, in pixels per radian, of a lens that
// fits fovDeg across sensorSize pixels.
func FocalFromFOV(sensorSize, fovDeg float64) float64 {
	return sensorSize / (fovDeg * math.Pi / 180.0)
}

// NewCameraModel builds the model for a w x h fisheye image, with the
// principal point in the middle of the image.
func NewCameraModel(w, h int, fovDeg float64) CameraModel {
	return CameraModel{
		F:      FocalFromFOV(float64(h), fovDeg),
		Cx:     float64(w) / 2.0,
		Cy:     float64(h) / 2.0,
		FOVDeg: fovDeg,
	}
}

func (cam CameraModel)String() string {
	str := fmt.Sprintf("Fisheye[f=%.2f, c=(%.1f,%.1f), fov=%.1f]", cam.F, cam.Cx, cam.Cy, cam.FOVDeg)
	if cam.IsRotated() {
		str += fmt.Sprintf(" ypr=(%.1f,%.1f,%.1f)", cam.YawDeg, cam.PitchDeg, cam.RollDeg)
	}
	return str
}

func (cam CameraModel)CheckValid() error {
	for _, f := range []float64{cam.F, cam.Cx, cam.Cy, cam.YawDeg, cam.PitchDeg, cam.RollDeg} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Wrapf(failure.InvalidInput, "%s: not finite", cam)
		}
	}
	if cam.F <= 0 {
		return errors.Wrapf(failure.InvalidInput, "%s: focal length must be positive", cam)
	}
	return nil
}

func (cam CameraModel)IsRotated() bool {
	return cam.YawDeg != 0 || cam.PitchDeg != 0 || cam.RollDeg != 0
}

func (cam CameraModel)Rotation() emath.Mat3 {
	return emath.RotationYPR(cam.YawDeg, cam.PitchDeg, cam.RollDeg)
}
