package dualfish

import(
	"log"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/fisheye"
	"github.com/abworrall/fisheye-pano/pkg/raster"
)

/* Example config file ...

frontfilename: input/images/front_fish.png
backfilename: input/images/back_fish.png
calibrationfile: input/calibration/points.yaml
cachedir: /tmp/fisheye-pano
outputfilename: output/panorama.jpg
fovdeg: 192
blendwidth: 16
camera:          # optional; derived from the image size and fov if absent
  f: 572.96
  cx: 960
  cy: 960

*/

type Config struct {
	Verbosity       int

	FrontFilename   string  // fisheye image, the one the deformation field is applied to
	BackFilename    string
	CalibrationFile string  // control points yaml; see mls.LoadCalibration
	FieldFile       string  // a presolved field, used instead of the calibration
	CacheDir        string  // if set, solved fields are kept here
	OutputFilename  string
	DebugPrefix     string  // prefix for the debug images written when verbose

	FOVDeg          float64
	OutputWidth     int     // 0 means derive from the input
	OutputHeight    int
	BlendWidth      int     // columns to feather each seam over; 0 gives a hard cut
	StrictDims      bool    // refuse output sizes the sphere viewer can't show cleanly
	Workers         int

	Camera          fisheye.CameraModel
}

func NewConfig() Config {
	return Config{
		OutputFilename: "panorama.png",
		DebugPrefix:    "debug-",
		FOVDeg:         fisheye.DefaultFOVDeg,
		BlendWidth:     16,
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, errors.Wrapf(failure.InvalidInput, "config parse: %v", err)
	}
	return c, nil
}

func LoadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, errors.Wrapf(failure.IOFailure, "config read %s: %v", filename, err)
	}

	c, err := newConfigFromYaml(contents)
	if err != nil {
		return c, errors.Wrapf(err, "config %s", filename)
	}
	log.Printf("Loaded base configuration from %s\n", filename)
	return c, nil
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Printf("Can't marshal config yaml: %v\n", err)
		return ""
	}
	return string(b)
}

// Finalize does sanity checks, and fills in the values that depend on
// the size of the fisheye inputs (w x h).
func (c *Config)Finalize(w, h int) error {
	if w <= 0 || h <= 0 {
		return errors.Wrapf(failure.InvalidInput, "config: input size %dx%d", w, h)
	}
	if c.FOVDeg <= 0 || c.FOVDeg > 360 {
		return errors.Wrapf(failure.InvalidInput, "config: fov %f", c.FOVDeg)
	}
	if c.BlendWidth < 0 {
		return errors.Wrapf(failure.InvalidInput, "config: blend width %d", c.BlendWidth)
	}
	if c.OutputWidth < 0 || c.OutputHeight < 0 {
		return errors.Wrapf(failure.InvalidInput, "config: output size %dx%d", c.OutputWidth, c.OutputHeight)
	}
	if c.CalibrationFile != "" && c.FieldFile != "" {
		return errors.Wrap(failure.InvalidInput, "config: give a calibration file or a field file, not both")
	}

	// A square panorama strip, half as tall, as wide as the fisheye is tall
	if c.OutputWidth == 0 {
		c.OutputWidth = raster.RoundDownTo4(h)
	}
	if c.OutputHeight == 0 {
		c.OutputHeight = c.OutputWidth / 2
	}
	if err := raster.CheckViewerDims(c.OutputWidth, c.OutputHeight, c.StrictDims); err != nil {
		return err
	}

	derived := fisheye.NewCameraModel(w, h, c.FOVDeg)
	if c.Camera.F == 0 {
		c.Camera.F = derived.F
	}
	if c.Camera.Cx == 0 && c.Camera.Cy == 0 {
		c.Camera.Cx, c.Camera.Cy = derived.Cx, derived.Cy
	}
	if c.Camera.FOVDeg == 0 {
		c.Camera.FOVDeg = c.FOVDeg
	}

	return c.Camera.CheckValid()
}
