package dualfish

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/fisheye"
	"github.com/abworrall/fisheye-pano/pkg/mls"
	"github.com/abworrall/fisheye-pano/pkg/raster"
	"github.com/abworrall/fisheye-pano/pkg/warp"
)

func TestConfigFromYaml(t *testing.T) {
	c, err := newConfigFromYaml([]byte(`
frontfilename: f.png
backfilename: b.png
calibrationfile: calib.yaml
blendwidth: 0
camera:
  f: 500
  cx: 100
  cy: 90
`))
	require.NoError(t, err)
	assert.Equal(t, "f.png", c.FrontFilename)
	assert.Equal(t, "b.png", c.BackFilename)
	assert.Equal(t, "calib.yaml", c.CalibrationFile)
	assert.Equal(t, 0, c.BlendWidth)
	assert.Equal(t, fisheye.DefaultFOVDeg, c.FOVDeg)
	assert.Equal(t, fisheye.CameraModel{F: 500, Cx: 100, Cy: 90}, c.Camera)
	assert.Contains(t, c.AsYaml(), "calibrationfile: calib.yaml")

	_, err = newConfigFromYaml([]byte("blendwidth: [1"))
	assert.True(t, errors.Is(err, failure.InvalidInput))

	_, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, failure.IOFailure))
}

func TestFinalizeDefaults(t *testing.T) {
	c := NewConfig()
	require.NoError(t, c.Finalize(1920, 1922))

	assert.Equal(t, 1920, c.OutputWidth)
	assert.Equal(t, 960, c.OutputHeight)
	assert.InDelta(t, fisheye.FocalFromFOV(1922, 192), c.Camera.F, 1e-9)
	assert.Equal(t, 960.0, c.Camera.Cx)
	assert.Equal(t, 961.0, c.Camera.Cy)
	assert.Equal(t, 192.0, c.Camera.FOVDeg)

	// A focal length on its own still gets the centred principal point
	c = NewConfig()
	c.Camera.F = 500
	require.NoError(t, c.Finalize(1920, 1920))
	assert.Equal(t, 500.0, c.Camera.F)
	assert.Equal(t, 960.0, c.Camera.Cx)
	assert.Equal(t, 960.0, c.Camera.Cy)

	// An explicit principal point is left alone
	c = NewConfig()
	c.Camera.Cx, c.Camera.Cy = 950, 970
	require.NoError(t, c.Finalize(1920, 1920))
	assert.Equal(t, 950.0, c.Camera.Cx)
	assert.Equal(t, 970.0, c.Camera.Cy)
	assert.InDelta(t, fisheye.FocalFromFOV(1920, 192), c.Camera.F, 1e-9)
}

func TestFinalizeInvalid(t *testing.T) {
	for _, tweak := range []func(*Config){
		func(c *Config) { c.BlendWidth = -2 },
		func(c *Config) { c.FOVDeg = 0 },
		func(c *Config) { c.OutputWidth = -4 },
		func(c *Config) { c.CalibrationFile, c.FieldFile = "a.yaml", "b.mlsz" },
		func(c *Config) { c.StrictDims, c.OutputWidth, c.OutputHeight = true, 101, 50 },
	} {
		c := NewConfig()
		tweak(&c)
		assert.True(t, errors.Is(c.Finalize(100, 100), failure.InvalidInput), "%+v", c)
	}

	c := NewConfig()
	assert.True(t, errors.Is(c.Finalize(0, 100), failure.InvalidInput))

	// Odd sizes are only a warning unless strict
	c = NewConfig()
	c.OutputWidth, c.OutputHeight = 101, 50
	assert.NoError(t, c.Finalize(100, 100))
}

func newTestStitcher(t *testing.T) Stitcher {
	dir := t.TempDir()
	s := NewStitcher()
	s.Front = raster.NewUniform(40, 40, 100, 110, 120)
	s.Back = raster.NewUniform(40, 40, 200, 210, 220)
	s.OutputFilename = filepath.Join(dir, "pano.png")
	s.CacheDir = filepath.Join(dir, "cache")
	s.Workers = 2

	pts := []r2.Point{{X: 5, Y: 5}, {X: 30, Y: 6}, {X: 8, Y: 15}, {X: 33, Y: 17}}
	cps, err := mls.NewControlPointSet(pts, pts, 1)
	require.NoError(t, err)
	s.ControlPoints = &cps

	return s
}

func TestRun(t *testing.T) {
	s := newTestStitcher(t)
	require.NoError(t, s.Run())

	assert.Equal(t, 40, s.Panorama.Width)
	assert.Equal(t, 20, s.Panorama.Height)
	require.NotNil(t, s.Field)
	assert.Equal(t, 40, s.Field.Width())
	assert.Equal(t, 20, s.Field.Height())

	// An identity calibration leaves the projection alone
	assert.Equal(t, s.FrontEqui, s.Corrected)

	written, err := raster.Load(s.OutputFilename)
	require.NoError(t, err)
	assert.Equal(t, s.Panorama, written)

	// The solved field went into the cache, and a second run picks it up
	_, err = os.Stat(filepath.Join(s.CacheDir, s.ControlPoints.Key(40, 20)+warp.ArtifactExt))
	require.NoError(t, err)

	s2 := newTestStitcher(t)
	s2.CacheDir = s.CacheDir
	require.NoError(t, s2.Load())
	require.NoError(t, s2.PrepareField())
	assert.Equal(t, s.Field, s2.Field)
}

func TestRunWithoutCalibration(t *testing.T) {
	s := newTestStitcher(t)
	s.ControlPoints = nil
	s.BlendWidth = 0
	require.NoError(t, s.Run())

	assert.Nil(t, s.Field)
	assert.Equal(t, s.FrontEqui, s.Corrected)

	// The middle column comes straight from the front projection
	assert.Equal(t, s.FrontEqui.PixAt(20, 10), s.Panorama.PixAt(20, 10))
}

func TestDebugImages(t *testing.T) {
	s := newTestStitcher(t)
	s.Verbosity = 2
	require.NoError(t, s.Run())
	require.NotNil(t, s.Seams)

	for _, name := range []string{"front-equi.png", "back-equi.png", "front-corrected.png", "field.png", "seams.png", "controlpoints.png"} {
		_, err := os.Stat(s.debugFilename(name))
		assert.NoError(t, err, name)
	}
}

func TestFieldFile(t *testing.T) {
	s := newTestStitcher(t)
	s.ControlPoints = nil
	s.FieldFile = filepath.Join(t.TempDir(), "f"+warp.ArtifactExt)
	require.NoError(t, warp.SaveArtifact(warp.Identity(40, 20, 1), "", s.FieldFile))
	require.NoError(t, s.Run())
	assert.Equal(t, warp.Identity(40, 20, 1), s.Field)

	// A field for some other output size is refused
	s = newTestStitcher(t)
	s.FieldFile = filepath.Join(t.TempDir(), "g"+warp.ArtifactExt)
	require.NoError(t, warp.SaveArtifact(warp.Identity(20, 10, 1), "", s.FieldFile))
	err := s.Run()
	assert.True(t, errors.Is(err, failure.ArtifactMismatch), "%v", err)
}

func TestLoadMismatchedInputs(t *testing.T) {
	s := newTestStitcher(t)
	s.Back = raster.NewUniform(30, 40, 1, 2, 3)
	assert.True(t, errors.Is(s.Load(), failure.InvalidInput))
}
