package mls

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/raster"
	"github.com/abworrall/fisheye-pano/pkg/warp"
)

var corners = []r2.Point{{X: 2, Y: 3}, {X: 17, Y: 4}, {X: 3, Y: 14}, {X: 15, Y: 12}, {X: 9, Y: 8.5}}

func mapped(pts []r2.Point, m emath.Aff3) []r2.Point {
	out := make([]r2.Point, len(pts))
	for i, p := range pts {
		x, y := m.Apply(p.X, p.Y)
		out[i] = r2.Point{X: x, Y: y}
	}
	return out
}

func assertPointNear(t *testing.T, expected, actual r2.Point, delta float64) {
	t.Helper()
	assert.InDelta(t, expected.X, actual.X, delta, "x, at %v", expected)
	assert.InDelta(t, expected.Y, actual.Y, delta, "y, at %v", expected)
}

func TestIdentityControlPoints(t *testing.T) {
	cps, err := NewControlPointSet(corners, corners, 1)
	require.NoError(t, err)

	df, err := Solve(cps, 6, 8, SolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 8, df.Width())
	assert.Equal(t, 6, df.Height())
	assert.Equal(t, 1, df.Origin)

	for r := 0; r < 6; r++ {
		for c := 0; c < 8; c++ {
			x, y := df.Get(c, r)
			assert.InDelta(t, float64(c+1), x, 1e-9)
			assert.InDelta(t, float64(r+1), y, 1e-9)
		}
	}

	// And warping with it leaves the image alone
	src := raster.NewImage(8, 6, 3)
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}
	out, err := warp.Warp(src, df, 0)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestSinglePairIsTranslation(t *testing.T) {
	cps, err := NewControlPointSet([]r2.Point{{X: 4, Y: 4}}, []r2.Point{{X: 6.5, Y: 1}}, 1)
	require.NoError(t, err)

	df, err := Solve(cps, 5, 7, SolveOptions{})
	require.NoError(t, err)
	for r := 0; r < 5; r++ {
		for c := 0; c < 7; c++ {
			x, y := df.Get(c, r)
			assert.InDelta(t, float64(c+1)+2.5, x, 1e-9)
			assert.InDelta(t, float64(r+1)-3.0, y, 1e-9)
		}
	}
}

func TestCollocatedTargetsPinToTarget(t *testing.T) {
	pairs := []Pair{{P: r2.Point{X: 2, Y: 2}, Q: r2.Point{X: 5, Y: 5}}, {P: r2.Point{X: 10, Y: 2}, Q: r2.Point{X: 5, Y: 5}}}

	for _, v := range []r2.Point{{X: 6, Y: 8}, {X: 1, Y: 20}, {X: 2, Y: 2}, {X: 300, Y: -40}} {
		assertPointNear(t, r2.Point{X: 5, Y: 5}, SolvePoint(v, pairs), 1e-9)
	}
}

func TestCollocatedSourcesTranslate(t *testing.T) {
	pairs := []Pair{{P: r2.Point{X: 4, Y: 4}, Q: r2.Point{X: 6, Y: 4}}, {P: r2.Point{X: 4, Y: 4}, Q: r2.Point{X: 8, Y: 4}}}

	// Both weights are equal, so q* is the midpoint of the targets
	for _, v := range []r2.Point{{X: 0, Y: 0}, {X: 9, Y: 13}, {X: 4, Y: 4}} {
		assertPointNear(t, r2.Point{X: v.X + 3, Y: v.Y}, SolvePoint(v, pairs), 1e-9)
	}
}

func TestRigidMotionIsReproduced(t *testing.T) {
	m := emath.Identity().Translate(3.5, -2).Mult(emath.RotateAbout(25, 9, 9))
	pairs := []Pair{}
	for i, q := range mapped(corners, m) {
		pairs = append(pairs, Pair{P: corners[i], Q: q})
	}

	for _, v := range []r2.Point{{X: 0, Y: 0}, {X: 9, Y: 9}, {X: 20, Y: 1}, {X: 5.25, Y: 11.75}, corners[2]} {
		x, y := m.Apply(v.X, v.Y)
		assertPointNear(t, r2.Point{X: x, Y: y}, SolvePoint(v, pairs), 1e-6)
	}
}

func TestCoincidentPointBindsToTarget(t *testing.T) {
	pairs := []Pair{
		{P: r2.Point{X: 10, Y: 10}, Q: r2.Point{X: 12, Y: 9}},
		{P: r2.Point{X: 50, Y: 10}, Q: r2.Point{X: 50, Y: 10}},
		{P: r2.Point{X: 10, Y: 50}, Q: r2.Point{X: 10, Y: 50}},
		{P: r2.Point{X: 50, Y: 50}, Q: r2.Point{X: 52, Y: 51}},
	}
	for _, pr := range pairs {
		res := SolvePoint(pr.P, pairs)
		assertPointNear(t, pr.Q, res, 1e-3)
		assert.False(t, math.IsNaN(res.X) || math.IsNaN(res.Y))
	}
}

func TestSolveIsIndependentOfWorkers(t *testing.T) {
	qs := []r2.Point{{X: 2.5, Y: 3}, {X: 16, Y: 5}, {X: 3, Y: 13}, {X: 15.5, Y: 12.5}, {X: 10, Y: 8}}
	cps, err := NewControlPointSet(corners, qs, 1)
	require.NoError(t, err)

	var rows int64
	one, err := Solve(cps, 16, 20, SolveOptions{Workers: 1})
	require.NoError(t, err)
	many, err := Solve(cps, 16, 20, SolveOptions{Workers: 5, Progress: func(done, total int) {
		atomic.AddInt64(&rows, 1)
		assert.Equal(t, 16, total)
	}})
	require.NoError(t, err)

	assert.Equal(t, one, many)
	assert.Equal(t, int64(16), atomic.LoadInt64(&rows))
	assert.Equal(t, 0, many.Summarize().NonFinite)
}

func TestSolveInvalid(t *testing.T) {
	_, err := Solve(ControlPointSet{Origin: 1}, 4, 4, SolveOptions{})
	assert.True(t, errors.Is(err, failure.InvalidInput))

	cps, err := NewControlPointSet(corners, corners, 0)
	require.NoError(t, err)
	_, err = Solve(cps, 0, 4, SolveOptions{})
	assert.True(t, errors.Is(err, failure.InvalidInput))

	_, err = NewControlPointSet(corners, corners[:2], 1)
	assert.True(t, errors.Is(err, failure.InvalidInput))

	_, err = NewControlPointSet([]r2.Point{{X: math.NaN(), Y: 1}}, []r2.Point{{X: 1, Y: 1}}, 1)
	assert.True(t, errors.Is(err, failure.InvalidInput))

	_, err = NewControlPointSet(corners, corners, 2)
	assert.True(t, errors.Is(err, failure.InvalidInput))
}

func TestKey(t *testing.T) {
	a, _ := NewControlPointSet(corners, corners, 1)
	b, _ := NewControlPointSet(corners, corners, 1)
	assert.Equal(t, a.Key(10, 5), b.Key(10, 5))
	assert.Len(t, a.Key(10, 5), 64)

	assert.NotEqual(t, a.Key(10, 5), a.Key(5, 10))

	b.Origin = 0
	assert.NotEqual(t, a.Key(10, 5), b.Key(10, 5))

	c := a.Transform(emath.Identity().Translate(0, 1e-9))
	assert.NotEqual(t, a.Key(10, 5), c.Key(10, 5))
}

func TestRescale(t *testing.T) {
	cps, err := NewControlPointSet([]r2.Point{{X: 3, Y: 5}}, []r2.Point{{X: 1, Y: 1}}, 1)
	require.NoError(t, err)

	half := cps.Rescale(0.5)
	assert.Equal(t, r2.Point{X: 2, Y: 3}, half.Pairs[0].P)
	assert.Equal(t, r2.Point{X: 1, Y: 1}, half.Pairs[0].Q)
	assert.Equal(t, 1, half.Origin)
}

func TestLoadCalibration(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "calib.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(`
source:
  - [225, 299]
  - [143, 297]
target:
  - [219, 276]
  - [147, 282]
`), 0644))

	cps, err := LoadCalibration(filename)
	require.NoError(t, err)
	assert.Equal(t, 1, cps.Origin)
	assert.Equal(t, []r2.Point{{X: 225, Y: 299}, {X: 143, Y: 297}}, cps.Sources())
	assert.Equal(t, []r2.Point{{X: 219, Y: 276}, {X: 147, Y: 282}}, cps.Targets())

	cps, err = ParseCalibration([]byte("origin: 0\nscale: 2\nsource: [[1, 2]]\ntarget: [[3, 4]]\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cps.Origin)
	assert.Equal(t, Pair{P: r2.Point{X: 2, Y: 4}, Q: r2.Point{X: 6, Y: 8}}, cps.Pairs[0])

	_, err = ParseCalibration([]byte("source: [[1, 2], [3, 4]]\ntarget: [[3, 4]]\n"))
	assert.True(t, errors.Is(err, failure.InvalidInput))

	_, err = ParseCalibration([]byte("source: [[1, 2]]\ntarget: [[3, 4]]\nscale: -1\n"))
	assert.True(t, errors.Is(err, failure.InvalidInput))

	_, err = LoadCalibration(filepath.Join(dir, "nope.yaml"))
	assert.True(t, errors.Is(err, failure.IOFailure))
}
