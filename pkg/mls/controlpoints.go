// Package mls builds dense deformation fields from sparse control point
// pairs, using rigid Moving Least Squares.
package mls

import(
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
)

/* Example calibration file ...

origin: 1        # coordinates are 1-based (top left pixel is [1,1])
scale: 1.0       # optional; rescale all points, e.g. 0.5 if authored on a 2x bigger image
source:          # p: where things are in the output image
  - [225, 299]
  - [143, 297]
  - [158, 254]
target:          # q: where the output pixel should sample from
  - [219, 276]
  - [147, 282]
  - [158, 254]

*/

// A Pair is one correspondence: output pixel P should sample the source image at Q.
type Pair struct {
	P r2.Point
	Q r2.Point
}

// A ControlPointSet is an ordered list of pairs, with the coordinate
// convention they were written in. Collocated P's with differing Q's
// are allowed, but give an ill-posed field around them.
type ControlPointSet struct {
	Pairs  []Pair
	Origin int
}

func NewControlPointSet(ps, qs []r2.Point, origin int) (ControlPointSet, error) {
	cps := ControlPointSet{Origin: origin}
	if len(ps) != len(qs) {
		return cps, errors.Wrapf(failure.InvalidInput, "control points: point count mismatch: %d vs %d", len(ps), len(qs))
	}
	for i := range ps {
		cps.Pairs = append(cps.Pairs, Pair{P: ps[i], Q: qs[i]})
	}
	return cps, cps.Validate()
}

func (cps ControlPointSet)Len() int { return len(cps.Pairs) }

func (cps ControlPointSet)String() string {
	return fmt.Sprintf("ControlPoints[%d pairs, origin %d]", len(cps.Pairs), cps.Origin)
}

func (cps ControlPointSet)Validate() error {
	if len(cps.Pairs) == 0 {
		return errors.Wrap(failure.InvalidInput, "control points: empty set")
	}
	if cps.Origin != 0 && cps.Origin != 1 {
		return errors.Wrapf(failure.InvalidInput, "control points: origin %d, must be 0 or 1", cps.Origin)
	}
	for i, pr := range cps.Pairs {
		for _, f := range []float64{pr.P.X, pr.P.Y, pr.Q.X, pr.Q.Y} {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return errors.Wrapf(failure.InvalidInput, "control points: pair %d is not finite", i)
			}
		}
	}
	return nil
}

func (cps ControlPointSet)Sources() []r2.Point {
	pts := make([]r2.Point, len(cps.Pairs))
	for i, pr := range cps.Pairs {
		pts[i] = pr.P
	}
	return pts
}

func (cps ControlPointSet)Targets() []r2.Point {
	pts := make([]r2.Point, len(cps.Pairs))
	for i, pr := range cps.Pairs {
		pts[i] = pr.Q
	}
	return pts
}

// Transform maps every P and Q through m, returning a new set.
func (cps ControlPointSet)Transform(m emath.Aff3) ControlPointSet {
	out := ControlPointSet{Origin: cps.Origin, Pairs: make([]Pair, len(cps.Pairs))}
	apply := func(p r2.Point) r2.Point {
		x, y := m.Apply(p.X, p.Y)
		return r2.Point{X: x, Y: y}
	}
	for i, pr := range cps.Pairs {
		out.Pairs[i] = Pair{P: apply(pr.P), Q: apply(pr.Q)}
	}
	return out
}

// Rescale scales all the points about the top left pixel, for reusing a
// calibration authored at a different resolution.
func (cps ControlPointSet)Rescale(s float64) ControlPointSet {
	o := float64(cps.Origin)
	return cps.Transform(emath.Identity().Translate(o, o).Scale(s, s).Translate(-o, -o))
}

// Key identifies the field that Solve would produce for these points at
// size w x h: a hex SHA-256 over the origin, size and every coordinate.
func (cps ControlPointSet)Key(w, h int) string {
	hash := sha256.New()
	buf := make([]byte, 8)
	put := func(u uint64) {
		binary.LittleEndian.PutUint64(buf, u)
		hash.Write(buf)
	}

	put(uint64(cps.Origin))
	put(uint64(w))
	put(uint64(h))
	put(uint64(len(cps.Pairs)))
	for _, pr := range cps.Pairs {
		for _, f := range []float64{pr.P.X, pr.P.Y, pr.Q.X, pr.Q.Y} {
			put(math.Float64bits(f))
		}
	}

	return hex.EncodeToString(hash.Sum(nil))
}

type calibrationFile struct {
	Origin *int         `yaml:"origin"`
	Scale  float64      `yaml:"scale"`
	Source [][2]float64 `yaml:"source"`
	Target [][2]float64 `yaml:"target"`
}

// ParseCalibration reads a calibration from yaml; origin defaults to 1.
func ParseCalibration(b []byte) (ControlPointSet, error) {
	cf := calibrationFile{}
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return ControlPointSet{}, errors.Wrapf(failure.InvalidInput, "calibration parse: %v", err)
	}

	origin := 1
	if cf.Origin != nil {
		origin = *cf.Origin
	}

	toPoints := func(in [][2]float64) []r2.Point {
		pts := make([]r2.Point, len(in))
		for i, xy := range in {
			pts[i] = r2.Point{X: xy[0], Y: xy[1]}
		}
		return pts
	}

	cps, err := NewControlPointSet(toPoints(cf.Source), toPoints(cf.Target), origin)
	if err != nil {
		return cps, err
	}

	if cf.Scale < 0 {
		return cps, errors.Wrapf(failure.InvalidInput, "calibration: scale %f", cf.Scale)
	} else if cf.Scale != 0 && cf.Scale != 1 {
		cps = cps.Rescale(cf.Scale)
	}

	return cps, nil
}

func LoadCalibration(filename string) (ControlPointSet, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return ControlPointSet{}, errors.Wrapf(failure.IOFailure, "calibration read %s: %v", filename, err)
	}

	cps, err := ParseCalibration(contents)
	if err != nil {
		return cps, errors.Wrapf(err, "calibration %s", filename)
	}
	return cps, nil
}
