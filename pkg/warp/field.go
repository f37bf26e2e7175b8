// Package warp holds deformation fields, and applies them (or any other
// per-pixel coordinate map) to images.
package warp

import(
	"fmt"
	"math"

	"github.com/codahale/hdrhistogram"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
)

// A DeformationField says, for every output pixel (x,y), which source
// image coordinate (Xd[y][x], Yd[y][x]) should be sampled to fill it.
// Origin records the convention the values are in: 1 means the source's
// top left pixel is (1,1), 0 means (0,0). Once built, a field is only
// ever read, so one field can serve many concurrent Warp calls.
type DeformationField struct {
	Xd     emath.FloatGrid
	Yd     emath.FloatGrid
	Origin int
}

func NewDeformationField(w, h, origin int) *DeformationField {
	return &DeformationField{
		Xd:     emath.NewFloatGrid(w, h),
		Yd:     emath.NewFloatGrid(w, h),
		Origin: origin,
	}
}

func (df *DeformationField)Width() int  { return df.Xd.Dx() }
func (df *DeformationField)Height() int { return df.Xd.Dy() }

func (df *DeformationField)String() string {
	return fmt.Sprintf("Field[%dx%d, origin %d]", df.Width(), df.Height(), df.Origin)
}

// Set stores the source coordinate for output pixel (x,y), in the field's origin convention.
func (df *DeformationField)Set(x, y int, sx, sy float64) {
	df.Xd.Set(x, y, sx)
	df.Yd.Set(x, y, sy)
}

// Get returns the stored source coordinate, in the field's origin convention.
func (df *DeformationField)Get(x, y int) (float64, float64) {
	return df.Xd.Get(x, y), df.Yd.Get(x, y)
}

// SourceAt returns the 0-based source coordinate for output pixel (x,y).
// This is the one place the origin offset gets applied.
func (df *DeformationField)SourceAt(x, y int) (float64, float64) {
	off := float64(df.Origin)
	return df.Xd.Get(x, y) - off, df.Yd.Get(x, y) - off
}

// Validate checks the two grids agree, and the origin is one we know.
func (df *DeformationField)Validate() error {
	switch {
	case df == nil:
		return errors.Wrap(failure.InvalidInput, "nil deformation field")
	case df.Origin != 0 && df.Origin != 1:
		return errors.Wrapf(failure.ArtifactMismatch, "%s: origin must be 0 or 1", df)
	case !df.Xd.SameShape(&df.Yd):
		return errors.Wrapf(failure.ArtifactMismatch, "%s: Xd is %dx%d but Yd is %dx%d", df,
			df.Xd.Dx(), df.Xd.Dy(), df.Yd.Dx(), df.Yd.Dy())
	case df.Width() <= 0 || df.Height() <= 0:
		return errors.Wrapf(failure.InvalidInput, "%s: empty field", df)
	}
	return nil
}

// CheckSize returns an ArtifactMismatch error unless the field is w x h.
func (df *DeformationField)CheckSize(w, h int) error {
	if err := df.Validate(); err != nil {
		return err
	}
	if df.Width() != w || df.Height() != h {
		return errors.Wrapf(failure.ArtifactMismatch, "%s, but output is %dx%d", df, w, h)
	}
	return nil
}

// Identity builds the field that maps every pixel to itself.
func Identity(w, h, origin int) *DeformationField {
	df := NewDeformationField(w, h, origin)
	for y:=0; y<h; y++ {
		for x:=0; x<w; x++ {
			df.Set(x, y, float64(x+origin), float64(y+origin))
		}
	}
	return df
}

// A FieldSummary describes how far the field moves pixels.
type FieldSummary struct {
	Mean, StdDev      float64
	P50, P90, P99, Max float64
	NonFinite         int
}

func (fs FieldSummary)String() string {
	return fmt.Sprintf("displacement mean %.2f±%.2fpx, p50 %.2f, p90 %.2f, p99 %.2f, max %.2f (%d non-finite)",
		fs.Mean, fs.StdDev, fs.P50, fs.P90, fs.P99, fs.Max, fs.NonFinite)
}

// Summarize measures, for each output pixel, the distance between where
// it is and where it samples from.
func (df *DeformationField)Summarize() FieldSummary {
	fs := FieldSummary{}
	hist := hdrhistogram.New(0, 1000000000, 3) // hundredths of a pixel
	dists := make([]float64, 0, df.Width()*df.Height())

	for y:=0; y<df.Height(); y++ {
		for x:=0; x<df.Width(); x++ {
			sx, sy := df.SourceAt(x, y)
			d := math.Hypot(sx - float64(x), sy - float64(y))
			if math.IsNaN(d) || math.IsInf(d, 0) {
				fs.NonFinite++
				continue
			}
			dists = append(dists, d)
			hist.RecordValue(int64(math.Min(d*100, 1000000000)))
		}
	}

	if len(dists) == 0 {
		return fs
	}

	fs.Mean, fs.StdDev = stat.MeanStdDev(dists, nil)
	if len(dists) == 1 {
		fs.StdDev = 0
	}
	fs.P50 = float64(hist.ValueAtQuantile(50)) / 100
	fs.P90 = float64(hist.ValueAtQuantile(90)) / 100
	fs.P99 = float64(hist.ValueAtQuantile(99)) / 100
	fs.Max = float64(hist.Max()) / 100

	return fs
}

// DisplacementGrid returns the per-pixel displacement magnitudes, for rendering with FloatGrid.ToImg
func (df *DeformationField)DisplacementGrid() emath.FloatGrid {
	g := df.Xd.NewFromThis()
	for y:=0; y<df.Height(); y++ {
		for x:=0; x<df.Width(); x++ {
			sx, sy := df.SourceAt(x, y)
			g.Set(x, y, math.Hypot(sx - float64(x), sy - float64(y)))
		}
	}
	return g
}
