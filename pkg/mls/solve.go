package mls

import(
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/warp"
	"github.com/abworrall/fisheye-pano/pkg/workpool"
)

// CoincidentWeight stands in for 1/|v-p|² when v sits exactly on a
// control point, so that pixel binds to that point's target.
const CoincidentWeight = 1e6

// Weighted mean squared spread (in pixels²) below which a point set
// counts as a single point; rounding in the centroids stays well under it.
const collapsed = 1e-12

type SolveOptions struct {
	Workers  int                   // size of the row pool; <= 0 means one per CPU
	Progress workpool.ProgressFunc // optional, informational
}

// Solve computes the deformation field for an h x w output grid. The
// field is in the control points' origin convention: with origin 1, the
// output pixel at column c, row r is v = (c+1, r+1). Each pixel is
// solved independently, so rows are spread over a worker pool.
func Solve(cps ControlPointSet, h, w int, opts SolveOptions) (*warp.DeformationField, error) {
	if err := cps.Validate(); err != nil {
		return nil, errors.Wrap(err, "mls solve")
	}
	if h <= 0 || w <= 0 {
		return nil, errors.Wrapf(failure.InvalidInput, "mls solve: grid %dx%d", w, h)
	}

	df := warp.NewDeformationField(w, h, cps.Origin)
	off := float64(cps.Origin)

	workpool.Rows(h, opts.Workers, func(r int) {
		wm := make([]float64, len(cps.Pairs))
		xd := df.Xd.Row(r)
		yd := df.Yd.Row(r)
		for c:=0; c<w; c++ {
			v := r2.Point{X: float64(c) + off, Y: float64(r) + off}
			res := solvePoint(v, cps.Pairs, wm)
			xd[c], yd[c] = res.X, res.Y
		}
	}, opts.Progress)

	return df, nil
}

// SolvePoint returns the location that point v maps to under the rigid
// MLS deformation defined by the pairs.
func SolvePoint(v r2.Point, pairs []Pair) r2.Point {
	return solvePoint(v, pairs, make([]float64, len(pairs)))
}

// solvePoint does the work of SolvePoint; wm is scratch space for the weights.
func solvePoint(v r2.Point, pairs []Pair, wm []float64) r2.Point {
	// Inverse squared distance weights, and the weighted centroids
	var sum float64
	var pSum, qSum r2.Point
	for i, pr := range pairs {
		d := v.Sub(pr.P)
		d2 := d.X*d.X + d.Y*d.Y
		if d2 == 0 {
			wm[i] = CoincidentWeight
		} else if wm[i] = 1.0 / d2; math.IsInf(wm[i], 0) {
			wm[i] = CoincidentWeight
		}
		sum += wm[i]
		pSum = pSum.Add(pr.P.Mul(wm[i]))
		qSum = qSum.Add(pr.Q.Mul(wm[i]))
	}
	pStar := pSum.Mul(1.0 / sum)
	qStar := qSum.Mul(1.0 / sum)
	vp := v.Sub(pStar)

	var a, b, pSpread, qSpread float64
	var fs r2.Point
	for i, pr := range pairs {
		pHat := pr.P.Sub(pStar)
		qHat := pr.Q.Sub(qStar)
		pHatPerp := r2.Point{X: pHat.Y, Y: -pHat.X}
		qHatPerp := r2.Point{X: qHat.Y, Y: -qHat.X}

		pSpread += wm[i] * pHat.Dot(pHat)
		qSpread += wm[i] * qHat.Dot(qHat)
		a += wm[i] * qHat.Dot(pHat)
		b += wm[i] * qHat.Dot(pHatPerp.Mul(-1))

		// (v-p*) as a row vector, times the matrix with rows pHat, pHatPerp; then
		// that times the matrix with rows qHat, qHatPerp
		m1 := pHat.Mul(vp.X).Add(pHatPerp.Mul(vp.Y))
		fs = fs.Add(qHat.Mul(m1.X).Add(qHatPerp.Mul(m1.Y)).Mul(wm[i]))
	}

	// No spread in the sources (a single control point, or all of them
	// collocated) leaves no frame to rotate: carry v along with the
	// centroids. No spread in the targets pins v to q*.
	if pSpread <= collapsed*sum {
		return vp.Add(qStar)
	}
	if qSpread <= collapsed*sum {
		return qStar
	}

	if mu := math.Sqrt(a*a + b*b); mu > 0 {
		fs = fs.Mul(1.0 / mu)
	}

	lenV := vp.Norm()
	lenFs := fs.Norm()
	if lenFs > 0 && !math.IsInf(lenFs, 0) && !math.IsNaN(lenFs) {
		return fs.Mul(lenV / lenFs).Add(qStar)
	}
	return qStar
}
