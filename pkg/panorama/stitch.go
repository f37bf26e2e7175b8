// Package panorama joins the two projected hemispheres into one 360°
// equirectangular image.
package panorama

import(
	"fmt"

	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/raster"
	"github.com/abworrall/fisheye-pano/pkg/workpool"
)

/* How the columns of a W wide panorama are filled:

     0          LeftHalf        Center       RightHalf         W
     |  right[Center:  |     left[LeftHalf:RightHalf]    |  right[LeftHalf: |
     |   RightHalf]    |                                 |    Center]       |

   Each hemisphere fills the middle half of its own projection, so the
   front image goes straight into the middle, and the back image's middle
   half is split and wrapped around the two ends.
*/

type Layout struct {
	Width     int
	LeftHalf  int // W/4
	Center    int // W/2
	RightHalf int // 3W/4
}

func NewLayout(w int) Layout {
	return Layout{
		Width:     w,
		LeftHalf:  w / 4,
		Center:    w / 2,
		RightHalf: 3 * w / 4,
	}
}

func (l Layout)String() string {
	return fmt.Sprintf("Layout[W=%d, seams at %d,%d]", l.Width, l.LeftHalf, l.RightHalf)
}

// FromLeft says whether output column x is taken from the left (front) image.
func (l Layout)FromLeft(x int) bool { return x >= l.LeftHalf && x < l.RightHalf }

// RightCol is the column of the right image that lines up with output
// column x. Outside the right image's own quadrants it continues the
// mapping of the nearest seam, clamped to the image.
func (l Layout)RightCol(x int) int {
	var col int
	if x >= l.Center {
		col = x - l.Center
	} else {
		col = x + l.Center
	}
	if col < 0 {
		return 0
	} else if col >= l.Width {
		return l.Width - 1
	}
	return col
}

// MaxBlend is the widest feather that keeps the two seams apart.
func (l Layout)MaxBlend() int { return l.Width / 4 }

// Stitch composes left (the deformed front hemisphere) and right (the
// back hemisphere) into a panorama the same size as both. With
// blendWidth 0 each column comes from exactly one image. Otherwise each
// seam is cross-faded over blendWidth columns centred on it, so the
// seam column itself is the even mix of the two. Rows are spread over
// workers goroutines; <= 0 means one per CPU.
func Stitch(left, right *raster.Image, blendWidth, workers int) (*raster.Image, error) {
	if err := left.Validate(); err != nil {
		return nil, errors.Wrap(err, "stitch left")
	}
	if err := right.Validate(); err != nil {
		return nil, errors.Wrap(err, "stitch right")
	}
	if !left.SameShape(right) {
		return nil, errors.Wrapf(failure.InvalidInput, "stitch: %s vs %s", left, right)
	}
	if blendWidth < 0 {
		return nil, errors.Wrapf(failure.InvalidInput, "stitch: blend width %d", blendWidth)
	}

	l := NewLayout(left.Width)
	if blendWidth > l.MaxBlend() {
		blendWidth = l.MaxBlend()
	}

	weights := l.rightWeights(blendWidth)
	nc := left.Channels
	out := raster.NewImage(left.Width, left.Height, nc)

	workpool.Rows(out.Height, workers, func(y int) {
		dst := out.Row(y)
		lRow := left.Row(y)
		rRow := right.Row(y)
		for x:=0; x<l.Width; x++ {
			a := lRow[x*nc:(x+1)*nc]
			rc := l.RightCol(x)
			b := rRow[rc*nc:(rc+1)*nc]
			d := dst[x*nc:(x+1)*nc]

			switch t := weights[x]; t {
			case 0: copy(d, a)
			case 1: copy(d, b)
			default:
				for c:=0; c<nc; c++ {
					d[c] = emath.RoundToU8((1-t)*float64(a[c]) + t*float64(b[c]))
				}
			}
		}
	}, nil)

	return out, nil
}

// rightWeights gives, per output column, how much of the right image it
// takes: 0 or 1 away from the seams, and a linear ramp across them.
func (l Layout)rightWeights(blendWidth int) []float64 {
	w := make([]float64, l.Width)
	for x := range w {
		if !l.FromLeft(x) {
			w[x] = 1
		}
	}
	if blendWidth == 0 {
		return w
	}

	// t is the weight of whichever image owns the columns after the seam
	ramp := func(s int, rightIsAfter bool) {
		start := s - blendWidth/2
		for x:=start; x<start+blendWidth; x++ {
			if x < 0 || x >= l.Width {
				continue
			}
			t := 0.5 + float64(x-s)/float64(blendWidth)
			if rightIsAfter {
				w[x] = t
			} else {
				w[x] = 1 - t
			}
		}
	}
	ramp(l.LeftHalf, false)
	ramp(l.RightHalf, true)

	return w
}
