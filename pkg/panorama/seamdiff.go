package panorama

import(
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"github.com/skypies/util/histogram"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/raster"
)

// A SeamReport says how well the two hemispheres agree where they meet.
type SeamReport struct {
	Mean     float64 // average CIE Lab distance over the compared pixels
	Compared int
	Skipped  int     // pixels black or blown out in either image

	// Per pixel distances; the band around LeftHalf, then the band around RightHalf
	Diff     emath.FloatGrid

	// Distances as a CIE76-ish ΔE (Lab distance x100), one bucket per unit
	Hist     histogram.Histogram
}

// ΔE past this lands in the last bucket
const seamHistMax = 100

func (sr SeamReport)String() string {
	total := sr.Compared + sr.Skipped
	if total == 0 {
		total = 1
	}
	return fmt.Sprintf("seam diff %.4f (%.1f%% comparable)", sr.Mean, 100.0*float64(sr.Compared)/float64(total))
}

func toColorful(px []uint8) colorful.Color {
	if len(px) < 3 {
		v := float64(px[0]) / 255.0
		return colorful.Color{R: v, G: v, B: v}
	}
	return colorful.Color{R: float64(px[0]) / 255.0, G: float64(px[1]) / 255.0, B: float64(px[2]) / 255.0}
}

func comparable(px []uint8) bool {
	allLow, allHigh := true, true
	for _, v := range px {
		if v != 0 { allLow = false }
		if v != 255 { allHigh = false }
	}
	return !allLow && !allHigh
}

// SeamDiff compares left and right over a band of columns centred on
// each seam, pairing each left pixel with the right pixel Stitch would
// line up with it. A well calibrated pair gives a small Mean.
func SeamDiff(left, right *raster.Image, band int) (SeamReport, error) {
	sr := SeamReport{
		Hist: histogram.Histogram{NumBuckets:seamHistMax, ValMin:0, ValMax:seamHistMax},
	}

	if err := left.Validate(); err != nil {
		return sr, errors.Wrap(err, "seamdiff left")
	}
	if err := right.Validate(); err != nil {
		return sr, errors.Wrap(err, "seamdiff right")
	}
	if !left.SameShape(right) {
		return sr, errors.Wrapf(failure.InvalidInput, "seamdiff: %s vs %s", left, right)
	}

	l := NewLayout(left.Width)
	if band > l.MaxBlend() {
		band = l.MaxBlend()
	}
	if band <= 0 {
		return sr, errors.Wrapf(failure.InvalidInput, "seamdiff: band %d on %s", band, l)
	}

	sr.Diff = emath.NewFloatGrid(2*band, left.Height)
	totErr := 0.0

	for i, s := range []int{l.LeftHalf, l.RightHalf} {
		start := s - band/2
		for dx:=0; dx<band; dx++ {
			x := start + dx
			if x < 0 || x >= l.Width {
				continue
			}
			for y:=0; y<left.Height; y++ {
				a := left.PixAt(x, y)
				b := right.PixAt(l.RightCol(x), y)
				if !comparable(a) || !comparable(b) {
					sr.Skipped++
					continue
				}
				d := toColorful(a).DistanceLab(toColorful(b))
				sr.Diff.Set(i*band + dx, y, d)
				sr.Hist.Add(histogram.ScalarVal(int(math.Min(d*100, seamHistMax-1))))
				totErr += d
				sr.Compared++
			}
		}
	}

	if sr.Compared > 0 {
		sr.Mean = totErr / float64(sr.Compared)
	}
	return sr, nil
}
