package raster

import(
	"log"

	"github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/failure"
)

// The sphere viewer samples the panorama as a texture, and gets seams &
// half-texel smearing unless both dimensions are even; multiples of 4
// line up with the panorama's quadrants.

// CheckViewerDims returns an InvalidInput error for odd dimensions when
// strict, else just logs. Dimensions that are even but not a multiple
// of 4 are only ever logged.
func CheckViewerDims(w, h int, strict bool) error {
	if w%2 != 0 || h%2 != 0 {
		if strict {
			return errors.Wrapf(failure.InvalidInput, "output %dx%d: viewer needs even dimensions", w, h)
		}
		log.Printf("warning: output %dx%d has odd dimensions, the sphere viewer will show seams\n", w, h)
		return nil
	}
	if w%4 != 0 || h%4 != 0 {
		log.Printf("note: output %dx%d is not a multiple of 4\n", w, h)
	}
	return nil
}

// RoundDownTo4 returns the largest multiple of 4 <= n (but at least 4).
func RoundDownTo4(n int) int {
	if n < 4 {
		return 4
	}
	return n - n%4
}
