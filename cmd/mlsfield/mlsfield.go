package main

import(
	"flag"
	"log"

	"github.com/abworrall/fisheye-pano/pkg/mls"
	"github.com/abworrall/fisheye-pano/pkg/raster"
	"github.com/abworrall/fisheye-pano/pkg/warp"
	"github.com/abworrall/fisheye-pano/pkg/workpool"
)

// mlsfield solves a calibration into a deformation field artifact, for
// fisheye-pano -field to use without re-solving.

var(
	fVerbosity int
	fCalibration string
	fOutputWidth int
	fOutputHeight int
	fScale float64
	fOutputFilename string
	fOverlay string
	fOverlayOutput string
	fWorkers int
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get")
	flag.StringVar(&fCalibration, "calib", "", "control points yaml")
	flag.IntVar(&fOutputWidth, "width", 0, "width of the panorama the field is for")
	flag.IntVar(&fOutputHeight, "height", 0, "height of the panorama (default width/2)")
	flag.Float64Var(&fScale, "scale", 1.0, "rescale the control points, if authored at another resolution")
	flag.StringVar(&fOutputFilename, "o", "field"+warp.ArtifactExt, "output field artifact")
	flag.StringVar(&fOverlay, "overlay", "", "an image to draw the control points onto")
	flag.StringVar(&fOverlayOutput, "overlayout", "controlpoints.png", "where to write the overlay")
	flag.IntVar(&fWorkers, "workers", 0, "solver goroutines (0 means one per CPU)")
	flag.Parse()

	log.Printf("mlsfield starting\n")
}

func main() {
	if fCalibration == "" || fOutputWidth <= 0 {
		log.Fatal("need -calib and -width")
	}
	if fOutputHeight <= 0 {
		fOutputHeight = fOutputWidth / 2
	}

	cps, err := mls.LoadCalibration(fCalibration)
	if err != nil {
		log.Fatal(err)
	}
	if fScale != 1.0 {
		cps = cps.Rescale(fScale)
	}
	log.Printf("Loaded %s from %s\n", cps, fCalibration)

	if fOverlay != "" {
		img, err := raster.Load(fOverlay)
		if err != nil {
			log.Fatal(err)
		}
		if err := raster.WriteControlPoints(img, cps.Sources(), cps.Targets(), cps.Origin, fOverlayOutput); err != nil {
			log.Fatal(err)
		}
		log.Printf("Control point overlay written to '%s'\n", fOverlayOutput)
	}

	var progress workpool.ProgressFunc
	if fVerbosity > 0 {
		progress = workpool.EveryN(100, func(done, total int) {
			log.Printf("mls solve: %d/%d rows\n", done, total)
		})
	}

	df, err := mls.Solve(cps, fOutputHeight, fOutputWidth, mls.SolveOptions{Workers: fWorkers, Progress: progress})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("Solved %s: %s\n", df, df.Summarize())

	if err := warp.SaveArtifact(df, cps.Key(fOutputWidth, fOutputHeight), fOutputFilename); err != nil {
		log.Fatal(err)
	}
	log.Printf("Field written to '%s'\n", fOutputFilename)

	if fVerbosity > 1 {
		g := df.DisplacementGrid()
		if err := g.ToImg("displacement "+g.Stats(), "field-displacement.png"); err != nil {
			log.Fatal(err)
		}
	}
}
