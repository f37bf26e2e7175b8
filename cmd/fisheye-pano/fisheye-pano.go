package main

import(
	"flag"
	"log"

	"github.com/abworrall/fisheye-pano/pkg/dualfish"
)

var(
	fVerbosity int
	fConfig string
	fFront string
	fBack string
	fFOV float64
	fOutputWidth int
	fOutputHeight int
	fCalibration string
	fField string
	fCacheDir string
	fBlendWidth int
	fOutputFilename string
	fStrictDims bool
	fWorkers int
)

func init() {
	flag.IntVar(&fVerbosity, "v", 0, "how verbose to get (2 writes debug images)")
	flag.StringVar(&fConfig, "config", "", "yaml config file; flags override it")
	flag.StringVar(&fFront, "front", "", "front fisheye image (the one the calibration corrects)")
	flag.StringVar(&fBack, "back", "", "back fisheye image")
	flag.Float64Var(&fFOV, "fov", 0, "fisheye field of view, in degrees (default 192)")
	flag.IntVar(&fOutputWidth, "width", 0, "panorama width (default: fisheye height, to a multiple of 4)")
	flag.IntVar(&fOutputHeight, "height", 0, "panorama height (default: width/2)")
	flag.StringVar(&fCalibration, "calib", "", "control points yaml, to correct the front image")
	flag.StringVar(&fField, "field", "", "presolved deformation field (see mlsfield), instead of -calib")
	flag.StringVar(&fCacheDir, "cache", "", "dir to cache solved deformation fields in")
	flag.IntVar(&fBlendWidth, "blend", -1, "columns to feather each seam over; 0 for a hard cut")
	flag.StringVar(&fOutputFilename, "o", "", "output file: .png, .jpg, .tif, .bmp or .hdr")
	flag.BoolVar(&fStrictDims, "strictdims", false, "fail, rather than warn, on odd output dimensions")
	flag.IntVar(&fWorkers, "workers", 0, "goroutines per stage (0 means one per CPU)")
	flag.Parse()

	log.Printf("fisheye-pano starting\n")
}

func main() {
	s := dualfish.NewStitcher()
	if fConfig != "" {
		cfg, err := dualfish.LoadConfig(fConfig)
		if err != nil {
			log.Fatal(err)
		}
		s.Config = cfg
	}

	// Override the config file with command line args, if relevant
	if fFront != "" { s.FrontFilename = fFront }
	if fBack != "" { s.BackFilename = fBack }
	if fFOV > 0 { s.FOVDeg = fFOV }
	if fOutputWidth > 0 { s.OutputWidth = fOutputWidth }
	if fOutputHeight > 0 { s.OutputHeight = fOutputHeight }
	if fCalibration != "" { s.CalibrationFile = fCalibration }
	if fField != "" { s.FieldFile = fField }
	if fCacheDir != "" { s.CacheDir = fCacheDir }
	if fBlendWidth >= 0 { s.BlendWidth = fBlendWidth }
	if fOutputFilename != "" { s.OutputFilename = fOutputFilename }
	if fWorkers > 0 { s.Workers = fWorkers }
	if fVerbosity > 0 { s.Verbosity = fVerbosity }
	if fStrictDims { s.StrictDims = true }

	if s.FrontFilename == "" || s.BackFilename == "" {
		log.Fatal("need both -front and -back images")
	}

	if err := s.Run(); err != nil {
		log.Fatal(err)
	}
}
