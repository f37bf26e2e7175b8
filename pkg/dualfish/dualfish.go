// Package dualfish turns a pair of back-to-back fisheye images into one
// equirectangular panorama.
package dualfish

import(
	"fmt"
	"log"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/abworrall/fisheye-pano/pkg/failure"
	"github.com/abworrall/fisheye-pano/pkg/fisheye"
	"github.com/abworrall/fisheye-pano/pkg/mls"
	"github.com/abworrall/fisheye-pano/pkg/panorama"
	"github.com/abworrall/fisheye-pano/pkg/raster"
	"github.com/abworrall/fisheye-pano/pkg/warp"
	"github.com/abworrall/fisheye-pano/pkg/workpool"
)

// A Stitcher holds the images at each stage of the pipeline. The front
// image is the one that gets corrected by the deformation field, and
// fills the middle of the panorama; the back one wraps round the ends.
type Stitcher struct {
	Config

	Front, Back         *raster.Image  // fisheye inputs
	FrontEqui, BackEqui *raster.Image  // after projection
	Corrected           *raster.Image  // FrontEqui after the deformation field
	Panorama            *raster.Image

	ControlPoints       *mls.ControlPointSet
	Field               *warp.DeformationField  // nil if there is no calibration
	Seams               *panorama.SeamReport    // only computed when verbose
}

// How many columns either side of each seam get compared
const seamBand = 16

func NewStitcher() Stitcher {
	return Stitcher{Config: NewConfig()}
}

func (s Stitcher)String() string {
	str := fmt.Sprintf("Stitcher[front %s, back %s", s.Front, s.Back)
	if s.Field != nil {
		str += fmt.Sprintf(", %s", s.Field)
	}
	return str + "]"
}

func (s *Stitcher)debugFilename(name string) string {
	return filepath.Join(filepath.Dir(s.OutputFilename), s.DebugPrefix + name)
}

// Load reads both fisheye images, and finalizes the config to match them.
func (s *Stitcher)Load() error {
	if s.Front == nil {
		img, err := raster.Load(s.FrontFilename)
		if err != nil {
			return errors.Wrap(err, "front")
		}
		s.Front = img
	}
	if s.Back == nil {
		img, err := raster.Load(s.BackFilename)
		if err != nil {
			return errors.Wrap(err, "back")
		}
		s.Back = img
	}

	if s.Verbosity > 0 {
		for _, filename := range []string{s.FrontFilename, s.BackFilename} {
			if ei, err := raster.ProbeEXIF(filename); err == nil {
				log.Printf("%s: %s\n", filename, ei)
			}
		}
	}

	if s.Front.Width != s.Back.Width || s.Front.Height != s.Back.Height {
		return errors.Wrapf(failure.InvalidInput, "fisheye images differ in size: %s vs %s", s.Front, s.Back)
	}

	return s.Config.Finalize(s.Front.Width, s.Front.Height)
}

// Project unprojects both fisheyes, concurrently.
func (s *Stitcher)Project() error {
	g := errgroup.Group{}
	w, h := s.OutputWidth, s.OutputHeight

	g.Go(func() error {
		img, err := fisheye.Project(s.Front, s.Camera, w, h, s.Workers)
		s.FrontEqui = img
		return errors.Wrap(err, "project front")
	})
	g.Go(func() error {
		img, err := fisheye.Project(s.Back, s.Camera, w, h, s.Workers)
		s.BackEqui = img
		return errors.Wrap(err, "project back")
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("Projected both fisheyes with %s, to %dx%d\n", s.Camera, w, h)
	return nil
}

// PrepareField finds the deformation field for the front image: from a
// field file if there is one, else from the cache, else by solving the
// calibration (and caching the result). With neither a field file nor
// a calibration, the front image is used as is.
func (s *Stitcher)PrepareField() error {
	w, h := s.OutputWidth, s.OutputHeight

	if s.FieldFile != "" {
		df, err := warp.LoadArtifactFor(s.FieldFile, w, h)
		if err != nil {
			return err
		}
		s.Field = df
		log.Printf("Loaded %s from %s\n", df, s.FieldFile)
		return nil
	}

	if s.ControlPoints == nil {
		if s.CalibrationFile == "" {
			log.Printf("No calibration, front image will not be corrected\n")
			return nil
		}
		cps, err := mls.LoadCalibration(s.CalibrationFile)
		if err != nil {
			return err
		}
		s.ControlPoints = &cps
	}

	var cache *warp.FieldCache
	key := s.ControlPoints.Key(w, h)
	if s.CacheDir != "" {
		fc, err := warp.NewFieldCache(s.CacheDir)
		if err != nil {
			return err
		}
		cache = fc
		if df, hit, err := cache.Get(key, w, h); err != nil {
			return err
		} else if hit {
			s.Field = df
			log.Printf("Using cached %s (key %.12s)\n", df, key)
			return nil
		}
	}

	log.Printf("Solving MLS field for %s at %dx%d\n", s.ControlPoints, w, h)
	df, err := mls.Solve(*s.ControlPoints, h, w, mls.SolveOptions{
		Workers:  s.Workers,
		Progress: workpool.EveryN(100, s.progress("mls solve")),
	})
	if err != nil {
		return err
	}
	s.Field = df

	if cache != nil {
		if err := cache.Put(key, df); err != nil {
			return err
		}
	}

	return nil
}

func (s *Stitcher)progress(what string) workpool.ProgressFunc {
	if s.Verbosity == 0 {
		return nil
	}
	return func(done, total int) {
		log.Printf("%s: %d/%d rows\n", what, done, total)
	}
}

// Compose corrects the front image, and stitches the two together.
func (s *Stitcher)Compose() error {
	s.Corrected = s.FrontEqui
	if s.Field != nil {
		img, err := warp.Warp(s.FrontEqui, s.Field, s.Workers)
		if err != nil {
			return errors.Wrap(err, "correct front")
		}
		s.Corrected = img
		if s.Verbosity > 0 {
			log.Printf("Field %s\n", s.Field.Summarize())
		}
	}

	pano, err := panorama.Stitch(s.Corrected, s.BackEqui, s.BlendWidth, s.Workers)
	if err != nil {
		return err
	}
	s.Panorama = pano

	log.Printf("Stitched %s, %s\n", pano, panorama.NewLayout(pano.Width))

	if s.Verbosity > 0 {
		sr, err := panorama.SeamDiff(s.Corrected, s.BackEqui, seamBand)
		if err != nil {
			return err
		}
		s.Seams = &sr
		log.Printf("Hemispheres agree to %s\n", sr)
		log.Printf("Seam ΔE histogram: %v\n", &s.Seams.Hist)
	}

	return nil
}

// WriteDebugImages dumps the intermediate stages next to the output.
func (s *Stitcher)WriteDebugImages() error {
	for name, img := range map[string]*raster.Image{
		"front-equi.png":     s.FrontEqui,
		"back-equi.png":      s.BackEqui,
		"front-corrected.png": s.Corrected,
	} {
		if img == nil {
			continue
		}
		if err := raster.WritePNG(img, s.debugFilename(name)); err != nil {
			return err
		}
	}

	if s.Field != nil {
		g := s.Field.DisplacementGrid()
		if err := g.ToImg("displacement "+g.Stats(), s.debugFilename("field.png")); err != nil {
			return errors.Wrapf(failure.IOFailure, "field render: %v", err)
		}
	}

	if s.Seams != nil {
		if err := s.Seams.Diff.ToImg(s.Seams.String(), s.debugFilename("seams.png")); err != nil {
			return errors.Wrapf(failure.IOFailure, "seam render: %v", err)
		}
	}

	if s.ControlPoints != nil && s.FrontEqui != nil {
		err := raster.WriteControlPoints(s.FrontEqui, s.ControlPoints.Sources(), s.ControlPoints.Targets(),
			s.ControlPoints.Origin, s.debugFilename("controlpoints.png"))
		if err != nil {
			return err
		}
	}

	log.Printf("Debug images written to %s*\n", s.debugFilename(""))
	return nil
}

// Run does the whole thing, writing the panorama to OutputFilename.
func (s *Stitcher)Run() error {
	if err := s.Load(); err != nil {
		return err
	}
	if s.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", s.Config.AsYaml())
	}

	if err := s.Project(); err != nil {
		return err
	}
	if err := s.PrepareField(); err != nil {
		return err
	}
	if err := s.Compose(); err != nil {
		return err
	}

	if s.Verbosity > 1 {
		if err := s.WriteDebugImages(); err != nil {
			return err
		}
	}

	if err := raster.Write(s.Panorama, s.OutputFilename); err != nil {
		return err
	}
	log.Printf("Panorama written to '%s'\n", s.OutputFilename)
	return nil
}
