package raster

import(
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/abworrall/fisheye-pano/pkg/failure"
)

// Load decodes an image file into an RGB Image. A file we can't open is
// an IOFailure; one we can't decode is InvalidInput.
func Load(filename string) (*Image, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(failure.IOFailure, "open+r img '%s': %v", filename, err)
	}
	defer reader.Close()

	src, format, err := image.Decode(reader)
	if err != nil {
		return nil, errors.Wrapf(failure.InvalidInput, "decode img '%s': %v", filename, err)
	}

	img := FromImage(src)
	if err := img.Validate(); err != nil {
		return nil, errors.Wrapf(err, "load '%s'", filename)
	}

	log.Printf("Loaded %s (%s) from %s\n", img, format, filename)
	return img, nil
}

// ExifInfo is the bits of EXIF we care about for a fisheye capture.
type ExifInfo struct {
	Make         string
	Model        string
	FocalLengthMM float64
}

func (ei ExifInfo)String() string {
	return fmt.Sprintf("%s %s, %.2fmm", ei.Make, ei.Model, ei.FocalLengthMM)
}

// ProbeEXIF pulls camera details from JPEG/TIFF files. Files without EXIF
// return an error; callers treat that as informational.
func ProbeEXIF(filename string) (ExifInfo, error) {
	ei := ExifInfo{}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".tif", ".tiff":
	default:
		return ei, fmt.Errorf("exif '%s': format not probed", filename)
	}

	reader, err := os.Open(filename)
	if err != nil {
		return ei, errors.Wrapf(failure.IOFailure, "open+r exif '%s': %v", filename, err)
	}
	defer reader.Close()

	ex, err := exif.Decode(reader)
	if err != nil {
		return ei, fmt.Errorf("exif parsing '%s': %v", filename, err)
	}

	if tag, err := ex.Get(exif.Make); err == nil {
		ei.Make, _ = tag.StringVal()
	}
	if tag, err := ex.Get(exif.Model); err == nil {
		ei.Model, _ = tag.StringVal()
	}
	if tag, err := ex.Get(exif.FocalLength); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
			ei.FocalLengthMM = float64(num) / float64(denom)
		}
	}

	return ei, nil
}
