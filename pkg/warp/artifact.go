package warp

import(
	"archive/zip"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/fisheye-pano/pkg/emath"
	"github.com/abworrall/fisheye-pano/pkg/failure"
)

/* A field artifact is a zip archive with three entries:

  meta.yaml   - version, height, width, origin, key
  Xd          - gonum mat.Dense binary encoding, Height rows x Width cols
  Yd          - same, for the Y coordinates

*/

const(
	ArtifactVersion = 1
	ArtifactExt     = ".mlsz"

	metaEntry = "meta.yaml"
	xdEntry   = "Xd"
	ydEntry   = "Yd"
)

// ArtifactMeta is stored alongside the grids so that a field can't be
// silently used at the wrong size or with the wrong origin.
type ArtifactMeta struct {
	Version int    `yaml:"version"`
	Height  int    `yaml:"height"`
	Width   int    `yaml:"width"`
	Origin  int    `yaml:"origin"`
	Key     string `yaml:"key,omitempty"` // the cache key of the inputs that produced it, if known
}

func (am ArtifactMeta)String() string {
	return fmt.Sprintf("artifact v%d [%dx%d, origin %d, key %.12s]", am.Version, am.Width, am.Height, am.Origin, am.Key)
}

// SaveArtifact writes the field to filename.
func SaveArtifact(df *DeformationField, key, filename string) error {
	if err := df.Validate(); err != nil {
		return errors.Wrapf(err, "save '%s'", filename)
	}

	meta := ArtifactMeta{
		Version: ArtifactVersion,
		Height:  df.Height(),
		Width:   df.Width(),
		Origin:  df.Origin,
		Key:     key,
	}
	metaBytes, err := yaml.Marshal(meta)
	if err != nil {
		return errors.Wrapf(err, "save '%s': meta", filename)
	}
	xdBytes, err := df.Xd.ToDense().MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "save '%s': Xd", filename)
	}
	ydBytes, err := df.Yd.ToDense().MarshalBinary()
	if err != nil {
		return errors.Wrapf(err, "save '%s': Yd", filename)
	}

	// Written to a temp file, then renamed into place
	tmp := filename + ".tmp"
	writer, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(failure.IOFailure, "open+w '%s': %v", tmp, err)
	}

	zw := zip.NewWriter(writer)
	for _, entry := range []struct{ name string; data []byte }{
		{metaEntry, metaBytes}, {xdEntry, xdBytes}, {ydEntry, ydBytes},
	} {
		w, err := zw.Create(entry.name)
		if err == nil {
			_, err = w.Write(entry.data)
		}
		if err != nil {
			writer.Close()
			os.Remove(tmp)
			return errors.Wrapf(failure.IOFailure, "write '%s' entry %s: %v", tmp, entry.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		writer.Close()
		os.Remove(tmp)
		return errors.Wrapf(failure.IOFailure, "close zip '%s': %v", tmp, err)
	}
	if err := writer.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(failure.IOFailure, "close '%s': %v", tmp, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(failure.IOFailure, "rename '%s': %v", tmp, err)
	}

	return nil
}

// LoadArtifact reads a field written by SaveArtifact. It checks the
// archive is self-consistent, but not that it fits any particular
// output; see LoadArtifactFor.
func LoadArtifact(filename string) (*DeformationField, ArtifactMeta, error) {
	meta := ArtifactMeta{}

	zr, err := zip.OpenReader(filename)
	if err != nil {
		if _, statErr := os.Stat(filename); statErr != nil {
			return nil, meta, errors.Wrapf(failure.IOFailure, "open+r '%s': %v", filename, err)
		}
		return nil, meta, errors.Wrapf(failure.ArtifactMismatch, "'%s' is not a field archive: %v", filename, err)
	}
	defer zr.Close()

	entries := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, meta, errors.Wrapf(failure.IOFailure, "'%s' entry %s: %v", filename, f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, meta, errors.Wrapf(failure.IOFailure, "'%s' entry %s: %v", filename, f.Name, err)
		}
		entries[f.Name] = b
	}

	for _, name := range []string{metaEntry, xdEntry, ydEntry} {
		if _, exists := entries[name]; !exists {
			return nil, meta, errors.Wrapf(failure.ArtifactMismatch, "'%s': no %s entry", filename, name)
		}
	}

	if err := yaml.Unmarshal(entries[metaEntry], &meta); err != nil {
		return nil, meta, errors.Wrapf(failure.ArtifactMismatch, "'%s' meta: %v", filename, err)
	}
	if meta.Version != ArtifactVersion {
		return nil, meta, errors.Wrapf(failure.ArtifactMismatch, "'%s': %s, want version %d", filename, meta, ArtifactVersion)
	}

	var xd, yd mat.Dense
	if err := xd.UnmarshalBinary(entries[xdEntry]); err != nil {
		return nil, meta, errors.Wrapf(failure.ArtifactMismatch, "'%s' Xd: %v", filename, err)
	}
	if err := yd.UnmarshalBinary(entries[ydEntry]); err != nil {
		return nil, meta, errors.Wrapf(failure.ArtifactMismatch, "'%s' Yd: %v", filename, err)
	}

	df := &DeformationField{
		Xd:     emath.NewFloatGridFromDense(&xd),
		Yd:     emath.NewFloatGridFromDense(&yd),
		Origin: meta.Origin,
	}
	if err := df.CheckSize(meta.Width, meta.Height); err != nil {
		return nil, meta, errors.Wrapf(err, "'%s' grids disagree with %s", filename, meta)
	}

	return df, meta, nil
}

// LoadArtifactFor loads a field and insists it is w x h; anything else
// is an ArtifactMismatch, and nothing should be resampled with it.
func LoadArtifactFor(filename string, w, h int) (*DeformationField, error) {
	df, _, err := LoadArtifact(filename)
	if err != nil {
		return nil, err
	}
	if err := df.CheckSize(w, h); err != nil {
		return nil, errors.Wrapf(err, "'%s'", filename)
	}
	return df, nil
}
