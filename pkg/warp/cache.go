package warp

import(
	"errors"
	"log"
	"os"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"

	"github.com/abworrall/fisheye-pano/pkg/failure"
)

// A FieldCache keeps solved fields on disk, one artifact per key. The
// key must be derived from everything that determines the field (the
// control points, grid size and origin); see mls.ControlPointSet.Key.
//
// An entry is only a hit if the artifact's recorded key matches the one
// asked for, and its shape is the one asked for. Anything else is a
// miss, and the stale file is removed. Entries are never updated in
// place; Invalidate drops one explicitly.
type FieldCache struct {
	Dir string
}

func NewFieldCache(dir string) (*FieldCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, pkgerrors.Wrapf(failure.IOFailure, "cache dir '%s': %v", dir, err)
	}
	return &FieldCache{Dir: dir}, nil
}

func (fc *FieldCache)Path(key string) string {
	return filepath.Join(fc.Dir, key + ArtifactExt)
}

// Get returns the cached field for key, or (nil, false, nil) on a miss.
// Errors are only returned for IO problems other than a missing file.
func (fc *FieldCache)Get(key string, w, h int) (*DeformationField, bool, error) {
	filename := fc.Path(key)

	df, meta, err := LoadArtifact(filename)
	switch {
	case err == nil:
	case errors.Is(err, failure.IOFailure):
		if _, statErr := os.Stat(filename); os.IsNotExist(statErr) {
			return nil, false, nil
		}
		return nil, false, err
	default:
		log.Printf("field cache: dropping unreadable entry %s: %v\n", filename, err)
		return nil, false, fc.Invalidate(key)
	}

	if meta.Key != key {
		log.Printf("field cache: %s was built for key %.12s, not %.12s; dropping\n", filename, meta.Key, key)
		return nil, false, fc.Invalidate(key)
	}
	if err := df.CheckSize(w, h); err != nil {
		log.Printf("field cache: dropping %s: %v\n", filename, err)
		return nil, false, fc.Invalidate(key)
	}

	return df, true, nil
}

func (fc *FieldCache)Put(key string, df *DeformationField) error {
	return SaveArtifact(df, key, fc.Path(key))
}

// Invalidate removes the entry for key; removing a missing entry is fine.
func (fc *FieldCache)Invalidate(key string) error {
	if err := os.Remove(fc.Path(key)); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(failure.IOFailure, "invalidate '%s': %v", fc.Path(key), err)
	}
	return nil
}
