// Package failure holds the error kinds shared by the warp pipeline.
// Errors are returned wrapped with context; test the kind with errors.Is.
package failure

import(
	"errors"
)

var(
	// InvalidInput covers empty control point sets, mismatched pair counts,
	// non-positive grid sizes, unreadable images and the like. Nothing is
	// produced when it is returned.
	InvalidInput     = errors.New("invalid input")

	// IOFailure is a local filesystem problem (missing file, unwritable path).
	IOFailure        = errors.New("io failure")

	// ArtifactMismatch means a persisted deformation field doesn't fit the
	// requested output (shape, origin or cache key differ).
	ArtifactMismatch = errors.New("deformation field artifact mismatch")
)
