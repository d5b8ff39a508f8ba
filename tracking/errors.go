package tracking

import (
	"errors"
	"fmt"
)

var (
	// ErrArtifactNotFound reports a reference that does not resolve to a stored artifact.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrInvalidRef reports a malformed artifact reference. It also matches ErrArtifactNotFound.
	ErrInvalidRef = fmt.Errorf("%w: invalid reference", ErrArtifactNotFound)
	// ErrNotSingleFile is returned by File for artifacts holding zero or several files.
	ErrNotSingleFile = errors.New("artifact does not contain exactly one file")
	ErrRunNotFound   = errors.New("run not found")
	ErrRunClosed     = errors.New("run already finished")
)
