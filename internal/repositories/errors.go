package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = errors.New("record conflict")
	// ErrStaleToken indicates a compare-and-set on the refresh token lost: the
	// stored value no longer matches the expected one.
	ErrStaleToken = errors.New("refresh token no longer current")
)
