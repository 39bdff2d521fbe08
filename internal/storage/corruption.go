package storage

import (
	"errors"
	"strings"
)

// ErrCorrupt marks an unrecoverable store. Callers treat it as fatal and
// exit rather than retry.
var ErrCorrupt = errors.New("storage corrupt")

// corruptionMarkers are driver error fragments that indicate a damaged
// database file rather than a transient failure.
var corruptionMarkers = []string{
	"database disk image is malformed",
	"file is not a database",
	"corrupted",
	"invalid page",
}

// IsCorrupt reports whether err indicates storage corruption.
func IsCorrupt(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCorrupt) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range corruptionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WrapCorrupt attaches ErrCorrupt to err when it matches a corruption
// marker, so callers can test with errors.Is.
func WrapCorrupt(err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCorrupt) && IsCorrupt(err) {
		return errors.Join(ErrCorrupt, err)
	}
	return err
}
