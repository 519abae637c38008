package camera

import (
	"errors"
)

// Normalized settings errors. The uppercase codes double as API error codes.
var (
	// ErrUnknownSetting indicates a name with no device path mapping.
	ErrUnknownSetting = errors.New("UNKNOWN_SETTING")

	// ErrRead indicates a get-configuration response could not be read or
	// parsed. A reload pass stops at the first ErrRead; earlier settings in
	// the same pass keep their refreshed values.
	ErrRead = errors.New("READ_FAILED")

	// ErrWrite indicates the device rejected a set-configuration request.
	ErrWrite = errors.New("WRITE_FAILED")
)
