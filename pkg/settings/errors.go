package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord covers every reason a stored record is rejected. Corrupt
	// bytes and well-formed but out-of-range values are not distinguished.
	ErrInvalidRecord = errors.New("invalid settings record")

	ErrBadMarker            = fmt.Errorf("%w: bad marker", ErrInvalidRecord)
	ErrGainOutOfRange       = fmt.Errorf("%w: ADC gain correction out of range", ErrInvalidRecord)
	ErrBrightnessOutOfRange = fmt.Errorf("%w: LED brightness out of range", ErrInvalidRecord)

	// ErrInvalidLength is returned when a buffer is not exactly Size bytes.
	ErrInvalidLength = errors.New("settings buffer must be exactly 49 bytes")

	// ErrStoreIO wraps failures of the underlying non-volatile store.
	ErrStoreIO = errors.New("settings store I/O failed")

	// ErrUnknownField is returned by Record.Set for an unrecognised field key.
	ErrUnknownField = errors.New("unknown settings field")
)
