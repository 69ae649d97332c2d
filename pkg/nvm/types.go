package nvm

import "time"

// ErasedByte is the value of an erased flash cell.
const ErasedByte = 0xFF

// Store is byte-addressable non-volatile memory.
type Store interface {
	// Read returns n bytes starting at addr.
	Read(addr uint32, n int) ([]byte, error)
	// Write stores data starting at addr.
	Write(addr uint32, data []byte) error
}

// FileStoreConfig holds configuration for a file-backed flash image
type FileStoreConfig struct {
	Path          string        // Path to the image file
	Size          int           // Addressable size in bytes
	FsyncInterval time.Duration // How often to fsync (0 = every write)
}

// Errors
var (
	ErrOutOfRange = &StoreError{"address range outside of store"}
	ErrClosed     = &StoreError{"store is closed"}
	ErrInvalidLen = &StoreError{"invalid length"}
)

// StoreError represents a non-volatile store error
type StoreError struct {
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

func checkRange(addr uint32, n, size int) error {
	if n < 0 {
		return ErrInvalidLen
	}
	if int64(addr)+int64(n) > int64(size) {
		return ErrOutOfRange
	}
	return nil
}
