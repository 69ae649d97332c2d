package nvm

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps a flash image in a regular file. A new or short image is
// padded with erased bytes up to the configured size when opened.
type FileStore struct {
	file       *os.File
	fsyncTimer *time.Timer
	config     FileStoreConfig
	mutex      sync.Mutex
	dirty      bool
	closed     bool
}

// OpenFileStore opens or creates the flash image described by config.
func OpenFileStore(config FileStoreConfig) (*FileStore, error) {
	if config.Size <= 0 {
		return nil, ErrInvalidLen
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(config.Path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if pad := int64(config.Size) - stat.Size(); pad > 0 {
		if _, err := file.WriteAt(bytes.Repeat([]byte{ErasedByte}, int(pad)), stat.Size()); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to initialize flash image: %w", err)
		}
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	s := &FileStore{
		file:   file,
		config: config,
	}

	if config.FsyncInterval > 0 {
		s.fsyncTimer = time.AfterFunc(config.FsyncInterval, func() {
			s.mutex.Lock()
			defer s.mutex.Unlock()
			_ = s.sync()
		})
	}

	return s, nil
}

// Read returns n bytes starting at addr.
func (s *FileStore) Read(addr uint32, n int) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := checkRange(addr, n, s.config.Size); err != nil {
		return nil, err
	}

	buf := make([]byte, n)
	if _, err := s.file.ReadAt(buf, int64(addr)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write stores data at addr. With a zero fsync interval the image is synced
// before Write returns.
func (s *FileStore) Write(addr uint32, data []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := checkRange(addr, len(data), s.config.Size); err != nil {
		return err
	}

	if _, err := s.file.WriteAt(data, int64(addr)); err != nil {
		return err
	}
	s.dirty = true

	if s.config.FsyncInterval == 0 {
		return s.sync()
	}
	if s.fsyncTimer != nil {
		s.fsyncTimer.Reset(s.config.FsyncInterval)
	}
	return nil
}

// Sync forces pending writes to disk
func (s *FileStore) Sync() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.sync()
}

func (s *FileStore) sync() error {
	if !s.dirty || s.closed {
		return nil
	}
	if err := s.file.Sync(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Close syncs and closes the image file
func (s *FileStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}

	if s.fsyncTimer != nil {
		s.fsyncTimer.Stop()
	}

	if err := s.sync(); err != nil {
		_ = s.file.Close()
		s.closed = true
		return err
	}

	s.closed = true
	return s.file.Close()
}

// Size returns the addressable size
func (s *FileStore) Size() int {
	return s.config.Size
}

// Path returns the image path
func (s *FileStore) Path() string {
	return s.config.Path
}
