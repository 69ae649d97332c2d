package settings

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wntrblm/gemsettings/pkg/nvm"
)

// ManagerConfig holds configuration for a settings manager
type ManagerConfig struct {
	BaseAddress uint32 // Start of the settings region in the store
	Logger      zerolog.Logger
}

// Manager loads, saves and erases the single settings record kept at a
// fixed address of a non-volatile store.
type Manager struct {
	store  nvm.Store
	base   uint32
	codec  *Codec
	logger zerolog.Logger
}

// NewManager creates a manager over store
func NewManager(store nvm.Store, config ManagerConfig) *Manager {
	return &Manager{
		store:  store,
		base:   config.BaseAddress,
		codec:  NewCodec(config.Logger),
		logger: config.Logger,
	}
}

// Codec returns the codec used by the manager
func (m *Manager) Codec() *Codec {
	return m.codec
}

// BaseAddress returns the start of the settings region
func (m *Manager) BaseAddress() uint32 {
	return m.base
}

// Load reads the settings region and deserializes it. The returned record is
// always usable: on an invalid record or a read failure it is the defaults
// and valid is false. err is non-nil only when the store itself failed.
func (m *Manager) Load() (Record, bool, error) {
	data, err := m.ReadRaw()
	if err != nil {
		return Defaults(), false, err
	}

	r, valid := m.codec.Deserialize(data)
	m.logger.Debug().Bool("valid", valid).Msg("settings loaded")
	return r, valid, nil
}

// ReadRaw returns the stored bytes of the settings region without decoding
func (m *Manager) ReadRaw() ([]byte, error) {
	data, err := m.store.Read(m.base, Size)
	if err != nil {
		m.logger.Error().Err(err).Uint32("addr", m.base).Msg("failed to read settings region")
		return nil, fmt.Errorf("%w: read: %w", ErrStoreIO, err)
	}
	return data, nil
}

// Save serializes r and writes the whole region. r is written verbatim;
// call r.Validate first if it did not come from Load.
func (m *Manager) Save(r Record) error {
	buf := m.codec.Serialize(r)
	if err := m.store.Write(m.base, buf[:]); err != nil {
		m.logger.Error().Err(err).Uint32("addr", m.base).Msg("failed to write settings")
		return fmt.Errorf("%w: write: %w", ErrStoreIO, err)
	}
	m.logger.Debug().Msg("settings saved")
	return nil
}

// Erase invalidates the stored record by overwriting its marker byte with
// 0xFF. Only one byte is written.
func (m *Manager) Erase() error {
	if err := m.store.Write(m.base, []byte{nvm.ErasedByte}); err != nil {
		m.logger.Error().Err(err).Uint32("addr", m.base).Msg("failed to erase settings")
		return fmt.Errorf("%w: erase: %w", ErrStoreIO, err)
	}
	m.logger.Debug().Msg("settings erased")
	return nil
}
