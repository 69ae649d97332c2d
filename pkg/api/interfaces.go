// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/wntrblm/gemsettings/pkg/settings"
	"github.com/wntrblm/gemsettings/pkg/snapshot"
)

// SettingsManager is the settings persistence the API operates on
type SettingsManager interface {
	Load() (settings.Record, bool, error)
	Save(settings.Record) error
	Erase() error
	ReadRaw() ([]byte, error)
	Codec() *settings.Codec
}

// SnapshotStore keeps backups of serialized records
type SnapshotStore interface {
	Create(data []byte) (ksuid.KSUID, error)
	Get(id ksuid.KSUID) (*snapshot.Snapshot, error)
	List() ([]snapshot.Snapshot, error)
	Delete(id ksuid.KSUID) error
}

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves until ctx is canceled or the listener fails
	StartServer(ctx context.Context, manager SettingsManager, snapshots SnapshotStore, config ServerConfig, logger zerolog.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
