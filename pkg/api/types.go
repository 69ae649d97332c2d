package api

import (
	"time"

	"github.com/segmentio/ksuid"

	"github.com/wntrblm/gemsettings/pkg/settings"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SettingsResponse is the payload of a settings load
type SettingsResponse struct {
	Record settings.Record `json:"record"`
	Valid  bool            `json:"valid"`
}

// SnapshotResponse describes one stored backup
type SnapshotResponse struct {
	ID        ksuid.KSUID      `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Valid     bool             `json:"valid"`
	Record    *settings.Record `json:"record,omitempty"`
	Raw       string           `json:"raw"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port   int
	Bind   string
	APIKey string
}
