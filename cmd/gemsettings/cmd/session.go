package cmd

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wntrblm/gemsettings/pkg/config"
	"github.com/wntrblm/gemsettings/pkg/nvm"
	"github.com/wntrblm/gemsettings/pkg/settings"
	"github.com/wntrblm/gemsettings/pkg/snapshot"
)

type sessionKey struct{}

// session holds what a command needs once the image is open
type session struct {
	config  *config.Config
	logger  zerolog.Logger
	image   *nvm.FileStore
	manager *settings.Manager
	snaps   *snapshot.Store
}

// current is closed by the cobra finalizer after every Execute
var current *session

func sessionFrom(cmd *cobra.Command) (*session, error) {
	s, ok := cmd.Context().Value(sessionKey{}).(*session)
	if !ok || s == nil {
		return nil, errors.New("settings session not found in context")
	}
	return s, nil
}

// snapshots opens the snapshot database on first use
func (s *session) snapshots() (*snapshot.Store, error) {
	if s.snaps != nil {
		return s.snaps, nil
	}
	snaps, err := getContainer().OpenSnapshots(s.config.Snapshots.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshots: %w", err)
	}
	s.snaps = snaps
	return snaps, nil
}

func (s *session) close() error {
	var errs []error
	if s.snaps != nil {
		errs = append(errs, s.snaps.Close())
		s.snaps = nil
	}
	if s.image != nil {
		errs = append(errs, s.image.Close())
		s.image = nil
	}
	return errors.Join(errs...)
}

func closeSession() {
	if current == nil {
		return
	}
	if err := current.close(); err != nil {
		current.logger.Error().Err(err).Msg("failed to close session")
	}
	current = nil
}
