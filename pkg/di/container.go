// Package di provides dependency injection container
package di

import (
	"github.com/wntrblm/gemsettings/pkg/api"
	"github.com/wntrblm/gemsettings/pkg/nvm"
	"github.com/wntrblm/gemsettings/pkg/snapshot"
)

// ImageOpener opens the NVM image backing the settings region
type ImageOpener func(config nvm.FileStoreConfig) (*nvm.FileStore, error)

// SnapshotOpener opens the snapshot database
type SnapshotOpener func(dir string) (*snapshot.Store, error)

// Container holds all the dependencies for the application
type Container struct {
	serverFactory  api.ServerFactory
	imageOpener    ImageOpener
	snapshotOpener SnapshotOpener
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		serverFactory:  api.NewServerFactory(),
		imageOpener:    nvm.OpenFileStore,
		snapshotOpener: snapshot.Open,
	}
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}

// OpenImage opens the NVM image with the configured opener
func (c *Container) OpenImage(config nvm.FileStoreConfig) (*nvm.FileStore, error) {
	return c.imageOpener(config)
}

// SetImageOpener allows overriding how the NVM image is opened (for testing)
func (c *Container) SetImageOpener(opener ImageOpener) {
	c.imageOpener = opener
}

// OpenSnapshots opens the snapshot database with the configured opener
func (c *Container) OpenSnapshots(dir string) (*snapshot.Store, error) {
	return c.snapshotOpener(dir)
}

// SetSnapshotOpener allows overriding how the snapshot database is opened (for testing)
func (c *Container) SetSnapshotOpener(opener SnapshotOpener) {
	c.snapshotOpener = opener
}
