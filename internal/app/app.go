// Package app wires configuration, storage and services into a running
// infradesk instance shared by the CLI and the MCP server.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"infradesk/internal/config"
	"infradesk/internal/domain"
	"infradesk/internal/ingest"
	"infradesk/internal/ingest/sources"
	"infradesk/internal/logging"
	"infradesk/internal/registry"
	"infradesk/internal/secret"
	"infradesk/internal/service"
	"infradesk/internal/storage"
)

// App owns every long-lived resource of the process.
type App struct {
	Config *config.Config
	Logger *logrus.Logger

	db      *storage.DB
	fs      afero.Fs
	emitter *switchEmitter

	Records  *service.RecordService
	Ingest   *service.IngestService
	Database *service.DatabaseService
}

// Options tweak how the App is built. Zero values use the real OS
// filesystem and wall clock.
type Options struct {
	Fs    afero.Fs
	Clock domain.Clock
}

// New opens storage and builds the services described by cfg.
func New(cfg *config.Config, logger *logrus.Logger, opts Options) (*App, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	db, err := storage.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var blobs domain.BlobStore
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		blobs = storage.NewSQLiteBlobStore(db)
	default:
		fsBlobs, err := storage.NewFSBlobStore(fs, cfg.DatasetDir())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("open dataset dir: %w", err)
		}
		blobs = fsBlobs
	}

	secrets, err := secret.New(cfg.Secrets.Backend)
	if err != nil {
		db.Close()
		return nil, err
	}

	reg := registry.Default()
	for _, s := range cfg.Schemas {
		reg.Register(s)
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		db:      db,
		fs:      fs,
		emitter: &switchEmitter{},
	}

	codec := storage.NewTableCodec(blobs, logging.Component(logger, "codec"))
	a.Records = service.NewRecordService(codec, reg, opts.Clock, a.emitter, logging.Component(logger, "records"))
	a.Database = service.NewDatabaseService(cfg.Connections, secrets, logging.Component(logger, "database"))
	a.Ingest = service.NewIngestService(a.Records, fs, storage.NewIngestRunStore(db), cfg.Profiles(), logging.Component(logger, "ingest"))

	registerDatabaseSource(a.Database)

	logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"backend":  cfg.Storage.Backend,
	}).Debug("app ready")
	return a, nil
}

// SetEmitter routes service events to e. Passing nil silences them.
func (a *App) SetEmitter(e service.EventEmitter) {
	a.emitter.set(e)
}

// NewWatchService builds the inbox watcher and repair scheduler.
func (a *App) NewWatchService() *service.WatchService {
	return service.NewWatchService(a.Ingest, a.Records, a.fs, a.Config.Watch(), logging.Component(a.Logger, "watch"))
}

// Close releases connectors and the database.
func (a *App) Close() error {
	a.Database.Close()
	return a.db.Close()
}

// Shutdown waits briefly for w to finish in-flight files, then closes.
func (a *App) Shutdown(w *service.WatchService) error {
	if w != nil {
		w.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		w.Wait(ctx)
		cancel()
	}
	return a.Close()
}

// registerDatabaseSource exposes the configured connections as the
// "database" workbook source. The registry is global, so the latest App
// wins.
func registerDatabaseSource(db *service.DatabaseService) {
	ingest.RegisterSource(sources.NewDatabaseSource(db))
}
