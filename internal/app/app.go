// Package app assembles the directory from configuration: the local snapshot
// database, the remote backend and object store selected by the environment,
// the Directory and Auth services, and the HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-merchant-directory/internal/config"
	httpapi "github.com/tbourn/go-merchant-directory/internal/http"
	"github.com/tbourn/go-merchant-directory/internal/remote"
	"github.com/tbourn/go-merchant-directory/internal/remote/blobfs"
	"github.com/tbourn/go-merchant-directory/internal/remote/rest"
	"github.com/tbourn/go-merchant-directory/internal/remote/sqlstore"
	"github.com/tbourn/go-merchant-directory/internal/repo"
	"github.com/tbourn/go-merchant-directory/internal/services"
	"github.com/tbourn/go-merchant-directory/internal/snapshot"
)

// App holds the wired services. Close releases the database handles.
type App struct {
	Config     config.Config
	Log        zerolog.Logger
	RemoteKind string

	DB        *gorm.DB // local snapshot and idempotency ledger
	RemoteDB  *gorm.DB // only for the sql backend
	Snapshots *repo.SnapshotKV
	Directory *services.Directory
	Auth      *services.AuthService
}

// Build opens the local database and wires every component. It does not
// sync; call Directory.LoadAll for that.
func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	if err := repo.EnableTracing(db); err != nil {
		return nil, fmt.Errorf("db tracing: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate snapshot db: %w", err)
	}

	a := &App{
		Config:     cfg,
		Log:        log,
		RemoteKind: cfg.Remote.Kind(),
		DB:         db,
		Snapshots:  repo.NewSnapshotKV(db),
	}
	store := snapshot.New(a.Snapshots, log)

	backend, blobs, err := a.openRemote()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var mode *services.WriteMode
	if cfg.Remote.WriteMode == "local" {
		m := services.LocalOnly
		mode = &m
	}
	a.Directory = services.NewDirectory(services.DirectoryOptions{
		Backend:             backend,
		Blobs:               blobs,
		Store:               store,
		Mode:                mode,
		PageSize:            cfg.Remote.PageSize,
		RecommendationLimit: cfg.Remote.RecommendationLimit,
		Timeout:             cfg.Remote.Timeout,
		Logger:              log,
	})

	accounts := make([]services.Account, 0, len(cfg.Admins))
	for _, adm := range cfg.Admins {
		accounts = append(accounts, services.Account{Username: adm.Username, PasswordHash: []byte(adm.PasswordHash)})
	}
	a.Auth = services.NewAuthService(ctx, accounts, store, log)

	if n, last, err := a.Snapshots.Stats(ctx); err == nil {
		ev := log.Info().Str("remote", a.RemoteKind).Str("mode", a.Directory.Mode().String()).Int64("snapshot_keys", n)
		if last != nil {
			ev = ev.Time("snapshot_written", *last)
		}
		ev.Msg("directory wired")
	}
	return a, nil
}

// openRemote selects the backend: an HTTP backend when URL and key are set, a
// SQL database when a DSN is set, none otherwise. Blobs go to BLOB_DIR when
// set, else to the HTTP backend's storage.
func (a *App) openRemote() (remote.Backend, remote.Blobs, error) {
	rc := a.Config.Remote
	var (
		backend remote.Backend
		blobs   remote.Blobs
	)

	switch a.RemoteKind {
	case config.RemoteREST:
		client, err := rest.New(rest.Options{
			URL:     rc.URL,
			APIKey:  rc.APIKey,
			Bucket:  rc.Bucket,
			Timeout: rc.Timeout,
			Logger:  a.Log,
		})
		if err != nil {
			return nil, nil, err
		}
		backend, blobs = client, client
	case config.RemoteSQL:
		rdb, err := openRemoteDB(rc.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open remote db: %w", err)
		}
		a.RemoteDB = rdb
		if err := repo.EnableTracing(rdb); err != nil {
			return nil, nil, fmt.Errorf("remote db tracing: %w", err)
		}
		st := sqlstore.New(rdb)
		if err := st.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("migrate remote db: %w", err)
		}
		backend = st
	}

	if rc.BlobDir != "" {
		fs, err := blobfs.New(rc.BlobDir, rc.PublicBaseURL+httpapi.MediaPath)
		if err != nil {
			return nil, nil, err
		}
		blobs = fs
	}
	return backend, blobs, nil
}

// openRemoteDB treats postgres URLs and keyword DSNs as Postgres and anything
// else as a SQLite path.
func openRemoteDB(dsn string) (*gorm.DB, error) {
	low := strings.ToLower(dsn)
	if strings.HasPrefix(low, "postgres://") || strings.HasPrefix(low, "postgresql://") || strings.Contains(low, "host=") {
		return repo.OpenPostgres(dsn)
	}
	return repo.OpenSQLite(dsn)
}

// Router builds the Gin engine serving the directory API.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	httpapi.RegisterRoutes(r, a.DB, a.Directory, a.Auth, a.Config)
	return r
}

// PurgeIdempotency deletes expired idempotency records every interval until
// ctx is done.
func (a *App) PurgeIdempotency(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeIdempotency(ctx, a.DB, now.UTC())
			if err != nil {
				a.Log.Warn().Err(err).Msg("purge idempotency records")
				continue
			}
			if n > 0 {
				a.Log.Debug().Int64("deleted", n).Msg("purged idempotency records")
			}
		}
	}
}

// Close releases both database handles.
func (a *App) Close() error {
	var errs []error
	for _, db := range []*gorm.DB{a.RemoteDB, a.DB} {
		if db == nil {
			continue
		}
		if sqlDB, err := db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
