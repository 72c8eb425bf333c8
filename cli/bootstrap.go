package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/myresource/catalog"
	"github.com/cppla/myresource/config"
	"github.com/cppla/myresource/models"
	"github.com/cppla/myresource/routes"
	"github.com/cppla/myresource/upload"
	"github.com/cppla/myresource/utils"
)

// app holds the services every command is built on.
type app struct {
	cfg      config.AppConfig
	store    *catalog.Store
	engine   *catalog.Engine
	prefs    *catalog.Preferences
	local    *upload.LocalBlobStore
	minio    *upload.MinioBlobStore
	pipeline *upload.Pipeline
	closers  []func() error
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &app{cfg: cfg}

	kv, err := a.openKV(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = catalog.NewStore(kv, cfg.CatalogKey,
		catalog.WithSeed(!cfg.DisableSeed),
		catalog.WithLogger(utils.Logger.Named("catalog")),
	)
	a.engine = catalog.NewEngine(a.store, cfg.CollationLocale, cfg.QueryCacheSize, time.Duration(cfg.QueryCacheTTL)*time.Second)
	a.prefs = catalog.NewPreferences(kv, cfg.ThemeKey)

	blobs, err := a.openBlobs(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	thumbs := upload.DefaultThumbnailer()
	thumbs.MaxSize, thumbs.Quality = cfg.ThumbnailMaxSize, cfg.ThumbnailQuality
	thumbs.MaxPixels = int64(cfg.ThumbnailMaxMP) * 1_000_000
	a.pipeline = upload.NewPipeline(a.store, blobs,
		upload.WithThumbnailer(thumbs),
		upload.WithProgress(upload.Progress{
			Interval: time.Duration(cfg.ProgressTickMS) * time.Millisecond,
			MaxStep:  float64(cfg.ProgressMaxStep),
		}),
		upload.WithLogger(utils.Logger.Named("upload")),
	)
	return a, nil
}

func (a *app) openKV(ctx context.Context) (catalog.KV, error) {
	switch a.cfg.StoreBackend {
	case "memory":
		utils.Sugar.Warn("memory store backend: the catalog is lost on exit")
		return catalog.NewMemoryKV(), nil
	case "redis":
		rdb, err := utils.NewRedis(ctx, a.cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return catalog.NewRedisKV(rdb), nil
	case "mysql":
		db, err := config.InitDatabase(&models.KVEntry{})
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		return catalog.NewGormKV(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", a.cfg.StoreBackend)
	}
}

func (a *app) openBlobs(ctx context.Context) (upload.BlobStore, error) {
	switch a.cfg.BlobBackend {
	case "local":
		a.local = upload.NewLocalBlobStore(a.cfg.UploadDir, a.cfg.UploadURLPrefix, int64(a.cfg.MaxUploadMB)<<20)
		return a.local, nil
	case "minio":
		store, err := upload.NewMinioBlobStore(upload.MinioConfig{
			Endpoint:      a.cfg.MinIOEndpoint,
			AccessKey:     a.cfg.MinIOAccessKey,
			SecretKey:     a.cfg.MinIOSecretKey,
			UseSSL:        a.cfg.MinIOUseSSL,
			Region:        a.cfg.MinIORegion,
			Bucket:        a.cfg.MinIOBucket,
			PublicBaseURL: a.cfg.MinIOPublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		a.minio = store
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", a.cfg.BlobBackend)
	}
}

func (a *app) routerDeps() routes.Deps {
	d := routes.Deps{
		Config:   a.cfg,
		Engine:   a.engine,
		Prefs:    a.prefs,
		Pipeline: a.pipeline,
	}
	if a.minio != nil {
		d.Blobs = a.minio
	}
	return d
}

// sweepOrphans deletes local blobs no record points at.
func (a *app) sweepOrphans(ctx context.Context) (int, error) {
	list, err := a.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]bool, len(list))
	for _, r := range list {
		if r.URL != "" {
			referenced[r.URL] = true
		}
	}
	return a.local.Sweep(referenced, time.Hour, time.Now())
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		utils.Logger.Warn("close backends", zap.Error(err))
	}
	_ = utils.Logger.Sync()
}
