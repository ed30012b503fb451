package server

import (
	"context"
	"fmt"
	"net/http"

	"Romaly/cache"
	"Romaly/config"
	"Romaly/core/account"
	"Romaly/core/auth"
	"Romaly/core/collection"
	"Romaly/core/track"
	"Romaly/core/view"
	"Romaly/db"
	"Romaly/logger"
	"Romaly/repository"
	"Romaly/storage"

	"github.com/go-redis/redis/v8"
)

const (
	uploadsPrefix = "/uploads/"
	staticPrefix  = "/static/"
)

// Repositories 按 DB_DRIVER 选出的一组存储实现
type Repositories struct {
	Users       repository.UserRepository
	Tracks      repository.TrackRepository
	Collections repository.CollectionRepository
}

// App 组装好的服务
type App struct {
	Config      *config.Config
	Repos       Repositories
	Assets      storage.AssetStore
	Accounts    *account.Service
	Tracks      *track.Manager
	Collections *collection.Manager
	Handler     http.Handler

	closers []func() error
}

// OpenRepositories 连接数据库并返回对应实现，关闭函数由调用方负责
func OpenRepositories(ctx context.Context, cfg *config.Config) (Repositories, func() error, error) {
	if cfg.UsesMongo() {
		client, mdb, err := db.ConnectMongo(ctx, cfg)
		if err != nil {
			return Repositories{}, nil, err
		}
		if err := repository.EnsureMongoIndexes(ctx, mdb); err != nil {
			_ = db.CloseMongo(client)
			return Repositories{}, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
		}
		return Repositories{
			Users:       repository.NewMongoUserRepository(mdb),
			Tracks:      repository.NewMongoTrackRepository(mdb),
			Collections: repository.NewMongoCollectionRepository(mdb, cfg.MongoTransactions),
		}, func() error { return db.CloseMongo(client) }, nil
	}

	gdb, err := db.ConnectGormDB(cfg)
	if err != nil {
		return Repositories{}, nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		_ = db.CloseGormDB(gdb)
		return Repositories{}, nil, err
	}
	return Repositories{
		Users:       repository.NewGormUserRepository(gdb),
		Tracks:      repository.NewGormTrackRepository(gdb),
		Collections: repository.NewGormCollectionRepository(gdb),
	}, func() error { return db.CloseGormDB(gdb) }, nil
}

// StoreHandler 资源存储以及对外提供文件的 handler
type StoreHandler struct {
	Store   storage.AssetStore
	Prefix  string
	Handler http.Handler
}

// OpenAssets 按 ASSET_BACKEND 创建资源存储
func OpenAssets(ctx context.Context, cfg *config.Config) (StoreHandler, error) {
	switch cfg.AssetBackend {
	case config.AssetMinio:
		store, err := storage.NewMinioStore(ctx, cfg, staticPrefix)
		if err != nil {
			return StoreHandler{}, err
		}
		return StoreHandler{Store: store, Prefix: staticPrefix, Handler: NewStaticHandler(staticPrefix, store)}, nil
	case config.AssetLocal, "":
		store, err := storage.NewLocalStore(cfg.UploadDir, uploadsPrefix)
		if err != nil {
			return StoreHandler{}, err
		}
		files := http.StripPrefix(uploadsPrefix, http.FileServer(http.Dir(store.Root())))
		return StoreHandler{Store: store, Prefix: uploadsPrefix, Handler: files}, nil
	}
	return StoreHandler{}, fmt.Errorf("unsupported asset backend %q", cfg.AssetBackend)
}

// openCache Redis 不可用时退回无缓存，列表缓存只是加速
func openCache(ctx context.Context, cfg *config.Config) (cache.PageCache, *redis.Client) {
	if !cfg.CacheEnabled() {
		return cache.Nop{}, nil
	}
	client, err := cache.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Warn("Redis 不可用，列表缓存已关闭", logger.ErrorField(err))
		return cache.Nop{}, nil
	}
	logger.Info("Successfully connected to Redis", logger.Duration("ttl", cfg.CacheTTL))
	return cache.NewListingCache(client, cfg.CacheTTL), client
}

// NewApp 连接所有依赖并组装 handler
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	repos, closeDB, err := OpenRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Repos = repos
	app.closers = append(app.closers, closeDB)

	assets, err := OpenAssets(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Assets = assets.Store

	pc, redisClient := openCache(ctx, cfg)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
	views := view.NewResolver(repos.Users, repos.Collections, assets.Store)
	app.Tracks = track.NewManager(repos.Tracks, repos.Collections, assets.Store, views, pc)
	app.Collections = collection.NewManager(repos.Collections, repos.Tracks, assets.Store, views, pc)
	app.Accounts = account.NewService(repos.Users, repos.Tracks, assets.Store, tokens, account.Options{
		ResetTTL: cfg.ResetTokenTTL,
		BaseURL:  cfg.PublicBaseURL,
		Cache:    pc,
	})

	h := NewAPIHandler(cfg, tokens, app.Tracks, app.Collections, app.Accounts, assets.Store)
	app.Handler = NewRouter(h, assets.Prefix, assets.Handler)
	return app, nil
}

// Close 按打开的逆序关闭
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("关闭资源失败", logger.ErrorField(err))
		}
	}
	a.closers = nil
}
