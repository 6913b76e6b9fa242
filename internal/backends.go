package internal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/DukeRupert/surveypro/internal/catalog"
	"github.com/DukeRupert/surveypro/internal/kv"
	"github.com/DukeRupert/surveypro/internal/storage"
)

// OpenStore connects the key-value backend named by STORE_BACKEND. The
// postgres backend has its migrations applied before it is returned.
// Closing the store releases the underlying connection.
func OpenStore(ctx context.Context, cfg *Config, logger *slog.Logger) (kv.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("using in-memory store; state is lost on restart")
		return kv.NewMemoryStore(), nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		logger.Info("Redis store ready", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		return kv.NewRedisStore(client, cfg.RedisPrefix, logger), nil

	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("database ping failed: %w", err)
		}
		if err := RunMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")
		return kv.NewPostgresStore(db, logger), nil
	}
	return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
}

// OpenCatalogStorage returns the object storage holding the catalog for
// the local and r2 catalog sources.
func OpenCatalogStorage(cfg *Config, logger *slog.Logger) (storage.Storage, error) {
	switch cfg.CatalogSource {
	case "local":
		return storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	case "r2":
		return storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	}
	return nil, fmt.Errorf("catalog source %q has no object storage", cfg.CatalogSource)
}

// NewCatalogSource builds the catalog source named by CATALOG_SOURCE.
func NewCatalogSource(cfg *Config, logger *slog.Logger) (catalog.Source, error) {
	if cfg.CatalogSource == "http" {
		logger.Info("catalog served over HTTP", "url", cfg.CatalogURL+catalog.DocumentPath(cfg.CatalogBasePath))
		return catalog.NewHTTPSource(cfg.CatalogURL, cfg.CatalogBasePath, &http.Client{}), nil
	}

	store, err := OpenCatalogStorage(cfg, logger)
	if err != nil {
		return nil, err
	}
	return catalog.NewStorageSource(store, cfg.CatalogKey), nil
}
