package storage

import (
	"context"
	"fmt"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/config"
	"github.com/PaulBabatuyi/supportChat-gRPC/internal/db"
)

// Open builds the backend selected by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StoreBackend {
	case "memory":
		return NewMemory(), nil
	case "", "file":
		return NewFile(cfg.StoreDir)
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("storage: MONGODB_URI is required for the mongo backend")
		}
		client, err := db.New(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		if err := client.CreateIndexes(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		return NewMongo(client), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("storage: REDIS_URL is required for the redis backend")
		}
		return NewRedis(ctx, cfg.RedisURL)
	case "minio":
		if cfg.MinIOEndpoint == "" {
			return nil, fmt.Errorf("storage: MINIO_ENDPOINT is required for the minio backend")
		}
		return NewMinIO(ctx, MinIOOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			Secure:    cfg.MinIOSecure,
		})
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("storage: DATABASE_URL is required for the postgres backend")
		}
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StoreBackend)
	}
}
