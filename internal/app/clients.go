package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/draftsync-backend/internal/data/db"
	"github.com/yungbote/draftsync-backend/internal/platform/gcp"
	"github.com/yungbote/draftsync-backend/internal/platform/logger"
)

type Clients struct {
	Postgres *db.PostgresService
	DB       *gorm.DB
	// Redis is nil in single-replica mode.
	Redis  goredis.UniversalClient
	Bucket gcp.BucketService
	Drive  gcp.DocProvider
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	pg, err := db.NewPostgresService(cfg.Postgres, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init postgres: %w", err)
	}
	out.Postgres = pg
	out.DB = pg.DB()
	if err := db.AutoMigrateAll(out.DB); err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("postgres automigrate: %w", err)
	}

	if cfg.RedisAddr != "" {
		rdb := goredis.NewUniversalClient(&goredis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			out.Close()
			return Clients{}, fmt.Errorf("redis ping: %w", err)
		}
		out.Redis = rdb
	}

	bucket, err := resolveBucketService(log, cfg.Bucket)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	out.Bucket = bucket

	drive, err := gcp.NewDriveProvider(ctx, log, cfg.Drive)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init drive client: %w", err)
	}
	out.Drive = drive

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
}
