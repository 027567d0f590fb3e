package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docuhub/backend-go/internal/config"
	apperrors "github.com/docuhub/backend-go/internal/errors"
	"github.com/docuhub/backend-go/internal/logger"
)

// RedisClient 全局Redis连接
var RedisClient *redis.Client

// InitRedis 初始化Redis连接
func InitRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg == nil {
		return nil, apperrors.NewInvalidConfiguration("config not loaded")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, apperrors.NewIndexUnavailable("failed to connect to redis", true).WithCause(err)
	}

	RedisClient = rdb
	logger.Info("redis connected")
	return rdb, nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if RedisClient == nil {
		return nil
	}
	return RedisClient.Close()
}
