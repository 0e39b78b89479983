package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"CoParent/config"
	redisotel "CoParent/pkg/redis"
)

const defaultKeyPrefix = "coparent"

var (
	client *redis.Client
	once   sync.Once
	err    error
)

func Init() error {
	once.Do(func() {
		cfg := config.Cfg

		client = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MinIdleConns: 5,
			MaxRetries:   3,
		})

		if cfg.OTelEnabled {
			redisotel.InstrumentRedisClient(client, cfg.ServiceName, cfg.RedisDB)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err = client.Ping(ctx).Err(); err != nil {
			err = fmt.Errorf("failed to ping redis: %w", err)
		}
	})

	return err
}

// Client 未初始化时 panic，调用方需保证 Init 已执行
func Client() *redis.Client {
	if client == nil {
		panic("Redis client not init")
	}
	return client
}

// Ready 报告客户端是否可用，供可选依赖判断
func Ready() bool {
	return client != nil && err == nil
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// Key 拼接带前缀的键名，空片段会被跳过
func Key(parts ...string) string {
	prefix := config.Cfg.RedisPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}
	return sb.String()
}
