package storage

import (
	"fmt"

	"CoParent/storage/database"
	"CoParent/storage/mq"
	"CoParent/storage/redis"
)

// Component 需要初始化的存储组件
type Component uint8

const (
	Database Component = 1 << iota
	Redis
	MQ

	All = Database | Redis | MQ
)

// Init 按 database -> redis -> mq 的顺序初始化所选组件
func Init(components Component) error {
	if components&Database != 0 {
		if err := database.Init(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if components&Redis != 0 {
		if err := redis.Init(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	if components&MQ != 0 {
		if err := mq.Init(); err != nil {
			return fmt.Errorf("rabbitmq: %w", err)
		}
	}

	return nil
}
