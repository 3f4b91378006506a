package cache

import (
	"context"
	"time"
)

// Store 缓存存储接口，值以 JSON 序列化保存
type Store interface {
	// Set 设置缓存，expiration<=0 时使用存储的默认 TTL
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	// Get 获取缓存，不存在或已过期时返回 errors.ErrNotFound
	Get(ctx context.Context, key string, dest interface{}) error
	// Delete 删除缓存
	Delete(ctx context.Context, key string) error
	// Exists 检查缓存是否存在
	Exists(ctx context.Context, key string) (bool, error)
	// Clear 清除所有缓存
	Clear(ctx context.Context) error
	// Close 关闭缓存连接
	Close() error
}
