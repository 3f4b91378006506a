// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache 应答缓存：反馈提交时按 query id 找回原始应答
package cache

import (
	"fmt"
	"time"

	"math-tutor/pkg/config"
)

const (
	// DefaultTTL 缓存默认保留时间
	DefaultTTL = 24 * time.Hour
	// DefaultMaxEntries 内存缓存默认容量
	DefaultMaxEntries = 10000
)

// NewCache 根据配置创建缓存
func NewCache(cfg config.CacheConfig) (Store, error) {
	ttl := config.Duration(cfg.TTL, DefaultTTL)
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(cfg.MaxEntries, ttl), nil
	case "redis":
		s, err := NewRedisStore(RedisConfig{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      ttl,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}
