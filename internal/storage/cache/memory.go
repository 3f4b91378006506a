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

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"math-tutor/pkg/errors"
)

// MemoryStore 进程内缓存：LRU 容量淘汰 + 全局 TTL，单条可设置更短的过期时间
type MemoryStore struct {
	items *expirable.LRU[string, cacheItem]
}

// cacheItem 缓存项
type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore maxEntries<=0 时使用 DefaultMaxEntries，ttl<=0 时使用 DefaultTTL
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{items: expirable.NewLRU[string, cacheItem](maxEntries, nil, ttl)}
}

// Set 设置缓存
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	item := cacheItem{value: data}
	if expiration > 0 {
		item.expiresAt = time.Now().Add(expiration)
	}
	s.items.Add(key, item)
	return nil
}

// Get 获取缓存
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	item, ok := s.lookup(key)
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "cache key %s", key)
	}
	if err := json.Unmarshal(item.value, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

func (s *MemoryStore) lookup(key string) (cacheItem, bool) {
	item, ok := s.items.Get(key)
	if !ok {
		return cacheItem{}, false
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		s.items.Remove(key)
		return cacheItem{}, false
	}
	return item, true
}

// Delete 删除缓存，key 不存在时不报错
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.items.Remove(key)
	return nil
}

// Exists 检查缓存是否存在
func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.lookup(key)
	return ok, nil
}

// Clear 清除所有缓存
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.items.Purge()
	return nil
}

// Len 当前条目数（含尚未清理的过期项）
func (s *MemoryStore) Len() int {
	return s.items.Len()
}

// Close 关闭缓存连接
func (s *MemoryStore) Close() error {
	return nil
}
