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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"math-tutor/pkg/config"
	"math-tutor/pkg/errors"
)

type cachedResponse struct {
	QueryID string  `json:"query_id"`
	Answer  string  `json:"answer"`
	Score   float64 `json:"score"`
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	want := cachedResponse{QueryID: "20260102030405000006", Answer: "B", Score: 0.87}
	require.NoError(t, s.Set(ctx, want.QueryID, want, 0))

	ok, err := s.Exists(ctx, want.QueryID)
	require.NoError(t, err)
	assert.True(t, ok)

	var got cachedResponse
	require.NoError(t, s.Get(ctx, want.QueryID, &got))
	assert.Equal(t, want, got)

	err = s.Get(ctx, "missing", &got)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	require.NoError(t, s.Delete(ctx, want.QueryID))
	ok, err = s.Exists(ctx, want.QueryID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", 1, 0))
	require.NoError(t, s.Set(ctx, "b", 2, 0))
	require.NoError(t, s.Clear(ctx))
	ok, _ = s.Exists(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryStore_Contract(t *testing.T) {
	s := NewMemoryStore(10, time.Hour)
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, time.Hour)

	require.NoError(t, s.Set(ctx, "q1", "a", 0))
	require.NoError(t, s.Set(ctx, "q2", "b", 0))
	var v string
	require.NoError(t, s.Get(ctx, "q1", &v))
	require.NoError(t, s.Set(ctx, "q3", "c", 0))

	ok, _ := s.Exists(ctx, "q2")
	assert.False(t, ok)
	ok, _ = s.Exists(ctx, "q1")
	assert.True(t, ok)
	assert.Equal(t, 2, s.Len())
}

func TestMemoryStore_PerItemExpiration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Hour)

	require.NoError(t, s.Set(ctx, "short", "x", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v string
	assert.True(t, errors.Is(s.Get(ctx, "short", &v), errors.ErrNotFound))
}

func TestRedisStore_Contract(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr(), TTL: time.Hour})
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestRedisStore_AppliesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), "q1", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("tutor:response:q1"))

	mr.FastForward(2 * time.Minute)
	ok, err := s.Exists(context.Background(), "q1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewCache(t *testing.T) {
	s, err := NewCache(config.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	mr := miniredis.RunT(t)
	s, err = NewCache(config.CacheConfig{Type: "redis", Addr: mr.Addr(), TTL: "1h"})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, s)
	_ = s.Close()

	_, err = NewCache(config.CacheConfig{Type: "memcached"})
	assert.ErrorContains(t, err, "unsupported cache type")
}
