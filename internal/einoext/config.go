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

package einoext

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"math-tutor/pkg/config"
)

// RedisOptionsFromVectorConfig 从 VectorConfig 构造 redis.Options（type=redis 时使用）
func RedisOptionsFromVectorConfig(cfg config.VectorConfig) (*redis.Options, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}
	if cfg.DB != "" {
		db, err := strconv.Atoi(cfg.DB)
		if err != nil || db < 0 {
			return nil, fmt.Errorf("invalid redis db %q", cfg.DB)
		}
		opts.DB = db
	}
	// Redis Stack 向量检索需 Protocol 2、UnstableResp3 true
	opts.Protocol = 2
	opts.UnstableResp3 = true
	return opts, nil
}

// EnsureRedisIndex 若 FT 索引不存在则按题库字段创建（HASH，前缀 <index>:，余弦 HNSW）
func EnsureRedisIndex(ctx context.Context, client *redis.Client, index string, dimension int) error {
	if _, err := client.FTInfo(ctx, index).Result(); err == nil {
		return nil
	}
	schema := []*redis.FieldSchema{
		{FieldName: "content", FieldType: redis.SearchFieldTypeText},
		{FieldName: "subject", FieldType: redis.SearchFieldTypeTag},
		{FieldName: "type", FieldType: redis.SearchFieldTypeTag},
		{
			FieldName: "vector_content",
			FieldType: redis.SearchFieldTypeVector,
			VectorArgs: &redis.FTVectorArgs{HNSWOptions: &redis.FTHNSWOptions{
				Type:           "FLOAT32",
				Dim:            dimension,
				DistanceMetric: "COSINE",
			}},
		},
	}
	err := client.FTCreate(ctx, index, &redis.FTCreateOptions{
		OnHash: true,
		Prefix: []interface{}{index + ":"},
	}, schema...).Err()
	if err != nil {
		return fmt.Errorf("redis FT.CREATE %s: %w", index, err)
	}
	return nil
}
