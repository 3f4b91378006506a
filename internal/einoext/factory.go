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

	redisindexer "github.com/cloudwego/eino-ext/components/indexer/redis"
	redisretriever "github.com/cloudwego/eino-ext/components/retriever/redis"
	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/redis/go-redis/v9"

	"math-tutor/internal/storage/vector"
	"math-tutor/pkg/config"
)

const (
	defaultBatchSize  = 100
	defaultTopK       = 3
	defaultCollection = "math_knowledge_base"
)

// redis 检索时需要带回的题目字段
var redisReturnFields = []string{"content", "question", "gold", "subject", "type", "description", "index", "distance"}

// Backend 一个向量后端的检索与入库两端
type Backend struct {
	Retriever einoretriever.Retriever
	Indexer   einoindexer.Indexer
	Type      string
	closeFn   func() error
}

// Close 释放后端连接
func (b *Backend) Close() error {
	if b == nil || b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// BackendOptions 与后端类型无关的参数
type BackendOptions struct {
	TopK      int
	BatchSize int
	Dimension int // redis 建索引时使用
}

// NewBackend 根据 VectorConfig 创建知识库后端（memory | redis | chromem）
func NewBackend(ctx context.Context, cfg config.VectorConfig, o BackendOptions, embedder einoembed.Embedder) (*Backend, error) {
	t := cfg.Type
	if t == "" {
		t = "memory"
	}
	coll := cfg.Collection
	if coll == "" {
		coll = defaultCollection
	}
	batchSize := o.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	topK := o.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	switch t {
	case "memory":
		store := vector.NewMemoryStore()
		idx, err := NewMemoryIndexer(ctx, &MemoryIndexerConfig{
			VectorStore: store,
			Collection:  coll,
			BatchSize:   batchSize,
			Embedding:   embedder,
		})
		if err != nil {
			return nil, err
		}
		ret, err := NewMemoryRetriever(&MemoryRetrieverConfig{
			VectorStore: store,
			Index:       coll,
			TopK:        topK,
			Embedding:   embedder,
		})
		if err != nil {
			return nil, err
		}
		return &Backend{Retriever: ret, Indexer: idx, Type: t, closeFn: store.Close}, nil
	case "redis":
		opts, err := RedisOptionsFromVectorConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("redis options: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		if err := EnsureRedisIndex(ctx, client, coll, o.Dimension); err != nil {
			_ = client.Close()
			return nil, err
		}
		idx, err := redisindexer.NewIndexer(ctx, &redisindexer.IndexerConfig{
			Client:    client,
			KeyPrefix: coll + ":",
			BatchSize: batchSize,
			Embedding: embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis indexer: %w", err)
		}
		ret, err := redisretriever.NewRetriever(ctx, &redisretriever.RetrieverConfig{
			Client:       client,
			Index:        coll,
			ReturnFields: redisReturnFields,
			TopK:         topK,
			Embedding:    embedder,
		})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis retriever: %w", err)
		}
		return &Backend{Retriever: ret, Indexer: idx, Type: t, closeFn: client.Close}, nil
	case "chromem":
		store, err := NewChromemStore(&ChromemConfig{
			PersistPath: cfg.PersistPath,
			Collection:  coll,
			TopK:        topK,
			Embedding:   embedder,
		})
		if err != nil {
			return nil, err
		}
		return &Backend{Retriever: store, Indexer: store, Type: t}, nil
	default:
		return nil, fmt.Errorf("unsupported vector type: %s", t)
	}
}
