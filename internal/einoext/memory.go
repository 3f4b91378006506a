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

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"math-tutor/internal/storage/vector"
)

// contentKey 内存后端把 Document.Content 存在该元数据键下
const contentKey = "content"

// MemoryRetriever 基于 vector.Store 的 Eino Retriever（memory 后端）
type MemoryRetriever struct {
	store     vector.Store
	index     string
	topK      int
	embedding einoembed.Embedder
}

// MemoryRetrieverConfig MemoryRetriever 构造参数
type MemoryRetrieverConfig struct {
	VectorStore vector.Store
	Index       string
	TopK        int
	Embedding   einoembed.Embedder // 调用方未传 WithEmbedding 时使用
}

// NewMemoryRetriever 创建基于 vector.Store 的 Eino Retriever
func NewMemoryRetriever(cfg *MemoryRetrieverConfig) (*MemoryRetriever, error) {
	if cfg == nil || cfg.VectorStore == nil {
		return nil, fmt.Errorf("MemoryRetriever requires VectorStore")
	}
	r := &MemoryRetriever{store: cfg.VectorStore, index: cfg.Index, topK: cfg.TopK, embedding: cfg.Embedding}
	if r.index == "" {
		r.index = defaultCollection
	}
	if r.topK <= 0 {
		r.topK = defaultTopK
	}
	return r, nil
}

// Retrieve 实现 eino retriever.Retriever；不做阈值过滤，由路由决定取舍
func (m *MemoryRetriever) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(&einoretriever.Options{
		Index:     &m.index,
		TopK:      &m.topK,
		Embedding: m.embedding,
	}, opts...)

	if options.Embedding == nil {
		return nil, fmt.Errorf("retriever 需要 Embedding 才能对 query 做向量化")
	}
	vecs, err := options.Embedding.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("retriever embedding: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding returned empty")
	}

	searchOpts := &vector.SearchOptions{TopK: *options.TopK}
	if options.ScoreThreshold != nil {
		searchOpts.Threshold = *options.ScoreThreshold
	}
	results, err := m.store.Search(ctx, *options.Index, vecs[0], searchOpts)
	if err != nil {
		return nil, fmt.Errorf("vector store search: %w", err)
	}

	docs := make([]*schema.Document, 0, len(results))
	for _, sr := range results {
		meta := make(map[string]any, len(sr.Metadata))
		for k, v := range sr.Metadata {
			if k != contentKey {
				meta[k] = v
			}
		}
		d := &schema.Document{ID: sr.ID, Content: sr.Metadata[contentKey], MetaData: meta}
		docs = append(docs, d.WithScore(sr.Score))
	}
	return docs, nil
}

// MemoryIndexer 基于 vector.Store 的 Eino Indexer（memory 后端）
type MemoryIndexer struct {
	store      vector.Store
	collection string
	batchSize  int
	embedding  einoembed.Embedder
}

// MemoryIndexerConfig MemoryIndexer 构造参数
type MemoryIndexerConfig struct {
	VectorStore vector.Store
	Collection  string
	BatchSize   int
	Embedding   einoembed.Embedder
}

// NewMemoryIndexer 创建基于 vector.Store 的 Eino Indexer，索引不存在时创建
func NewMemoryIndexer(ctx context.Context, cfg *MemoryIndexerConfig) (*MemoryIndexer, error) {
	if cfg == nil || cfg.VectorStore == nil {
		return nil, fmt.Errorf("MemoryIndexer 需要 VectorStore")
	}
	m := &MemoryIndexer{store: cfg.VectorStore, collection: cfg.Collection, batchSize: cfg.BatchSize, embedding: cfg.Embedding}
	if m.collection == "" {
		m.collection = defaultCollection
	}
	if m.batchSize <= 0 {
		m.batchSize = defaultBatchSize
	}
	if err := vector.EnsureIndex(ctx, m.store, m.collection, 0); err != nil {
		return nil, err
	}
	return m, nil
}

// Store 实现 eino indexer.Indexer；没有向量的文档按批向量化
func (m *MemoryIndexer) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	options := einoindexer.GetCommonOptions(&einoindexer.Options{Embedding: m.embedding}, opts...)
	collection := m.collection
	if len(options.SubIndexes) > 0 && options.SubIndexes[0] != "" {
		collection = options.SubIndexes[0]
	}

	ids := make([]string, 0, len(docs))
	for start := 0; start < len(docs); start += m.batchSize {
		end := start + m.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]
		if err := embedMissing(ctx, options.Embedding, batch); err != nil {
			return nil, err
		}

		vecs := make([]*vector.Vector, 0, len(batch))
		for _, doc := range batch {
			if doc == nil {
				continue
			}
			meta := stringMeta(doc.MetaData)
			meta[contentKey] = doc.Content
			vecs = append(vecs, &vector.Vector{ID: doc.ID, Values: doc.DenseVector(), Metadata: meta})
			ids = append(ids, doc.ID)
		}
		if err := m.store.Upsert(ctx, collection, vecs); err != nil {
			return nil, fmt.Errorf("vector store upsert: %w", err)
		}
	}
	return ids, nil
}

// embedMissing 对没有稠密向量的文档批量向量化
func embedMissing(ctx context.Context, emb einoembed.Embedder, docs []*schema.Document) error {
	var pending []*schema.Document
	var texts []string
	for _, d := range docs {
		if d != nil && len(d.DenseVector()) == 0 {
			pending = append(pending, d)
			texts = append(texts, d.Content)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	if emb == nil {
		return fmt.Errorf("doc %s has no vector and no Embedding option", pending[0].ID)
	}
	vecs, err := emb.EmbedStrings(ctx, texts)
	if err != nil {
		return fmt.Errorf("indexer embedding: %w", err)
	}
	if len(vecs) != len(pending) {
		return fmt.Errorf("indexer embedding: got %d vectors for %d docs", len(vecs), len(pending))
	}
	for i, d := range pending {
		d.WithDenseVector(vecs[i])
	}
	return nil
}

// stringMeta 只保留字符串值
func stringMeta(meta map[string]any) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
