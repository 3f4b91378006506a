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
	"path/filepath"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoindexer "github.com/cloudwego/eino/components/indexer"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore 嵌入式 chromem-go 集合，同时实现 Eino Retriever 与 Indexer
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	topK       int
}

// ChromemConfig ChromemStore 构造参数
type ChromemConfig struct {
	PersistPath string // 为空则纯内存
	Collection  string
	TopK        int
	Embedding   einoembed.Embedder
}

// NewChromemStore 打开（或创建）集合；集合的 embedding 函数委托给 Eino Embedder
func NewChromemStore(cfg *ChromemConfig) (*ChromemStore, error) {
	if cfg == nil || cfg.Embedding == nil {
		return nil, fmt.Errorf("chromem store 需要 Embedding")
	}
	name := cfg.Collection
	if name == "" {
		name = defaultCollection
	}

	var db *chromem.DB
	if cfg.PersistPath != "" {
		var err error
		db, err = chromem.NewPersistentDB(filepath.Join(cfg.PersistPath, "chromem.gob"), false)
		if err != nil {
			return nil, fmt.Errorf("create persistent DB: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	collection, err := db.GetOrCreateCollection(name, nil, embeddingFunc(cfg.Embedding))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &ChromemStore{db: db, collection: collection, topK: topK}, nil
}

func embeddingFunc(emb einoembed.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := emb.EmbedStrings(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("embedding returned empty")
		}
		return toFloat32(vecs[0]), nil
	}
}

// Retrieve 实现 eino retriever.Retriever；TopK 不超过集合内文档数
func (s *ChromemStore) Retrieve(ctx context.Context, query string, opts ...einoretriever.Option) ([]*schema.Document, error) {
	options := einoretriever.GetCommonOptions(&einoretriever.Options{TopK: &s.topK}, opts...)
	n := *options.TopK
	if count := s.collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	docs := make([]*schema.Document, 0, len(results))
	for _, r := range results {
		if options.ScoreThreshold != nil && float64(r.Similarity) < *options.ScoreThreshold {
			continue
		}
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		d := &schema.Document{ID: r.ID, Content: r.Content, MetaData: meta}
		docs = append(docs, d.WithScore(float64(r.Similarity)))
	}
	return docs, nil
}

// Store 实现 eino indexer.Indexer；已有向量的文档直接写入
func (s *ChromemStore) Store(ctx context.Context, docs []*schema.Document, opts ...einoindexer.Option) ([]string, error) {
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		cd := chromem.Document{ID: doc.ID, Content: doc.Content, Metadata: stringMeta(doc.MetaData)}
		if v := doc.DenseVector(); len(v) > 0 {
			cd.Embedding = toFloat32(v)
		}
		if err := s.collection.AddDocument(ctx, cd); err != nil {
			return nil, fmt.Errorf("add document %s: %w", doc.ID, err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// Count 集合内文档数
func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
