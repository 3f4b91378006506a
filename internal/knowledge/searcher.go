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

// Package knowledge 题库检索与入库：对外提供按相似度排序的 RetrievedDocument
package knowledge

import (
	"context"
	"fmt"
	"sort"

	einoembed "github.com/cloudwego/eino/components/embedding"
	einoretriever "github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/log"
	"math-tutor/pkg/metrics"
)

// Searcher 在 Eino Retriever 之上做题目检索
type Searcher struct {
	retriever einoretriever.Retriever
	embedder  einoembed.Embedder
	logger    *log.Logger
}

// NewSearcher embedder 可为 nil（后端自带向量化时）
func NewSearcher(retriever einoretriever.Retriever, embedder einoembed.Embedder, logger *log.Logger) *Searcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Searcher{retriever: retriever, embedder: embedder, logger: logger}
}

// Search 返回按分数降序的前 topK 道相似题，分数截断到 [0,1]
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]common.RetrievedDocument, error) {
	opts := []einoretriever.Option{einoretriever.WithTopK(topK)}
	if s.embedder != nil {
		opts = append(opts, einoretriever.WithEmbedding(s.embedder))
	}
	docs, err := s.retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		metrics.ExternalCallTotal.WithLabelValues("retrieval", "error").Inc()
		return nil, common.NewPipelineError("retrieval", "知识库检索失败", fmt.Errorf("%w: %v", common.ErrRetrievalFailed, err))
	}
	metrics.ExternalCallTotal.WithLabelValues("retrieval", "ok").Inc()

	out := make([]common.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		if d == nil {
			continue
		}
		out = append(out, toRetrieved(d))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	s.logger.Debug("知识库检索完成", "results", len(out))
	return out, nil
}

func toRetrieved(d *schema.Document) common.RetrievedDocument {
	question := metaString(d.MetaData, "question")
	if question == "" {
		question = d.Content
	}
	return common.RetrievedDocument{
		Question:    question,
		Gold:        metaString(d.MetaData, "gold"),
		Subject:     metaString(d.MetaData, "subject"),
		Type:        metaString(d.MetaData, "type"),
		Description: metaString(d.MetaData, "description"),
		Score:       clampScore(d.Score()),
	}
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	switch v := meta[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func clampScore(s float64) float64 {
	if s != s || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
