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

package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"math-tutor/internal/pipeline/common"
	"math-tutor/pkg/metrics"
)

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// callAPI 请求 {base_url}/embeddings，结果按 data[].index 还原顺序
func (e *Embedder) callAPI(ctx context.Context, texts []string) ([][]float64, error) {
	req := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"model": e.model, "input": texts})
	if e.apiKey != "" {
		req.SetHeader("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := req.Post(e.baseURL + "/embeddings")
	if err != nil {
		metrics.ExternalCallTotal.WithLabelValues("embedding", "error").Inc()
		return nil, fmt.Errorf("%w: 调用 embedding API: %w", common.ErrEmbeddingFailed, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		metrics.ExternalCallTotal.WithLabelValues("embedding", "error").Inc()
		return nil, fmt.Errorf("%w: embedding API 返回 HTTP %d: %s", common.ErrEmbeddingFailed, resp.StatusCode(), resp.String())
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		metrics.ExternalCallTotal.WithLabelValues("embedding", "error").Inc()
		return nil, fmt.Errorf("%w: 解析 embedding 响应: %w", common.ErrEmbeddingFailed, err)
	}

	out := make([][]float64, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("%w: 响应 index 越界: %d", common.ErrEmbeddingFailed, item.Index)
		}
		out[item.Index] = item.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("%w: 响应缺少第 %d 条", common.ErrEmbeddingFailed, i)
		}
	}
	metrics.ExternalCallTotal.WithLabelValues("embedding", "ok").Inc()
	return out, nil
}
