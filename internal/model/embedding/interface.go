package embedding

import (
	"context"
	"fmt"
	"time"

	einoembed "github.com/cloudwego/eino/components/embedding"
	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// maxBatch 单次 /embeddings 请求的最大条数
const maxBatch = 100

// Config Embedding 客户端配置
type Config struct {
	APIKey    string
	BaseURL   string // OpenAI 兼容端点，如 http://localhost:8081/v1
	Model     string
	Dimension int
	CacheSize int
	Timeout   time.Duration
}

// Embedder 调用 OpenAI 兼容 /embeddings，按文本缓存结果；实现 eino embedding.Embedder
type Embedder struct {
	client    *resty.Client
	baseURL   string
	apiKey    string
	model     string
	dimension int
	cache     *lru.Cache[string, []float64]
}

var _ einoembed.Embedder = (*Embedder)(nil)

// NewEmbedder 创建 Embedder
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base_url 未配置")
	}
	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cache, err := lru.New[string, []float64](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(0)

	return &Embedder{
		client:    client,
		baseURL:   trimSlash(cfg.BaseURL),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		cache:     cache,
	}, nil
}

// Model 返回模型名称
func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.model
}

// Dimension 返回向量维度
func (e *Embedder) Dimension() int {
	if e == nil {
		return 0
	}
	return e.dimension
}

// EmbedStrings 返回与 texts 一一对应的向量；命中缓存的文本不再请求
func (e *Embedder) EmbedStrings(ctx context.Context, texts []string, _ ...einoembed.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(texts))
	var missIdx []int
	var missText []string
	for i, text := range texts {
		if v, ok := e.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}

	for start := 0; start < len(missText); start += maxBatch {
		end := start + maxBatch
		if end > len(missText) {
			end = len(missText)
		}
		vecs, err := e.callAPI(ctx, missText[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vecs {
			idx := missIdx[start+j]
			out[idx] = v
			e.cache.Add(texts[idx], v)
		}
	}
	return out, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
